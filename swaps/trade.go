package swaps

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// ProviderType identifies a routing source.
type ProviderType string

const (
	ProviderThorchain   ProviderType = "thorchain"
	ProviderNearIntents ProviderType = "nearintents"
	ProviderSimpleSwap  ProviderType = "simpleswap"
	ProviderHoudini     ProviderType = "houdini"
	ProviderCowSwap     ProviderType = "cowswap"
)

// DisplayName is the human label used in CLI output and smart routing info.
func (p ProviderType) DisplayName() string {
	switch p {
	case ProviderThorchain:
		return "THORChain"
	case ProviderNearIntents:
		return "NEAR Intents"
	case ProviderSimpleSwap:
		return "SimpleSwap"
	case ProviderHoudini:
		return "HoudiniSwap"
	case ProviderCowSwap:
		return "CoW Protocol"
	}
	return string(p)
}

// Trade is a priced quote from one provider. Amounts are raw integers in the
// respective token's smallest unit.
type Trade struct {
	Provider ProviderType
	From     Token
	To       Token

	AmountIn     *big.Int
	AmountOut    *big.Int
	AmountOutMin *big.Int

	// CryptoFee is an extra native-currency amount (wei) that must accompany
	// the source transaction.
	CryptoFee *big.Int

	Path              []Token
	EstimatedDuration time.Duration

	Details Details
}

// AmountOutDecimal returns the expected output in human units.
func (t Trade) AmountOutDecimal() decimal.Decimal {
	return t.To.FromRaw(t.AmountOut)
}

// Details is the provider-specific part of a Trade. The set of
// implementations is closed; switches over it must handle every variant.
type Details interface {
	isDetails()
}

// ThorchainDetails carries what a router deposit needs.
type ThorchainDetails struct {
	Router  common.Address
	Vault   common.Address
	Memo    string
	Expiry  int64 // unix seconds
	Fees    string
	Warning string
}

// NearIntentsDetails holds the 1Click deposit info. DepositAddress is empty
// until the quote has been prepared (non-dry).
type NearIntentsDetails struct {
	AssetIn        string
	AssetOut       string
	DepositAddress string
	CorrelationID  string
	Deadline       time.Time
}

type SimpleSwapDetails struct {
	CurrencyFrom   string
	CurrencyTo     string
	ExchangeID     string
	DepositAddress string
}

type HoudiniDetails struct {
	FromSymbol     string
	ToSymbol       string
	QuoteID        string
	HoudiniID      string
	DepositAddress string
	Anonymous      bool
}

type CowSwapDetails struct {
	SellToken common.Address
	BuyToken  common.Address
	FeeAmount *big.Int
	ValidTo   uint32
	OrderUID  []byte
}

func (ThorchainDetails) isDetails()   {}
func (NearIntentsDetails) isDetails() {}
func (SimpleSwapDetails) isDetails()  {}
func (HoudiniDetails) isDetails()     {}
func (CowSwapDetails) isDetails()     {}

// SmartRouting names the providers that handled the source-side swap, the
// destination-side swap and the bridge leg.
type SmartRouting struct {
	FromProvider   string `json:"fromProvider,omitempty"`
	ToProvider     string `json:"toProvider,omitempty"`
	BridgeProvider string `json:"bridgeProvider,omitempty"`
}

// SmartRouting returns routing metadata for composite trades, or nil when the
// provider does not expose it.
func (t Trade) SmartRouting() *SmartRouting {
	switch d := t.Details.(type) {
	case ThorchainDetails:
		if t.From.Blockchain == t.To.Blockchain {
			return nil
		}
		return &SmartRouting{BridgeProvider: ProviderThorchain.DisplayName()}
	case NearIntentsDetails:
		if t.From.Blockchain == t.To.Blockchain {
			return nil
		}
		return &SmartRouting{BridgeProvider: ProviderNearIntents.DisplayName()}
	case HoudiniDetails:
		if d.Anonymous {
			return &SmartRouting{FromProvider: ProviderHoudini.DisplayName(), ToProvider: ProviderHoudini.DisplayName()}
		}
		return nil
	case SimpleSwapDetails:
		return nil
	case CowSwapDetails:
		return &SmartRouting{FromProvider: ProviderCowSwap.DisplayName()}
	case nil:
		return nil
	}
	return nil
}

// PathSymbols renders the trade path as token keys.
func (t Trade) PathSymbols() []string {
	if len(t.Path) == 0 {
		return []string{t.From.Key(), t.To.Key()}
	}
	out := make([]string, len(t.Path))
	for i, tok := range t.Path {
		out[i] = tok.Key()
	}
	return out
}

// MinimumOut applies a tolerance in basis points to an expected output.
func MinimumOut(out *big.Int, bps int) *big.Int {
	floor := new(big.Int).Mul(out, big.NewInt(int64(10000-bps)))
	return floor.Quo(floor, big.NewInt(10000))
}

// ToleranceBps recovers the tolerance a trade was quoted with from its
// expected and minimum outputs.
func ToleranceBps(out, floor *big.Int) int {
	if out == nil || floor == nil || out.Sign() <= 0 {
		return 0
	}
	diff := new(big.Int).Sub(out, floor)
	diff.Mul(diff, big.NewInt(10000))
	return int(diff.Quo(diff, out).Int64())
}
