package swaps

import (
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
)

// DefaultTimeout is the per-provider budget when a request does not set one.
const DefaultTimeout = 25 * time.Second

// Request is one calculation input. It is not modified once a cycle starts.
type Request struct {
	From       Token
	FromAmount decimal.Decimal // human units
	To         Token

	// SlippageTolerance is a fraction, e.g. 0.02 for 2%.
	SlippageTolerance decimal.Decimal
	Timeout           time.Duration

	DisabledProviders map[ProviderType]bool

	// Sender is the EVM wallet that will sign, used as refund address where
	// providers need one. Optional during calculation.
	Sender string
	// Receiver is the destination address. Optional during calculation.
	Receiver string
}

// Validate checks that the request carries everything providers need.
func (r Request) Validate() error {
	for _, t := range []Token{r.From, r.To} {
		if !t.Blockchain.Known() {
			return &ConfigurationError{Field: "blockchain", Reason: "unsupported blockchain " + string(t.Blockchain)}
		}
		if t.Symbol == "" {
			return &ConfigurationError{Field: "token", Reason: "token on " + string(t.Blockchain) + " has no symbol"}
		}
		if t.Decimals <= 0 {
			return &ConfigurationError{Field: "token", Reason: "token " + t.Key() + " has no decimals"}
		}
		if t.Blockchain.IsEVM() && !t.IsNative() && !common.IsHexAddress(t.Address) {
			return &ConfigurationError{Field: "token", Reason: "token " + t.Key() + " has no contract address"}
		}
	}
	if !r.FromAmount.IsPositive() {
		return &ConfigurationError{Field: "amount", Reason: "amount must be positive"}
	}
	if r.From.ToRaw(r.FromAmount).Sign() <= 0 {
		return &ConfigurationError{Field: "amount", Reason: "amount is below the smallest unit of " + r.From.Key()}
	}
	if !r.SlippageTolerance.IsPositive() || r.SlippageTolerance.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return &ConfigurationError{Field: "slippage", Reason: "slippage must be between 0 and 1"}
	}
	if r.Timeout < 0 {
		return &ConfigurationError{Field: "timeout", Reason: "timeout must not be negative"}
	}
	if r.Sender != "" && !common.IsHexAddress(r.Sender) {
		return &ConfigurationError{Field: "sender", Reason: "sender is not an EVM address"}
	}
	if r.Receiver != "" && !ValidAddress(r.To.Blockchain, r.Receiver) {
		return &ConfigurationError{Field: "receiver", Reason: "receiver is not a valid " + string(r.To.Blockchain) + " address"}
	}
	return nil
}

// ProviderTimeout returns the per-adapter budget.
func (r Request) ProviderTimeout() time.Duration {
	if r.Timeout == 0 {
		return DefaultTimeout
	}
	return r.Timeout
}

// Disabled reports whether p was excluded by the caller.
func (r Request) Disabled(p ProviderType) bool {
	return r.DisabledProviders[p]
}

// FromAmountRaw returns the input amount in the source token's smallest unit.
func (r Request) FromAmountRaw() string {
	return r.From.ToRaw(r.FromAmount).String()
}

// SourceSlippage and DestinationSlippage split the tolerance evenly between
// the two legs of a cross-chain route.
func (r Request) SourceSlippage() decimal.Decimal {
	return r.SlippageTolerance.Div(decimal.NewFromInt(2))
}

func (r Request) DestinationSlippage() decimal.Decimal {
	return r.SlippageTolerance.Div(decimal.NewFromInt(2))
}

// SlippageBps returns the full tolerance in basis points.
func (r Request) SlippageBps() int {
	return int(r.SlippageTolerance.Mul(decimal.NewFromInt(10000)).IntPart())
}

// ValidAddress performs a format check of addr for chain.
func ValidAddress(chain Blockchain, addr string) bool {
	switch chain.Category() {
	case CategoryEVM:
		return common.IsHexAddress(addr)
	case CategorySolana:
		_, err := solana.PublicKeyFromBase58(addr)
		return err == nil
	case CategoryNear:
		return len(addr) >= 2 && len(addr) <= 64 && addr == strings.ToLower(addr)
	default:
		return strings.TrimSpace(addr) != ""
	}
}
