package thorchain

import (
	"math/big"
	"strings"

	"github.com/RaghavSood/ccrouter/swaps"
)

const (
	ThornodeBaseURL = "https://thornode.ninerealms.com"

	// thorDecimals is the fixed precision of every THORChain amount.
	thorDecimals = 8

	// minExpirySeconds is how far in the future a router deposit must expire.
	minExpirySeconds = 3600
)

// chainCodes maps blockchains to THORChain chain identifiers.
var chainCodes = map[swaps.Blockchain]string{
	swaps.Ethereum:  "ETH",
	swaps.Avalanche: "AVAX",
	swaps.Base:      "BASE",
	swaps.BSC:       "BSC",
	swaps.Bitcoin:   "BTC",
	swaps.Litecoin:  "LTC",
	swaps.Dogecoin:  "DOGE",
	swaps.Cosmos:    "GAIA",
	swaps.Thorchain: "THOR",
}

// routerChains are the EVM chains with a THORChain router we can deposit into.
var routerChains = map[swaps.Blockchain]bool{
	swaps.Ethereum:  true,
	swaps.Avalanche: true,
	swaps.Base:      true,
	swaps.BSC:       true,
}

// Asset returns THORChain asset notation for t, e.g. BTC.BTC or
// BASE.USDC-0X833589FCD6EDB6E08F4C7C32D4F71B54BDA02913.
func Asset(t swaps.Token) (string, bool) {
	code, ok := chainCodes[t.Blockchain]
	if !ok {
		return "", false
	}
	if t.IsNative() {
		return code + "." + t.Symbol, true
	}
	return code + "." + t.Symbol + "-" + strings.ToUpper(t.Address), true
}

// toThorAmount rescales a raw token amount to 1e8 precision.
func toThorAmount(raw *big.Int, decimals int32) *big.Int {
	return rescale(raw, decimals, thorDecimals)
}

// fromThorAmount rescales a 1e8 amount back to the token's precision.
func fromThorAmount(amount *big.Int, decimals int32) *big.Int {
	return rescale(amount, thorDecimals, decimals)
}

func rescale(v *big.Int, from, to int32) *big.Int {
	out := new(big.Int).Set(v)
	switch {
	case from > to:
		return out.Quo(out, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(from-to)), nil))
	case from < to:
		return out.Mul(out, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(to-from)), nil))
	}
	return out
}
