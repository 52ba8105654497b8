package simpleswap

import (
	"github.com/RaghavSood/ccrouter/swaps"
)

// tokenSymbols maps token keys (CHAIN.SYMBOL) to SimpleSwap currency symbols.
// This is a curated list of assets we support.
var tokenSymbols = map[string]string{
	"BITCOIN.BTC":    "btc",
	"ETHEREUM.ETH":   "eth",
	"BASE.ETH":       "ethbase",
	"ARBITRUM.ETH":   "etharb",
	"SOLANA.SOL":     "sol",
	"AVALANCHE.AVAX": "avaxc",
	"BSC.BNB":        "bnbbsc",
	"LITECOIN.LTC":   "ltc",
	"DOGECOIN.DOGE":  "doge",
	"NEAR.NEAR":      "near",
	"COSMOS.ATOM":    "atom",

	"ETHEREUM.USDC":  "usdc",
	"ETHEREUM.USDT":  "usdterc20",
	"BASE.USDC":      "usdcbase",
	"AVALANCHE.USDC": "usdcavaxc",
	"ARBITRUM.USDC":  "usdcarb",
	"POLYGON.USDC":   "usdcpoly",
	"BSC.USDT":       "usdtbsc",
	"SOLANA.USDC":    "usdcsol",
}

// supportedChains is every chain with at least one mapped currency.
var supportedChains = func() map[swaps.Blockchain]bool {
	out := map[swaps.Blockchain]bool{}
	for key := range tokenSymbols {
		t, err := swaps.ParseToken(key)
		if err == nil {
			out[t.Blockchain] = true
		}
	}
	return out
}()

// TokenSymbol looks up the SimpleSwap symbol for t.
func TokenSymbol(t swaps.Token) (string, bool) {
	sym, ok := tokenSymbols[t.Key()]
	return sym, ok
}
