package houdini

import (
	"github.com/RaghavSood/ccrouter/swaps"
)

// tokenSymbols maps token keys (CHAIN.SYMBOL) to Houdini token ids.
var tokenSymbols = map[string]string{
	// Major L1s
	"BITCOIN.BTC":    "BTC",
	"ETHEREUM.ETH":   "ETH",
	"SOLANA.SOL":     "SOL",
	"AVALANCHE.AVAX": "AVAXC", // C-chain
	"NEAR.NEAR":      "NEAR",

	// L2s / EVM sidechains
	"BASE.ETH":     "ETHBASE",
	"ARBITRUM.ETH": "ETHARB",
	"BSC.BNB":      "BNB",
	"POLYGON.POL":  "POL",

	// Cosmos ecosystem
	"COSMOS.ATOM":    "ATOM",
	"THORCHAIN.RUNE": "RUNE",

	// UTXO chains
	"LITECOIN.LTC":  "LTC",
	"DOGECOIN.DOGE": "DOGE",

	// Stablecoins
	"BASE.USDC":      "USDCBASE",
	"AVALANCHE.USDC": "USDCAVAXC",
	"ETHEREUM.USDC":  "USDC",
	"ETHEREUM.USDT":  "USDT",
	"ARBITRUM.USDC":  "USDCARB",
	"SOLANA.USDC":    "USDCSOL",
}

var supportedChains = func() map[swaps.Blockchain]bool {
	out := map[swaps.Blockchain]bool{}
	for key := range tokenSymbols {
		if t, err := swaps.ParseToken(key); err == nil {
			out[t.Blockchain] = true
		}
	}
	return out
}()

// TokenSymbol looks up the Houdini token id for t.
func TokenSymbol(t swaps.Token) (string, bool) {
	sym, ok := tokenSymbols[t.Key()]
	return sym, ok
}
