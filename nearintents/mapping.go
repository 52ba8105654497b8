package nearintents

import (
	"strings"

	"github.com/RaghavSood/ccrouter/swaps"
)

// tokenIDs maps token keys to Near Intents 1click asset ids.
var tokenIDs = map[string]string{
	// Major L1s
	"BITCOIN.BTC":    "nep141:btc.omft.near",
	"ETHEREUM.ETH":   "nep141:eth.omft.near",
	"SOLANA.SOL":     "nep141:sol.omft.near",
	"NEAR.NEAR":      "nep141:wrap.near",
	"AVALANCHE.AVAX": "nep245:v2_1.omni.hot.tg:43114_11111111111111111111",

	// L2s / EVM sidechains
	"BASE.ETH":     "nep141:base.omft.near",
	"ARBITRUM.ETH": "nep141:arb.omft.near",
	"BSC.BNB":      "nep245:v2_1.omni.hot.tg:56_11111111111111111111",
	"POLYGON.POL":  "nep245:v2_1.omni.hot.tg:137_11111111111111111111",

	// UTXO chains
	"LITECOIN.LTC":  "nep141:ltc.omft.near",
	"DOGECOIN.DOGE": "nep141:doge.omft.near",

	// Stablecoins
	"BASE.USDC":      "nep141:base-0x833589fcd6edb6e08f4c7c32d4f71b54bda02913.omft.near",
	"AVALANCHE.USDC": "nep245:v2_1.omni.hot.tg:43114_3atVJH3r5c4GqiSYmg9fECvjc47o",
	"ETHEREUM.USDC":  "nep141:eth-0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48.omft.near",
	"ARBITRUM.USDC":  "nep141:arb-0xaf88d065e77c8cc2239327c5edb3a432268e5831.omft.near",
	"SOLANA.USDC":    "nep141:17208628f84f5d6ad33f0da3bbbeb27ffcb398eac501a31bd6ad2011e36133a1",
}

// blockchainCodes are the 1click token list chain names.
var blockchainCodes = map[swaps.Blockchain]string{
	swaps.Ethereum:  "eth",
	swaps.Base:      "base",
	swaps.Arbitrum:  "arb",
	swaps.Avalanche: "avax",
	swaps.BSC:       "bsc",
	swaps.Polygon:   "pol",
	swaps.Bitcoin:   "btc",
	swaps.Litecoin:  "ltc",
	swaps.Dogecoin:  "doge",
	swaps.Solana:    "sol",
	swaps.Near:      "near",
}

// originChains are the chains 1click accepts ORIGIN_CHAIN deposits from
// that this module can quote for.
var originChains = map[swaps.Blockchain]bool{
	swaps.Ethereum:  true,
	swaps.Base:      true,
	swaps.Arbitrum:  true,
	swaps.Avalanche: true,
	swaps.BSC:       true,
	swaps.Polygon:   true,
	swaps.Solana:    true,
	swaps.Near:      true,
}

// dryRecipients are syntactically valid placeholders used when a dry quote
// is requested before the user has entered a destination.
var dryRecipients = map[swaps.Blockchain]string{
	swaps.Bitcoin:  "bc1qxy2kgdygjrsqtzq2n0yrf2493p83kkfjhx0wlh",
	swaps.Litecoin: "ltc1qg82tq4jq2mgm6ngt9gyntsfp2ycgmyq3fvk4mv",
	swaps.Dogecoin: "DH5yaieqoZN36fDVciNyRueRGvGLR3mr7L",
	swaps.Solana:   "11111111111111111111111111111111",
	swaps.Near:     "intents.near",
}

// StaticTokenID looks up the built-in asset id for t.
func StaticTokenID(t swaps.Token) (string, bool) {
	id, ok := tokenIDs[t.Key()]
	return id, ok
}

// matchToken finds t in the 1click token list by chain and symbol.
func matchToken(t swaps.Token, tokens []TokenInfo) (string, bool) {
	code, ok := blockchainCodes[t.Blockchain]
	if !ok {
		return "", false
	}
	for _, tok := range tokens {
		if strings.EqualFold(tok.Blockchain, code) && strings.EqualFold(tok.Symbol, t.Symbol) {
			return tok.AssetID, true
		}
	}
	return "", false
}
