package swaps

import (
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// NativeTokenAddress is the placeholder several providers use for a chain's gas token.
const NativeTokenAddress = "0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE"

// Token is an asset on a specific blockchain.
type Token struct {
	Blockchain Blockchain `json:"blockchain"`
	Symbol     string     `json:"symbol"`
	Address    string     `json:"address,omitempty"` // empty for native assets
	Decimals   int32      `json:"decimals"`
}

// knownTokens fills in decimals for notation that does not carry them.
var knownTokens = map[string]Token{
	"BASE.USDC":      {Blockchain: Base, Symbol: "USDC", Address: "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913", Decimals: 6},
	"AVALANCHE.USDC": {Blockchain: Avalanche, Symbol: "USDC", Address: "0xB97EF9Ef8734C71904D8002F8B6BC66Dd9c48a6E", Decimals: 6},
	"ETHEREUM.USDC":  {Blockchain: Ethereum, Symbol: "USDC", Address: "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", Decimals: 6},
	"ETHEREUM.USDT":  {Blockchain: Ethereum, Symbol: "USDT", Address: "0xdAC17F958D2ee523a2206206994597C13D831ec7", Decimals: 6},
	"ARBITRUM.USDC":  {Blockchain: Arbitrum, Symbol: "USDC", Address: "0xaf88d065e77c8cC2239327C5EDb3A432268e5831", Decimals: 6},
	"BSC.USDT":       {Blockchain: BSC, Symbol: "USDT", Address: "0x55d398326f99059fF775485246999027B3197955", Decimals: 18},
	"POLYGON.USDC":   {Blockchain: Polygon, Symbol: "USDC", Address: "0x3c499c542cEF5E3811e1192ce70d8cC03d5c3359", Decimals: 6},
	"SOLANA.USDC":    {Blockchain: Solana, Symbol: "USDC", Address: "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v", Decimals: 6},
}

// KnownTokens returns the chain's native asset followed by its entries in the
// known-token table, sorted by symbol.
func KnownTokens(chain Blockchain) []Token {
	var out []Token
	for _, t := range knownTokens {
		if t.Blockchain == chain {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return append([]Token{chain.NativeToken()}, out...)
}

// ParseToken parses CHAIN.SYMBOL or CHAIN.SYMBOL-ADDRESS notation.
// Examples: "bitcoin.BTC", "base.USDC-0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913".
// Decimals are filled from the chain's native asset or the known-token table;
// callers must set them for anything else.
func ParseToken(s string) (Token, error) {
	parts := strings.SplitN(s, ".", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Token{}, fmt.Errorf("invalid token notation %q: expected CHAIN.SYMBOL", s)
	}

	chain, err := ParseBlockchain(parts[0])
	if err != nil {
		return Token{}, err
	}

	symbolPart := parts[1]
	var symbol, address string
	if idx := strings.Index(symbolPart, "-"); idx != -1 {
		symbol = strings.ToUpper(symbolPart[:idx])
		address = symbolPart[idx+1:]
	} else {
		symbol = strings.ToUpper(symbolPart)
	}

	t := Token{Blockchain: chain, Symbol: symbol, Address: address}
	if known, ok := knownTokens[t.Key()]; ok && (address == "" || strings.EqualFold(address, known.Address)) {
		return known, nil
	}
	if address == "" && symbol == chain.NativeSymbol() {
		return chain.NativeToken(), nil
	}
	return t, nil
}

// Key returns the CHAIN.SYMBOL lookup key used by provider mapping tables.
func (t Token) Key() string {
	return strings.ToUpper(string(t.Blockchain)) + "." + t.Symbol
}

// String returns the token in CHAIN.SYMBOL[-ADDRESS] notation.
func (t Token) String() string {
	if t.Address != "" {
		return fmt.Sprintf("%s.%s-%s", t.Blockchain, t.Symbol, t.Address)
	}
	return fmt.Sprintf("%s.%s", t.Blockchain, t.Symbol)
}

// IsNative reports whether t is the chain's gas token. A token without an
// address is native only when its symbol is the chain's native symbol.
func (t Token) IsNative() bool {
	if t.Address == "" {
		return t.Symbol == t.Blockchain.NativeSymbol()
	}
	if strings.EqualFold(t.Address, NativeTokenAddress) {
		return true
	}
	return t.Blockchain.IsEVM() && common.HexToAddress(t.Address) == (common.Address{})
}

// EVMAddress returns the contract address of an ERC-20 token.
func (t Token) EVMAddress() common.Address {
	return common.HexToAddress(t.Address)
}

// ToRaw converts a human amount into the token's smallest unit, truncating
// anything below one unit.
func (t Token) ToRaw(amount decimal.Decimal) *big.Int {
	return amount.Shift(t.Decimals).Truncate(0).BigInt()
}

// FromRaw converts an amount in smallest units into a human amount.
func (t Token) FromRaw(raw *big.Int) decimal.Decimal {
	if raw == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(raw, -t.Decimals)
}

// Equal compares tokens by chain and address, or by symbol when neither
// carries an address.
func (t Token) Equal(o Token) bool {
	if t.Blockchain != o.Blockchain {
		return false
	}
	if t.IsNative() || o.IsNative() {
		return t.IsNative() == o.IsNative()
	}
	if t.Address == "" && o.Address == "" {
		return t.Symbol == o.Symbol
	}
	return strings.EqualFold(t.Address, o.Address)
}
