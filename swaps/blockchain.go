package swaps

import (
	"fmt"
	"math/big"
	"strings"
)

// Blockchain identifies a network by its lowercase key (e.g. "base").
type Blockchain string

const (
	Ethereum  Blockchain = "ethereum"
	Avalanche Blockchain = "avalanche"
	Base      Blockchain = "base"
	BSC       Blockchain = "bsc"
	Arbitrum  Blockchain = "arbitrum"
	Polygon   Blockchain = "polygon"
	Bitcoin   Blockchain = "bitcoin"
	Litecoin  Blockchain = "litecoin"
	Dogecoin  Blockchain = "dogecoin"
	Solana    Blockchain = "solana"
	Near      Blockchain = "near"
	Cosmos    Blockchain = "cosmos"
	Thorchain Blockchain = "thorchain"
)

// Category groups blockchains by how transactions are built on them.
type Category string

const (
	CategoryEVM    Category = "evm"
	CategoryUTXO   Category = "utxo"
	CategorySolana Category = "solana"
	CategoryNear   Category = "near"
	CategoryCosmos Category = "cosmos"
)

type chainInfo struct {
	category     Category
	chainID      int64
	nativeSymbol string
	decimals     int32
	// calculateGas is true when the node's default gas price is unreliable
	// and the signer should fetch a suggestion before sending.
	calculateGas bool
}

var chains = map[Blockchain]chainInfo{
	Ethereum:  {CategoryEVM, 1, "ETH", 18, true},
	Avalanche: {CategoryEVM, 43114, "AVAX", 18, true},
	Base:      {CategoryEVM, 8453, "ETH", 18, false},
	BSC:       {CategoryEVM, 56, "BNB", 18, true},
	Arbitrum:  {CategoryEVM, 42161, "ETH", 18, false},
	Polygon:   {CategoryEVM, 137, "POL", 18, true},
	Bitcoin:   {CategoryUTXO, 0, "BTC", 8, false},
	Litecoin:  {CategoryUTXO, 0, "LTC", 8, false},
	Dogecoin:  {CategoryUTXO, 0, "DOGE", 8, false},
	Solana:    {CategorySolana, 0, "SOL", 9, false},
	Near:      {CategoryNear, 0, "NEAR", 24, false},
	Cosmos:    {CategoryCosmos, 0, "ATOM", 6, false},
	Thorchain: {CategoryCosmos, 0, "RUNE", 8, false},
}

// ParseBlockchain validates a blockchain key.
func ParseBlockchain(s string) (Blockchain, error) {
	b := Blockchain(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := chains[b]; !ok {
		return "", fmt.Errorf("unknown blockchain %q", s)
	}
	return b, nil
}

// Known reports whether the blockchain is one this module can describe.
func (b Blockchain) Known() bool {
	_, ok := chains[b]
	return ok
}

func (b Blockchain) Category() Category {
	return chains[b].category
}

// IsEVM reports whether contracts on b can be called through the EVM signer.
func (b Blockchain) IsEVM() bool {
	return chains[b].category == CategoryEVM
}

// ChainID returns the EIP-155 chain id, or nil for non-EVM chains.
func (b Blockchain) ChainID() *big.Int {
	info, ok := chains[b]
	if !ok || info.category != CategoryEVM {
		return nil
	}
	return big.NewInt(info.chainID)
}

func (b Blockchain) NativeSymbol() string {
	return chains[b].nativeSymbol
}

// NativeToken returns the gas token of b with its decimals filled in.
func (b Blockchain) NativeToken() Token {
	info := chains[b]
	return Token{Blockchain: b, Symbol: info.nativeSymbol, Decimals: info.decimals}
}

// ShouldCalculateGas reports whether a gas price should be fetched explicitly
// before broadcasting on b.
func ShouldCalculateGas(b Blockchain) bool {
	return chains[b].calculateGas
}

// EVMChains lists the EVM blockchains in a stable order.
func EVMChains() []Blockchain {
	return []Blockchain{Ethereum, Avalanche, Base, BSC, Arbitrum, Polygon}
}
