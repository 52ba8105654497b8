package balances

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/RaghavSood/ccrouter/contracts"
	"github.com/RaghavSood/ccrouter/swaps"
)

// Balance is an owner's holding of one token, in smallest units.
type Balance struct {
	Token swaps.Token
	Raw   *big.Int
}

// TokenBalance returns the ERC-20 balance of owner.
func TokenBalance(ctx context.Context, rpc ethereum.ContractCaller, token, owner common.Address) (*big.Int, error) {
	return callUint(ctx, rpc, token, "balanceOf", owner)
}

// Allowance returns how much spender may move from owner's balance.
func Allowance(ctx context.Context, rpc ethereum.ContractCaller, token, owner, spender common.Address) (*big.Int, error) {
	return callUint(ctx, rpc, token, "allowance", owner, spender)
}

func callUint(ctx context.Context, rpc ethereum.ContractCaller, to common.Address, method string, args ...interface{}) (*big.Int, error) {
	data, err := contracts.ERC20ABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("packing %s: %w", method, err)
	}

	output, err := rpc.CallContract(ctx, ethereum.CallMsg{
		To:   &to,
		Data: data,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("calling %s: %w", method, err)
	}

	if len(output) < 32 {
		return big.NewInt(0), nil
	}
	return new(big.Int).SetBytes(output[:32]), nil
}

// Fetch retrieves the native and ERC-20 balances of owner for tokens on a
// single chain in one multicall.
func Fetch(ctx context.Context, rpc ethereum.ContractCaller, owner common.Address, tokens []swaps.Token) ([]Balance, error) {
	if len(tokens) == 0 {
		return nil, nil
	}

	calls := make([]contracts.Multicall3Call3, 0, len(tokens))
	for _, t := range tokens {
		if t.IsNative() {
			data, err := contracts.Multicall3ABI.Pack("getEthBalance", owner)
			if err != nil {
				return nil, fmt.Errorf("packing getEthBalance: %w", err)
			}
			calls = append(calls, contracts.Multicall3Call3{
				Target:       contracts.Multicall3Address,
				AllowFailure: true,
				CallData:     data,
			})
			continue
		}

		data, err := contracts.ERC20ABI.Pack("balanceOf", owner)
		if err != nil {
			return nil, fmt.Errorf("packing balanceOf: %w", err)
		}
		calls = append(calls, contracts.Multicall3Call3{
			Target:       t.EVMAddress(),
			AllowFailure: true,
			CallData:     data,
		})
	}

	callData, err := contracts.Multicall3ABI.Pack("aggregate3", calls)
	if err != nil {
		return nil, fmt.Errorf("packing aggregate3: %w", err)
	}

	output, err := rpc.CallContract(ctx, ethereum.CallMsg{
		To:   &contracts.Multicall3Address,
		Data: callData,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("calling aggregate3: %w", err)
	}

	decoded, err := contracts.Multicall3ABI.Unpack("aggregate3", output)
	if err != nil {
		return nil, fmt.Errorf("unpacking aggregate3: %w", err)
	}
	if len(decoded) != 1 {
		return nil, fmt.Errorf("unexpected aggregate3 return length %d", len(decoded))
	}
	results := *abi.ConvertType(decoded[0], new([]contracts.Multicall3Result)).(*[]contracts.Multicall3Result)

	out := make([]Balance, len(tokens))
	for i, t := range tokens {
		bal := big.NewInt(0)
		if i < len(results) && results[i].Success && len(results[i].ReturnData) >= 32 {
			bal.SetBytes(results[i].ReturnData[:32])
		}
		out[i] = Balance{Token: t, Raw: bal}
	}
	return out, nil
}
