package balances

import (
	"bytes"
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/RaghavSood/ccrouter/contracts"
	"github.com/RaghavSood/ccrouter/swaps"
)

var (
	owner   = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	spender = common.HexToAddress("0x00000000000000000000000000000000000000bb")
	usdc    = swaps.Token{Blockchain: swaps.Base, Symbol: "USDC", Address: "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913", Decimals: 6}
)

func word(v int64) []byte {
	return common.LeftPadBytes(big.NewInt(v).Bytes(), 32)
}

type fakeCaller struct {
	last    ethereum.CallMsg
	respond func(msg ethereum.CallMsg) ([]byte, error)
}

func (f *fakeCaller) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.last = msg
	return f.respond(msg)
}

func TestTokenBalanceAndAllowance(t *testing.T) {
	caller := &fakeCaller{respond: func(msg ethereum.CallMsg) ([]byte, error) {
		switch {
		case bytes.Equal(msg.Data[:4], contracts.ERC20ABI.Methods["balanceOf"].ID):
			return word(1234), nil
		case bytes.Equal(msg.Data[:4], contracts.ERC20ABI.Methods["allowance"].ID):
			return word(55), nil
		}
		return nil, nil
	}}

	bal, err := TokenBalance(context.Background(), caller, usdc.EVMAddress(), owner)
	require.NoError(t, err)
	require.Equal(t, int64(1234), bal.Int64())
	require.Equal(t, usdc.EVMAddress(), *caller.last.To)

	allowance, err := Allowance(context.Background(), caller, usdc.EVMAddress(), owner, spender)
	require.NoError(t, err)
	require.Equal(t, int64(55), allowance.Int64())
}

func TestShortReturnIsZero(t *testing.T) {
	caller := &fakeCaller{respond: func(ethereum.CallMsg) ([]byte, error) { return nil, nil }}
	bal, err := TokenBalance(context.Background(), caller, usdc.EVMAddress(), owner)
	require.NoError(t, err)
	require.Zero(t, bal.Sign())
}

func TestFetchUsesMulticall(t *testing.T) {
	caller := &fakeCaller{respond: func(msg ethereum.CallMsg) ([]byte, error) {
		method := contracts.Multicall3ABI.Methods["aggregate3"]
		args, err := method.Inputs.Unpack(msg.Data[4:])
		if err != nil {
			return nil, err
		}
		calls := *abi.ConvertType(args[0], new([]contracts.Multicall3Call3)).(*[]contracts.Multicall3Call3)

		results := make([]contracts.Multicall3Result, len(calls))
		for i, c := range calls {
			if c.Target == contracts.Multicall3Address {
				results[i] = contracts.Multicall3Result{Success: true, ReturnData: word(1_000_000_000)}
			} else {
				results[i] = contracts.Multicall3Result{Success: false}
			}
		}
		return method.Outputs.Pack(results)
	}}

	got, err := Fetch(context.Background(), caller, owner, []swaps.Token{swaps.Base.NativeToken(), usdc})
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, int64(1_000_000_000), got[0].Raw.Int64())
	require.Zero(t, got[1].Raw.Sign(), "failed sub-call reads as zero")
	require.Equal(t, contracts.Multicall3Address, *caller.last.To)
}
