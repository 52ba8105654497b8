package executor

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/RaghavSood/ccrouter/swaps"
)

// Signer failures. Implementations wrap one of these so the coordinator can
// classify the error.
var (
	ErrUserRejected     = errors.New("user rejected the request")
	ErrNetwork          = errors.New("network error")
	ErrSimulationFailed = errors.New("transaction simulation failed")
	ErrReverted         = errors.New("transaction reverted")
)

// ContractCall is a fully resolved source-chain transaction. A call without
// a Method is a plain native transfer.
type ContractCall struct {
	Chain  swaps.Blockchain
	From   common.Address
	To     common.Address
	ABI    abi.ABI
	Method string
	Args   []interface{}
	Value  *big.Int
}

// Data returns the calldata.
func (c ContractCall) Data() ([]byte, error) {
	if c.Method == "" {
		return nil, nil
	}
	return c.ABI.Pack(c.Method, c.Args...)
}

// Approval is an ERC-20 allowance request.
type Approval struct {
	Chain   swaps.Blockchain
	Token   common.Address
	Spender common.Address
	Amount  *big.Int
}

// HashCallback receives the transaction hash as soon as the network assigns
// one, before confirmation.
type HashCallback func(txHash string)

// Signer broadcasts transactions on behalf of the user. Both methods return
// once the transaction is confirmed or has failed.
type Signer interface {
	SendTransaction(ctx context.Context, call ContractCall, onHash HashCallback) error
	Approve(ctx context.Context, approval Approval, onHash HashCallback) error
}

func classify(err error) swaps.ExecutionErrorKind {
	switch {
	case errors.Is(err, ErrUserRejected):
		return swaps.ExecUserRejected
	case errors.Is(err, ErrSimulationFailed):
		return swaps.ExecSimulationFailed
	case errors.Is(err, ErrReverted):
		return swaps.ExecReverted
	case errors.Is(err, ErrNetwork), errors.Is(err, context.DeadlineExceeded):
		return swaps.ExecNetwork
	}
	return swaps.ExecUnknown
}
