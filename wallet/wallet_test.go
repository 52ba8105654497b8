package wallet

import (
	"context"
	"errors"
	"io"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/RaghavSood/ccrouter/contracts"
	"github.com/RaghavSood/ccrouter/executor"
	"github.com/RaghavSood/ccrouter/swaps"
)

const testMnemonic = "test test test test test test test test test test test junk"

func TestDeriveAddress(t *testing.T) {
	tests := []struct {
		index uint32
		want  string
	}{
		{0, "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"},
		{1, "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"},
	}
	for _, tt := range tests {
		addr, err := DeriveAddress(testMnemonic, tt.index)
		require.NoError(t, err)
		require.Equal(t, tt.want, addr.Hex())
	}
}

func TestDeriveKeyRejectsBadMnemonic(t *testing.T) {
	_, err := DeriveKey("not a real mnemonic", 0)
	require.ErrorIs(t, err, ErrInvalidMnemonic)
}

func TestNewMnemonic(t *testing.T) {
	m, err := NewMnemonic()
	require.NoError(t, err)
	_, err = DeriveAddress(m, 0)
	require.NoError(t, err)
}

type fakeBackend struct {
	mu          sync.Mutex
	sent        []*types.Transaction
	estimateErr error
	sendErr     error
	status      uint64
	pendingPoll int
}

func (f *fakeBackend) CallContract(ctx context.Context, msg ethereum.CallMsg, block *big.Int) ([]byte, error) {
	return nil, nil
}

func (f *fakeBackend) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return 7, nil
}

func (f *fakeBackend) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return big.NewInt(30_000_000_000), nil
}

func (f *fakeBackend) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000), nil
}

func (f *fakeBackend) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	return &types.Header{BaseFee: big.NewInt(5_000_000)}, nil
}

func (f *fakeBackend) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	if f.estimateErr != nil {
		return 0, f.estimateErr
	}
	return 100_000, nil
}

func (f *fakeBackend) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, tx)
	return nil
}

func (f *fakeBackend) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pendingPoll > 0 {
		f.pendingPoll--
		return nil, ethereum.NotFound
	}
	return &types.Receipt{Status: f.status, TxHash: txHash, BlockNumber: big.NewInt(1)}, nil
}

func newTestSigner(t *testing.T, chain swaps.Blockchain, b *fakeBackend, opts ...SignerOption) *EVMSigner {
	t.Helper()
	key, err := DeriveKey(testMnemonic, 0)
	require.NoError(t, err)

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	opts = append([]SignerOption{WithPollInterval(time.Millisecond)}, opts...)
	return NewEVMSigner(key, map[swaps.Blockchain]Backend{chain: b}, logger, opts...)
}

func TestSendTransactionDynamicFee(t *testing.T) {
	b := &fakeBackend{status: types.ReceiptStatusSuccessful, pendingPoll: 2}
	s := newTestSigner(t, swaps.Base, b)

	to := common.HexToAddress("0x00000000000000000000000000000000000000D1")
	var hashes []string
	err := s.SendTransaction(context.Background(), executor.ContractCall{
		Chain: swaps.Base,
		From:  s.Address(),
		To:    to,
		Value: big.NewInt(1000),
	}, func(h string) { hashes = append(hashes, h) })
	require.NoError(t, err)

	require.Len(t, b.sent, 1)
	tx := b.sent[0]
	require.Equal(t, uint8(types.DynamicFeeTxType), tx.Type())
	require.Equal(t, uint64(7), tx.Nonce())
	require.Equal(t, uint64(120_000), tx.Gas())
	require.Equal(t, to, *tx.To())
	require.Equal(t, "1000", tx.Value().String())
	require.Equal(t, "11000000", tx.GasFeeCap().String())
	require.Equal(t, []string{tx.Hash().Hex()}, hashes)

	from, err := types.Sender(types.LatestSignerForChainID(swaps.Base.ChainID()), tx)
	require.NoError(t, err)
	require.Equal(t, s.Address(), from)
}

func TestSendTransactionLegacyGas(t *testing.T) {
	b := &fakeBackend{status: types.ReceiptStatusSuccessful}
	s := newTestSigner(t, swaps.Ethereum, b)

	err := s.Approve(context.Background(), executor.Approval{
		Chain:   swaps.Ethereum,
		Token:   common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"),
		Spender: common.HexToAddress("0x00000000000000000000000000000000000000C1"),
		Amount:  big.NewInt(5_000_000),
	}, nil)
	require.NoError(t, err)

	tx := b.sent[0]
	require.Equal(t, uint8(types.LegacyTxType), tx.Type())
	require.Equal(t, "30000000000", tx.GasPrice().String())

	want, err := contracts.ERC20ABI.Pack("approve", common.HexToAddress("0x00000000000000000000000000000000000000C1"), big.NewInt(5_000_000))
	require.NoError(t, err)
	require.Equal(t, want, tx.Data())
}

func TestSendTransactionErrors(t *testing.T) {
	call := executor.ContractCall{Chain: swaps.Base, To: common.HexToAddress("0x01"), Value: big.NewInt(1)}

	tests := []struct {
		name    string
		backend *fakeBackend
		opts    []SignerOption
		chain   swaps.Blockchain
		want    error
		hashed  bool
	}{
		{name: "simulation", backend: &fakeBackend{estimateErr: errors.New("execution reverted")}, chain: swaps.Base, want: executor.ErrSimulationFailed},
		{name: "broadcast", backend: &fakeBackend{sendErr: errors.New("connection refused")}, chain: swaps.Base, want: executor.ErrNetwork},
		{name: "reverted", backend: &fakeBackend{status: types.ReceiptStatusFailed}, chain: swaps.Base, want: executor.ErrReverted, hashed: true},
		{name: "rejected", backend: &fakeBackend{}, chain: swaps.Base, want: executor.ErrUserRejected, opts: []SignerOption{
			WithConfirm(func(ctx context.Context, call executor.ContractCall) bool { return false }),
		}},
		{name: "no rpc", backend: &fakeBackend{}, chain: swaps.Ethereum, want: executor.ErrNetwork},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestSigner(t, tt.chain, tt.backend, tt.opts...)
			hashed := false
			err := s.SendTransaction(context.Background(), call, func(string) { hashed = true })
			require.ErrorIs(t, err, tt.want)
			require.Equal(t, tt.hashed, hashed)
		})
	}
}

func TestSendTransactionRejectsForeignSender(t *testing.T) {
	s := newTestSigner(t, swaps.Base, &fakeBackend{})
	err := s.SendTransaction(context.Background(), executor.ContractCall{
		Chain: swaps.Base,
		From:  common.HexToAddress("0x00000000000000000000000000000000000000FF"),
	}, nil)
	require.Error(t, err)
}

func TestWaitMinedHonoursContext(t *testing.T) {
	b := &fakeBackend{status: types.ReceiptStatusSuccessful, pendingPoll: 1 << 30}
	s := newTestSigner(t, swaps.Base, b)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := s.SendTransaction(ctx, executor.ContractCall{Chain: swaps.Base, To: common.HexToAddress("0x01")}, nil)
	require.ErrorIs(t, err, executor.ErrNetwork)
}
