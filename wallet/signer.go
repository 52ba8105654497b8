package wallet

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sirupsen/logrus"

	"github.com/RaghavSood/ccrouter/contracts"
	"github.com/RaghavSood/ccrouter/executor"
	"github.com/RaghavSood/ccrouter/swaps"
)

// Backend is the subset of *ethclient.Client the signer needs.
type Backend interface {
	ethereum.ContractCaller
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// Dial connects to every configured RPC endpoint. Keys are blockchain names
// as accepted by swaps.ParseBlockchain.
func Dial(ctx context.Context, endpoints map[string]string) (map[swaps.Blockchain]*ethclient.Client, error) {
	clients := make(map[swaps.Blockchain]*ethclient.Client, len(endpoints))
	for name, url := range endpoints {
		chain, err := swaps.ParseBlockchain(name)
		if err != nil {
			return nil, err
		}
		if !chain.IsEVM() {
			return nil, fmt.Errorf("rpc endpoint for non-EVM chain %s", chain)
		}
		c, err := ethclient.DialContext(ctx, url)
		if err != nil {
			return nil, fmt.Errorf("connecting to %s RPC: %w", chain, err)
		}
		clients[chain] = c
	}
	return clients, nil
}

// ConfirmFunc is asked before each transaction is signed. Returning false
// rejects the request.
type ConfirmFunc func(ctx context.Context, call executor.ContractCall) bool

// EVMSigner signs with a local key and broadcasts through per-chain RPCs.
type EVMSigner struct {
	key          *ecdsa.PrivateKey
	address      common.Address
	backends     map[swaps.Blockchain]Backend
	confirm      ConfirmFunc
	pollInterval time.Duration
	logger       *logrus.Entry
}

type SignerOption func(*EVMSigner)

func WithConfirm(fn ConfirmFunc) SignerOption {
	return func(s *EVMSigner) { s.confirm = fn }
}

// WithPollInterval sets how often receipts are polled while waiting.
func WithPollInterval(d time.Duration) SignerOption {
	return func(s *EVMSigner) { s.pollInterval = d }
}

func NewEVMSigner(key *ecdsa.PrivateKey, backends map[swaps.Blockchain]Backend, logger *logrus.Logger, opts ...SignerOption) *EVMSigner {
	s := &EVMSigner{
		key:          key,
		address:      crypto.PubkeyToAddress(key.PublicKey),
		backends:     backends,
		pollInterval: 2 * time.Second,
		logger:       logger.WithField("pkg", "wallet.EVMSigner"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *EVMSigner) Address() common.Address {
	return s.address
}

// SendTransaction signs call, broadcasts it, reports the hash and waits for
// the receipt.
func (s *EVMSigner) SendTransaction(ctx context.Context, call executor.ContractCall, onHash executor.HashCallback) error {
	if call.From != (common.Address{}) && call.From != s.address {
		return fmt.Errorf("call from %s cannot be signed by %s", call.From.Hex(), s.address.Hex())
	}
	rpc, ok := s.backends[call.Chain]
	if !ok {
		return fmt.Errorf("no RPC client for chain %s: %w", call.Chain, executor.ErrNetwork)
	}
	if s.confirm != nil && !s.confirm(ctx, call) {
		return executor.ErrUserRejected
	}

	data, err := call.Data()
	if err != nil {
		return fmt.Errorf("packing %s: %w", call.Method, err)
	}
	value := call.Value
	if value == nil {
		value = new(big.Int)
	}

	tx, err := s.buildTx(ctx, rpc, call.Chain, call.To, value, data)
	if err != nil {
		return err
	}

	signer := types.LatestSignerForChainID(call.Chain.ChainID())
	signedTx, err := types.SignTx(tx, signer, s.key)
	if err != nil {
		return fmt.Errorf("signing tx: %w", err)
	}

	if err := rpc.SendTransaction(ctx, signedTx); err != nil {
		return fmt.Errorf("sending tx: %v: %w", err, executor.ErrNetwork)
	}

	hash := signedTx.Hash()
	s.logger.WithFields(logrus.Fields{
		"chain":  call.Chain,
		"to":     call.To.Hex(),
		"method": call.Method,
		"tx":     hash.Hex(),
	}).Info("Transaction sent")
	if onHash != nil {
		onHash(hash.Hex())
	}

	return s.waitMined(ctx, rpc, hash)
}

// Approve sends an ERC-20 approve for the requested amount.
func (s *EVMSigner) Approve(ctx context.Context, approval executor.Approval, onHash executor.HashCallback) error {
	return s.SendTransaction(ctx, executor.ContractCall{
		Chain:  approval.Chain,
		From:   s.address,
		To:     approval.Token,
		ABI:    contracts.ERC20ABI,
		Method: "approve",
		Args:   []interface{}{approval.Spender, approval.Amount},
	}, onHash)
}

// buildTx estimates gas and prices the transaction. Chains flagged by
// swaps.ShouldCalculateGas get a legacy transaction at the node's suggested
// price; the rest use EIP-1559 fees.
func (s *EVMSigner) buildTx(ctx context.Context, rpc Backend, chain swaps.Blockchain, to common.Address, value *big.Int, data []byte) (*types.Transaction, error) {
	nonce, err := rpc.PendingNonceAt(ctx, s.address)
	if err != nil {
		return nil, fmt.Errorf("getting nonce: %v: %w", err, executor.ErrNetwork)
	}

	gas, err := rpc.EstimateGas(ctx, ethereum.CallMsg{
		From:  s.address,
		To:    &to,
		Value: value,
		Data:  data,
	})
	if err != nil {
		return nil, fmt.Errorf("estimating gas: %v: %w", err, executor.ErrSimulationFailed)
	}
	// 20% headroom
	gas = gas * 12 / 10

	if swaps.ShouldCalculateGas(chain) {
		gasPrice, err := rpc.SuggestGasPrice(ctx)
		if err != nil {
			return nil, fmt.Errorf("getting gas price: %v: %w", err, executor.ErrNetwork)
		}
		return types.NewTx(&types.LegacyTx{
			Nonce:    nonce,
			To:       &to,
			Value:    value,
			Gas:      gas,
			GasPrice: gasPrice,
			Data:     data,
		}), nil
	}

	tip, err := rpc.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, fmt.Errorf("getting tip cap: %v: %w", err, executor.ErrNetwork)
	}
	head, err := rpc.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("getting head: %v: %w", err, executor.ErrNetwork)
	}
	feeCap := new(big.Int).Add(tip, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))

	return types.NewTx(&types.DynamicFeeTx{
		ChainID:   chain.ChainID(),
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       gas,
		To:        &to,
		Value:     value,
		Data:      data,
	}), nil
}

func (s *EVMSigner) waitMined(ctx context.Context, rpc Backend, hash common.Hash) error {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := rpc.TransactionReceipt(ctx, hash)
		switch {
		case err == nil:
			if receipt.Status != types.ReceiptStatusSuccessful {
				return fmt.Errorf("tx %s: %w", hash.Hex(), executor.ErrReverted)
			}
			s.logger.WithFields(logrus.Fields{
				"tx":    hash.Hex(),
				"block": receipt.BlockNumber,
			}).Info("Transaction confirmed")
			return nil
		case errors.Is(err, ethereum.NotFound):
		default:
			s.logger.WithError(err).WithField("tx", hash.Hex()).Warn("Receipt lookup failed")
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for %s: %v: %w", hash.Hex(), ctx.Err(), executor.ErrNetwork)
		case <-ticker.C:
		}
	}
}
