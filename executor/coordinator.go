package executor

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/RaghavSood/ccrouter/aggregator"
	"github.com/RaghavSood/ccrouter/balances"
	"github.com/RaghavSood/ccrouter/db"
	"github.com/RaghavSood/ccrouter/metrics"
	"github.com/RaghavSood/ccrouter/relay"
	"github.com/RaghavSood/ccrouter/swaps"
)

// Ledger is the recent trade store. *db.Store implements it.
type Ledger interface {
	AppendRecentTrade(ctx context.Context, arg db.AppendRecentTradeParams) (bool, error)
	ListRecentTrades(ctx context.Context, owner string) ([]db.RecentTrade, error)
}

// Engine is the part of the aggregation engine execution needs.
// *aggregator.Engine implements it.
type Engine interface {
	Provider(t swaps.ProviderType) (swaps.Provider, bool)
	SelectedProvider() swaps.ProviderType
	SelectProvider(p swaps.ProviderType)
}

type Coordinator struct {
	engine     Engine
	signer     Signer
	ledger     Ledger
	notifier   relay.Notifier
	dispatcher *relay.Dispatcher
	rpcs       map[swaps.Blockchain]ethereum.ContractCaller
	metrics    *metrics.ExecutorMetrics
	logger     *logrus.Entry
	now        func() time.Time
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithRelay enables cross-chain notifications for non-EVM destinations.
func WithRelay(n relay.Notifier) Option {
	return func(c *Coordinator) { c.notifier = n }
}

// WithRPCs supplies the per-chain callers used for allowance checks.
func WithRPCs(rpcs map[swaps.Blockchain]ethereum.ContractCaller) Option {
	return func(c *Coordinator) { c.rpcs = rpcs }
}

func WithMetrics(m *metrics.ExecutorMetrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

func WithDispatcher(d *relay.Dispatcher) Option {
	return func(c *Coordinator) { c.dispatcher = d }
}

func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

func NewCoordinator(engine Engine, signer Signer, ledger Ledger, logger *logrus.Logger, opts ...Option) *Coordinator {
	c := &Coordinator{
		engine: engine,
		signer: signer,
		ledger: ledger,
		logger: logger.WithField("pkg", "executor.Coordinator"),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.dispatcher == nil {
		c.dispatcher = relay.NewDispatcher(logger, 0)
	}
	if c.metrics != nil && c.dispatcher.OnResult == nil {
		c.dispatcher.OnResult = func(name string, err error) {
			c.metrics.RecordNotification(name, err == nil)
		}
	}
	return c
}

// Dispatcher exposes the background task runner, mostly so callers can wait
// for notifications before exiting.
func (c *Coordinator) Dispatcher() *relay.Dispatcher { return c.dispatcher }

// Execute submits the selected trade from wallet, delivering to target. A
// recent trade is recorded as soon as the network assigns a hash; it is kept
// even if the transaction later fails, in which case the returned
// *swaps.ExecutionError carries the hash.
func (c *Coordinator) Execute(ctx context.Context, selected *aggregator.SelectedTrade, wallet, target string) (string, error) {
	if selected == nil {
		return "", &swaps.ExecutionError{Kind: swaps.ExecUnknown, Err: errors.New("no trade selected")}
	}
	trade := selected.Trade
	log := c.logger.WithFields(logrus.Fields{
		"provider": trade.Provider,
		"from":     trade.From.String(),
		"to":       trade.To.String(),
	})

	if !trade.From.Blockchain.IsEVM() {
		return "", c.fail(trade.Provider, "", &swaps.ExecutionError{
			Kind:     swaps.ExecUnsupportedChain,
			Provider: trade.Provider,
			Err:      fmt.Errorf("source chain %s is not EVM", trade.From.Blockchain),
		})
	}
	if target != "" && !swaps.ValidAddress(trade.To.Blockchain, target) {
		return "", &swaps.ConfigurationError{Field: "receiver", Reason: "target is not a valid " + string(trade.To.Blockchain) + " address"}
	}

	if p, ok := c.engine.Provider(trade.Provider); ok {
		if prep, ok := p.(swaps.Preparer); ok {
			prepared, err := prep.Prepare(ctx, trade, wallet, target)
			if err != nil {
				return "", c.fail(trade.Provider, "", &swaps.ExecutionError{Kind: swaps.ExecPrepare, Provider: trade.Provider, Err: err})
			}
			trade = prepared
		}
	}

	call, err := BuildCallParams(trade, wallet, target)
	if err != nil {
		return "", c.fail(trade.Provider, "", &swaps.ExecutionError{Kind: swaps.ExecPrepare, Provider: trade.Provider, Err: err})
	}

	var (
		mu   sync.Mutex
		hash string
		once sync.Once
	)
	onHash := func(h string) {
		once.Do(func() {
			mu.Lock()
			hash = h
			mu.Unlock()
			log.WithField("tx", h).Info("Transaction hash assigned")
			c.onHash(ctx, trade, wallet, target, h)
		})
	}

	err = c.signer.SendTransaction(ctx, call, onHash)

	mu.Lock()
	txHash := hash
	mu.Unlock()

	if err != nil {
		return "", c.fail(trade.Provider, txHash, &swaps.ExecutionError{
			Kind:     classify(err),
			Provider: trade.Provider,
			TxHash:   txHash,
			Err:      err,
		})
	}
	if txHash == "" {
		return "", c.fail(trade.Provider, "", &swaps.ExecutionError{
			Kind:     swaps.ExecUnknown,
			Provider: trade.Provider,
			Err:      errors.New("signer finished without assigning a transaction hash"),
		})
	}

	log.WithField("tx", txHash).Info("Trade executed")
	if c.metrics != nil {
		c.metrics.RecordExecution(string(trade.Provider), metrics.StatusSuccess)
	}
	return txHash, nil
}

func (c *Coordinator) fail(p swaps.ProviderType, txHash string, err *swaps.ExecutionError) error {
	entry := c.logger.WithError(err).WithFields(logrus.Fields{"provider": p, "kind": err.Kind})
	status := metrics.StatusError
	if txHash != "" {
		status = metrics.StatusSubmittedError
		entry = entry.WithField("tx", txHash)
	}
	entry.Warn("Trade execution failed")
	if c.metrics != nil {
		c.metrics.RecordExecution(string(p), status)
	}
	return err
}

// onHash records the trade and fires the side notifications. Nothing here
// can undo the submission.
func (c *Coordinator) onHash(ctx context.Context, trade swaps.Trade, wallet, target, txHash string) {
	info, err := TradeInfo(trade)
	if err != nil {
		c.logger.WithError(err).Warn("Recording trade without provider details")
	}

	params := db.AppendRecentTradeParams{
		Owner:          wallet,
		SourceTxHash:   txHash,
		FromBlockchain: string(trade.From.Blockchain),
		ToBlockchain:   string(trade.To.Blockchain),
		FromToken:      trade.From.Key(),
		ToToken:        trade.To.Key(),
		FromAmount:     info.AmountIn.String(),
		ToAmount:       info.AmountOut.String(),
		Provider:       string(trade.Provider),
		BridgeType:     nullString(info.BridgeType),
		ExternalID:     nullString(info.ExternalID),
		Status:         string(swaps.TradeStatusPending),
		CreatedAt:      c.now(),
	}
	if _, err := c.ledger.AppendRecentTrade(context.WithoutCancel(ctx), params); err != nil {
		c.logger.WithError(err).WithField("tx", txHash).Error("Failed to record recent trade")
	}

	if !trade.To.Blockchain.IsEVM() && c.notifier != nil {
		n := relay.Notification{
			TxHash:         txHash,
			FromBlockchain: string(trade.From.Blockchain),
			ToBlockchain:   string(trade.To.Blockchain),
			TargetAddress:  target,
			Path:           trade.PathSymbols(),
			Provider:       string(trade.Provider),
		}
		if id := trade.From.Blockchain.ChainID(); id != nil {
			n.SourceChainID = id.Int64()
		}
		c.dispatcher.Go(ctx, "relay", func(ctx context.Context) error {
			return c.notifier.NotifyCrossChain(ctx, n)
		})
	}

	if p, ok := c.engine.Provider(trade.Provider); ok {
		if listener, ok := p.(swaps.HashListener); ok {
			c.dispatcher.Go(ctx, string(trade.Provider), func(ctx context.Context) error {
				return listener.OnTransactionHash(ctx, trade, txHash)
			})
		}
	}
}

// Approve submits the allowance the selected trade needs. The engine is
// pinned to the trade's provider for the duration; if the approval fails the
// previous pin is restored. Nothing is cached on success.
func (c *Coordinator) Approve(ctx context.Context, selected *aggregator.SelectedTrade) error {
	if selected == nil {
		return &swaps.ExecutionError{Kind: swaps.ExecUnknown, Err: errors.New("no trade selected")}
	}
	trade := selected.Trade

	previous := c.engine.SelectedProvider()
	c.engine.SelectProvider(selected.Provider)

	err := c.approve(ctx, trade)
	if err != nil {
		c.engine.SelectProvider(previous)
		c.logger.WithError(err).WithFields(logrus.Fields{
			"provider": selected.Provider,
			"restored": previous,
		}).Warn("Approval failed")
	}
	if c.metrics != nil {
		c.metrics.RecordApproval(string(selected.Provider), err == nil)
	}
	return err
}

func (c *Coordinator) approve(ctx context.Context, trade swaps.Trade) error {
	if !trade.From.Blockchain.IsEVM() {
		return &swaps.ExecutionError{Kind: swaps.ExecUnsupportedChain, Provider: trade.Provider, Err: fmt.Errorf("source chain %s is not EVM", trade.From.Blockchain)}
	}
	spender, needed, err := ApprovalTarget(trade)
	if err != nil {
		return &swaps.ExecutionError{Kind: swaps.ExecPrepare, Provider: trade.Provider, Err: err}
	}
	if !needed {
		return nil
	}

	approval := Approval{
		Chain:   trade.From.Blockchain,
		Token:   trade.From.EVMAddress(),
		Spender: spender,
		Amount:  trade.AmountIn,
	}

	var (
		mu     sync.Mutex
		txHash string
	)
	err = c.signer.Approve(ctx, approval, func(h string) {
		mu.Lock()
		txHash = h
		mu.Unlock()
		c.logger.WithFields(logrus.Fields{"provider": trade.Provider, "tx": h}).Info("Approval submitted")
	})
	if err != nil {
		mu.Lock()
		defer mu.Unlock()
		return &swaps.ExecutionError{Kind: classify(err), Provider: trade.Provider, TxHash: txHash, Err: err}
	}
	return nil
}

// NeedsApproval reads the current on-chain allowance of owner.
func (c *Coordinator) NeedsApproval(ctx context.Context, trade swaps.Trade, owner string) (bool, error) {
	return Allowances(c.rpcs).NeedsApproval(ctx, trade, owner)
}

// Allowances answers approval queries from per-chain callers. It satisfies
// aggregator.ApprovalChecker without needing a Coordinator.
type Allowances map[swaps.Blockchain]ethereum.ContractCaller

func (a Allowances) NeedsApproval(ctx context.Context, trade swaps.Trade, owner string) (bool, error) {
	spender, needed, err := ApprovalTarget(trade)
	if err != nil || !needed {
		return false, err
	}
	rpc, ok := a[trade.From.Blockchain]
	if !ok {
		return false, fmt.Errorf("no RPC client for %s", trade.From.Blockchain)
	}
	allowance, err := balances.Allowance(ctx, rpc, trade.From.EVMAddress(), common.HexToAddress(owner), spender)
	if err != nil {
		return false, err
	}
	return trade.AmountIn == nil || allowance.Cmp(trade.AmountIn) < 0, nil
}

// RecentTrades lists the owner's recorded trades, newest first.
func (c *Coordinator) RecentTrades(ctx context.Context, owner string) ([]db.RecentTrade, error) {
	return c.ledger.ListRecentTrades(ctx, owner)
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
