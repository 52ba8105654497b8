package swaps

import "context"

// Provider is implemented by each routing source.
//
// Calculate returns expected business failures as *ProviderError. It should
// honour ctx cancellation; the engine enforces the deadline either way.
type Provider interface {
	Type() ProviderType
	SupportsPair(from, to Blockchain) bool
	Calculate(ctx context.Context, req Request) (Trade, error)
}

// Preparer is implemented by providers whose quotes must be turned into a
// concrete deposit (exchange, order, deposit address) before execution.
type Preparer interface {
	Prepare(ctx context.Context, trade Trade, wallet, target string) (Trade, error)
}

// HashListener is implemented by providers that want to hear about the
// source transaction hash. Calls are best-effort.
type HashListener interface {
	OnTransactionHash(ctx context.Context, trade Trade, txHash string) error
}

// StatusChecker reports progress of a submitted trade. externalID is the
// provider's own identifier where one exists (deposit address, exchange id).
type StatusChecker interface {
	CheckStatus(ctx context.Context, txHash, externalID string) (TradeStatus, error)
}

// TradeStatus is the lifecycle badge of a recorded trade.
type TradeStatus string

const (
	TradeStatusPending  TradeStatus = "pending"
	TradeStatusSuccess  TradeStatus = "success"
	TradeStatusFail     TradeStatus = "fail"
	TradeStatusFallback TradeStatus = "fallback" // refunded to the sender
	TradeStatusUnknown  TradeStatus = "unknown"
)

// Final reports whether no further transitions are expected.
func (s TradeStatus) Final() bool {
	return s == TradeStatusSuccess || s == TradeStatusFail || s == TradeStatusFallback
}
