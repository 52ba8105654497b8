package aggregator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/RaghavSood/ccrouter/metrics"
	"github.com/RaghavSood/ccrouter/swaps"
)

// ApprovalChecker reports whether a trade needs an allowance transaction
// before it can be executed from owner.
type ApprovalChecker interface {
	NeedsApproval(ctx context.Context, trade swaps.Trade, owner string) (bool, error)
}

// Engine fans calculation requests out to providers and keeps the provider
// pin. One engine serves one session.
type Engine struct {
	providers []swaps.Provider
	session   *Session
	approvals ApprovalChecker
	metrics   *metrics.AggregatorMetrics
	logger    *logrus.Entry

	// startMu serialises supersession so that two concurrent starts cannot
	// both observe the same previous cycle.
	startMu sync.Mutex

	mu      sync.RWMutex
	current *Calculation
	pinned  swaps.ProviderType
}

// Option configures an Engine.
type Option func(*Engine)

func WithApprovalChecker(c ApprovalChecker) Option {
	return func(e *Engine) { e.approvals = c }
}

func WithMetrics(m *metrics.AggregatorMetrics) Option {
	return func(e *Engine) { e.metrics = m }
}

func NewEngine(providers []swaps.Provider, session *Session, logger *logrus.Logger, opts ...Option) *Engine {
	if session == nil {
		session = NewSession(defaultPolicy())
	}
	e := &Engine{
		providers: providers,
		session:   session,
		logger:    logger.WithField("pkg", "aggregator.Engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Session() *Session { return e.session }

// Providers lists the registered provider types in registration order.
func (e *Engine) Providers() []swaps.ProviderType {
	out := make([]swaps.ProviderType, len(e.providers))
	for i, p := range e.providers {
		out[i] = p.Type()
	}
	return out
}

// Provider returns the adapter registered for t.
func (e *Engine) Provider(t swaps.ProviderType) (swaps.Provider, bool) {
	for _, p := range e.providers {
		if p.Type() == t {
			return p, true
		}
	}
	return nil, false
}

// SupportsPair reports whether any registered provider can route between
// the two blockchains.
func (e *Engine) SupportsPair(from, to swaps.Blockchain) bool {
	for _, p := range e.providers {
		if p.SupportsPair(from, to) {
			return true
		}
	}
	return false
}

func (e *Engine) applicable(req swaps.Request) []swaps.Provider {
	var out []swaps.Provider
	for _, p := range e.providers {
		if req.Disabled(p.Type()) {
			continue
		}
		if !p.SupportsPair(req.From.Blockchain, req.To.Blockchain) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// StartCalculation supersedes any running cycle and starts a new one. The
// previous cycle's stream is closed before the new cycle emits anything,
// even when the new request is rejected. Invalid requests and unsupported
// pairs fail before any provider is called and leave no current cycle.
func (e *Engine) StartCalculation(ctx context.Context, req swaps.Request) (*Calculation, error) {
	e.startMu.Lock()
	defer e.startMu.Unlock()

	e.mu.RLock()
	prev := e.current
	e.mu.RUnlock()
	if prev != nil {
		prev.Stop()
	}

	providers, err := e.prepare(req)
	if err != nil {
		e.mu.Lock()
		e.current = nil
		e.mu.Unlock()
		return nil, err
	}

	cctx, cancel := context.WithCancel(ctx)
	calc := &Calculation{
		id:      uuid.New(),
		request: req,
		states:  make(chan AggregateState),
		done:    make(chan struct{}),
		cancel:  cancel,
	}

	types := make([]swaps.ProviderType, len(providers))
	for i, p := range providers {
		types[i] = p.Type()
	}
	initial := NewAggregateState(calc.id, req, types, e.session.Policy(), e.session.Dangerous.Contains)
	calc.setLatest(initial)

	e.mu.Lock()
	e.current = calc
	e.mu.Unlock()

	e.logger.WithFields(logrus.Fields{
		"cycle":     calc.id,
		"from":      req.From.String(),
		"to":        req.To.String(),
		"amount":    req.FromAmount.String(),
		"providers": len(providers),
	}).Info("Starting calculation")

	go e.run(cctx, calc, providers, initial)
	return calc, nil
}

// prepare validates req and returns the adapters that will be asked.
func (e *Engine) prepare(req swaps.Request) ([]swaps.Provider, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	providers := e.applicable(req)
	if len(providers) == 0 {
		return nil, &swaps.ConfigurationError{
			Field:  "pair",
			Reason: fmt.Sprintf("unsupported pair %s -> %s", req.From.Key(), req.To.Key()),
		}
	}
	return providers, nil
}

// Current returns the running or most recent cycle, or nil after a
// rejected request.
func (e *Engine) Current() *Calculation {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.current
}

// Stop cancels the running cycle, if any.
func (e *Engine) Stop() {
	e.startMu.Lock()
	defer e.startMu.Unlock()
	if c := e.Current(); c != nil {
		c.Stop()
	}
}

// run is the cycle's reducer. It is the only goroutine that touches the
// cycle's state and the only sender on its channel.
func (e *Engine) run(ctx context.Context, calc *Calculation, providers []swaps.Provider, state AggregateState) {
	defer close(calc.done)
	defer close(calc.states)
	defer calc.cancel()

	completions := make(chan Completion, len(providers))
	var g errgroup.Group
	for _, p := range providers {
		g.Go(func() error {
			completions <- e.calculate(ctx, p, calc.request)
			return nil
		})
	}
	go func() {
		_ = g.Wait()
		close(completions)
	}()

	emit := func(st AggregateState) bool {
		select {
		case calc.states <- st:
			return true
		case <-ctx.Done():
			return false
		}
	}

	// stopped runs when the cycle ends early, either replaced by a newer
	// cycle or because the caller's context ended.
	stopped := func() {
		outcome := metrics.CycleCancelled
		if calc.Superseded() {
			outcome = metrics.CycleSuperseded
		}
		e.logger.WithFields(logrus.Fields{"cycle": calc.id, "outcome": outcome}).Debug("Calculation stopped")
		if e.metrics != nil {
			e.metrics.RecordCycle(outcome)
		}
	}

	if !emit(state) {
		stopped()
		return
	}

	for !state.Settled() {
		var c Completion
		var ok bool
		select {
		case c, ok = <-completions:
			if !ok {
				return
			}
		case <-ctx.Done():
			stopped()
			return
		}

		state = state.Apply(c, e.session.Policy(), e.session.Dangerous.Contains)
		calc.setLatest(state)
		if !emit(state) {
			stopped()
			return
		}
	}

	if e.metrics != nil {
		e.metrics.RecordCycle(metrics.CycleCompleted)
	}
	sum := state.Summary()
	e.logger.WithFields(logrus.Fields{
		"cycle":  calc.id,
		"quotes": sum.Quotes,
		"failed": sum.Failures,
	}).Info("Calculation settled")
}

// calculate runs one adapter under the request's timeout. The adapter is
// abandoned if it ignores cancellation; a panic becomes an Unknown failure.
func (e *Engine) calculate(ctx context.Context, p swaps.Provider, req swaps.Request) Completion {
	pt := p.Type()
	start := time.Now()

	tctx, cancel := context.WithTimeout(ctx, req.ProviderTimeout())
	defer cancel()

	type outcome struct {
		trade swaps.Trade
		err   error
	}
	ch := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- outcome{err: swaps.NewProviderError(pt, swaps.KindUnknown, "panic: %v", r)}
			}
		}()
		trade, err := p.Calculate(tctx, req)
		ch <- outcome{trade: trade, err: err}
	}()

	var o outcome
	select {
	case o = <-ch:
	case <-tctx.Done():
		o.err = tctx.Err()
	}

	elapsed := time.Since(start)
	log := e.logger.WithFields(logrus.Fields{"provider": pt, "elapsed": elapsed})

	if o.err != nil {
		pe := swaps.AsProviderError(pt, o.err)
		log.WithError(pe).WithField("kind", pe.Kind).Warn("Provider failed")
		if e.metrics != nil {
			e.metrics.RecordProviderResult(string(pt), string(pe.Kind), elapsed)
		}
		return Completion{Provider: pt, Err: pe}
	}

	trade := o.trade
	trade.Provider = pt
	log.WithField("amount_out", trade.AmountOutDecimal().String()).Info("Provider quoted")
	if e.metrics != nil {
		e.metrics.RecordProviderResult(string(pt), "quote", elapsed)
	}
	return Completion{Provider: pt, Trade: &trade}
}
