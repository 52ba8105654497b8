package aggregator

import (
	"context"
	"fmt"

	"github.com/RaghavSood/ccrouter/ranking"
	"github.com/RaghavSood/ccrouter/swaps"
)

func defaultPolicy() ranking.Policy { return ranking.DefaultPolicy() }

// SelectedTrade is the trade the engine currently points at.
type SelectedTrade struct {
	Provider      swaps.ProviderType
	Trade         swaps.Trade
	NeedsApproval bool
	SmartRouting  *swaps.SmartRouting
}

// SelectProvider pins the current best to p. The pin is kept until cleared
// and takes effect as soon as p has a quote. An empty p clears the pin.
func (e *Engine) SelectProvider(p swaps.ProviderType) {
	e.mu.Lock()
	e.pinned = p
	e.mu.Unlock()
}

func (e *Engine) ClearSelection() {
	e.SelectProvider("")
}

func (e *Engine) SelectedProvider() swaps.ProviderType {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.pinned
}

// MarkDangerous demotes p in every state computed from now on.
func (e *Engine) MarkDangerous(p swaps.ProviderType) {
	e.session.Dangerous.Mark(p)
	e.logger.WithField("provider", p).Info("Provider marked dangerous")
}

func (e *Engine) UnmarkDangerous(p swaps.ProviderType) {
	e.session.Dangerous.Unmark(p)
	e.logger.WithField("provider", p).Info("Provider unmarked dangerous")
}

// CurrentBest returns the pinned provider's quote if present, otherwise the
// top ranked quote. It returns nil when state holds no quote.
func (e *Engine) CurrentBest(state AggregateState) *SelectedTrade {
	return Best(state, e.SelectedProvider())
}

// Best is the pure form of CurrentBest.
func Best(state AggregateState, pinned swaps.ProviderType) *SelectedTrade {
	var pick *ProviderResult
	if pinned != "" {
		if r, ok := state.Result(pinned); ok && r.IsQuote() {
			pick = &r
		}
	}
	if pick == nil {
		for i := range state.Results {
			if state.Results[i].IsQuote() {
				pick = &state.Results[i]
				break
			}
		}
	}
	if pick == nil || pick.Trade == nil {
		return nil
	}
	return &SelectedTrade{
		Provider:     pick.Provider,
		Trade:        *pick.Trade,
		SmartRouting: pick.Trade.SmartRouting(),
	}
}

// Resolve is CurrentBest with the approval requirement filled in for owner.
// Allowances are queried every time.
func (e *Engine) Resolve(ctx context.Context, state AggregateState, owner string) (*SelectedTrade, error) {
	best := e.CurrentBest(state)
	if best == nil || e.approvals == nil || owner == "" {
		return best, nil
	}
	needs, err := e.approvals.NeedsApproval(ctx, best.Trade, owner)
	if err != nil {
		return nil, fmt.Errorf("checking approval for %s: %w", best.Provider, err)
	}
	best.NeedsApproval = needs
	return best, nil
}
