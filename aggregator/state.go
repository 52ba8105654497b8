package aggregator

import (
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/RaghavSood/ccrouter/ranking"
	"github.com/RaghavSood/ccrouter/swaps"
)

// ProviderResult is one provider's slot in an AggregateState.
type ProviderResult = swaps.ProviderResult

// Completion is the event produced when a provider answers. Exactly one of
// Trade and Err is set.
type Completion struct {
	Provider swaps.ProviderType
	Trade    *swaps.Trade
	Err      *swaps.ProviderError
}

// AggregateState is an immutable snapshot of one calculation cycle. Apply
// returns a new value and never modifies the receiver, so emitted states can
// be shared freely.
type AggregateState struct {
	CycleID            uuid.UUID
	Request            swaps.Request
	TotalProviders     int
	CompletedProviders int
	Results            []ProviderResult
}

// NewAggregateState builds the initial state with every provider pending.
func NewAggregateState(cycleID uuid.UUID, req swaps.Request, providers []swaps.ProviderType, policy ranking.Policy, dangerous func(swaps.ProviderType) bool) AggregateState {
	results := make([]ProviderResult, len(providers))
	for i, p := range providers {
		results[i] = ProviderResult{Provider: p, Status: swaps.ResultPending, Order: i}
	}
	policy.Sort(results, dangerous)
	return AggregateState{
		CycleID:        cycleID,
		Request:        req,
		TotalProviders: len(providers),
		Results:        results,
	}
}

// Apply merges a completion and re-ranks the results. Completions for
// unknown providers or providers that already completed are ignored.
func (s AggregateState) Apply(c Completion, policy ranking.Policy, dangerous func(swaps.ProviderType) bool) AggregateState {
	idx := slices.IndexFunc(s.Results, func(r ProviderResult) bool { return r.Provider == c.Provider })
	if idx < 0 || !s.Results[idx].IsPending() {
		return s
	}

	next := s
	next.Results = slices.Clone(s.Results)
	next.CompletedProviders++

	r := &next.Results[idx]
	r.Arrival = next.CompletedProviders
	switch {
	case c.Err != nil:
		r.Status = swaps.ResultFailure
		r.Err = c.Err
	case c.Trade != nil:
		r.Status = swaps.ResultQuote
		r.Trade = c.Trade
	default:
		r.Status = swaps.ResultFailure
		r.Err = swaps.NewProviderError(c.Provider, swaps.KindUnknown, "empty result")
	}

	policy.Sort(next.Results, dangerous)
	return next
}

// Settled reports whether every provider has answered.
func (s AggregateState) Settled() bool {
	return s.CompletedProviders == s.TotalProviders
}

// Quotes returns the successful results in rank order.
func (s AggregateState) Quotes() []ProviderResult {
	var out []ProviderResult
	for _, r := range s.Results {
		if r.IsQuote() {
			out = append(out, r)
		}
	}
	return out
}

func (s AggregateState) Failures() []ProviderResult {
	var out []ProviderResult
	for _, r := range s.Results {
		if r.IsFailure() {
			out = append(out, r)
		}
	}
	return out
}

// Result returns the entry for p.
func (s AggregateState) Result(p swaps.ProviderType) (ProviderResult, bool) {
	idx := slices.IndexFunc(s.Results, func(r ProviderResult) bool { return r.Provider == p })
	if idx < 0 {
		return ProviderResult{}, false
	}
	return s.Results[idx], true
}

// Outcome is the user-facing classification of a state.
type Outcome int

const (
	OutcomeInProgress Outcome = iota
	OutcomeQuoted
	OutcomeNoLiquidity
	OutcomeOutage
)

// Summary condenses a state for display.
type Summary struct {
	Checked  int
	Total    int
	Quotes   int
	Failures int
	Outcome  Outcome
}

func (s AggregateState) Summary() Summary {
	sum := Summary{Checked: s.CompletedProviders, Total: s.TotalProviders}
	transient := false
	for _, r := range s.Results {
		switch r.Status {
		case swaps.ResultQuote:
			sum.Quotes++
		case swaps.ResultFailure:
			sum.Failures++
			if r.Err != nil && r.Err.Kind.Transient() {
				transient = true
			}
		}
	}
	switch {
	case sum.Quotes > 0:
		sum.Outcome = OutcomeQuoted
	case !s.Settled():
		sum.Outcome = OutcomeInProgress
	case transient:
		sum.Outcome = OutcomeOutage
	default:
		sum.Outcome = OutcomeNoLiquidity
	}
	return sum
}

func (s Summary) String() string {
	switch s.Outcome {
	case OutcomeNoLiquidity:
		return "No liquidity for this pair"
	case OutcomeOutage:
		return "Providers are temporarily unavailable, try again shortly"
	}
	msg := fmt.Sprintf("%d of %d providers checked", s.Checked, s.Total)
	if s.Failures > 0 {
		msg += fmt.Sprintf(", %d found no route", s.Failures)
	}
	return msg
}
