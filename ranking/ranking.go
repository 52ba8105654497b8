// Package ranking orders provider results. Everything here is pure.
package ranking

import (
	"cmp"
	"fmt"
	"math/big"
	"slices"

	"github.com/RaghavSood/ccrouter/swaps"
)

// Strategy selects the primary ordering of quotes.
type Strategy string

const (
	// ByOutput ranks by destination amount received.
	ByOutput Strategy = "output"
	// Smart ranks with a pairwise preference heuristic.
	Smart Strategy = "smart"
)

// ParseStrategy validates a strategy name.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case ByOutput, Smart:
		return Strategy(s), nil
	case "":
		return ByOutput, nil
	}
	return "", fmt.Errorf("unknown ranking strategy %q", s)
}

// Preferred returns whichever of a and b is the better trade. It must return
// one of its arguments and must not have side effects.
type Preferred func(a, b *swaps.Trade) *swaps.Trade

// Policy is a strategy plus the heuristic used by Smart.
type Policy struct {
	Strategy  Strategy
	Preferred Preferred
}

// DefaultPolicy ranks by output.
func DefaultPolicy() Policy {
	return Policy{Strategy: ByOutput}
}

// SmartPolicy ranks with the given heuristic, or DefaultPreferred if nil.
func SmartPolicy(pref Preferred) Policy {
	if pref == nil {
		pref = DefaultPreferred
	}
	return Policy{Strategy: Smart, Preferred: pref}
}

// Sort assigns ranks and orders results in place:
//
//   - non-dangerous entries (rank 1) before dangerous ones (rank 0)
//   - within a rank, quotes, then failures, then pending
//   - quotes by the strategy, ties by arrival
//   - failures by arrival, pending by registration order
//
// The result depends only on the set of results and their arrival order,
// never on the order they were passed in.
func (p Policy) Sort(results []swaps.ProviderResult, dangerous func(swaps.ProviderType) bool) {
	for i := range results {
		results[i].Rank = swaps.RankNormal
		if dangerous != nil && dangerous(results[i].Provider) {
			results[i].Rank = swaps.RankDangerous
		}
	}
	slices.SortStableFunc(results, p.compare)

	if p.Strategy != Smart || p.Preferred == nil {
		return
	}
	for start := 0; start < len(results); {
		end := start + 1
		for end < len(results) && sameQuoteGroup(results[start], results[end]) {
			end++
		}
		if results[start].Status == swaps.ResultQuote {
			p.selectPreferred(results[start:end])
		}
		start = end
	}
}

func sameQuoteGroup(a, b swaps.ProviderResult) bool {
	return a.Rank == b.Rank && group(a) == group(b)
}

// selectPreferred orders quotes, already in arrival order, by repeatedly
// folding Preferred over the remaining quotes and taking the winner. A
// heuristic need not be transitive, so it is never handed to the sort.
func (p Policy) selectPreferred(quotes []swaps.ProviderResult) {
	for i := range quotes {
		best := i
		for j := i + 1; j < len(quotes); j++ {
			if p.Preferred(quotes[best].Trade, quotes[j].Trade) == quotes[j].Trade {
				best = j
			}
		}
		winner := quotes[best]
		copy(quotes[i+1:best+1], quotes[i:best])
		quotes[i] = winner
	}
}

func group(r swaps.ProviderResult) int {
	switch r.Status {
	case swaps.ResultQuote:
		return 0
	case swaps.ResultFailure:
		return 1
	}
	return 2
}

func (p Policy) compare(a, b swaps.ProviderResult) int {
	if c := cmp.Compare(b.Rank, a.Rank); c != 0 {
		return c
	}
	if c := cmp.Compare(group(a), group(b)); c != 0 {
		return c
	}
	switch a.Status {
	case swaps.ResultQuote:
		if c := p.compareTrades(a.Trade, b.Trade); c != 0 {
			return c
		}
		return cmp.Compare(a.Arrival, b.Arrival)
	case swaps.ResultFailure:
		return cmp.Compare(a.Arrival, b.Arrival)
	}
	return cmp.Compare(a.Order, b.Order)
}

// compareTrades orders quotes by output. Smart quotes are left in arrival
// order here and ranked afterwards by selectPreferred.
func (p Policy) compareTrades(a, b *swaps.Trade) int {
	if p.Strategy == Smart && p.Preferred != nil {
		return 0
	}
	return compareOutput(b, a)
}

func compareOutput(a, b *swaps.Trade) int {
	return amount(a).Cmp(amount(b))
}

func amount(t *swaps.Trade) *big.Int {
	if t == nil || t.AmountOut == nil {
		return new(big.Int)
	}
	return t.AmountOut
}

// Order returns the providers of results in their current order.
func Order(results []swaps.ProviderResult) []swaps.ProviderType {
	out := make([]swaps.ProviderType, len(results))
	for i, r := range results {
		out[i] = r.Provider
	}
	return out
}
