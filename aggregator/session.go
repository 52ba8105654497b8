package aggregator

import (
	"slices"
	"sync"

	"github.com/RaghavSood/ccrouter/ranking"
	"github.com/RaghavSood/ccrouter/swaps"
)

// DangerousSet is the set of providers demoted to the bottom of the ranking.
// Mark and Unmark are idempotent.
type DangerousSet struct {
	mu  sync.RWMutex
	set map[swaps.ProviderType]struct{}
}

func NewDangerousSet(providers ...swaps.ProviderType) *DangerousSet {
	d := &DangerousSet{set: make(map[swaps.ProviderType]struct{}, len(providers))}
	for _, p := range providers {
		d.set[p] = struct{}{}
	}
	return d
}

func (d *DangerousSet) Mark(p swaps.ProviderType) {
	d.mu.Lock()
	d.set[p] = struct{}{}
	d.mu.Unlock()
}

func (d *DangerousSet) Unmark(p swaps.ProviderType) {
	d.mu.Lock()
	delete(d.set, p)
	d.mu.Unlock()
}

func (d *DangerousSet) Contains(p swaps.ProviderType) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.set[p]
	return ok
}

// List returns the members sorted by name.
func (d *DangerousSet) List() []swaps.ProviderType {
	d.mu.RLock()
	out := make([]swaps.ProviderType, 0, len(d.set))
	for p := range d.set {
		out = append(out, p)
	}
	d.mu.RUnlock()
	slices.Sort(out)
	return out
}

// Session holds the per-user state that outlives a calculation cycle.
// Engines never share a session unless explicitly given the same one.
type Session struct {
	Dangerous *DangerousSet

	mu     sync.RWMutex
	policy ranking.Policy
}

func NewSession(policy ranking.Policy, dangerous ...swaps.ProviderType) *Session {
	return &Session{Dangerous: NewDangerousSet(dangerous...), policy: policy}
}

// Policy returns the ranking policy in effect.
func (s *Session) Policy() ranking.Policy {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.policy
}

// SetPolicy changes the ranking strategy for subsequent states.
func (s *Session) SetPolicy(p ranking.Policy) {
	s.mu.Lock()
	s.policy = p
	s.mu.Unlock()
}
