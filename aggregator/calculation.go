package aggregator

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/RaghavSood/ccrouter/swaps"
)

// Calculation is one fan-out cycle. Its States channel must be drained by a
// single consumer; it is closed when every provider has answered or when
// the cycle is superseded.
type Calculation struct {
	id      uuid.UUID
	request swaps.Request

	states chan AggregateState
	done   chan struct{}
	cancel context.CancelFunc

	mu         sync.RWMutex
	latest     AggregateState
	superseded bool
}

func (c *Calculation) ID() uuid.UUID { return c.id }

func (c *Calculation) Request() swaps.Request { return c.request }

// States streams one state per change, starting with the all-pending state.
func (c *Calculation) States() <-chan AggregateState { return c.states }

// Done is closed after the States channel has been closed.
func (c *Calculation) Done() <-chan struct{} { return c.done }

// Latest returns the most recent state the cycle produced.
func (c *Calculation) Latest() AggregateState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.latest
}

// Superseded reports whether a newer cycle replaced this one.
func (c *Calculation) Superseded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.superseded
}

// Wait drains States and returns the last state received.
func (c *Calculation) Wait(ctx context.Context) (AggregateState, error) {
	var last AggregateState
	for {
		select {
		case st, ok := <-c.states:
			if !ok {
				return last, nil
			}
			last = st
		case <-ctx.Done():
			return last, ctx.Err()
		}
	}
}

// Stop cancels the cycle and blocks until its stream is closed.
func (c *Calculation) Stop() {
	select {
	case <-c.done:
		return
	default:
	}
	c.mu.Lock()
	c.superseded = true
	c.mu.Unlock()
	c.cancel()
	<-c.done
}

func (c *Calculation) setLatest(st AggregateState) {
	c.mu.Lock()
	c.latest = st
	c.mu.Unlock()
}
