package cache

import (
	"sync"
	"time"
)

type entry[T any] struct {
	value     T
	fetchedAt time.Time
}

// Cache is a small in-memory TTL cache keyed by string. Provider adapters
// use it for asset lists and inbound addresses that change rarely.
type Cache[T any] struct {
	mu      sync.RWMutex
	entries map[string]entry[T]
	ttl     time.Duration
	now     func() time.Time
}

func New[T any](ttl time.Duration) *Cache[T] {
	return &Cache[T]{
		entries: make(map[string]entry[T]),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns a fresh cached value.
func (c *Cache[T]) Get(key string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok || c.now().Sub(e.fetchedAt) >= c.ttl {
		var zero T
		return zero, false
	}
	return e.value, true
}

func (c *Cache[T]) Set(key string, value T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry[T]{value: value, fetchedAt: c.now()}
}

// Invalidate drops key so the next GetOrFetch refetches.
func (c *Cache[T]) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// GetOrFetch returns a cached value or calls fetch to populate it. Errors
// are not cached.
func (c *Cache[T]) GetOrFetch(key string, fetch func() (T, error)) (T, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Double-check after acquiring write lock.
	if e, ok := c.entries[key]; ok && c.now().Sub(e.fetchedAt) < c.ttl {
		return e.value, nil
	}

	val, err := fetch()
	if err != nil {
		var zero T
		return zero, err
	}

	c.entries[key] = entry[T]{value: val, fetchedAt: c.now()}
	return val, nil
}
