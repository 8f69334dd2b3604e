package cache

import (
	"sync"
	"time"
)

// DefaultTTL is how long a topic's result set stays fresh.
const DefaultTTL = 120 * time.Minute

type entry[T any] struct {
	value    T
	storedAt time.Time
}

// Cache is an in-memory keyed store whose entries expire a fixed TTL after
// they were written. Expired entries are evicted on read; there is no
// background sweeper.
type Cache[T any] struct {
	mu    sync.Mutex
	ttl   time.Duration
	now   func() time.Time
	items map[string]entry[T]
}

type Option[T any] func(*Cache[T])

// WithClock replaces the wall clock, mainly for tests.
func WithClock[T any](now func() time.Time) Option[T] {
	return func(c *Cache[T]) {
		c.now = now
	}
}

func New[T any](ttl time.Duration, opts ...Option[T]) *Cache[T] {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &Cache[T]{
		ttl:   ttl,
		now:   time.Now,
		items: make(map[string]entry[T]),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Cache[T]) Set(key string, value T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[key] = entry[T]{
		value:    value,
		storedAt: c.now(),
	}
}

// Get returns the stored value while it is younger than the TTL.
func (c *Cache[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	item, exists := c.items[key]
	if !exists {
		return zero, false
	}

	if c.now().Sub(item.storedAt) >= c.ttl {
		delete(c.items, key)
		return zero, false
	}

	return item.value, true
}

// Age reports how long ago key was stored, without evicting it.
func (c *Cache[T]) Age(key string) (time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, exists := c.items[key]
	if !exists {
		return 0, false
	}
	return c.now().Sub(item.storedAt), true
}

func (c *Cache[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *Cache[T]) TTL() time.Duration {
	return c.ttl
}
