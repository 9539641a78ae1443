// Package cache provides the generic in-process TTL cache used by every
// resource store. Reads are cache-aside: a fresh entry is returned without
// calling the fetcher, otherwise the fetcher runs (shared between concurrent
// callers of the same key) and its successful result is stored. Failed
// fetches are never cached.
package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/tbourn/go-storefront-client/internal/observability"
)

// Entry is a cached value with the moment it was fetched and its lifetime.
type Entry[T any] struct {
	Value     T
	FetchedAt time.Time
	TTL       time.Duration
}

// Fresh reports whether the entry may still be served at now.
func (e Entry[T]) Fresh(now time.Time) bool {
	return now.Sub(e.FetchedAt) < e.TTL
}

// Fetcher loads the value for a key from its source of truth.
type Fetcher[T any] func(ctx context.Context) (T, error)

type options struct {
	now func() time.Time
}

// Option configures a Cache.
type Option func(*options)

// WithClock replaces time.Now (tests).
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// Cache is a TTL cache of T values keyed by logical resource id. It is safe
// for concurrent use.
type Cache[T any] struct {
	name string
	now  func() time.Time

	mu      sync.RWMutex
	entries map[string]Entry[T]
	// gen advances on every invalidation; fetches started under an older
	// generation return their value but do not store it.
	gen uint64

	group singleflight.Group
}

// New returns an empty cache. name labels its metrics.
func New[T any](name string, opts ...Option) *Cache[T] {
	o := options{now: time.Now}
	for _, fn := range opts {
		fn(&o)
	}
	return &Cache[T]{
		name:    name,
		now:     o.now,
		entries: make(map[string]Entry[T]),
	}
}

// Name returns the metrics label of the cache.
func (c *Cache[T]) Name() string { return c.name }

// GetOrFetch returns the fresh entry for key, or runs fetch and caches its
// result for ttl. A fetch error is returned as is and nothing is stored.
func (c *Cache[T]) GetOrFetch(ctx context.Context, key string, ttl time.Duration, fetch Fetcher[T]) (T, error) {
	if v, ok := c.Peek(key); ok {
		observability.CacheRequests.WithLabelValues(c.name, "hit").Inc()
		return v, nil
	}
	observability.CacheRequests.WithLabelValues(c.name, "miss").Inc()

	c.mu.RLock()
	gen := c.gen
	c.mu.RUnlock()

	v, err, _ := c.group.Do(key, func() (any, error) {
		val, err := fetch(ctx)
		if err != nil {
			return val, err
		}
		c.mu.Lock()
		if c.gen == gen {
			c.entries[key] = Entry[T]{Value: val, FetchedAt: c.now(), TTL: ttl}
		}
		c.mu.Unlock()
		return val, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

// Set stores value for key, replacing any entry.
func (c *Cache[T]) Set(key string, value T, ttl time.Duration) {
	c.mu.Lock()
	c.entries[key] = Entry[T]{Value: value, FetchedAt: c.now(), TTL: ttl}
	c.mu.Unlock()
}

// Peek returns the value of a fresh entry without fetching.
func (c *Cache[T]) Peek(key string) (T, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || !e.Fresh(c.now()) {
		var zero T
		return zero, false
	}
	return e.Value, true
}

// Entry returns the raw entry for key, fresh or not.
func (c *Cache[T]) Entry(key string) (Entry[T], bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	return e, ok
}

// Invalidate removes the given keys.
func (c *Cache[T]) Invalidate(keys ...string) {
	c.mu.Lock()
	c.gen++
	n := 0
	for _, k := range keys {
		if _, ok := c.entries[k]; ok {
			delete(c.entries, k)
			n++
		}
		c.group.Forget(k)
	}
	c.mu.Unlock()
	c.countInvalidations(n)
}

// InvalidatePrefix removes every key starting with prefix.
func (c *Cache[T]) InvalidatePrefix(prefix string) {
	c.mu.Lock()
	c.gen++
	n := 0
	for k := range c.entries {
		if strings.HasPrefix(k, prefix) {
			delete(c.entries, k)
			c.group.Forget(k)
			n++
		}
	}
	c.mu.Unlock()
	c.countInvalidations(n)
}

// Reset drops every entry.
func (c *Cache[T]) Reset() {
	c.mu.Lock()
	c.gen++
	n := len(c.entries)
	for k := range c.entries {
		c.group.Forget(k)
	}
	c.entries = make(map[string]Entry[T])
	c.mu.Unlock()
	c.countInvalidations(n)
}

// Len returns the number of stored entries, fresh or stale.
func (c *Cache[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Cache[T]) countInvalidations(n int) {
	if n > 0 {
		observability.CacheInvalidations.WithLabelValues(c.name).Add(float64(n))
	}
}
