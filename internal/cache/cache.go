// Package cache memoizes assistant responses for a short time window.
package cache

import (
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultTTL is how long a response stays servable.
const DefaultTTL = 2 * time.Minute

// Entry is one stored response. Entries are replaced, never updated in place.
type Entry[V any] struct {
	Key       string
	Response  V
	Timestamp time.Time
}

// Observer receives hit/miss events, typically a metrics sink.
type Observer interface {
	CacheHit()
	CacheMiss()
}

// Cache is a TTL-bounded response store. Instances are independent; there
// is no package-level state.
type Cache[V any] struct {
	mu       sync.Mutex
	entries  map[string]Entry[V]
	ttl      time.Duration
	now      func() time.Time
	group    singleflight.Group
	observer Observer
}

// Option configures a Cache.
type Option[V any] func(*Cache[V])

// WithClock overrides the time source.
func WithClock[V any](now func() time.Time) Option[V] {
	return func(c *Cache[V]) { c.now = now }
}

// WithObserver reports hits and misses to o.
func WithObserver[V any](o Observer) Option[V] {
	return func(c *Cache[V]) { c.observer = o }
}

// New creates a cache. A non-positive ttl selects DefaultTTL.
func New[V any](ttl time.Duration, opts ...Option[V]) *Cache[V] {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &Cache[V]{
		entries: make(map[string]Entry[V]),
		ttl:     ttl,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the live entry for key.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.getLocked(key)
}

func (c *Cache[V]) getLocked(key string) (V, bool) {
	e, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	if c.now().Sub(e.Timestamp) >= c.ttl {
		delete(c.entries, key)
		var zero V
		return zero, false
	}
	return e.Response, true
}

// GetOrCreate returns the cached response for key when it is younger than
// the TTL; otherwise it calls create, stores a successful result and
// returns it. Failed creations are not stored. Concurrent misses on the
// same key share one create call. The boolean reports a cache hit.
func (c *Cache[V]) GetOrCreate(key string, create func() (V, error)) (V, bool, error) {
	if v, ok := c.Get(key); ok {
		c.hit()
		return v, true, nil
	}
	c.miss()

	v, err, _ := c.group.Do(key, func() (any, error) {
		// A concurrent caller may have filled the entry while we waited.
		if v, ok := c.Get(key); ok {
			return v, nil
		}
		v, err := create()
		if err != nil {
			return v, err
		}
		c.mu.Lock()
		c.entries[key] = Entry[V]{Key: key, Response: v, Timestamp: c.now()}
		c.mu.Unlock()
		return v, nil
	})
	resp, _ := v.(V)
	return resp, false, err
}

// Prune drops expired entries and returns how many were removed.
func (c *Cache[V]) Prune() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	now := c.now()
	for k, e := range c.entries {
		if now.Sub(e.Timestamp) >= c.ttl {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored entries, expired or not.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Reset empties the cache.
func (c *Cache[V]) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]Entry[V])
}

func (c *Cache[V]) hit() {
	if c.observer != nil {
		c.observer.CacheHit()
	}
}

func (c *Cache[V]) miss() {
	if c.observer != nil {
		c.observer.CacheMiss()
	}
}
