// Package cache provides the bounded, TTL-based result cache used by the
// demand, supply and hotspot engines.
//
// Entries expire lazily: an expired entry is only removed when a Get finds
// it. When a Set pushes the cache past its capacity, the single
// oldest-inserted entry is evicted. Reads never refresh an entry's position,
// so a frequently read old entry is evicted exactly like a stale one.
//
// Cache instances are owned by whoever constructs them and passed to the
// services that use them; there is no package-level cache.
package cache

import (
	"container/list"
	"fmt"
	"strings"
	"sync"
	"time"

	"geopulse/internal/metrics"
)

// entry is a single cached value with its insertion time.
type entry struct {
	key        string
	value      any
	insertedAt time.Time
}

// Cache is a bounded key/value store with a fixed TTL and insertion-order
// eviction.
//
// Go Learning Note — container/list:
// list.List is a doubly linked list. Keeping a *list.Element in the map
// gives O(1) removal from the middle of the insertion order, and the front
// of the list is always the oldest insertion.
type Cache struct {
	mu       sync.Mutex
	name     string
	ttl      time.Duration
	capacity int
	entries  map[string]*list.Element
	order    *list.List
	now      func() time.Time
}

// Option customizes a Cache.
type Option func(*Cache)

// WithClock replaces time.Now, letting tests move time deterministically.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// New creates an empty cache. name labels its metrics.
func New(name string, ttl time.Duration, capacity int, opts ...Option) *Cache {
	if capacity <= 0 {
		capacity = 1
	}
	c := &Cache{
		name:     name,
		ttl:      ttl,
		capacity: capacity,
		entries:  make(map[string]*list.Element, capacity),
		order:    list.New(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the value stored under key. Entries older than the TTL are
// treated as a miss and removed.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		metrics.CacheRequests.WithLabelValues(c.name, "miss").Inc()
		return nil, false
	}

	e := el.Value.(*entry)
	if c.now().Sub(e.insertedAt) > c.ttl {
		c.removeElement(el)
		metrics.CacheEvictions.WithLabelValues(c.name, "expired").Inc()
		metrics.CacheRequests.WithLabelValues(c.name, "miss").Inc()
		return nil, false
	}

	metrics.CacheRequests.WithLabelValues(c.name, "hit").Inc()
	return e.value, true
}

// Set stores value under key. Overwriting a key counts as a fresh
// insertion. If the cache grows beyond capacity, the oldest insertion is
// evicted.
func (c *Cache) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		c.removeElement(el)
	}

	el := c.order.PushBack(&entry{key: key, value: value, insertedAt: c.now()})
	c.entries[key] = el

	if c.order.Len() > c.capacity {
		c.removeElement(c.order.Front())
		metrics.CacheEvictions.WithLabelValues(c.name, "capacity").Inc()
	}
}

// Len returns the number of stored entries, including expired entries that
// have not been read since they expired.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Purge drops every entry.
func (c *Cache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*list.Element, c.capacity)
	c.order.Init()
}

// TTL returns the configured time-to-live.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

func (c *Cache) removeElement(el *list.Element) {
	e := c.order.Remove(el).(*entry)
	delete(c.entries, e.key)
}

// Fetch returns the cached value for key, or calls load, stores its result
// and returns it. Errors from load are returned as-is and never cached. The
// boolean reports a cache hit.
//
// Go Learning Note — Generic Functions:
// Methods cannot have type parameters in Go, so the typed get-or-load
// helper is a top-level function taking the cache as an argument.
func Fetch[T any](c *Cache, key string, load func() (T, error)) (T, bool, error) {
	if v, ok := c.Get(key); ok {
		if typed, ok := v.(T); ok {
			return typed, true, nil
		}
	}

	v, err := load()
	if err != nil {
		var zero T
		return zero, false, err
	}
	c.Set(key, v)
	return v, false, nil
}

// Coord quantizes a coordinate to two decimals (~1.1 km), so requests from
// nearby centers share one cache entry.
func Coord(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	if s == "-0.00" {
		return "0.00"
	}
	return s
}

// Key joins a prefix and parts into a cache key. Coordinates should be
// passed through Coord first.
func Key(prefix string, parts ...any) string {
	var b strings.Builder
	b.WriteString(prefix)
	for _, p := range parts {
		b.WriteByte(':')
		fmt.Fprint(&b, p)
	}
	return b.String()
}
