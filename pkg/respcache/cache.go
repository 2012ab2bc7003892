// Package respcache memoizes successful read-only HTTP responses in process
// memory with a per-route TTL.
//
// Expiry is checked lazily when an entry is read; there is no background
// sweep. Memory is bounded by the number of distinct keys seen within a TTL,
// so the cache should only wrap endpoints with a small, enumerable key space.
package respcache

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Response is a captured HTTP response.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

type entry struct {
	value     *Response
	expiresAt time.Time
}

// Cache is a TTL response cache safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	entries map[string]entry

	now     func() time.Time
	metrics *Metrics

	guard bool
	group singleflight.Group
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock overrides the clock used for expiry.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// WithMetrics records hits, misses and entry counts.
func WithMetrics(m *Metrics) Option {
	return func(c *Cache) {
		c.metrics = m
	}
}

// WithInflightGuard collapses concurrent misses for the same key into a
// single handler call.
func WithInflightGuard() Option {
	return func(c *Cache) {
		c.guard = true
	}
}

// New creates an empty cache.
func New(opts ...Option) *Cache {
	c := &Cache{
		entries: make(map[string]entry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached response for key. An expired entry is removed and
// reported as a miss.
func (c *Cache) Get(key string) (*Response, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if !c.now().Before(e.expiresAt) {
		delete(c.entries, key)
		c.metrics.setEntries(len(c.entries))
		return nil, false
	}
	return e.value, true
}

// Set stores resp under key until now+ttl, replacing any previous entry.
// A non-positive ttl stores nothing.
func (c *Cache) Set(key string, resp *Response, ttl time.Duration) {
	if ttl <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = entry{value: resp, expiresAt: c.now().Add(ttl)}
	c.metrics.setEntries(len(c.entries))
}

// Delete removes key.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)
	c.metrics.setEntries(len(c.entries))
}

// Purge removes every entry.
func (c *Cache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]entry)
	c.metrics.setEntries(0)
}

// Len returns the number of stored entries, including expired ones that
// have not been read since they expired.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}
