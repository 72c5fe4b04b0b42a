package cache

import (
	"sync"
	"time"
)

const (
	// DefaultTTL is used when Put is called without a positive TTL.
	DefaultTTL = 5 * time.Second
)

// Option configures a Cache.
type Option func(*Cache)

// WithClock replaces the time source used for timestamps and expiry checks.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// Cache is a key/value store with a per-entry TTL and lazy expiry.
// It is safe for concurrent use.
type Cache struct {
	mu         sync.RWMutex
	entries    map[string]*Entry
	defaultTTL time.Duration
	now        func() time.Time
}

// New creates an empty cache. A non-positive defaultTTL selects DefaultTTL.
func New(defaultTTL time.Duration, opts ...Option) *Cache {
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}
	c := &Cache{
		entries:    make(map[string]*Entry),
		defaultTTL: defaultTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// DefaultTTL returns the TTL applied when Put receives a non-positive one.
func (c *Cache) DefaultTTL() time.Duration {
	return c.defaultTTL
}

// Get returns the value stored under key if it exists and has not expired.
// Expired entries are left in place.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		CacheMisses.Inc()
		return nil, false
	}
	if entry.IsExpired(c.now()) {
		ExpiredReads.Inc()
		CacheMisses.Inc()
		return nil, false
	}

	CacheHits.Inc()
	return entry.Value, true
}

// Lookup returns the raw entry for key, expired or not.
func (c *Cache) Lookup(key string) (*Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[key]
	return entry, ok
}

// Put stores value under key, replacing any previous entry.
// A non-positive ttl selects the cache's default TTL.
func (c *Cache) Put(key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	entry := &Entry{
		Value:     value,
		CreatedAt: c.now(),
		TTL:       ttl,
	}

	c.mu.Lock()
	if _, exists := c.entries[key]; !exists {
		CacheEntries.Inc()
	}
	c.entries[key] = entry
	c.mu.Unlock()
}

// Delete removes the entry stored under key, if any.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	if _, exists := c.entries[key]; exists {
		delete(c.entries, key)
		CacheEntries.Dec()
	}
	c.mu.Unlock()
}

// Clear removes every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	CacheEntries.Sub(float64(len(c.entries)))
	c.entries = make(map[string]*Entry)
	c.mu.Unlock()
}

// Len returns the number of resident entries, including expired ones.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
