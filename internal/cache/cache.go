// Package cache is a small keyed cache with per-entry expiry. One TTL is
// created per batch run and passed to whatever needs it; nothing here is
// package-level state.
package cache

import (
	"strings"
	"sync"
	"time"
)

// TTL classes by how quickly the data goes stale.
const (
	Short  = 30 * time.Second  // stats, projection snapshots
	Medium = 120 * time.Second // games
	Long   = 300 * time.Second // players
)

type entry struct {
	value     any
	expiresAt time.Time
}

// TTL maps keys to values that expire after a per-entry duration.
type TTL struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
	hits    int
	misses  int
}

// New creates an empty cache. A nil clock uses time.Now.
func New(now func() time.Time) *TTL {
	if now == nil {
		now = time.Now
	}
	return &TTL{entries: make(map[string]entry), now: now}
}

// Get returns the cached value for key if it has not expired.
func (c *TTL) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if ok && c.now().Before(e.expiresAt) {
		c.hits++
		return e.value, true
	}
	if ok {
		delete(c.entries, key)
	}
	c.misses++
	return nil, false
}

// Set stores value under key for ttl.
func (c *TTL) Set(key string, value any, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{value: value, expiresAt: c.now().Add(ttl)}
}

// Len returns the number of stored entries, expired or not.
func (c *TTL) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns hit and miss counts since creation.
func (c *TTL) Stats() (hits, misses int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

// Fetch returns the cached value for key, or calls load and caches its result.
// Errors are not cached.
func Fetch[V any](c *TTL, key string, ttl time.Duration, load func() (V, error)) (V, error) {
	if v, ok := c.Get(key); ok {
		if typed, ok := v.(V); ok {
			return typed, nil
		}
	}
	v, err := load()
	if err != nil {
		return v, err
	}
	c.Set(key, v, ttl)
	return v, nil
}

// Key joins parts into a cache key, skipping empty parts.
func Key(prefix string, parts ...string) string {
	var b strings.Builder
	b.WriteString(prefix)
	for _, p := range parts {
		if p == "" {
			continue
		}
		b.WriteString("::")
		b.WriteString(p)
	}
	return b.String()
}
