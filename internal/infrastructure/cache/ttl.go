// Package cache holds the process-wide best-effort caches. Entries live in
// memory for the lifetime of the process, expire by TTL and are dropped all
// at once when the capacity ceiling is reached.
package cache

import (
	"sync"
	"time"
)

type Clock func() time.Time

type Entry[V any] struct {
	Key       string
	Value     V
	ExpiresAt time.Time
}

type TTLCache[V any] struct {
	mu       sync.RWMutex
	entries  map[string]Entry[V]
	capacity int
	now      Clock
}

func NewTTLCache[V any](capacity int, now Clock) *TTLCache[V] {
	if capacity <= 0 {
		capacity = 1000
	}
	if now == nil {
		now = time.Now
	}
	return &TTLCache[V]{
		entries:  make(map[string]Entry[V]),
		capacity: capacity,
		now:      now,
	}
}

// Get never returns an entry once now >= ExpiresAt.
func (c *TTLCache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	var zero V
	if !ok {
		return zero, false
	}
	if !c.now().Before(entry.ExpiresAt) {
		c.mu.Lock()
		if current, still := c.entries[key]; still && current.ExpiresAt.Equal(entry.ExpiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return zero, false
	}
	return entry.Value, true
}

// Put stores value until ttl elapses. Non-positive ttls are ignored.
func (c *TTLCache[V]) Put(key string, value V, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	c.PutUntil(key, value, c.now().Add(ttl))
}

// PutUntil stores value with an absolute expiry; expiries not in the future
// are not cached.
func (c *TTLCache[V]) PutUntil(key string, value V, expiresAt time.Time) {
	if !expiresAt.After(c.now()) {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.capacity {
		c.entries = make(map[string]Entry[V], c.capacity)
	}
	c.entries[key] = Entry[V]{Key: key, Value: value, ExpiresAt: expiresAt}
}

func (c *TTLCache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *TTLCache[V]) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]Entry[V], c.capacity)
	c.mu.Unlock()
}

// Purge drops expired entries and returns how many were removed.
func (c *TTLCache[V]) Purge() int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for key, entry := range c.entries {
		if !now.Before(entry.ExpiresAt) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}
