package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestGetHonoursExpiryBoundary(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewTTLCache[float64](10, clock.Now)

	c.Put("fuel:diesel:^21:v1", 2.68, time.Second)

	clock.Advance(time.Second - time.Millisecond)
	v, ok := c.Get("fuel:diesel:^21:v1")
	require.True(t, ok, "entry must be served 1ms before expiry")
	assert.Equal(t, 2.68, v)

	clock.Advance(time.Millisecond)
	_, ok = c.Get("fuel:diesel:^21:v1")
	assert.False(t, ok, "entry must not be served at expiresAt")
	assert.Equal(t, 0, c.Len(), "expired entry is dropped on read")
}

func TestPutUntilSkipsPastExpiry(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewTTLCache[string](10, clock.Now)

	c.PutUntil("a", "x", clock.Now())
	c.PutUntil("b", "y", clock.Now().Add(-time.Minute))
	c.Put("c", "z", 0)

	assert.Equal(t, 0, c.Len())
}

func TestCapacityClearsWholesale(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewTTLCache[int](3, clock.Now)

	for i := 0; i < 3; i++ {
		c.Put(fmt.Sprintf("k%d", i), i, time.Hour)
	}
	require.Equal(t, 3, c.Len())

	c.Put("k0", 42, time.Hour)
	assert.Equal(t, 3, c.Len(), "overwriting an existing key does not clear")

	c.Put("k3", 3, time.Hour)
	assert.Equal(t, 1, c.Len())
	_, ok := c.Get("k0")
	assert.False(t, ok)
	v, ok := c.Get("k3")
	require.True(t, ok)
	assert.Equal(t, 3, v)
}

func TestPurgeRemovesOnlyExpired(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewTTLCache[int](10, clock.Now)
	c.Put("short", 1, time.Minute)
	c.Put("long", 2, time.Hour)

	clock.Advance(2 * time.Minute)
	assert.Equal(t, 1, c.Purge())
	assert.Equal(t, 1, c.Len())
}
