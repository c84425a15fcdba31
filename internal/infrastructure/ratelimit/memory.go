package ratelimit

import (
	"context"
	"sync"
	"time"
)

const memorySweepThreshold = 10000

type bucket struct {
	count   int64
	resetAt time.Time
}

// MemoryStore keeps windows in process memory. Counters are per instance.
type MemoryStore struct {
	mu      sync.Mutex
	buckets map[string]bucket
	now     func() time.Time
}

func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{buckets: make(map[string]bucket), now: now}
}

func (s *MemoryStore) Hit(_ context.Context, key string, window time.Duration) (int64, time.Time, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.buckets[key]
	if !ok || !now.Before(b.resetAt) {
		if len(s.buckets) >= memorySweepThreshold {
			s.sweep(now)
		}
		b = bucket{resetAt: now.Add(window)}
	}
	b.count++
	s.buckets[key] = b
	return b.count, b.resetAt, nil
}

func (s *MemoryStore) sweep(now time.Time) {
	for key, b := range s.buckets {
		if !now.Before(b.resetAt) {
			delete(s.buckets, key)
		}
	}
}
