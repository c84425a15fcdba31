package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore shares windows across API instances.
type RedisStore struct {
	rdb redis.Cmdable
	now func() time.Time
}

func NewRedisStore(rdb redis.Cmdable, now func() time.Time) *RedisStore {
	if now == nil {
		now = time.Now
	}
	return &RedisStore{rdb: rdb, now: now}
}

func (s *RedisStore) Hit(ctx context.Context, key string, window time.Duration) (int64, time.Time, error) {
	var (
		incr *redis.IntCmd
		pttl *redis.DurationCmd
	)
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pttl = pipe.PTTL(ctx, key)
		return nil
	})
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis rate limit hit: %w", err)
	}

	count := incr.Val()
	ttl := pttl.Val()
	// A key without expiry is either fresh or lost its PEXPIRE to a crash.
	if count == 1 || ttl < 0 {
		if err := s.rdb.PExpire(ctx, key, window).Err(); err != nil {
			return 0, time.Time{}, fmt.Errorf("redis rate limit expire: %w", err)
		}
		ttl = window
	}
	return count, s.now().Add(ttl), nil
}

// NewRedisClient parses a redis:// URL and verifies the connection.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis.ParseURL: %w", err)
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return rdb, nil
}
