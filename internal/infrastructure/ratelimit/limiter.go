// Package ratelimit bounds request frequency per (operation name, identifier)
// pair with fixed windows. A window opens on the first hit and lasts exactly
// its configured length; counters live in a pluggable Store.
package ratelimit

import (
	"context"
	"log/slog"
	"time"
)

// Store increments the counter for key and reports the running count and the
// moment the current window closes. The window opens on the first hit.
type Store interface {
	Hit(ctx context.Context, key string, window time.Duration) (count int64, resetAt time.Time, err error)
}

type Decision struct {
	Allowed    bool
	Count      int64
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

type Limiter struct {
	store Store
	now   func() time.Time
}

func NewLimiter(store Store, now func() time.Time) *Limiter {
	if now == nil {
		now = time.Now
	}
	return &Limiter{store: store, now: now}
}

// Allow records one call against (name, identifier). Calls beyond limit inside
// the open window are rejected until it elapses. A failing store lets the call
// through.
func (l *Limiter) Allow(ctx context.Context, name, identifier string, limit int, window time.Duration) Decision {
	if limit <= 0 || window <= 0 {
		return Decision{Allowed: true, Limit: limit}
	}

	count, resetAt, err := l.store.Hit(ctx, Key(name, identifier), window)
	if err != nil {
		slog.Warn("rate_limit_store_failed", "name", name, "error", err)
		return Decision{Allowed: true, Limit: limit, Remaining: limit}
	}

	d := Decision{
		Allowed: count <= int64(limit),
		Count:   count,
		Limit:   limit,
		ResetAt: resetAt,
	}
	if d.Allowed {
		d.Remaining = limit - int(count)
		return d
	}
	d.RetryAfter = resetAt.Sub(l.now())
	if d.RetryAfter < 0 {
		d.RetryAfter = 0
	}
	return d
}

func Key(name, identifier string) string {
	return "rl:" + name + ":" + identifier
}
