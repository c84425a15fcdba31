// Package resilience wraps calls to third-party services with bounded
// retries and a per-operation circuit breaker.
package resilience

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// ErrorClassification tells the executor what a failed attempt means.
// RetryAfter is the upstream's own hint and overrides a shorter backoff.
type ErrorClassification struct {
	Retryable     bool
	RecordFailure bool
	RetryAfter    time.Duration
}

type ErrorClassifier func(err error) ErrorClassification

// Observer receives retry and breaker events, typically to feed metrics.
type Observer interface {
	RetryAttempted(operation string)
	BreakerStateChanged(operation, from, to string)
}

type Executor struct {
	cfg      Config
	observer Observer
	sleep    func(ctx context.Context, d time.Duration) error

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[any]
}

func NewExecutor(cfg Config) *Executor {
	return &Executor{
		cfg:      cfg.normalize(),
		sleep:    sleepContext,
		breakers: make(map[string]*gobreaker.CircuitBreaker[any]),
	}
}

// WithObserver attaches an event sink. It must be called before first use.
func (e *Executor) WithObserver(o Observer) *Executor {
	e.observer = o
	return e
}

// Call runs fn through Execute and hands back its value.
func Call[T any](ctx context.Context, e *Executor, operation string, fn func(context.Context) (T, error), classifier ErrorClassifier) (T, error) {
	var out T
	err := e.Execute(ctx, operation, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	}, classifier)
	return out, err
}

// Execute runs fn until it succeeds, fails permanently or runs out of
// attempts. With the breaker enabled the whole retry sequence counts as one
// breaker request.
func (e *Executor) Execute(ctx context.Context, operation string, fn func(context.Context) error, classifier ErrorClassifier) error {
	if fn == nil {
		return fmt.Errorf("resilience: operation callback is nil")
	}
	op := strings.TrimSpace(operation)
	if op == "" {
		op = "unknown"
	}
	if classifier == nil {
		classifier = defaultClassifier
	}

	if !e.cfg.BreakerEnabled {
		return e.retry(ctx, op, fn, classifier)
	}
	_, err := e.breaker(op, classifier).Execute(func() (any, error) {
		return nil, e.retry(ctx, op, fn, classifier)
	})
	return err
}

// State reports the breaker state of an operation, "closed" when it has not
// been used yet.
func (e *Executor) State(operation string) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if cb, ok := e.breakers[operation]; ok {
		return cb.State().String()
	}
	return gobreaker.StateClosed.String()
}

func defaultClassifier(error) ErrorClassification {
	return ErrorClassification{Retryable: false, RecordFailure: true}
}
