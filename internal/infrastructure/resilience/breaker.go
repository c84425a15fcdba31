package resilience

import (
	"errors"
	"log/slog"

	"github.com/sony/gobreaker/v2"
)

// breaker returns the operation's circuit breaker, creating it on first use.
// Failures the classifier does not record never count toward tripping.
func (e *Executor) breaker(operation string, classifier ErrorClassifier) *gobreaker.CircuitBreaker[any] {
	e.mu.Lock()
	defer e.mu.Unlock()

	if cb, ok := e.breakers[operation]; ok {
		return cb
	}
	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        operation,
		MaxRequests: e.cfg.BreakerHalfOpenMaxCalls,
		Timeout:     e.cfg.BreakerOpenTimeout,
		ReadyToTrip: e.cfg.readyToTrip,
		IsSuccessful: func(err error) bool {
			return err == nil || !classifier(err).RecordFailure
		},
		OnStateChange: e.onStateChange,
	})
	e.breakers[operation] = cb
	return cb
}

func (c Config) readyToTrip(counts gobreaker.Counts) bool {
	if counts.Requests < c.BreakerMinRequests {
		return false
	}
	return float64(counts.TotalFailures)/float64(counts.Requests) >= c.BreakerFailureRatio
}

func (e *Executor) onStateChange(name string, from, to gobreaker.State) {
	slog.Warn("circuit_breaker_state_change", "operation", name, "from", from.String(), "to", to.String())
	if e.observer != nil {
		e.observer.BreakerStateChanged(name, from.String(), to.String())
	}
}

// IsCircuitOpen reports whether err was produced by a breaker refusing the
// call rather than by the upstream.
func IsCircuitOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
