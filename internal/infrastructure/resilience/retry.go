package resilience

import (
	"context"
	"log/slog"
	"time"
)

func (e *Executor) retry(ctx context.Context, operation string, fn func(context.Context) error, classifier ErrorClassifier) error {
	var err error
	for attempt := 1; attempt <= e.cfg.RetryMaxAttempts; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			if err != nil {
				return err
			}
			return ctxErr
		}

		if err = fn(ctx); err == nil {
			return nil
		}
		if attempt == e.cfg.RetryMaxAttempts {
			break
		}

		class := classifier(err)
		if !class.Retryable {
			return err
		}
		wait, ok := e.cfg.waitBefore(attempt+1, class.RetryAfter)
		if !ok {
			slog.Warn("retry_skipped", "operation", operation, "retry_after", class.RetryAfter.String(), "error", err)
			return err
		}

		slog.Warn("retry_attempt",
			"operation", operation,
			"attempt", attempt,
			"max_attempts", e.cfg.RetryMaxAttempts,
			"backoff_ms", wait.Milliseconds(),
			"error", err,
		)
		if e.observer != nil {
			e.observer.RetryAttempted(operation)
		}
		if e.sleep(ctx, wait) != nil {
			return err
		}
	}
	return err
}

// waitBefore is the pause ahead of the given attempt (2 for the first
// retry). An upstream hint longer than RetryAfterCap means the call should
// not be repeated now.
func (c Config) waitBefore(attempt int, hint time.Duration) (time.Duration, bool) {
	wait := c.RetryInitialBackoff
	for i := 2; i < attempt; i++ {
		wait = time.Duration(float64(wait) * c.RetryMultiplier)
		if wait >= c.RetryMaxBackoff {
			break
		}
	}
	if wait > c.RetryMaxBackoff {
		wait = c.RetryMaxBackoff
	}
	if hint > 0 {
		if hint > c.RetryAfterCap {
			return 0, false
		}
		if hint > wait {
			wait = hint
		}
	}
	return wait, true
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
