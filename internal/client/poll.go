package client

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrPollTimeout is returned when a job is still running after the last
// allowed attempt.
var ErrPollTimeout = errors.New("job polling timed out")

type PollOptions struct {
	Interval    time.Duration
	MaxAttempts int
	// OnStatus is called after every successful poll.
	OnStatus func(JobStatus)
}

func (o PollOptions) withDefaults() PollOptions {
	if o.Interval <= 0 {
		o.Interval = 2 * time.Second
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 90
	}
	return o
}

// WaitForJob polls a job until it reaches done, failed or needs_review.
// Only one status request is in flight at a time and the interval is
// measured from the end of the previous request. Temporary API failures use
// up an attempt; other API errors end polling.
func (c *Client) WaitForJob(ctx context.Context, jobID string, opts PollOptions) (*JobStatus, error) {
	opts = opts.withDefaults()

	timer := time.NewTimer(0)
	defer timer.Stop()

	var lastErr error
	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}

		status, err := c.GetJob(ctx, jobID)
		switch {
		case err == nil:
			lastErr = nil
			if opts.OnStatus != nil {
				opts.OnStatus(*status)
			}
			if status.Finished() {
				return status, nil
			}
		case ctx.Err() != nil:
			return nil, ctx.Err()
		case !retryablePollError(err):
			return nil, err
		default:
			lastErr = err
		}

		timer.Reset(opts.Interval)
	}

	if lastErr != nil {
		return nil, fmt.Errorf("%w after %d attempts: %w", ErrPollTimeout, opts.MaxAttempts, lastErr)
	}
	return nil, fmt.Errorf("%w after %d attempts", ErrPollTimeout, opts.MaxAttempts)
}

func retryablePollError(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Temporary()
	}
	return true
}
