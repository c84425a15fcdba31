package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/liliganster/tp-companion/internal/core/domain"
	"github.com/liliganster/tp-companion/internal/core/ports"
)

const (
	stuckJobMessage  = "extraction timed out"
	orphanJobMessage = "upload could not be stored"
)

// StaleJobReaper fails jobs a crashed worker left in processing, fails jobs
// whose upload never reached storage and republishes queued jobs whose event
// was lost. It runs in the worker, the only writer of failed.
type StaleJobReaper struct {
	repo       ports.JobRepository
	queue      ports.MessageQueue
	stuckAfter time.Duration
	now        func() time.Time
}

func NewStaleJobReaper(repo ports.JobRepository, queue ports.MessageQueue, stuckAfter time.Duration) *StaleJobReaper {
	return &StaleJobReaper{repo: repo, queue: queue, stuckAfter: stuckAfter, now: time.Now}
}

type ReapReport struct {
	Failed      int
	Republished int
}

func (r *StaleJobReaper) Reap(ctx context.Context) (ReapReport, error) {
	var report ReapReport
	cutoff := r.now().Add(-r.stuckAfter)

	for _, sweep := range []struct {
		from domain.JobStatus
		msg  string
	}{
		{domain.JobProcessing, stuckJobMessage},
		{domain.JobCreated, orphanJobMessage},
	} {
		failed, err := r.failStale(ctx, sweep.from, sweep.msg, cutoff)
		report.Failed += failed
		if err != nil {
			return report, err
		}
	}

	queued, err := r.repo.ListStale(ctx, domain.JobQueued, cutoff)
	if err != nil {
		return report, fmt.Errorf("list stale queued jobs: %w", err)
	}
	for _, job := range queued {
		if err := r.queue.PublishJobQueued(ctx, job.ID); err != nil {
			slog.Error("reap_republish", "job_id", job.ID, "error", err)
			continue
		}
		report.Republished++
	}

	if report.Failed > 0 || report.Republished > 0 {
		slog.Info("jobs_reaped", "failed", report.Failed, "republished", report.Republished)
	}
	return report, nil
}

func (r *StaleJobReaper) failStale(ctx context.Context, from domain.JobStatus, msg string, cutoff time.Time) (int, error) {
	jobs, err := r.repo.ListStale(ctx, from, cutoff)
	if err != nil {
		return 0, fmt.Errorf("list stale %s jobs: %w", from, err)
	}
	failed := 0
	for _, job := range jobs {
		err := r.repo.Transition(ctx, job.ID, from, domain.JobFailed, msg)
		switch {
		case err == nil:
			failed++
		case domain.IsKind(err, domain.ErrConflict):
		default:
			slog.Error("reap_fail_transition", "job_id", job.ID, "from", from, "error", err)
		}
	}
	return failed, nil
}
