// Package scheduler runs the periodic stale-job sweep inside the worker.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/liliganster/tp-companion/internal/core/usecase"
)

type Reaper interface {
	Reap(ctx context.Context) (usecase.ReapReport, error)
}

type ReapRecorder interface {
	RecordReaped(service string, failed, republished int)
}

// Scheduler wraps robfig/cron. Overlapping sweeps are skipped.
type Scheduler struct {
	cron     *cron.Cron
	reaper   Reaper
	recorder ReapRecorder
	service  string
	spec     string
}

func New(reaper Reaper, recorder ReapRecorder, service, spec string) *Scheduler {
	logger := slogCronLogger{}
	return &Scheduler{
		cron:     cron.New(cron.WithLogger(logger), cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger))),
		reaper:   reaper,
		recorder: recorder,
		service:  service,
		spec:     spec,
	}
}

// Start registers the sweep and runs one immediately so jobs left over from
// a previous worker are handled without waiting for the first tick.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.spec, func() { s.RunOnce(ctx) }); err != nil {
		return fmt.Errorf("cron add reaper %q: %w", s.spec, err)
	}
	s.cron.Start()
	slog.Info("reaper_scheduled", "spec", s.spec)

	go s.RunOnce(ctx)
	return nil
}

// Stop waits for a running sweep to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	slog.Info("reaper_stopped")
}

func (s *Scheduler) RunOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	report, err := s.reaper.Reap(ctx)
	if err != nil {
		slog.Error("reap_failed", "error", err)
	}
	if s.recorder != nil {
		s.recorder.RecordReaped(s.service, report.Failed, report.Republished)
	}
}

type slogCronLogger struct{}

func (slogCronLogger) Info(msg string, keysAndValues ...interface{}) {
	slog.Debug("cron_"+msg, keysAndValues...)
}

func (slogCronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	slog.Error("cron_"+msg, append(keysAndValues, "error", err)...)
}
