package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/liliganster/tp-companion/internal/adapters/scheduler"
	"github.com/liliganster/tp-companion/internal/bootstrap"
	"github.com/liliganster/tp-companion/internal/config"
	"github.com/liliganster/tp-companion/internal/observability/logging"
	"github.com/liliganster/tp-companion/internal/observability/metrics"
)

const serviceName = "worker"

func main() {
	cfg := config.Load()
	slog.SetDefault(logging.New(serviceName, cfg.LogLevel, cfg.LogFormat))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workerMetrics := metrics.NewWorkerMetrics(serviceName)
	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{
		Pipeline: workerMetrics.Pipeline(),
		OnLag: func(lag time.Duration) {
			workerMetrics.ObserveQueueLag(serviceName, lag)
		},
	})
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           workerMetrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		slog.Info("worker_metrics_listening", "port", cfg.WorkerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("worker_metrics_failed", "error", err)
		}
	}()

	reaper := scheduler.New(app.Reaper, workerMetrics, serviceName, cfg.WorkerReapSchedule)
	if err := reaper.Start(ctx); err != nil {
		slog.Error("reaper_start_failed", "error", err)
		os.Exit(1)
	}

	slog.Info("worker_subscribed", "subject", cfg.NATSSubject)
	err = app.Queue.SubscribeJobQueued(ctx, func(handlerCtx context.Context, jobID string) error {
		workerMetrics.StartJob()
		started := time.Now()
		err := app.Processor.ProcessByID(handlerCtx, jobID)
		workerMetrics.FinishJob(serviceName, time.Since(started), err)
		return err
	})
	if err != nil {
		slog.Error("worker_subscribe_failed", "error", err)
	}

	reaper.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsServer.Shutdown(shutdownCtx)
}
