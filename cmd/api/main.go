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

	httpadapter "github.com/liliganster/tp-companion/internal/adapters/http"
	mcpadapter "github.com/liliganster/tp-companion/internal/adapters/mcp"
	"github.com/liliganster/tp-companion/internal/bootstrap"
	"github.com/liliganster/tp-companion/internal/config"
	"github.com/liliganster/tp-companion/internal/observability/logging"
	"github.com/liliganster/tp-companion/internal/observability/metrics"
)

func main() {
	cfg := config.Load()
	slog.SetDefault(logging.New("api", cfg.LogLevel, cfg.LogFormat))

	if err := cfg.Validate(); err != nil {
		slog.Error("config_invalid", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpMetrics := metrics.NewHTTPServerMetrics("api")
	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{Pipeline: httpMetrics.Pipeline()})
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	var mcpHandler http.Handler
	if cfg.MCPEnabled {
		mcpHandler = mcpadapter.NewHandler(app.Factors)
	}

	router := httpadapter.NewRouter(cfg, httpadapter.Services{
		Sessions:   app.Sessions,
		Expenses:   app.Expenses,
		CallSheets: app.CallSheets,
		Jobs:       app.Jobs,
		Reviews:    app.Reviews,
		Factors:    app.Factors,
		Quota:      app.Quota,
		Limiter:    app.Limiter,
		Metrics:    httpMetrics,
		MCP:        mcpHandler,
	}).Handler()
	server := &http.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      90 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		slog.Info("api_listening", "port", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("api_server_failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("api_shutdown_failed", "error", err)
	}
}
