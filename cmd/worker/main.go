package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ybolotov/deep-research/internal/bootstrap"
	"github.com/ybolotov/deep-research/internal/config"
	"github.com/ybolotov/deep-research/internal/observability/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	slog.SetDefault(logging.NewJSONLogger("worker", cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, "worker", cfg)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	metricsServer := &http.Server{
		Addr:    ":" + cfg.WorkerMetricsPort,
		Handler: app.SessionMetrics.Handler(),
	}
	go func() {
		slog.Info("worker metrics listening", "port", cfg.WorkerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("worker metrics server error", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	slog.Info("worker subscribed", "subject", cfg.NATSSubject)
	err = app.Queue.SubscribeResearchRequested(ctx, func(handlerCtx context.Context, sessionID, query string) error {
		runCtx, cancel := context.WithTimeout(handlerCtx, 30*time.Minute)
		defer cancel()

		result, err := app.Research.Run(runCtx, sessionID, query)
		if err != nil {
			slog.Error("research session failed", "session_id", sessionID, "error", err)
			return err
		}
		slog.Info("research session finished",
			"session_id", result.SessionID,
			"refused", result.Refused,
			"refinements", result.Refinements,
			"dispatches", result.Dispatches,
			"documents", result.Documents,
			"chunks", result.Chunks,
		)

		if app.Archive != nil {
			if path, err := app.Archive.SaveReport(runCtx, result.SessionID, result.Report); err != nil {
				slog.Warn("report archive failed", "session_id", result.SessionID, "error", err)
			} else {
				slog.Info("report archived", "session_id", result.SessionID, "path", path)
			}
		}
		return nil
	})
	if err != nil {
		log.Fatalf("worker subscribe error: %v", err)
	}
}
