// Command api serves the dashboard query API over the parquet artifacts
// produced by cmd/pipeline. It holds no database connection open between
// requests; /readyz reports 503 until the artifacts exist on disk.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/hillcrestdata/getitdone-etl/internal/api"
	"github.com/hillcrestdata/getitdone-etl/internal/config"
	"github.com/hillcrestdata/getitdone-etl/internal/observability"
	"github.com/hillcrestdata/getitdone-etl/internal/query"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	queries := query.NewService(cfg, logger, metrics)
	srv := api.NewServer(cfg.HTTPAddr, queries, logger, metrics)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
}
