// Command pipeline runs one ingest-and-build cycle: download the Get It Done
// CSV exports that are missing from data/raw, then rebuild the canonical and
// aggregation parquet files. Download failures are logged and tolerated; a
// failed build exits nonzero.
//
// Usage:
//
//	go run ./cmd/pipeline            # fetch missing sources, then build
//	go run ./cmd/pipeline -skip-ingest
//	go run ./cmd/pipeline -force     # redownload every source
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hillcrestdata/getitdone-etl/internal/config"
	"github.com/hillcrestdata/getitdone-etl/internal/duckdb"
	"github.com/hillcrestdata/getitdone-etl/internal/ingest"
	"github.com/hillcrestdata/getitdone-etl/internal/observability"
	"github.com/hillcrestdata/getitdone-etl/internal/pipeline"
)

func main() {
	skipIngest := flag.Bool("skip-ingest", false, "skip downloading and build from the raw CSVs already on disk")
	force := flag.Bool("force", false, "redownload sources even when the raw file exists")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	sources := ingest.Catalog(cfg.BaseURL, cfg.StartYear)
	fetcher := ingest.NewFetcher(sources, cfg.RawDir(), cfg.DownloadTimeout,
		cfg.IngestConcurrency, *force, logger, metrics)
	builder := duckdb.NewBuilder(cfg, logger, metrics)

	p := pipeline.New(fetcher, builder, *skipIngest, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	result, err := p.Run(ctx)
	if err != nil {
		logger.Error("pipeline run failed", "run_id", result.RunID, "error", err)
		os.Exit(1)
	}
}
