package duckdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/hillcrestdata/getitdone-etl/internal/config"
	"github.com/hillcrestdata/getitdone-etl/internal/observability"
)

// requiredColumns must survive schema drift in the raw exports. Unknown extra
// columns are tolerated; losing one of these fails the build.
var requiredColumns = []string{"service_request_id", "date_requested", "status"}

// Stats summarizes one build run.
type Stats struct {
	RawRows         int64
	CleanRows       int64
	CanonicalRows   int64
	DroppedRows     int64
	DroppedFraction float64
}

// Builder rebuilds the canonical requests parquet and every aggregation
// parquet from whatever raw CSVs are on disk. Each run is a full rebuild;
// outputs are written to a temp file and swapped in only after the query that
// produced them succeeded.
type Builder struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewBuilder creates a Builder.
func NewBuilder(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) *Builder {
	return &Builder{cfg: cfg, logger: logger, metrics: metrics}
}

// Build loads raw CSVs, cleans and deduplicates them into the canonical table,
// exports it as parquet, and recomputes every aggregation file. It returns an
// error when the canonical table cannot be produced, including when the
// malformed-row fraction exceeds the configured threshold.
func (b *Builder) Build(ctx context.Context) (Stats, error) {
	start := time.Now()

	csvFiles, err := b.rawFiles()
	if err != nil {
		return Stats{}, err
	}
	b.logger.Info("build starting", "csv_files", len(csvFiles))

	for _, dir := range []string{b.cfg.ProcessedDir(), b.cfg.AggregatedDir(), filepath.Dir(b.cfg.DBPath())} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return Stats{}, fmt.Errorf("create output dir: %w", err)
		}
	}

	db, err := OpenFile(b.cfg.DBPath())
	if err != nil {
		return Stats{}, err
	}
	defer db.Close()

	stats, err := b.buildCanonical(ctx, db, csvFiles)
	if err != nil {
		return stats, err
	}

	if err := b.buildAggregations(ctx, db); err != nil {
		return stats, err
	}

	b.metrics.RowsLoaded.Set(float64(stats.RawRows))
	b.metrics.RowsDropped.Set(float64(stats.DroppedRows))
	b.metrics.BuildDuration.Observe(time.Since(start).Seconds())
	b.logger.Info("build complete",
		"raw_rows", stats.RawRows,
		"canonical_rows", stats.CanonicalRows,
		"dropped_rows", stats.DroppedRows,
		"duration", time.Since(start),
	)
	return stats, nil
}

// rawFiles lists the raw CSVs in deterministic order.
func (b *Builder) rawFiles() ([]string, error) {
	files, err := filepath.Glob(filepath.Join(b.cfg.RawDir(), "*.csv"))
	if err != nil {
		return nil, fmt.Errorf("glob raw dir: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no CSV files found in %s", b.cfg.RawDir())
	}
	sort.Strings(files)
	return files, nil
}

func (b *Builder) buildCanonical(ctx context.Context, db *sql.DB, csvFiles []string) (Stats, error) {
	var stats Stats

	literals := make([]string, len(csvFiles))
	for i, f := range csvFiles {
		literals[i] = PathLiteral(f)
	}

	// union_by_name absorbs year-to-year schema drift; all_varchar defers every
	// type decision to the explicit TRY_CASTs below.
	loadSQL := fmt.Sprintf(`
		CREATE OR REPLACE TABLE raw_requests AS
		SELECT * FROM read_csv(
			[%s],
			header = true,
			ignore_errors = true,
			filename = true,
			union_by_name = true,
			all_varchar = true
		)`, strings.Join(literals, ", "))
	if _, err := db.ExecContext(ctx, loadSQL); err != nil {
		return stats, fmt.Errorf("load raw CSVs: %w", err)
	}

	if err := b.checkRequiredColumns(ctx, db); err != nil {
		return stats, err
	}

	if err := db.QueryRowContext(ctx, "SELECT count(*) FROM raw_requests").Scan(&stats.RawRows); err != nil {
		return stats, fmt.Errorf("count raw rows: %w", err)
	}
	if stats.RawRows == 0 {
		return stats, errors.New("raw CSVs contained no parseable rows")
	}

	if _, err := db.ExecContext(ctx, cleanSQL); err != nil {
		return stats, fmt.Errorf("clean raw rows: %w", err)
	}
	if err := db.QueryRowContext(ctx, "SELECT count(*) FROM cleaned").Scan(&stats.CleanRows); err != nil {
		return stats, fmt.Errorf("count clean rows: %w", err)
	}

	stats.DroppedRows = stats.RawRows - stats.CleanRows
	stats.DroppedFraction = float64(stats.DroppedRows) / float64(stats.RawRows)
	b.logger.Info("rows cleaned",
		"raw", stats.RawRows, "clean", stats.CleanRows, "dropped", stats.DroppedRows)

	// A high drop fraction means the source schema broke, not that the data is
	// dirty. Fail loudly rather than publish a near-empty dataset.
	if stats.DroppedFraction > b.cfg.MaxDropFraction {
		return stats, fmt.Errorf("dropped %.1f%% of rows, above the %.1f%% threshold",
			stats.DroppedFraction*100, b.cfg.MaxDropFraction*100)
	}

	if _, err := db.ExecContext(ctx, dedupSQL); err != nil {
		return stats, fmt.Errorf("deduplicate requests: %w", err)
	}
	if err := db.QueryRowContext(ctx, "SELECT count(*) FROM requests").Scan(&stats.CanonicalRows); err != nil {
		return stats, fmt.Errorf("count canonical rows: %w", err)
	}

	exportSQL := "SELECT * FROM requests ORDER BY service_request_id"
	if err := b.exportParquet(ctx, db, exportSQL, b.cfg.CanonicalPath(), true); err != nil {
		return stats, fmt.Errorf("export canonical parquet: %w", err)
	}
	b.logger.Info("canonical table exported",
		"path", b.cfg.CanonicalPath(), "rows", stats.CanonicalRows)

	return stats, nil
}

// checkRequiredColumns verifies the load did not lose a required field.
func (b *Builder) checkRequiredColumns(ctx context.Context, db *sql.DB) error {
	rows, err := db.QueryContext(ctx,
		"SELECT column_name FROM information_schema.columns WHERE table_name = 'raw_requests'")
	if err != nil {
		return fmt.Errorf("inspect raw columns: %w", err)
	}
	defer rows.Close()

	present := map[string]bool{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return fmt.Errorf("scan column name: %w", err)
		}
		present[name] = true
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("inspect raw columns: %w", err)
	}

	for _, col := range requiredColumns {
		if !present[col] {
			return fmt.Errorf("raw CSVs are missing required column %q", col)
		}
	}
	return nil
}

func (b *Builder) buildAggregations(ctx context.Context, db *sql.DB) error {
	for _, agg := range aggregations {
		dest := filepath.Join(b.cfg.AggregatedDir(), agg.name+".parquet")
		if err := b.exportParquet(ctx, db, agg.sql, dest, agg.zstd); err != nil {
			return fmt.Errorf("aggregation %s: %w", agg.name, err)
		}
		b.logger.Info("aggregation exported", "name", agg.name)
	}
	return nil
}

// exportParquet writes a query result to destPath via a temp file so readers
// never observe a partially written artifact.
func (b *Builder) exportParquet(ctx context.Context, db *sql.DB, selectSQL, destPath string, zstd bool) error {
	tmp := destPath + ".tmp"
	options := "FORMAT PARQUET"
	if zstd {
		options += ", COMPRESSION ZSTD"
	}

	copySQL := fmt.Sprintf("COPY (%s) TO %s (%s)", selectSQL, PathLiteral(tmp), options)
	if _, err := db.ExecContext(ctx, copySQL); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, destPath); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
