// Package query is the dashboard query layer. It turns sidebar filter state
// into parameterized SQL over the parquet artifacts and returns result sets
// small enough to render directly. Every query opens its own in-memory DuckDB
// handle scoped to that single query and closes it before returning, so
// concurrent dashboard sessions share no mutable state and peak memory stays
// bounded by the query engine's own scan, never by the dataset size.
package query

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/hillcrestdata/getitdone-etl/internal/config"
	"github.com/hillcrestdata/getitdone-etl/internal/domain"
	"github.com/hillcrestdata/getitdone-etl/internal/duckdb"
	"github.com/hillcrestdata/getitdone-etl/internal/observability"
)

// Service executes dashboard queries over the built artifacts.
type Service struct {
	canonicalPath string
	aggDir        string
	mapSampleMax  int
	logger        *slog.Logger
	metrics       *observability.Metrics
	options       *optionsCache
}

// NewService creates a query Service over the configured artifact paths.
func NewService(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) *Service {
	return &Service{
		canonicalPath: cfg.CanonicalPath(),
		aggDir:        cfg.AggregatedDir(),
		mapSampleMax:  cfg.MapSampleMax,
		logger:        logger,
		metrics:       metrics,
		options:       newOptionsCache(cfg.FilterCacheTTL),
	}
}

// CheckReadiness reports whether every artifact the dashboard needs exists
// non-empty on disk.
func (s *Service) CheckReadiness(_ context.Context) error {
	paths := []string{s.canonicalPath}
	for _, name := range duckdb.AggregationNames() {
		paths = append(paths, filepath.Join(s.aggDir, name+".parquet"))
	}

	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil || info.Size() == 0 {
			s.metrics.ArtifactsReady.Set(0)
			return fmt.Errorf("artifact %s not built", filepath.Base(p))
		}
	}

	s.metrics.ArtifactsReady.Set(1)
	return nil
}

// withConn runs fn against a fresh handle, closed before withConn returns.
func (s *Service) withConn(fn func(db *sql.DB) error) error {
	db, err := duckdb.OpenMemory()
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(db)
}

func (s *Service) canonical() string {
	return duckdb.PathLiteral(s.canonicalPath)
}

func (s *Service) agg(name string) string {
	return duckdb.PathLiteral(filepath.Join(s.aggDir, name+".parquet"))
}

// Summary computes the KPI row for the current filter slice from the
// canonical table.
func (s *Service) Summary(ctx context.Context, f FilterState) (Summary, error) {
	if err := f.Validate(); err != nil {
		return Summary{}, err
	}
	where, args := f.whereClause(true)

	var out Summary
	err := s.withConn(func(db *sql.DB) error {
		q := fmt.Sprintf(`
			SELECT
			    COUNT(*),
			    COALESCE(SUM(CASE WHEN status = '%s' THEN 1 ELSE 0 END), 0),
			    MEDIAN(resolution_days)
			FROM %s %s`, domain.StatusClosed, s.canonical(), where)

		var median sql.NullFloat64
		if err := db.QueryRowContext(ctx, q, args...).Scan(&out.TotalRequests, &out.ClosedRequests, &median); err != nil {
			return fmt.Errorf("summary query: %w", err)
		}
		if median.Valid {
			out.MedianResolutionDays = &median.Float64
		}
		if out.TotalRequests > 0 {
			out.CloseRatePct = round1(float64(out.ClosedRequests) * 100 / float64(out.TotalRequests))
		}
		return nil
	})
	return out, err
}

// MonthlySeries returns the filtered per-month volume and median resolution.
func (s *Service) MonthlySeries(ctx context.Context, f FilterState) ([]MonthlyPoint, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	where, args := f.whereClause(true)

	var out []MonthlyPoint
	err := s.withConn(func(db *sql.DB) error {
		q := fmt.Sprintf(`
			SELECT request_month_start, COUNT(*), MEDIAN(resolution_days)
			FROM %s %s
			GROUP BY request_month_start
			ORDER BY request_month_start`, s.canonical(), where)

		rows, err := db.QueryContext(ctx, q, args...)
		if err != nil {
			return fmt.Errorf("monthly series query: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var month time.Time
			var p MonthlyPoint
			var median sql.NullFloat64
			if err := rows.Scan(&month, &p.TotalRequests, &median); err != nil {
				return fmt.Errorf("scan monthly point: %w", err)
			}
			p.Month = month.Format("2006-01-02")
			if median.Valid {
				p.MedianResolutionDays = &median.Float64
			}
			out = append(out, p)
		}
		return rows.Err()
	})
	return out, err
}

// MapSample returns a bounded random sample of report locations for the map,
// sampled without replacement. The limit is clamped to the configured maximum;
// zero or negative means the maximum.
func (s *Service) MapSample(ctx context.Context, f FilterState, limit int) ([]MapPoint, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > s.mapSampleMax {
		limit = s.mapSampleMax
	}
	// map_points carries no status column; the clause drops that condition.
	where, args := f.whereClause(false)
	args = append(args, limit)

	var out []MapPoint
	err := s.withConn(func(db *sql.DB) error {
		q := fmt.Sprintf(`
			SELECT lat, lng FROM %s %s
			ORDER BY random()
			LIMIT ?`, s.agg("map_points"), where)

		rows, err := db.QueryContext(ctx, q, args...)
		if err != nil {
			return fmt.Errorf("map sample query: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var p MapPoint
			if err := rows.Scan(&p.Lat, &p.Lng); err != nil {
				return fmt.Errorf("scan map point: %w", err)
			}
			out = append(out, p)
		}
		return rows.Err()
	})
	return out, err
}

// ProblemBreakdown returns per-service metrics for the filtered slice.
func (s *Service) ProblemBreakdown(ctx context.Context, f FilterState) ([]ProblemRow, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	where, args := f.whereClause(true)

	var out []ProblemRow
	err := s.withConn(func(db *sql.DB) error {
		q := fmt.Sprintf(`
			SELECT
			    service_name,
			    COUNT(*)                                            AS total_requests,
			    SUM(CASE WHEN status = '%s' THEN 1 ELSE 0 END)      AS closed_requests,
			    ROUND(AVG(resolution_days), 1)                      AS avg_resolution_days,
			    MEDIAN(resolution_days)                             AS median_resolution_days,
			    ROUND(SUM(CASE WHEN status = '%s' THEN 1 ELSE 0 END) * 100.0 / COUNT(*), 1) AS close_rate_pct
			FROM %s %s
			GROUP BY service_name
			ORDER BY total_requests DESC, service_name`,
			domain.StatusClosed, domain.StatusClosed, s.canonical(), where)

		rows, err := db.QueryContext(ctx, q, args...)
		if err != nil {
			return fmt.Errorf("problem breakdown query: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var r ProblemRow
			var avg, median sql.NullFloat64
			if err := rows.Scan(&r.ServiceName, &r.TotalRequests, &r.ClosedRequests, &avg, &median, &r.CloseRatePct); err != nil {
				return fmt.Errorf("scan problem row: %w", err)
			}
			if avg.Valid {
				r.AvgResolutionDays = &avg.Float64
			}
			if median.Valid {
				r.MedianResolutionDays = &median.Float64
			}
			out = append(out, r)
		}
		return rows.Err()
	})
	return out, err
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
