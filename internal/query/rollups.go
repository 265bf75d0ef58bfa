package query

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hillcrestdata/getitdone-etl/internal/domain"
)

// Rollup-backed queries. These read the small precomputed aggregation files
// instead of the canonical table, so they stay fast no matter how the raw
// dataset grows.

// FilterOptions returns the valid sidebar values, cached for the configured TTL.
func (s *Service) FilterOptions(ctx context.Context) (FilterOptions, error) {
	if opts, ok := s.options.get(); ok {
		s.metrics.FilterCache.WithLabelValues("hit").Inc()
		return opts, nil
	}
	s.metrics.FilterCache.WithLabelValues("miss").Inc()

	var opts FilterOptions
	err := s.withConn(func(db *sql.DB) error {
		var err error
		if opts.ServiceNames, err = stringColumn(ctx, db,
			"SELECT DISTINCT service_name FROM "+s.agg("top_problem_types")+" ORDER BY service_name"); err != nil {
			return err
		}
		if opts.CouncilDistricts, err = intColumn(ctx, db,
			"SELECT DISTINCT council_district FROM "+s.agg("resolution_by_district")+" ORDER BY council_district"); err != nil {
			return err
		}
		if opts.Neighborhoods, err = stringColumn(ctx, db,
			"SELECT DISTINCT comm_plan_name FROM "+s.agg("response_by_neighborhood")+" ORDER BY comm_plan_name"); err != nil {
			return err
		}
		if opts.Years, err = intColumn(ctx, db,
			"SELECT DISTINCT request_year FROM "+s.agg("yearly_volume")+" ORDER BY request_year"); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return FilterOptions{}, fmt.Errorf("filter options: %w", err)
	}

	s.options.put(opts)
	return opts, nil
}

// Overview computes dataset-wide KPIs from the yearly and monthly rollups,
// optionally restricted to an inclusive year range (zero means unbounded).
func (s *Service) Overview(ctx context.Context, yearMin, yearMax int) (Overview, error) {
	if yearMin != 0 && yearMax != 0 && yearMin > yearMax {
		return Overview{}, fmt.Errorf("%w: year_min %d after year_max %d", ErrInvalidFilter, yearMin, yearMax)
	}

	var out Overview
	err := s.withConn(func(db *sql.DB) error {
		where, args := yearRange("request_year", yearMin, yearMax)
		var total, closed sql.NullInt64
		q := "SELECT SUM(total_requests), SUM(closed_requests) FROM " + s.agg("yearly_volume") + " " + where
		if err := db.QueryRowContext(ctx, q, args...).Scan(&total, &closed); err != nil {
			return fmt.Errorf("overview volume: %w", err)
		}
		out.TotalRequests = total.Int64
		out.ClosedRequests = closed.Int64
		if out.TotalRequests > 0 {
			out.CloseRatePct = round1(float64(out.ClosedRequests) * 100 / float64(out.TotalRequests))
		}

		where, args = yearRange("YEAR(request_month_start)", yearMin, yearMax)
		var median sql.NullFloat64
		q = "SELECT AVG(median_resolution_days) FROM " + s.agg("monthly_trends") + " " + where
		if err := db.QueryRowContext(ctx, q, args...).Scan(&median); err != nil {
			return fmt.Errorf("overview resolution: %w", err)
		}
		out.MedianResolutionDays = round1(median.Float64)
		return nil
	})
	return out, err
}

// TopProblemTypes returns the highest-volume services, at most limit rows.
func (s *Service) TopProblemTypes(ctx context.Context, limit int) ([]ProblemType, error) {
	if limit <= 0 {
		limit = 10
	}

	var out []ProblemType
	err := s.withConn(func(db *sql.DB) error {
		q := `SELECT service_name, total_requests, closed_requests, open_requests,
		             median_resolution_days, close_rate_pct
		      FROM ` + s.agg("top_problem_types") + `
		      ORDER BY total_requests DESC, service_name LIMIT ?`

		rows, err := db.QueryContext(ctx, q, limit)
		if err != nil {
			return fmt.Errorf("top problem types: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var r ProblemType
			var median sql.NullFloat64
			if err := rows.Scan(&r.ServiceName, &r.TotalRequests, &r.ClosedRequests,
				&r.OpenRequests, &median, &r.CloseRatePct); err != nil {
				return fmt.Errorf("scan problem type: %w", err)
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

// NeighborhoodResponse returns neighborhood response metrics sorted slowest
// first, optionally restricted to one council district (zero means all).
func (s *Service) NeighborhoodResponse(ctx context.Context, district, limit int) ([]NeighborhoodResponse, error) {
	if district < 0 {
		return nil, fmt.Errorf("%w: council district %d", ErrInvalidFilter, district)
	}
	if limit <= 0 {
		limit = 20
	}

	where := ""
	args := []any{}
	if district != 0 {
		where = "WHERE council_district = ?"
		args = append(args, district)
	}
	args = append(args, limit)

	var out []NeighborhoodResponse
	err := s.withConn(func(db *sql.DB) error {
		q := fmt.Sprintf(`
			SELECT comm_plan_name, council_district, total_requests, closed_requests,
			       median_resolution_days, p90_resolution_days, close_rate_pct
			FROM %s %s
			ORDER BY median_resolution_days DESC NULLS LAST, comm_plan_name
			LIMIT ?`, s.agg("response_by_neighborhood"), where)

		rows, err := db.QueryContext(ctx, q, args...)
		if err != nil {
			return fmt.Errorf("neighborhood response: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var r NeighborhoodResponse
			var median, p90 sql.NullFloat64
			if err := rows.Scan(&r.CommPlanName, &r.CouncilDistrict, &r.TotalRequests,
				&r.ClosedRequests, &median, &p90, &r.CloseRatePct); err != nil {
				return fmt.Errorf("scan neighborhood: %w", err)
			}
			if median.Valid {
				r.MedianResolutionDays = &median.Float64
			}
			if p90.Valid {
				r.P90ResolutionDays = &p90.Float64
			}
			out = append(out, r)
		}
		return rows.Err()
	})
	return out, err
}

// DistrictResolution returns per-district resolution metrics. With a service
// name it reads the matching rollup rows directly; without one it reweights
// across services so district averages reflect request volume.
func (s *Service) DistrictResolution(ctx context.Context, serviceName string) ([]DistrictResolution, error) {
	var q string
	var args []any
	if serviceName != "" {
		q = `SELECT council_district, total_requests, closed_requests,
		            avg_resolution_days, median_resolution_days, close_rate_pct
		     FROM ` + s.agg("resolution_by_district") + `
		     WHERE service_name = ?
		     ORDER BY council_district`
		args = []any{serviceName}
	} else {
		q = `SELECT council_district,
		            SUM(total_requests)::BIGINT,
		            SUM(closed_requests)::BIGINT,
		            ROUND(SUM(avg_resolution_days * total_requests) / SUM(total_requests), 1),
		            ROUND(SUM(median_resolution_days * total_requests) / SUM(total_requests), 1),
		            ROUND(SUM(closed_requests) * 100.0 / SUM(total_requests), 1)
		     FROM ` + s.agg("resolution_by_district") + `
		     GROUP BY council_district
		     ORDER BY council_district`
	}

	var out []DistrictResolution
	err := s.withConn(func(db *sql.DB) error {
		rows, err := db.QueryContext(ctx, q, args...)
		if err != nil {
			return fmt.Errorf("district resolution: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var r DistrictResolution
			var avg, median sql.NullFloat64
			if err := rows.Scan(&r.CouncilDistrict, &r.TotalRequests, &r.ClosedRequests,
				&avg, &median, &r.CloseRatePct); err != nil {
				return fmt.Errorf("scan district: %w", err)
			}
			if avg.Valid {
				r.AvgResolutionDays = &avg.Float64
			}
			if median.Valid {
				r.MedianResolutionDays = &median.Float64
			}
			r.Label = domain.DistrictLabel(r.CouncilDistrict)
			out = append(out, r)
		}
		return rows.Err()
	})
	return out, err
}

// MonthlyTrends returns the precomputed monthly trend rows, optionally
// restricted to a year range.
func (s *Service) MonthlyTrends(ctx context.Context, yearMin, yearMax int) ([]MonthlyTrend, error) {
	if yearMin != 0 && yearMax != 0 && yearMin > yearMax {
		return nil, fmt.Errorf("%w: year_min %d after year_max %d", ErrInvalidFilter, yearMin, yearMax)
	}
	where, args := yearRange("YEAR(request_month_start)", yearMin, yearMax)

	var out []MonthlyTrend
	err := s.withConn(func(db *sql.DB) error {
		q := fmt.Sprintf(`
			SELECT request_month_start, total_requests, closed_requests,
			       avg_resolution_days, median_resolution_days
			FROM %s %s
			ORDER BY request_month_start`, s.agg("monthly_trends"), where)

		rows, err := db.QueryContext(ctx, q, args...)
		if err != nil {
			return fmt.Errorf("monthly trends: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var r MonthlyTrend
			var month time.Time
			var avg, median sql.NullFloat64
			if err := rows.Scan(&month, &r.TotalRequests, &r.ClosedRequests, &avg, &median); err != nil {
				return fmt.Errorf("scan monthly trend: %w", err)
			}
			r.Month = month.Format("2006-01-02")
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

// YearlyVolume returns per-year totals, optionally restricted to a year range.
func (s *Service) YearlyVolume(ctx context.Context, yearMin, yearMax int) ([]YearlyVolume, error) {
	if yearMin != 0 && yearMax != 0 && yearMin > yearMax {
		return nil, fmt.Errorf("%w: year_min %d after year_max %d", ErrInvalidFilter, yearMin, yearMax)
	}
	where, args := yearRange("request_year", yearMin, yearMax)

	var out []YearlyVolume
	err := s.withConn(func(db *sql.DB) error {
		q := fmt.Sprintf(`
			SELECT request_year, total_requests, closed_requests
			FROM %s %s
			ORDER BY request_year`, s.agg("yearly_volume"), where)

		rows, err := db.QueryContext(ctx, q, args...)
		if err != nil {
			return fmt.Errorf("yearly volume: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var r YearlyVolume
			if err := rows.Scan(&r.RequestYear, &r.TotalRequests, &r.ClosedRequests); err != nil {
				return fmt.Errorf("scan yearly volume: %w", err)
			}
			out = append(out, r)
		}
		return rows.Err()
	})
	return out, err
}

// CaseOrigins returns request counts by submission channel.
func (s *Service) CaseOrigins(ctx context.Context) ([]CaseOrigin, error) {
	var out []CaseOrigin
	err := s.withConn(func(db *sql.DB) error {
		q := "SELECT channel, request_count FROM " + s.agg("case_origin") +
			" ORDER BY request_count DESC, channel"

		rows, err := db.QueryContext(ctx, q)
		if err != nil {
			return fmt.Errorf("case origins: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var r CaseOrigin
			if err := rows.Scan(&r.Channel, &r.RequestCount); err != nil {
				return fmt.Errorf("scan case origin: %w", err)
			}
			out = append(out, r)
		}
		return rows.Err()
	})
	return out, err
}

// DayHourPatterns returns the day-of-week by hour heatmap cells.
func (s *Service) DayHourPatterns(ctx context.Context) ([]DayHourPattern, error) {
	var out []DayHourPattern
	err := s.withConn(func(db *sql.DB) error {
		q := "SELECT request_dow, request_hour, request_count FROM " + s.agg("day_hour_patterns") +
			" ORDER BY request_dow, request_hour"

		rows, err := db.QueryContext(ctx, q)
		if err != nil {
			return fmt.Errorf("day hour patterns: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var r DayHourPattern
			if err := rows.Scan(&r.RequestDow, &r.RequestHour, &r.RequestCount); err != nil {
				return fmt.Errorf("scan day hour pattern: %w", err)
			}
			out = append(out, r)
		}
		return rows.Err()
	})
	return out, err
}

func yearRange(col string, yearMin, yearMax int) (string, []any) {
	var clauses []string
	var args []any
	if yearMin != 0 {
		clauses = append(clauses, col+" >= ?")
		args = append(args, yearMin)
	}
	if yearMax != 0 {
		clauses = append(clauses, col+" <= ?")
		args = append(args, yearMax)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	where := "WHERE " + clauses[0]
	if len(clauses) == 2 {
		where += " AND " + clauses[1]
	}
	return where, args
}

func stringColumn(ctx context.Context, db *sql.DB, q string) ([]string, error) {
	rows, err := db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func intColumn(ctx context.Context, db *sql.DB, q string) ([]int, error) {
	rows, err := db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
