// Command validate runs data integrity checks over the built parquet
// artifacts and prints a quality report: resolution sanity, geographic
// bounds, status consistency, duplicate IDs, volume anomalies, and
// aggregation file presence.
//
// Usage:
//
//	go run ./cmd/validate              # uses DATA_DIR from the environment
//	go run ./cmd/validate -data-dir ./data
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hillcrestdata/getitdone-etl/internal/config"
	"github.com/hillcrestdata/getitdone-etl/internal/domain"
	"github.com/hillcrestdata/getitdone-etl/internal/duckdb"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
	notes  []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) notef(format string, args ...any) {
	p.notes = append(p.notes, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	dataDir := flag.String("data-dir", "", "data directory (defaults to DATA_DIR from the environment)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load config: %v\n", err)
		os.Exit(1)
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}

	os.Exit(run(cfg))
}

func run(cfg *config.Config) int {
	ctx := context.Background()

	if _, err := os.Stat(cfg.CanonicalPath()); err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %s not found, run the pipeline first\n", cfg.CanonicalPath())
		return 1
	}

	db, err := duckdb.OpenMemory()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: open query engine: %v\n", err)
		return 1
	}
	defer db.Close()

	src := duckdb.PathLiteral(cfg.CanonicalPath())

	fmt.Println("=== Get It Done 311 Data Validation ===")
	fmt.Println()

	total := scalarInt(ctx, db, "SELECT COUNT(*) FROM "+src)
	var minDate, maxDate sql.NullString
	db.QueryRowContext(ctx, //nolint:errcheck // report header only
		"SELECT MIN(date_requested)::DATE::VARCHAR, MAX(date_requested)::DATE::VARCHAR FROM "+src).
		Scan(&minDate, &maxDate)
	fmt.Printf("Dataset: %d rows, %s to %s\n", total, minDate.String, maxDate.String)

	phases := []*phase{
		checkResolutionDays(ctx, db, src),
		checkGeoBounds(ctx, db, src),
		checkStatusConsistency(ctx, db, src),
		checkExtremeResolution(ctx, db, src),
		checkMissingFields(ctx, db, src, total),
		checkDuplicateIDs(ctx, db, src),
		checkStatusDistribution(ctx, db, src),
		checkYearlyAnomalies(ctx, db, src),
		checkAggregationFiles(ctx, db, cfg),
		checkMapPointsConsistency(ctx, db, cfg, src),
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "PASS"
		if !p.passed() {
			status = fmt.Sprintf("FAIL (%d issues)", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-44s %s\n", p.name, status)
	}

	for _, p := range phases {
		if p.passed() && len(p.notes) == 0 {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for _, n := range p.notes {
			fmt.Printf("  note: %s\n", n)
		}
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// scalarInt runs a single-value query, returning 0 on error. Validation
// queries run over artifacts this process just statted; a query error shows
// up as an implausible zero in the report rather than a crash.
func scalarInt(ctx context.Context, db *sql.DB, q string, args ...any) int64 {
	var v sql.NullInt64
	db.QueryRowContext(ctx, q, args...).Scan(&v) //nolint:errcheck
	return v.Int64
}

func checkResolutionDays(ctx context.Context, db *sql.DB, src string) *phase {
	p := &phase{name: "1. Negative resolution days"}
	neg := scalarInt(ctx, db, "SELECT COUNT(*) FROM "+src+" WHERE resolution_days < 0")
	if neg > 0 {
		p.errorf("%d records closed before they were requested", neg)
	}
	return p
}

func checkGeoBounds(ctx context.Context, db *sql.DB, src string) *phase {
	p := &phase{name: "2. Geographic outliers"}
	q := fmt.Sprintf(`SELECT COUNT(*) FROM %s
		WHERE lat IS NOT NULL AND lng IS NOT NULL
		  AND (lat < %v OR lat > %v OR lng < %v OR lng > %v)`,
		src, domain.SDLatMin, domain.SDLatMax, domain.SDLngMin, domain.SDLngMax)
	if n := scalarInt(ctx, db, q); n > 0 {
		p.errorf("%d geolocated records outside San Diego bounds", n)
	}
	return p
}

func checkStatusConsistency(ctx context.Context, db *sql.DB, src string) *phase {
	p := &phase{name: "3. Status/date consistency"}
	n := scalarInt(ctx, db,
		"SELECT COUNT(*) FROM "+src+" WHERE status = ? AND date_closed IS NULL", domain.StatusClosed)
	if n > 0 {
		p.errorf("%d records marked closed with no date_closed", n)
	}
	n = scalarInt(ctx, db,
		"SELECT COUNT(*) FROM "+src+" WHERE status = ? AND resolution_days IS NOT NULL", domain.StatusOpen)
	if n > 0 {
		p.errorf("%d open records carry a resolution time", n)
	}
	return p
}

func checkExtremeResolution(ctx context.Context, db *sql.DB, src string) *phase {
	p := &phase{name: "4. Extreme resolution times"}
	n := scalarInt(ctx, db, "SELECT COUNT(*) FROM "+src+" WHERE resolution_days > 730")
	if n > 0 {
		maxRes := scalarInt(ctx, db, "SELECT MAX(resolution_days) FROM "+src)
		p.notef("%d records took over two years to resolve (max %dd)", n, maxRes)
	}
	return p
}

func checkMissingFields(ctx context.Context, db *sql.DB, src string, total int64) *phase {
	p := &phase{name: "5. Missing critical fields"}
	if total == 0 {
		p.errorf("dataset is empty")
		return p
	}

	fields := []struct {
		name      string
		condition string
	}{
		{"service_name", "service_name IS NULL OR service_name = ''"},
		{"council_district", "council_district IS NULL"},
		{"lat/lng", "lat IS NULL OR lng IS NULL"},
		{"comm_plan_name", "comm_plan_name IS NULL OR comm_plan_name = ''"},
		{"status", "status IS NULL OR status = ''"},
	}
	for _, f := range fields {
		n := scalarInt(ctx, db, "SELECT COUNT(*) FROM "+src+" WHERE "+f.condition)
		pct := float64(n) * 100 / float64(total)
		switch {
		case pct > 1:
			p.errorf("%s: %d missing (%.1f%%)", f.name, n, pct)
		case n > 0:
			p.notef("%s: %d missing (%.1f%%)", f.name, n, pct)
		}
	}
	return p
}

func checkDuplicateIDs(ctx context.Context, db *sql.DB, src string) *phase {
	p := &phase{name: "6. Duplicate service_request_id"}
	n := scalarInt(ctx, db, `SELECT COUNT(*) FROM (
		SELECT service_request_id FROM `+src+`
		GROUP BY service_request_id HAVING COUNT(*) > 1)`)
	if n > 0 {
		p.errorf("%d IDs appear more than once", n)
	}
	return p
}

func checkStatusDistribution(ctx context.Context, db *sql.DB, src string) *phase {
	p := &phase{name: "7. Status distribution"}
	rows, err := db.QueryContext(ctx, `SELECT status, COUNT(*),
		ROUND(COUNT(*) * 100.0 / SUM(COUNT(*)) OVER (), 1)
		FROM `+src+` GROUP BY status ORDER BY COUNT(*) DESC`)
	if err != nil {
		p.errorf("query failed: %v", err)
		return p
	}
	defer rows.Close()

	seen := map[string]bool{}
	for rows.Next() {
		var status string
		var count int64
		var pct float64
		if err := rows.Scan(&status, &count, &pct); err != nil {
			p.errorf("scan failed: %v", err)
			return p
		}
		seen[status] = true
		p.notef("%s: %d (%.1f%%)", status, count, pct)
		if status != domain.StatusOpen && status != domain.StatusClosed {
			p.errorf("unexpected status value %q (%d rows)", status, count)
		}
	}
	if err := rows.Err(); err != nil {
		p.errorf("scan failed: %v", err)
	}
	if len(seen) == 0 {
		p.errorf("no status values found")
	}
	return p
}

func checkYearlyAnomalies(ctx context.Context, db *sql.DB, src string) *phase {
	p := &phase{name: "8. Year-over-year volume"}
	rows, err := db.QueryContext(ctx, `SELECT request_year, COUNT(*) FROM `+src+`
		WHERE request_year IS NOT NULL GROUP BY request_year ORDER BY request_year`)
	if err != nil {
		p.errorf("query failed: %v", err)
		return p
	}
	defer rows.Close()

	var prevYear int
	var prevCount int64
	for rows.Next() {
		var year int
		var count int64
		if err := rows.Scan(&year, &count); err != nil {
			p.errorf("scan failed: %v", err)
			return p
		}
		if prevCount > 0 {
			change := float64(count-prevCount) * 100 / float64(prevCount)
			// Partial years swing wildly; over 50% between full years is
			// worth a look but is not a failure.
			if change > 50 || change < -50 {
				p.notef("%d -> %d: volume changed %+.0f%%", prevYear, year, change)
			}
		}
		prevYear, prevCount = year, count
	}
	if err := rows.Err(); err != nil {
		p.errorf("scan failed: %v", err)
	}
	return p
}

func checkAggregationFiles(ctx context.Context, db *sql.DB, cfg *config.Config) *phase {
	p := &phase{name: "9. Aggregation files"}
	for _, name := range duckdb.AggregationNames() {
		path := filepath.Join(cfg.AggregatedDir(), name+".parquet")
		info, err := os.Stat(path)
		if err != nil {
			p.errorf("%s: missing", name)
			continue
		}
		if info.Size() == 0 {
			p.errorf("%s: empty file", name)
			continue
		}
		if n := scalarInt(ctx, db, "SELECT COUNT(*) FROM "+duckdb.PathLiteral(path)); n == 0 {
			p.errorf("%s: zero rows", name)
		}
	}
	return p
}

func checkMapPointsConsistency(ctx context.Context, db *sql.DB, cfg *config.Config, src string) *phase {
	p := &phase{name: "10. Map points consistency"}
	mapPath := filepath.Join(cfg.AggregatedDir(), "map_points.parquet")
	if _, err := os.Stat(mapPath); err != nil {
		p.errorf("map_points.parquet missing")
		return p
	}

	mapCount := scalarInt(ctx, db, "SELECT COUNT(*) FROM "+duckdb.PathLiteral(mapPath))
	geoCount := scalarInt(ctx, db, fmt.Sprintf(`SELECT COUNT(*) FROM %s
		WHERE lat BETWEEN %v AND %v AND lng BETWEEN %v AND %v`,
		src, domain.SDLatMin, domain.SDLatMax, domain.SDLngMin, domain.SDLngMax))
	if mapCount != geoCount {
		p.errorf("map_points has %d rows but the canonical table has %d geolocated in-bounds rows",
			mapCount, geoCount)
	}
	return p
}
