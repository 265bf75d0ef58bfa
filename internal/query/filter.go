package query

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hillcrestdata/getitdone-etl/internal/domain"
)

// ErrInvalidFilter marks filter-construction errors. The API surfaces these as
// 400s; they are never fatal.
var ErrInvalidFilter = errors.New("invalid filter")

// FilterState is the dashboard's sidebar selection. Zero values mean
// unfiltered. The same state builds the identical WHERE clause for every
// per-view query so all panels agree on what slice they are showing.
type FilterState struct {
	YearMin   int
	YearMax   int
	Services  []string
	Districts []int
	Status    string // "", "open", or "closed"
}

// Validate rejects filter states that cannot produce a well-formed clause.
func (f FilterState) Validate() error {
	if f.Status != "" && f.Status != domain.StatusOpen && f.Status != domain.StatusClosed {
		return fmt.Errorf("%w: status %q (want open or closed)", ErrInvalidFilter, f.Status)
	}
	if f.YearMin != 0 && f.YearMax != 0 && f.YearMin > f.YearMax {
		return fmt.Errorf("%w: year_min %d after year_max %d", ErrInvalidFilter, f.YearMin, f.YearMax)
	}
	for _, d := range f.Districts {
		if d < 1 {
			return fmt.Errorf("%w: council district %d", ErrInvalidFilter, d)
		}
	}
	return nil
}

// whereClause builds a parameterized WHERE clause over the canonical columns.
// Every filter value binds through a placeholder; only column names are fixed
// text. includeStatus is off for tables that carry no status column
// (map_points holds only geolocated rows, open and closed alike).
func (f FilterState) whereClause(includeStatus bool) (string, []any) {
	var clauses []string
	var args []any

	if f.YearMin != 0 {
		clauses = append(clauses, "request_year >= ?")
		args = append(args, f.YearMin)
	}
	if f.YearMax != 0 {
		clauses = append(clauses, "request_year <= ?")
		args = append(args, f.YearMax)
	}
	if len(f.Services) > 0 {
		clauses = append(clauses, "service_name IN ("+placeholders(len(f.Services))+")")
		for _, s := range f.Services {
			args = append(args, s)
		}
	}
	if len(f.Districts) > 0 {
		clauses = append(clauses, "council_district IN ("+placeholders(len(f.Districts))+")")
		for _, d := range f.Districts {
			args = append(args, d)
		}
	}
	if includeStatus && f.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, f.Status)
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(clauses, " AND "), args
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
