package api

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/hillcrestdata/getitdone-etl/internal/query"
)

func (s *Server) handleFilters(w http.ResponseWriter, r *http.Request) {
	opts, err := s.queries.FilterOptions(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, opts)
}

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	yearMin, yearMax, err := yearParams(r.URL.Query())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out, err := s.queries.Overview(r.Context(), yearMin, yearMax)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleProblemTypes(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r.URL.Query(), "limit", 10)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out, err := s.queries.TopProblemTypes(r.Context(), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rowsOrEmpty(out))
}

func (s *Server) handleNeighborhoods(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	district, err := intParam(q, "district", 0)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	limit, err := intParam(q, "limit", 20)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out, err := s.queries.NeighborhoodResponse(r.Context(), district, limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rowsOrEmpty(out))
}

func (s *Server) handleDistricts(w http.ResponseWriter, r *http.Request) {
	out, err := s.queries.DistrictResolution(r.Context(), r.URL.Query().Get("service_name"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rowsOrEmpty(out))
}

func (s *Server) handleMonthlyTrends(w http.ResponseWriter, r *http.Request) {
	yearMin, yearMax, err := yearParams(r.URL.Query())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out, err := s.queries.MonthlyTrends(r.Context(), yearMin, yearMax)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rowsOrEmpty(out))
}

func (s *Server) handleYearlyVolume(w http.ResponseWriter, r *http.Request) {
	yearMin, yearMax, err := yearParams(r.URL.Query())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out, err := s.queries.YearlyVolume(r.Context(), yearMin, yearMax)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rowsOrEmpty(out))
}

func (s *Server) handleCaseOrigins(w http.ResponseWriter, r *http.Request) {
	out, err := s.queries.CaseOrigins(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rowsOrEmpty(out))
}

func (s *Server) handleDayHourPatterns(w http.ResponseWriter, r *http.Request) {
	out, err := s.queries.DayHourPatterns(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rowsOrEmpty(out))
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	f, err := filterParams(r.URL.Query())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out, err := s.queries.Summary(r.Context(), f)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleMonthlySeries(w http.ResponseWriter, r *http.Request) {
	f, err := filterParams(r.URL.Query())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out, err := s.queries.MonthlySeries(r.Context(), f)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rowsOrEmpty(out))
}

func (s *Server) handleProblemBreakdown(w http.ResponseWriter, r *http.Request) {
	f, err := filterParams(r.URL.Query())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out, err := s.queries.ProblemBreakdown(r.Context(), f)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rowsOrEmpty(out))
}

func (s *Server) handleMapPoints(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f, err := filterParams(q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	limit, err := intParam(q, "limit", 0)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out, err := s.queries.MapSample(r.Context(), f, limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rowsOrEmpty(out))
}

// filterParams builds a FilterState from the request's query string. Repeated
// service and district params accumulate into IN-list filters.
func filterParams(q url.Values) (query.FilterState, error) {
	var f query.FilterState
	var err error

	if f.YearMin, f.YearMax, err = yearParams(q); err != nil {
		return f, err
	}
	f.Services = q["service_name"]
	f.Status = q.Get("status")

	for _, raw := range q["district"] {
		d, err := strconv.Atoi(raw)
		if err != nil {
			return f, fmt.Errorf("%w: district %q is not a number", query.ErrInvalidFilter, raw)
		}
		f.Districts = append(f.Districts, d)
	}
	return f, nil
}

func yearParams(q url.Values) (int, int, error) {
	yearMin, err := intParam(q, "year_min", 0)
	if err != nil {
		return 0, 0, err
	}
	yearMax, err := intParam(q, "year_max", 0)
	if err != nil {
		return 0, 0, err
	}
	return yearMin, yearMax, nil
}

func intParam(q url.Values, name string, def int) (int, error) {
	raw := q.Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q is not a number", query.ErrInvalidFilter, name, raw)
	}
	return v, nil
}

// rowsOrEmpty keeps empty result sets as [] in JSON rather than null.
func rowsOrEmpty[T any](rows []T) []T {
	if rows == nil {
		return []T{}
	}
	return rows
}
