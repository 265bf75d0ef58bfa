// Package api exposes the dashboard's read-only HTTP surface. Every data
// endpoint delegates to the query layer and returns JSON; filter errors map to
// 400 and everything else to 500 so a bad sidebar state never looks like an
// outage.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hillcrestdata/getitdone-etl/internal/observability"
	"github.com/hillcrestdata/getitdone-etl/internal/query"
)

// QueryService is the query surface the server depends on.
type QueryService interface {
	CheckReadiness(ctx context.Context) error
	FilterOptions(ctx context.Context) (query.FilterOptions, error)
	Overview(ctx context.Context, yearMin, yearMax int) (query.Overview, error)
	TopProblemTypes(ctx context.Context, limit int) ([]query.ProblemType, error)
	NeighborhoodResponse(ctx context.Context, district, limit int) ([]query.NeighborhoodResponse, error)
	DistrictResolution(ctx context.Context, serviceName string) ([]query.DistrictResolution, error)
	MonthlyTrends(ctx context.Context, yearMin, yearMax int) ([]query.MonthlyTrend, error)
	YearlyVolume(ctx context.Context, yearMin, yearMax int) ([]query.YearlyVolume, error)
	CaseOrigins(ctx context.Context) ([]query.CaseOrigin, error)
	DayHourPatterns(ctx context.Context) ([]query.DayHourPattern, error)
	Summary(ctx context.Context, f query.FilterState) (query.Summary, error)
	MonthlySeries(ctx context.Context, f query.FilterState) ([]query.MonthlyPoint, error)
	MapSample(ctx context.Context, f query.FilterState, limit int) ([]query.MapPoint, error)
	ProblemBreakdown(ctx context.Context, f query.FilterState) ([]query.ProblemRow, error)
}

// Server serves the dashboard API plus health, readiness, and metrics routes.
type Server struct {
	httpServer *http.Server
	queries    QueryService
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewServer creates the HTTP server with all routes registered.
func NewServer(addr string, queries QueryService, logger *slog.Logger, metrics *observability.Metrics) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		queries: queries,
		logger:  logger,
		metrics: metrics,
	}

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /filters", s.instrument("filters", s.handleFilters))
	mux.HandleFunc("GET /overview", s.instrument("overview", s.handleOverview))
	mux.HandleFunc("GET /problem-types", s.instrument("problem_types", s.handleProblemTypes))
	mux.HandleFunc("GET /neighborhoods", s.instrument("neighborhoods", s.handleNeighborhoods))
	mux.HandleFunc("GET /districts", s.instrument("districts", s.handleDistricts))
	mux.HandleFunc("GET /trends/monthly", s.instrument("trends_monthly", s.handleMonthlyTrends))
	mux.HandleFunc("GET /trends/yearly", s.instrument("trends_yearly", s.handleYearlyVolume))
	mux.HandleFunc("GET /case-origins", s.instrument("case_origins", s.handleCaseOrigins))
	mux.HandleFunc("GET /day-hour-patterns", s.instrument("day_hour_patterns", s.handleDayHourPatterns))
	mux.HandleFunc("GET /summary", s.instrument("summary", s.handleSummary))
	mux.HandleFunc("GET /series/monthly", s.instrument("series_monthly", s.handleMonthlySeries))
	mux.HandleFunc("GET /problem-breakdown", s.instrument("problem_breakdown", s.handleProblemBreakdown))
	mux.HandleFunc("GET /map-points", s.instrument("map_points", s.handleMapPoints))

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

// instrument wraps a data handler with per-endpoint counters and latency.
func (s *Server) instrument(endpoint string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		h(sw, r)

		outcome := "success"
		if sw.status >= 400 {
			outcome = "error"
		}
		s.metrics.Queries.WithLabelValues(endpoint, outcome).Inc()
		s.metrics.QueryDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"service": "getitdone-etl",
		"docs":    "/filters /overview /problem-types /neighborhoods /districts /trends/monthly /trends/yearly /case-origins /day-hour-patterns /summary /series/monthly /problem-breakdown /map-points",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.queries.CheckReadiness(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// writeError maps filter mistakes to 400 and everything else to 500. Internal
// errors are logged, not leaked.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, query.ErrInvalidFilter) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	s.logger.Error("query failed", "path", r.URL.Path, "error", err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response write
}
