package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hillcrestdata/getitdone-etl/internal/api"
	"github.com/hillcrestdata/getitdone-etl/internal/observability"
	"github.com/hillcrestdata/getitdone-etl/internal/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockQueries records the arguments it was called with and returns canned
// results, so handler tests exercise routing and parameter parsing only.
type mockQueries struct {
	readyErr error

	summary     query.Summary
	summaryF    query.FilterState
	summaryErr  error
	mapF        query.FilterState
	mapLimit    int
	overviewMin int
	overviewMax int
	ptLimit     int
	nbDistrict  int
	nbLimit     int
	service     string
}

func (m *mockQueries) CheckReadiness(context.Context) error { return m.readyErr }

func (m *mockQueries) FilterOptions(context.Context) (query.FilterOptions, error) {
	return query.FilterOptions{ServiceNames: []string{"Pothole"}, Years: []int{2023}}, nil
}

func (m *mockQueries) Overview(_ context.Context, yearMin, yearMax int) (query.Overview, error) {
	m.overviewMin, m.overviewMax = yearMin, yearMax
	return query.Overview{TotalRequests: 10, ClosedRequests: 7, CloseRatePct: 70}, nil
}

func (m *mockQueries) TopProblemTypes(_ context.Context, limit int) ([]query.ProblemType, error) {
	m.ptLimit = limit
	return nil, nil
}

func (m *mockQueries) NeighborhoodResponse(_ context.Context, district, limit int) ([]query.NeighborhoodResponse, error) {
	m.nbDistrict, m.nbLimit = district, limit
	return nil, nil
}

func (m *mockQueries) DistrictResolution(_ context.Context, serviceName string) ([]query.DistrictResolution, error) {
	m.service = serviceName
	return nil, nil
}

func (m *mockQueries) MonthlyTrends(context.Context, int, int) ([]query.MonthlyTrend, error) {
	return []query.MonthlyTrend{{Month: "2023-01-01", TotalRequests: 2}}, nil
}

func (m *mockQueries) YearlyVolume(context.Context, int, int) ([]query.YearlyVolume, error) {
	return nil, nil
}

func (m *mockQueries) CaseOrigins(context.Context) ([]query.CaseOrigin, error) { return nil, nil }

func (m *mockQueries) DayHourPatterns(context.Context) ([]query.DayHourPattern, error) {
	return nil, nil
}

func (m *mockQueries) Summary(_ context.Context, f query.FilterState) (query.Summary, error) {
	m.summaryF = f
	return m.summary, m.summaryErr
}

func (m *mockQueries) MonthlySeries(_ context.Context, f query.FilterState) ([]query.MonthlyPoint, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return nil, nil
}

func (m *mockQueries) MapSample(_ context.Context, f query.FilterState, limit int) ([]query.MapPoint, error) {
	m.mapF, m.mapLimit = f, limit
	return []query.MapPoint{{Lat: 32.7, Lng: -117.1}}, nil
}

func (m *mockQueries) ProblemBreakdown(context.Context, query.FilterState) ([]query.ProblemRow, error) {
	return nil, nil
}

func newTestServer(m *mockQueries) *api.Server {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return api.NewServer(":0", m, logger, observability.NewMetricsForTesting())
}

func get(t *testing.T, srv *api.Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	srv.ServeHTTP(rec, req)
	return rec
}

func TestHealthzReturns200(t *testing.T) {
	rec := get(t, newTestServer(&mockQueries{}), "/healthz")

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestReadyzReflectsArtifactState(t *testing.T) {
	rec := get(t, newTestServer(&mockQueries{}), "/readyz")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = get(t, newTestServer(&mockQueries{readyErr: fmt.Errorf("artifact requests.parquet not built")}), "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "not ready", body["status"])
	assert.Contains(t, body["error"], "requests.parquet")
}

func TestMetricsEndpoint(t *testing.T) {
	rec := get(t, newTestServer(&mockQueries{}), "/metrics")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestSummaryParsesFilterParams(t *testing.T) {
	m := &mockQueries{}
	rec := get(t, newTestServer(m),
		"/summary?year_min=2020&year_max=2023&service_name=Pothole&service_name=Graffiti&district=3&district=7&status=closed")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, query.FilterState{
		YearMin:   2020,
		YearMax:   2023,
		Services:  []string{"Pothole", "Graffiti"},
		Districts: []int{3, 7},
		Status:    "closed",
	}, m.summaryF)
}

func TestInvalidFilterReturns400(t *testing.T) {
	m := &mockQueries{summaryErr: fmt.Errorf("%w: status \"pending\"", query.ErrInvalidFilter)}
	srv := newTestServer(m)

	rec := get(t, srv, "/summary?status=pending")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = get(t, srv, "/summary?district=three")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = get(t, srv, "/overview?year_min=soon")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = get(t, srv, "/series/monthly?year_min=2024&year_max=2020")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInternalErrorReturns500WithoutDetail(t *testing.T) {
	m := &mockQueries{summaryErr: errors.New("duckdb exploded")}
	rec := get(t, newTestServer(m), "/summary")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "duckdb")
}

func TestOverviewPassesYearRange(t *testing.T) {
	m := &mockQueries{}
	rec := get(t, newTestServer(m), "/overview?year_min=2019&year_max=2022")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2019, m.overviewMin)
	assert.Equal(t, 2022, m.overviewMax)
}

func TestProblemTypesLimitParam(t *testing.T) {
	m := &mockQueries{}
	rec := get(t, newTestServer(m), "/problem-types?limit=5")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, m.ptLimit)
	assert.Equal(t, "[]\n", rec.Body.String())
}

func TestNeighborhoodParams(t *testing.T) {
	m := &mockQueries{}
	rec := get(t, newTestServer(m), "/neighborhoods?district=4&limit=15")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 4, m.nbDistrict)
	assert.Equal(t, 15, m.nbLimit)
}

func TestDistrictsServiceParam(t *testing.T) {
	m := &mockQueries{}
	rec := get(t, newTestServer(m), "/districts?service_name=Pothole")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Pothole", m.service)
}

func TestMapPointsLimitParam(t *testing.T) {
	m := &mockQueries{}
	rec := get(t, newTestServer(m), "/map-points?limit=500&status=open")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 500, m.mapLimit)
	assert.Equal(t, "open", m.mapF.Status)

	var points []query.MapPoint
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &points))
	require.Len(t, points, 1)
	assert.InDelta(t, 32.7, points[0].Lat, 0.001)
}

func TestIndexListsRoutes(t *testing.T) {
	rec := get(t, newTestServer(&mockQueries{}), "/")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/overview")
}

func TestUnknownRouteReturns404(t *testing.T) {
	rec := get(t, newTestServer(&mockQueries{}), "/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFiltersEndpoint(t *testing.T) {
	rec := get(t, newTestServer(&mockQueries{}), "/filters")

	assert.Equal(t, http.StatusOK, rec.Code)

	var opts query.FilterOptions
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &opts))
	assert.Equal(t, []string{"Pothole"}, opts.ServiceNames)
}
