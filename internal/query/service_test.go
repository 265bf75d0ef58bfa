package query_test

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hillcrestdata/getitdone-etl/internal/config"
	"github.com/hillcrestdata/getitdone-etl/internal/domain"
	"github.com/hillcrestdata/getitdone-etl/internal/duckdb"
	"github.com/hillcrestdata/getitdone-etl/internal/observability"
	"github.com/hillcrestdata/getitdone-etl/internal/query"
	"github.com/jonboulle/clockwork"
	"github.com/jszwec/csvutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		DataDir:         t.TempDir(),
		MaxDropFraction: 0.25,
		MapSampleMax:    200000,
		FilterCacheTTL:  time.Hour,
	}
}

func rawRow(id, serviceName, status string, requested time.Time, resolutionDays int, district string) domain.RawRow {
	r := domain.RawRow{
		ServiceRequestID: id,
		DateRequested:    requested.Format("2006-01-02 15:04:05"),
		Status:           status,
		ServiceName:      serviceName,
		CaseOrigin:       "Mobile",
		Lat:              "32.7341",
		Lng:              "-117.1446",
		CouncilDistrict:  district,
		CommPlanName:     "Balboa Park",
	}
	if status == "Closed" {
		closed := requested.Add(time.Duration(resolutionDays) * 24 * time.Hour)
		r.DateClosed = closed.Format("2006-01-02 15:04:05")
	}
	return r
}

// buildArtifacts writes a fixture raw CSV, runs a full build, and returns a
// query service over the results.
func buildArtifacts(t *testing.T, cfg *config.Config, rows []domain.RawRow) *query.Service {
	t.Helper()
	require.NoError(t, os.MkdirAll(cfg.RawDir(), 0o755))

	data, err := csvutil.Marshal(rows)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(cfg.RawDir(), "requests_open.csv"), data, 0o644))

	metrics := observability.NewMetricsForTesting()
	_, err = duckdb.NewBuilder(cfg, discardLogger(), metrics).Build(context.Background())
	require.NoError(t, err)

	return query.NewService(cfg, discardLogger(), metrics)
}

func fixtureRows() []domain.RawRow {
	jan := time.Date(2023, 1, 10, 9, 0, 0, 0, time.UTC)
	feb := time.Date(2023, 2, 5, 14, 0, 0, 0, time.UTC)
	prior := time.Date(2022, 6, 1, 8, 0, 0, 0, time.UTC)
	return []domain.RawRow{
		rawRow("sr-1", "Pothole", "Closed", jan, 4, "3"),
		rawRow("sr-2", "Pothole", "Closed", jan, 10, "3"),
		rawRow("sr-3", "Pothole", "Open", feb, 0, "3"),
		rawRow("sr-4", "Graffiti", "Closed", feb, 2, "7"),
		rawRow("sr-5", "Graffiti", "Open", feb, 0, "7"),
		rawRow("sr-6", "Pothole", "Closed", prior, 6, "3"),
	}
}

func TestSummaryUnfiltered(t *testing.T) {
	svc := buildArtifacts(t, testConfig(t), fixtureRows())

	got, err := svc.Summary(context.Background(), query.FilterState{})
	require.NoError(t, err)

	assert.Equal(t, int64(6), got.TotalRequests)
	assert.Equal(t, int64(4), got.ClosedRequests)
	assert.InDelta(t, 66.7, got.CloseRatePct, 0.01)
	require.NotNil(t, got.MedianResolutionDays)
	// resolved days {4, 10, 2, 6} -> median 5
	assert.InDelta(t, 5.0, *got.MedianResolutionDays, 0.01)
}

func TestSummaryFiltered(t *testing.T) {
	svc := buildArtifacts(t, testConfig(t), fixtureRows())

	got, err := svc.Summary(context.Background(), query.FilterState{
		YearMin:  2023,
		Services: []string{"Pothole"},
		Status:   domain.StatusClosed,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(2), got.TotalRequests)
	assert.Equal(t, int64(2), got.ClosedRequests)
	require.NotNil(t, got.MedianResolutionDays)
	assert.InDelta(t, 7.0, *got.MedianResolutionDays, 0.01)
}

func TestSummaryEmptySlice(t *testing.T) {
	svc := buildArtifacts(t, testConfig(t), fixtureRows())

	got, err := svc.Summary(context.Background(), query.FilterState{YearMin: 2030})
	require.NoError(t, err)

	assert.Equal(t, int64(0), got.TotalRequests)
	assert.Equal(t, float64(0), got.CloseRatePct)
	assert.Nil(t, got.MedianResolutionDays)
}

func TestInvalidFilterRejected(t *testing.T) {
	svc := buildArtifacts(t, testConfig(t), fixtureRows())
	ctx := context.Background()

	_, err := svc.Summary(ctx, query.FilterState{Status: "pending"})
	assert.ErrorIs(t, err, query.ErrInvalidFilter)

	_, err = svc.MonthlySeries(ctx, query.FilterState{YearMin: 2024, YearMax: 2020})
	assert.ErrorIs(t, err, query.ErrInvalidFilter)

	_, err = svc.MapSample(ctx, query.FilterState{Districts: []int{0}}, 100)
	assert.ErrorIs(t, err, query.ErrInvalidFilter)
}

func TestMonthlySeriesOrderedByMonth(t *testing.T) {
	svc := buildArtifacts(t, testConfig(t), fixtureRows())

	got, err := svc.MonthlySeries(context.Background(), query.FilterState{})
	require.NoError(t, err)

	require.Len(t, got, 3)
	assert.Equal(t, "2022-06-01", got[0].Month)
	assert.Equal(t, "2023-01-01", got[1].Month)
	assert.Equal(t, "2023-02-01", got[2].Month)
	assert.Equal(t, int64(2), got[1].TotalRequests)
	assert.Equal(t, int64(3), got[2].TotalRequests)
}

func TestMapSampleRespectsLimit(t *testing.T) {
	svc := buildArtifacts(t, testConfig(t), fixtureRows())

	got, err := svc.MapSample(context.Background(), query.FilterState{}, 2)
	require.NoError(t, err)
	assert.Len(t, got, 2)
	for _, p := range got {
		assert.True(t, domain.InSanDiegoBounds(p.Lat, p.Lng))
	}
}

func TestMapSampleClampsToMax(t *testing.T) {
	cfg := testConfig(t)
	cfg.MapSampleMax = 3
	svc := buildArtifacts(t, cfg, fixtureRows())

	got, err := svc.MapSample(context.Background(), query.FilterState{}, 1000000)
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestMapSampleStatusFilterIgnored(t *testing.T) {
	// The map table has no status column, so a status filter must not break
	// the query or shrink the result.
	svc := buildArtifacts(t, testConfig(t), fixtureRows())

	got, err := svc.MapSample(context.Background(), query.FilterState{Status: domain.StatusOpen}, 0)
	require.NoError(t, err)
	assert.Len(t, got, 6)
}

func TestProblemBreakdownOrderedByVolume(t *testing.T) {
	svc := buildArtifacts(t, testConfig(t), fixtureRows())

	got, err := svc.ProblemBreakdown(context.Background(), query.FilterState{})
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, "Pothole", got[0].ServiceName)
	assert.Equal(t, int64(4), got[0].TotalRequests)
	assert.Equal(t, int64(3), got[0].ClosedRequests)
	assert.Equal(t, "Graffiti", got[1].ServiceName)
	assert.Equal(t, int64(2), got[1].TotalRequests)
}

func TestFilterOptionsFromRollups(t *testing.T) {
	svc := buildArtifacts(t, testConfig(t), fixtureRows())

	got, err := svc.FilterOptions(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"Graffiti", "Pothole"}, got.ServiceNames)
	assert.Equal(t, []int{3, 7}, got.CouncilDistricts)
	assert.Equal(t, []string{"Balboa Park"}, got.Neighborhoods)
	assert.Equal(t, []int{2022, 2023}, got.Years)
}

func TestFilterOptionsCached(t *testing.T) {
	fake := clockwork.NewFakeClockAt(time.Date(2023, 6, 1, 12, 0, 0, 0, time.UTC))
	domain.SetClock(fake)
	t.Cleanup(func() { domain.SetClock(nil) })

	cfg := testConfig(t)
	svc := buildArtifacts(t, cfg, fixtureRows())
	ctx := context.Background()

	first, err := svc.FilterOptions(ctx)
	require.NoError(t, err)

	// Remove the rollups; a cached read must not touch disk.
	require.NoError(t, os.RemoveAll(cfg.AggregatedDir()))
	cached, err := svc.FilterOptions(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, cached)

	// Past the TTL the cache expires and the missing files surface.
	fake.Advance(cfg.FilterCacheTTL + time.Minute)
	_, err = svc.FilterOptions(ctx)
	assert.Error(t, err)
}

func TestOverviewYearRange(t *testing.T) {
	svc := buildArtifacts(t, testConfig(t), fixtureRows())

	all, err := svc.Overview(context.Background(), 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(6), all.TotalRequests)
	assert.Equal(t, int64(4), all.ClosedRequests)

	only2023, err := svc.Overview(context.Background(), 2023, 2023)
	require.NoError(t, err)
	assert.Equal(t, int64(5), only2023.TotalRequests)
	assert.Equal(t, int64(3), only2023.ClosedRequests)

	_, err = svc.Overview(context.Background(), 2024, 2020)
	assert.ErrorIs(t, err, query.ErrInvalidFilter)
}

func TestTopProblemTypesLimit(t *testing.T) {
	svc := buildArtifacts(t, testConfig(t), fixtureRows())

	got, err := svc.TopProblemTypes(context.Background(), 1)
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, "Pothole", got[0].ServiceName)
	assert.Equal(t, int64(4), got[0].TotalRequests)
	assert.Equal(t, int64(1), got[0].OpenRequests)
}

func TestNeighborhoodResponseDistrictFilter(t *testing.T) {
	svc := buildArtifacts(t, testConfig(t), fixtureRows())

	got, err := svc.NeighborhoodResponse(context.Background(), 3, 20)
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, "Balboa Park", got[0].CommPlanName)
	require.NotNil(t, got[0].CouncilDistrict)
	assert.Equal(t, 3, *got[0].CouncilDistrict)
	assert.Equal(t, int64(4), got[0].TotalRequests)

	none, err := svc.NeighborhoodResponse(context.Background(), 9, 20)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestDistrictResolutionAllServicesWeighted(t *testing.T) {
	svc := buildArtifacts(t, testConfig(t), fixtureRows())

	got, err := svc.DistrictResolution(context.Background(), "")
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, 3, got[0].CouncilDistrict)
	assert.Equal(t, "D3 - Downtown, Uptown, North Park", got[0].Label)
	assert.Equal(t, int64(4), got[0].TotalRequests)
	assert.Equal(t, 7, got[1].CouncilDistrict)

	potholeOnly, err := svc.DistrictResolution(context.Background(), "Pothole")
	require.NoError(t, err)
	require.Len(t, potholeOnly, 1)
	assert.Equal(t, 3, potholeOnly[0].CouncilDistrict)
}

func TestMonthlyTrendsAndYearlyVolume(t *testing.T) {
	svc := buildArtifacts(t, testConfig(t), fixtureRows())
	ctx := context.Background()

	trends, err := svc.MonthlyTrends(ctx, 2023, 2023)
	require.NoError(t, err)
	require.Len(t, trends, 2)
	assert.Equal(t, "2023-01-01", trends[0].Month)
	assert.Equal(t, int64(2), trends[0].TotalRequests)

	years, err := svc.YearlyVolume(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, years, 2)
	assert.Equal(t, 2022, years[0].RequestYear)
	assert.Equal(t, int64(1), years[0].TotalRequests)
	assert.Equal(t, 2023, years[1].RequestYear)
	assert.Equal(t, int64(5), years[1].TotalRequests)
}

func TestCaseOriginsAndDayHourPatterns(t *testing.T) {
	svc := buildArtifacts(t, testConfig(t), fixtureRows())
	ctx := context.Background()

	origins, err := svc.CaseOrigins(ctx)
	require.NoError(t, err)
	require.Len(t, origins, 1)
	assert.Equal(t, "Mobile App", origins[0].Channel)
	assert.Equal(t, int64(6), origins[0].RequestCount)

	cells, err := svc.DayHourPatterns(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, cells)
	var total int64
	for _, c := range cells {
		assert.GreaterOrEqual(t, c.RequestDow, 0)
		assert.LessOrEqual(t, c.RequestDow, 6)
		assert.GreaterOrEqual(t, c.RequestHour, 0)
		assert.LessOrEqual(t, c.RequestHour, 23)
		total += c.RequestCount
	}
	assert.Equal(t, int64(6), total)
}

func TestCheckReadiness(t *testing.T) {
	cfg := testConfig(t)
	metrics := observability.NewMetricsForTesting()
	svc := query.NewService(cfg, discardLogger(), metrics)

	assert.Error(t, svc.CheckReadiness(context.Background()))

	svc = buildArtifacts(t, cfg, fixtureRows())
	assert.NoError(t, svc.CheckReadiness(context.Background()))
}
