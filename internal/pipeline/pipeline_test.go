package pipeline_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/hillcrestdata/getitdone-etl/internal/duckdb"
	"github.com/hillcrestdata/getitdone-etl/internal/ingest"
	"github.com/hillcrestdata/getitdone-etl/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockFetcher struct {
	results []ingest.FetchResult
	called  bool
}

func (m *mockFetcher) FetchAll(_ context.Context) []ingest.FetchResult {
	m.called = true
	return m.results
}

type mockBuilder struct {
	stats  duckdb.Stats
	err    error
	called bool
}

func (m *mockBuilder) Build(_ context.Context) (duckdb.Stats, error) {
	m.called = true
	return m.stats, m.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunHappyPath(t *testing.T) {
	fetcher := &mockFetcher{results: []ingest.FetchResult{
		{Source: ingest.Source{Name: "requests_open"}, Bytes: 100},
		{Source: ingest.Source{Name: "requests_closed_2023"}, Skipped: true},
	}}
	builder := &mockBuilder{stats: duckdb.Stats{RawRows: 10, CanonicalRows: 9, DroppedRows: 1}}

	p := pipeline.New(fetcher, builder, false, testLogger())
	result, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, fetcher.called)
	assert.True(t, builder.called)
	assert.Equal(t, 1, result.Fetched)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 0, result.Failed)
	assert.Equal(t, int64(9), result.Stats.CanonicalRows)
	assert.NotEmpty(t, result.RunID)
}

func TestRunIngestFailureIsNotFatal(t *testing.T) {
	fetcher := &mockFetcher{results: []ingest.FetchResult{
		{Source: ingest.Source{Name: "requests_open"}, Err: errors.New("status 503")},
		{Source: ingest.Source{Name: "requests_closed_2023"}, Bytes: 50},
	}}
	builder := &mockBuilder{stats: duckdb.Stats{CanonicalRows: 5}}

	p := pipeline.New(fetcher, builder, false, testLogger())
	result, err := p.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 1, result.Fetched)
	assert.True(t, builder.called)
}

func TestRunBuildFailureIsFatal(t *testing.T) {
	fetcher := &mockFetcher{}
	builder := &mockBuilder{err: errors.New("dropped 80.0% of rows, above the 25.0% threshold")}

	p := pipeline.New(fetcher, builder, false, testLogger())
	_, err := p.Run(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "build:")
}

func TestRunSkipIngest(t *testing.T) {
	fetcher := &mockFetcher{}
	builder := &mockBuilder{stats: duckdb.Stats{CanonicalRows: 3}}

	p := pipeline.New(fetcher, builder, true, testLogger())
	result, err := p.Run(context.Background())

	require.NoError(t, err)
	assert.False(t, fetcher.called)
	assert.True(t, builder.called)
	assert.Equal(t, 0, result.Fetched)
}

func TestRunIDsAreUnique(t *testing.T) {
	p := pipeline.New(&mockFetcher{}, &mockBuilder{}, true, testLogger())

	a, err := p.Run(context.Background())
	require.NoError(t, err)
	b, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.NotEqual(t, a.RunID, b.RunID)
}
