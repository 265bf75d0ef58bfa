package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges shared by the
// build pipeline and the query API.
type Metrics struct {
	// Ingest metrics.
	SourcesFetched prometheus.Counter
	SourcesSkipped prometheus.Counter
	SourcesFailed  prometheus.Counter
	BytesFetched   prometheus.Counter

	// Build metrics.
	RowsLoaded    prometheus.Gauge
	RowsDropped   prometheus.Gauge
	BuildDuration prometheus.Histogram

	// Query API metrics.
	Queries        *prometheus.CounterVec   // labels: endpoint, outcome={success,error}
	QueryDuration  *prometheus.HistogramVec // labels: endpoint
	FilterCache    *prometheus.CounterVec   // labels: result={hit,miss}
	ArtifactsReady prometheus.Gauge
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.SourcesFetched,
		m.SourcesSkipped,
		m.SourcesFailed,
		m.BytesFetched,
		m.RowsLoaded,
		m.RowsDropped,
		m.BuildDuration,
		m.Queries,
		m.QueryDuration,
		m.FilterCache,
		m.ArtifactsReady,
	)
	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		SourcesFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "getitdone",
			Name:      "sources_fetched_total",
			Help:      "Total CSV exports downloaded from the open-data portal.",
		}),
		SourcesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "getitdone",
			Name:      "sources_skipped_total",
			Help:      "Total source downloads skipped because the raw file already exists.",
		}),
		SourcesFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "getitdone",
			Name:      "sources_failed_total",
			Help:      "Total source downloads that failed.",
		}),
		BytesFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "getitdone",
			Name:      "bytes_fetched_total",
			Help:      "Total bytes downloaded across all source CSVs.",
		}),
		RowsLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "getitdone",
			Name:      "rows_loaded",
			Help:      "Raw rows loaded in the most recent build.",
		}),
		RowsDropped: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "getitdone",
			Name:      "rows_dropped",
			Help:      "Malformed rows dropped in the most recent build.",
		}),
		BuildDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "getitdone",
			Name:      "build_duration_seconds",
			Help:      "Duration of a complete transform and aggregate build.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		Queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "getitdone",
			Name:      "queries_total",
			Help:      "API queries by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
		QueryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "getitdone",
			Name:      "query_duration_seconds",
			Help:      "API query duration in seconds.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"endpoint"}),
		FilterCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "getitdone",
			Name:      "filter_cache_total",
			Help:      "Filter-option cache lookups by result.",
		}, []string{"result"}),
		ArtifactsReady: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "getitdone",
			Name:      "artifacts_ready",
			Help:      "1 when all parquet artifacts are present, 0 otherwise.",
		}),
	}
}
