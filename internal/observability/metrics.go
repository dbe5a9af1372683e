package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// ingestion engine and query layer.
type Metrics struct {
	StationsSynced  prometheus.Counter
	StationsSkipped prometheus.Counter
	SyncErrors      prometheus.Counter
	SyncRunning     prometheus.Gauge

	// Realtime refresh metrics.
	CurrentReadingsUpdated prometheus.Counter
	FeedRowsSkipped        prometheus.Counter

	// Provider API metrics.
	ProviderRequests    *prometheus.CounterVec   // labels: endpoint={realtime,daily_mean,stations}, outcome={success,error}
	ProviderAPIDuration *prometheus.HistogramVec // labels: endpoint={realtime,daily_mean,stations}

	// Query layer metrics.
	QueryCache           *prometheus.CounterVec // labels: result={hit,miss,stale}
	QueryDegraded        prometheus.Counter
	IdentityUnrecognized prometheus.Counter
	BucketWriteBatch     prometheus.Histogram
}

// NewMetrics creates and registers all ingestion metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		StationsSynced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hydrosync",
			Name:      "stations_synced_total",
			Help:      "Total stations whose historical buckets were written.",
		}),
		StationsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hydrosync",
			Name:      "stations_skipped_total",
			Help:      "Total stations skipped because no new daily means were found.",
		}),
		SyncErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hydrosync",
			Name:      "sync_errors_total",
			Help:      "Total per-station sync failures.",
		}),
		SyncRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "hydrosync",
			Name:      "sync_running",
			Help:      "1 while a historical sync run holds the run lock, 0 otherwise.",
		}),
		CurrentReadingsUpdated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hydrosync",
			Name:      "current_readings_updated_total",
			Help:      "Total current-reading documents written by the realtime updater.",
		}),
		FeedRowsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hydrosync",
			Name:      "feed_rows_skipped_total",
			Help:      "Total malformed realtime feed rows dropped during parsing.",
		}),
		ProviderRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hydrosync",
			Name:      "provider_requests_total",
			Help:      "Hydrometric API requests by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
		ProviderAPIDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "hydrosync",
			Name:      "provider_api_duration_seconds",
			Help:      "Hydrometric API request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"endpoint"}),
		QueryCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hydrosync",
			Name:      "query_cache_total",
			Help:      "Current-reading cache lookups by result.",
		}, []string{"result"}),
		QueryDegraded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hydrosync",
			Name:      "query_degraded_total",
			Help:      "Store read failures degraded to partial or cached query results.",
		}),
		IdentityUnrecognized: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hydrosync",
			Name:      "identity_unrecognized_total",
			Help:      "Station identifiers that matched no known encoding shape.",
		}),
		BucketWriteBatch: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "hydrosync",
			Name:      "bucket_write_batch_size",
			Help:      "Number of bucket writes per committed batch.",
			Buckets:   []float64{1, 10, 25, 50, 100, 250, 500},
		}),
	}

	prometheus.MustRegister(
		m.StationsSynced,
		m.StationsSkipped,
		m.SyncErrors,
		m.SyncRunning,
		m.CurrentReadingsUpdated,
		m.FeedRowsSkipped,
		m.ProviderRequests,
		m.ProviderAPIDuration,
		m.QueryCache,
		m.QueryDegraded,
		m.IdentityUnrecognized,
		m.BucketWriteBatch,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		StationsSynced:         prometheus.NewCounter(prometheus.CounterOpts{Namespace: "hydrosync", Name: "stations_synced_total"}),
		StationsSkipped:        prometheus.NewCounter(prometheus.CounterOpts{Namespace: "hydrosync", Name: "stations_skipped_total"}),
		SyncErrors:             prometheus.NewCounter(prometheus.CounterOpts{Namespace: "hydrosync", Name: "sync_errors_total"}),
		SyncRunning:            prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "hydrosync", Name: "sync_running"}),
		CurrentReadingsUpdated: prometheus.NewCounter(prometheus.CounterOpts{Namespace: "hydrosync", Name: "current_readings_updated_total"}),
		FeedRowsSkipped:        prometheus.NewCounter(prometheus.CounterOpts{Namespace: "hydrosync", Name: "feed_rows_skipped_total"}),
		ProviderRequests:       prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "hydrosync", Name: "provider_requests_total"}, []string{"endpoint", "outcome"}),
		ProviderAPIDuration:    prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: "hydrosync", Name: "provider_api_duration_seconds"}, []string{"endpoint"}),
		QueryCache:             prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "hydrosync", Name: "query_cache_total"}, []string{"result"}),
		QueryDegraded:          prometheus.NewCounter(prometheus.CounterOpts{Namespace: "hydrosync", Name: "query_degraded_total"}),
		IdentityUnrecognized:   prometheus.NewCounter(prometheus.CounterOpts{Namespace: "hydrosync", Name: "identity_unrecognized_total"}),
		BucketWriteBatch:       prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "hydrosync", Name: "bucket_write_batch_size"}),
	}
}
