package proseql

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus instrumentation, grounded on the teacher's pkg/metrics
// package: one registry of named vectors plus a small Timer helper,
// wired into the commit path, the query pipeline, the bus, and the
// debounced writer so every component in §4 carries observability.
var (
	metricsCommitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "proseql_commits_total",
			Help: "Total number of committed mutations by collection",
		},
		[]string{"collection"},
	)

	metricsCommitPuts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "proseql_commit_puts_total",
			Help: "Total number of entities inserted or replaced by commits",
		},
		[]string{"collection"},
	)

	metricsCommitDeletes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "proseql_commit_deletes_total",
			Help: "Total number of entities removed by commits",
		},
		[]string{"collection"},
	)

	metricsQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "proseql_query_duration_seconds",
			Help:    "Query pipeline (source->filter->sort->paginate) duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"collection"},
	)

	metricsBusDropsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "proseql_bus_drops_total",
			Help: "Total number of change events dropped due to a full subscriber buffer",
		},
		[]string{"collection"},
	)

	metricsWriterFlushDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "proseql_writer_flush_duration_seconds",
			Help:    "Debounced writer flush duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"collection"},
	)

	metricsWriterFlushFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "proseql_writer_flush_failures_total",
			Help: "Total number of debounced writer flush failures",
		},
		[]string{"collection"},
	)

	metricsCascadeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "proseql_cascade_duration_seconds",
			Help:    "Cascade engine (create/delete with relationships) duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"collection", "op"},
	)

	metricsWatcherReloadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "proseql_watcher_reloads_total",
			Help: "Total number of collections reloaded after an external file change",
		},
		[]string{"collection"},
	)
)

func init() {
	prometheus.MustRegister(
		metricsCommitsTotal,
		metricsCommitPuts,
		metricsCommitDeletes,
		metricsQueryDuration,
		metricsBusDropsTotal,
		metricsWriterFlushDuration,
		metricsWriterFlushFailures,
		metricsCascadeDuration,
		metricsWatcherReloadsTotal,
	)
}

// MetricsHandler exposes the registered collectors over HTTP, for mounting
// under a caller-chosen path (e.g. "/metrics").
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// metricsTimer is a small stopwatch wrapping time.Since, mirroring the
// teacher's pkg/metrics.Timer.
type metricsTimer struct {
	start time.Time
}

func newMetricsTimer() metricsTimer {
	return metricsTimer{start: time.Now()}
}

func (t metricsTimer) observe(h prometheus.Observer) {
	h.Observe(time.Since(t.start).Seconds())
}
