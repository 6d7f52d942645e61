// Package metrics exposes the Prometheus collectors objstore's core
// components report against: commits, retries, index maintenance, and
// vector search latency.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	CommitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "objstore_commits_total",
			Help: "Total number of session commits by result (success, conflict, error).",
		},
		[]string{"result"},
	)

	CommitRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "objstore_commit_retries_total",
			Help: "Total number of transaction-driver retries across all commits.",
		},
	)

	CommitDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "objstore_commit_duration_seconds",
			Help:    "Wall-clock duration of a session.Save call, including retries.",
			Buckets: prometheus.DefBuckets,
		},
	)

	IndexViolationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "objstore_index_violations_total",
			Help: "Total number of uniqueness violations recorded by index.",
		},
		[]string{"index"},
	)

	HNSWSearchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "objstore_hnsw_search_duration_seconds",
			Help:    "HNSW search duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"filtered"},
	)

	HNSWNodeCount = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "objstore_hnsw_node_count",
			Help: "Current node count per HNSW index.",
		},
		[]string{"index"},
	)

	FlatSearchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "objstore_flat_search_duration_seconds",
			Help:    "Flat vector index search duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
	)

	ReadVersionCacheHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "objstore_readversion_cache_hits_total",
			Help: "Total number of read-version cache hits.",
		},
	)

	ReadVersionCacheMissesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "objstore_readversion_cache_misses_total",
			Help: "Total number of read-version cache misses.",
		},
	)

	BlobChunksWrittenTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "objstore_blob_chunks_written_total",
			Help: "Total number of external blob chunks written.",
		},
	)
)

// Register registers every collector with the default Prometheus registry.
// Safe to call once at container construction.
func Register() {
	prometheus.MustRegister(
		CommitsTotal,
		CommitRetriesTotal,
		CommitDuration,
		IndexViolationsTotal,
		HNSWSearchDuration,
		HNSWNodeCount,
		FlatSearchDuration,
		ReadVersionCacheHitsTotal,
		ReadVersionCacheMissesTotal,
		BlobChunksWrittenTotal,
	)
}

// Handler returns the standard Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer measures an operation's duration against a histogram.
type Timer struct {
	start time.Time
}

// NewTimer starts a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the elapsed time against the given histogram.
func (t *Timer) ObserveDuration(h prometheus.Histogram) {
	h.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the elapsed time against the given vec/labels.
func (t *Timer) ObserveDurationVec(h *prometheus.HistogramVec, labels ...string) {
	h.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}
