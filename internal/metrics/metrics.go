package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector metrics
var (
	CollectorFilesDiscovered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sids_collector_files_discovered_total",
			Help: "Files yielded by the collector for indexing",
		},
	)

	CollectorFilesUnchanged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sids_collector_files_unchanged_total",
			Help: "Files skipped because the change cache holds an equal or newer time",
		},
	)

	CollectorErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sids_collector_errors_total",
			Help: "Per-path discovery faults",
		},
		[]string{"kind"}, // "root", "dir", "stat", "open"
	)
)

// Indexer metrics
var (
	IndexerJobsEnqueued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sids_indexer_jobs_enqueued_total",
			Help: "Index requests accepted into the job queue",
		},
	)

	IndexerQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sids_indexer_queue_depth",
			Help: "Index requests waiting for a worker",
		},
	)

	IndexerExtractionFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sids_indexer_extraction_failures_total",
			Help: "Index requests dropped because content extraction failed",
		},
	)

	IndexerDocumentsWritten = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sids_indexer_documents_written_total",
			Help: "Documents added to an index batch",
		},
	)

	IndexerCommitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sids_indexer_commits_total",
			Help: "Index commits by outcome",
		},
		[]string{"status"}, // "success", "error"
	)

	IndexerCommitDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sids_indexer_commit_duration_seconds",
			Help:    "Time to commit one batch",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
	)

	IndexerWorkersActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sids_indexer_workers_active",
			Help: "Extraction workers currently running",
		},
	)
)

// Searcher metrics
var (
	SearchRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sids_search_requests_total",
			Help: "Search requests by outcome",
		},
		[]string{"status"}, // "success", "cache_hit", "query_error", "error"
	)

	SearchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sids_search_duration_seconds",
			Help:    "Search latency",
			Buckets: prometheus.DefBuckets,
		},
	)

	SearchRefreshesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sids_search_refreshes_total",
			Help: "Searcher snapshot refreshes",
		},
	)
)

// Pipeline metrics
var (
	PipelineFilesIndexed = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sids_pipeline_files_indexed",
			Help: "Progress counter: cached files at start plus files enqueued this run",
		},
	)

	PipelineRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sids_pipeline_running",
			Help: "1 while the indexing loop runs",
		},
	)

	IndexDocuments = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sids_index_documents",
			Help: "Committed documents in the index",
		},
	)

	IndexSizeBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sids_index_size_bytes",
			Help: "Size of the index database file",
		},
	)
)

// InitializeMetrics pre-populates label combinations so every series is
// exported from the first scrape
func InitializeMetrics() {
	for _, kind := range []string{"root", "dir", "stat", "open"} {
		CollectorErrors.WithLabelValues(kind)
	}
	for _, status := range []string{"success", "error"} {
		IndexerCommitsTotal.WithLabelValues(status)
	}
	for _, status := range []string{"success", "cache_hit", "query_error", "error"} {
		SearchRequestsTotal.WithLabelValues(status)
	}
}
