// Package metrics provides Prometheus metrics for the news image pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ImageFetchTotal counts pipeline runs by outcome.
	ImageFetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "newsdesk",
			Name:      "image_fetch_total",
			Help:      "Total number of preview image pipeline runs",
		},
		[]string{"result"},
	)

	// ImageFetchDuration measures the full fetch-process-store duration.
	ImageFetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "newsdesk",
			Name:      "image_fetch_duration_seconds",
			Help:      "Duration of preview image pipeline runs in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// RetentionDeletedTotal counts rows removed by the retention policy.
	RetentionDeletedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "newsdesk",
			Name:      "retention_deleted_total",
			Help:      "Total number of news items deleted by retention",
		},
	)

	// StorageErrorsTotal counts recovered file storage failures.
	StorageErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "newsdesk",
			Name:      "storage_errors_total",
			Help:      "Total number of recovered file storage errors",
		},
		[]string{"operation"},
	)
)

// Pipeline outcomes.
const (
	ResultStored    = "stored"
	ResultNoPreview = "no_preview"
	ResultDecode    = "decode_error"
	ResultStorage   = "storage_error"
	ResultUnchanged = "unchanged"
)

// RecordImageFetch records a pipeline run.
func RecordImageFetch(result string, seconds float64) {
	ImageFetchTotal.WithLabelValues(result).Inc()
	ImageFetchDuration.Observe(seconds)
}

// RecordRetention records rows deleted by one retention pass.
func RecordRetention(deleted int) {
	if deleted > 0 {
		RetentionDeletedTotal.Add(float64(deleted))
	}
}

// RecordStorageError records a recovered storage failure.
func RecordStorageError(operation string) {
	StorageErrorsTotal.WithLabelValues(operation).Inc()
}
