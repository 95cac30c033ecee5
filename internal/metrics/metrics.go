package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the batching processor.
type Metrics struct {
	VariantsSubmitted prometheus.Counter
	VariantsCached    prometheus.Counter
	VariantsCompleted prometheus.Counter
	VariantsFailed    prometheus.Counter
	VariantsRetryable prometheus.Counter

	BatchesFormed   prometheus.Counter
	BatchSize       prometheus.Histogram
	BatchDuration   prometheus.Histogram
	VEPCallDuration prometheus.Histogram

	QueueDepth prometheus.Gauge

	HTTPRequests *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		VariantsSubmitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "annotator_variants_submitted_total",
			Help: "Total number of variant submissions accepted into the queue",
		}),
		VariantsCached: promauto.NewCounter(prometheus.CounterOpts{
			Name: "annotator_variants_cached_total",
			Help: "Total number of submissions short-circuited by a cache hit",
		}),
		VariantsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "annotator_variants_completed_total",
			Help: "Total number of variants successfully annotated and persisted",
		}),
		VariantsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "annotator_variants_failed_total",
			Help: "Total number of variants that reached a terminal failed state",
		}),
		VariantsRetryable: promauto.NewCounter(prometheus.CounterOpts{
			Name: "annotator_variants_retry_available_total",
			Help: "Total number of variants that transitioned to retry_available",
		}),
		BatchesFormed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "annotator_batches_formed_total",
			Help: "Total number of batches dispatched to the worker pool",
		}),
		BatchSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "annotator_batch_size",
			Help:    "Number of variants in each dispatched batch",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 150, 200},
		}),
		BatchDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "annotator_batch_duration_seconds",
			Help:    "End-to-end duration of one batch pipeline run",
			Buckets: prometheus.DefBuckets,
		}),
		VEPCallDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "annotator_vep_call_duration_seconds",
			Help:    "Duration of the outbound VEP batch HTTP call",
			Buckets: prometheus.DefBuckets,
		}),
		QueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "annotator_queue_depth",
			Help: "Current number of variant keys waiting to be batched",
		}),
		HTTPRequests: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "annotator_http_requests_total",
				Help: "Total HTTP requests by endpoint and status",
			},
			[]string{"method", "endpoint", "status"},
		),
	}
}
