package retry

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	globalMetrics *retryMetrics
	metricsOnce   sync.Once
)

// retryMetrics holds Prometheus metrics for the retry layer.
//
// consecutiveFailures is the process-wide failure run length. It feeds
// dashboards and the status endpoint only; Do never reads it.
type retryMetrics struct {
	retriesTotal        prometheus.Counter
	exhaustedTotal      prometheus.Counter
	nonRetryableTotal   prometheus.Counter
	consecutiveFailures prometheus.Gauge
}

// metrics returns the process-wide retry metrics, registering them once
// to avoid duplicate-collector panics.
func metrics() *retryMetrics {
	metricsOnce.Do(func() {
		globalMetrics = &retryMetrics{
			retriesTotal: promauto.NewCounter(prometheus.CounterOpts{
				Name: "havend_retry_attempts_total",
				Help: "Total number of retry waits performed",
			}),
			exhaustedTotal: promauto.NewCounter(prometheus.CounterOpts{
				Name: "havend_retry_exhausted_total",
				Help: "Total number of operations that failed every attempt",
			}),
			nonRetryableTotal: promauto.NewCounter(prometheus.CounterOpts{
				Name: "havend_retry_non_retryable_total",
				Help: "Total number of errors classified as non-retryable",
			}),
			consecutiveFailures: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "havend_retry_consecutive_failures",
				Help: "Current run of consecutive failed attempts across all operations",
			}),
		}
	})
	return globalMetrics
}
