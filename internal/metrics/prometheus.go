package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Evaluation metrics
	EvaluationsTotal   *prometheus.CounterVec
	EvaluationDuration *prometheus.HistogramVec

	// Cache metrics
	CacheHits    prometheus.Counter
	CacheMisses  prometheus.Counter
	SweepRemoved prometheus.Counter

	// Upstream metrics
	UpstreamRequests *prometheus.CounterVec
	TokenRefreshes   *prometheus.CounterVec

	// Bulk metrics
	BulkDevicesEvaluated prometheus.Counter
	BulkDevicesFailed    prometheus.Counter
}

// NewMetrics creates and registers Prometheus metrics
func NewMetrics() *Metrics {
	return &Metrics{
		EvaluationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "monitor_evaluations_total",
				Help: "Total number of device health evaluations",
			},
			[]string{"status"},
		),

		EvaluationDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "monitor_evaluation_duration_seconds",
				Help:    "Duration of device health evaluations",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"status"},
		),

		CacheHits: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "monitor_cache_hits_total",
				Help: "Total number of device cache hits",
			},
		),

		CacheMisses: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "monitor_cache_misses_total",
				Help: "Total number of device cache misses",
			},
		),

		SweepRemoved: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "monitor_cache_sweep_removed_total",
				Help: "Total number of expired cache entries removed by sweeps",
			},
		),

		UpstreamRequests: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "monitor_upstream_requests_total",
				Help: "Total number of upstream MDM API requests",
			},
			[]string{"endpoint", "outcome"},
		),

		TokenRefreshes: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "monitor_token_refreshes_total",
				Help: "Total number of credential exchanges",
			},
			[]string{"outcome"},
		),

		BulkDevicesEvaluated: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "monitor_bulk_devices_evaluated_total",
				Help: "Total number of devices evaluated in bulk runs",
			},
		),

		BulkDevicesFailed: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "monitor_bulk_devices_failed_total",
				Help: "Total number of devices that failed during bulk runs",
			},
		),
	}
}

// RecordEvaluation records a completed or failed evaluation
func (m *Metrics) RecordEvaluation(status string, duration float64) {
	m.EvaluationsTotal.WithLabelValues(status).Inc()
	m.EvaluationDuration.WithLabelValues(status).Observe(duration)
}

// RecordCacheHit records a cache hit
func (m *Metrics) RecordCacheHit() {
	m.CacheHits.Inc()
}

// RecordCacheMiss records a cache miss
func (m *Metrics) RecordCacheMiss() {
	m.CacheMisses.Inc()
}

// RecordSweep records the outcome of a cache sweep
func (m *Metrics) RecordSweep(removed int64) {
	m.SweepRemoved.Add(float64(removed))
}

// RecordUpstreamRequest records an upstream MDM API call
func (m *Metrics) RecordUpstreamRequest(endpoint, outcome string) {
	m.UpstreamRequests.WithLabelValues(endpoint, outcome).Inc()
}

// RecordTokenRefresh records a credential exchange attempt
func (m *Metrics) RecordTokenRefresh(outcome string) {
	m.TokenRefreshes.WithLabelValues(outcome).Inc()
}

// RecordBulkRun records the outcome of a bulk evaluation
func (m *Metrics) RecordBulkRun(evaluated, failed int) {
	m.BulkDevicesEvaluated.Add(float64(evaluated))
	m.BulkDevicesFailed.Add(float64(failed))
}
