// Package metrics exposes the gateway's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry holds every collector the gateway registers. A single Registry
// is constructed at process startup and threaded through the server and
// chain stages that need to record something.
type Registry struct {
	RequestDuration *prometheus.HistogramVec
	RequestsTotal   *prometheus.CounterVec
	SlowRequests    *prometheus.CounterVec
	StreamChunks    *prometheus.CounterVec

	BillingDegradations *prometheus.CounterVec
	HoldAmount          prometheus.Gauge
	BillingLatency      *prometheus.HistogramVec

	CacheHits   *prometheus.CounterVec
	CacheMisses *prometheus.CounterVec

	ProviderErrors *prometheus.CounterVec
}

// New constructs and registers every collector against the default
// Prometheus registry. Safe to call once per process.
func New() *Registry {
	return &Registry{
		RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "llmrouter",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Request handling duration by dialect and provider.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"dialect", "provider", "status"}),

		RequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "llmrouter",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total requests handled by dialect, provider and status.",
		}, []string{"dialect", "provider", "status"}),

		SlowRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "llmrouter",
			Subsystem: "http",
			Name:      "slow_requests_total",
			Help:      "Requests that exceeded the slow-request log threshold.",
		}, []string{"dialect", "provider"}),

		StreamChunks: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "llmrouter",
			Subsystem: "http",
			Name:      "stream_chunks_total",
			Help:      "Stream chunks forwarded to callers, by provider.",
		}, []string{"provider"}),

		BillingDegradations: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "llmrouter",
			Subsystem: "billing",
			Name:      "degradations_total",
			Help:      "Times billing fell back to a synthetic zero-cost record, by reason.",
		}, []string{"reason"}),

		HoldAmount: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "llmrouter",
			Subsystem: "billing",
			Name:      "outstanding_hold_total",
			Help:      "Sum of currently outstanding billing holds.",
		}),

		BillingLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "llmrouter",
			Subsystem: "billing",
			Name:      "call_duration_seconds",
			Help:      "Billing service call duration by operation.",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"operation"}),

		CacheHits: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "llmrouter",
			Subsystem: "catalog",
			Name:      "cache_hits_total",
			Help:      "Model catalog cache hits by provider.",
		}, []string{"provider"}),

		CacheMisses: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "llmrouter",
			Subsystem: "catalog",
			Name:      "cache_misses_total",
			Help:      "Model catalog cache misses by provider.",
		}, []string{"provider"}),

		ProviderErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "llmrouter",
			Subsystem: "provider",
			Name:      "errors_total",
			Help:      "Provider driver errors by provider and error code.",
		}, []string{"provider", "code"}),
	}
}

// NewUnregistered builds a Registry against a private prometheus.Registerer
// instead of the global default, for use in tests that construct more than
// one Registry in the same process (promauto panics on duplicate
// registration against the default registry).
func NewUnregistered(reg prometheus.Registerer) *Registry {
	factory := promauto.With(reg)
	return &Registry{
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "llmrouter",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Request handling duration by dialect and provider.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"dialect", "provider", "status"}),

		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "llmrouter",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total requests handled by dialect, provider and status.",
		}, []string{"dialect", "provider", "status"}),

		SlowRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "llmrouter",
			Subsystem: "http",
			Name:      "slow_requests_total",
			Help:      "Requests that exceeded the slow-request log threshold.",
		}, []string{"dialect", "provider"}),

		StreamChunks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "llmrouter",
			Subsystem: "http",
			Name:      "stream_chunks_total",
			Help:      "Stream chunks forwarded to callers, by provider.",
		}, []string{"provider"}),

		BillingDegradations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "llmrouter",
			Subsystem: "billing",
			Name:      "degradations_total",
			Help:      "Times billing fell back to a synthetic zero-cost record, by reason.",
		}, []string{"reason"}),

		HoldAmount: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "llmrouter",
			Subsystem: "billing",
			Name:      "outstanding_hold_total",
			Help:      "Sum of currently outstanding billing holds.",
		}),

		BillingLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "llmrouter",
			Subsystem: "billing",
			Name:      "call_duration_seconds",
			Help:      "Billing service call duration by operation.",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"operation"}),

		CacheHits: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "llmrouter",
			Subsystem: "catalog",
			Name:      "cache_hits_total",
			Help:      "Model catalog cache hits by provider.",
		}, []string{"provider"}),

		CacheMisses: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "llmrouter",
			Subsystem: "catalog",
			Name:      "cache_misses_total",
			Help:      "Model catalog cache misses by provider.",
		}, []string{"provider"}),

		ProviderErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "llmrouter",
			Subsystem: "provider",
			Name:      "errors_total",
			Help:      "Provider driver errors by provider and error code.",
		}, []string{"provider", "code"}),
	}
}

// RecordDegradation makes Registry satisfy billing.DegradationRecorder.
func (r *Registry) RecordDegradation(reason string) {
	r.BillingDegradations.WithLabelValues(reason).Inc()
}
