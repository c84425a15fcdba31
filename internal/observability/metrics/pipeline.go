package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PipelineMetrics counts extraction pipeline events. It satisfies both the
// core pipeline observer and the resilience executor observer.
type PipelineMetrics struct {
	service string

	fallbackTotal      *prometheus.CounterVec
	aiCallsTotal       *prometheus.CounterVec
	quotaRejectedTotal *prometheus.CounterVec
	rateLimitedTotal   *prometheus.CounterVec
	retriesTotal       *prometheus.CounterVec
	breakerTransitions *prometheus.CounterVec
}

func newPipelineMetrics(service string, registry prometheus.Registerer) *PipelineMetrics {
	fallbackTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tpc",
			Subsystem: "pipeline",
			Name:      "fallback_total",
			Help:      "Total fallback values served by component.",
		},
		[]string{"service", "component"},
	)
	aiCallsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tpc",
			Subsystem: "pipeline",
			Name:      "ai_calls_total",
			Help:      "Total AI document service calls by operation and outcome.",
		},
		[]string{"service", "operation", "outcome"},
	)
	quotaRejectedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tpc",
			Subsystem: "pipeline",
			Name:      "quota_rejected_total",
			Help:      "Total requests rejected by the monthly quota.",
		},
		[]string{"service", "operation"},
	)
	rateLimitedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tpc",
			Subsystem: "pipeline",
			Name:      "rate_limited_total",
			Help:      "Total requests rejected by a per-user rate limit.",
		},
		[]string{"service", "limit"},
	)
	retriesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tpc",
			Subsystem: "upstream",
			Name:      "retries_total",
			Help:      "Total retried upstream calls by operation.",
		},
		[]string{"service", "operation"},
	)
	breakerTransitions := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tpc",
			Subsystem: "upstream",
			Name:      "breaker_transitions_total",
			Help:      "Circuit breaker state changes by operation.",
		},
		[]string{"service", "operation", "from", "to"},
	)

	registry.MustRegister(fallbackTotal, aiCallsTotal, quotaRejectedTotal, rateLimitedTotal, retriesTotal, breakerTransitions)

	return &PipelineMetrics{
		service:            service,
		fallbackTotal:      fallbackTotal,
		aiCallsTotal:       aiCallsTotal,
		quotaRejectedTotal: quotaRejectedTotal,
		rateLimitedTotal:   rateLimitedTotal,
		retriesTotal:       retriesTotal,
		breakerTransitions: breakerTransitions,
	}
}

func (m *PipelineMetrics) FallbackUsed(component string) {
	m.fallbackTotal.WithLabelValues(m.service, component).Inc()
}

func (m *PipelineMetrics) AICall(operation, outcome string) {
	m.aiCallsTotal.WithLabelValues(m.service, operation, outcome).Inc()
}

func (m *PipelineMetrics) QuotaRejected(operation string) {
	m.quotaRejectedTotal.WithLabelValues(m.service, operation).Inc()
}

func (m *PipelineMetrics) RateLimited(limit string) {
	m.rateLimitedTotal.WithLabelValues(m.service, limit).Inc()
}

func (m *PipelineMetrics) RetryAttempted(operation string) {
	m.retriesTotal.WithLabelValues(m.service, operation).Inc()
}

func (m *PipelineMetrics) BreakerStateChanged(operation, from, to string) {
	m.breakerTransitions.WithLabelValues(m.service, operation, from, to).Inc()
}
