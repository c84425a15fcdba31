package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/liliganster/tp-companion/internal/core/domain"
)

const outcomeDone = "done"

var (
	jobDurationBuckets = []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120, 300}
	queueLagBuckets    = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600}
)

// WorkerMetrics tracks call sheet processing in the worker process. Failed
// jobs are labeled with the error kind so parse failures and upstream outages
// are told apart on dashboards.
type WorkerMetrics struct {
	registry *prometheus.Registry

	jobs        *prometheus.CounterVec
	jobDuration *prometheus.HistogramVec
	jobsActive  prometheus.Gauge
	queueLag    *prometheus.HistogramVec
	reaped      *prometheus.CounterVec

	pipeline *PipelineMetrics
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	m := &WorkerMetrics{
		registry: prometheus.NewRegistry(),
		jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tpc",
			Subsystem: "worker",
			Name:      "callsheet_jobs_total",
			Help:      "Call sheet jobs processed by outcome.",
		}, []string{"service", "outcome"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "tpc",
			Subsystem: "worker",
			Name:      "callsheet_job_duration_seconds",
			Help:      "Time spent extracting and resolving one call sheet.",
			Buckets:   jobDurationBuckets,
		}, []string{"service", "outcome"}),
		jobsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "tpc",
			Subsystem:   "worker",
			Name:        "callsheet_jobs_active",
			Help:        "Call sheet jobs currently being processed.",
			ConstLabels: prometheus.Labels{"service": service},
		}),
		queueLag: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "tpc",
			Subsystem: "worker",
			Name:      "queue_lag_seconds",
			Help:      "Delay between a job being queued and picked up.",
			Buckets:   queueLagBuckets,
		}, []string{"service"}),
		reaped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tpc",
			Subsystem: "worker",
			Name:      "reaped_jobs_total",
			Help:      "Stale jobs handled by the reaper by action.",
		}, []string{"service", "action"}),
	}

	m.registry.MustRegister(
		m.jobs, m.jobDuration, m.jobsActive, m.queueLag, m.reaped,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m.pipeline = newPipelineMetrics(service, m.registry)
	return m
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) Pipeline() *PipelineMetrics {
	return m.pipeline
}

func (m *WorkerMetrics) StartJob() {
	m.jobsActive.Inc()
}

// FinishJob records a processed job. A nil error counts as "done", anything
// else under its error kind name.
func (m *WorkerMetrics) FinishJob(service string, duration time.Duration, err error) {
	m.jobsActive.Dec()

	outcome := outcomeDone
	if err != nil {
		outcome = domain.KindName(err)
	}
	m.jobs.WithLabelValues(service, outcome).Inc()
	m.jobDuration.WithLabelValues(service, outcome).Observe(duration.Seconds())
}

// ObserveQueueLag ignores negative lag caused by clock skew between hosts.
func (m *WorkerMetrics) ObserveQueueLag(service string, lag time.Duration) {
	if lag < 0 {
		return
	}
	m.queueLag.WithLabelValues(service).Observe(lag.Seconds())
}

func (m *WorkerMetrics) RecordReaped(service string, failed, republished int) {
	for action, n := range map[string]int{"failed": failed, "republished": republished} {
		if n > 0 {
			m.reaped.WithLabelValues(service, action).Add(float64(n))
		}
	}
}
