package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTPServerMetrics instruments the API process. Job routes are collapsed
// to a template so label cardinality stays bounded.
type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requests         *prometheus.CounterVec
	latency          *prometheus.HistogramVec
	requestsInFlight prometheus.Gauge

	pipeline *PipelineMetrics
}

var apiLatencyBuckets = []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	m := &HTTPServerMetrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tpc",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "API requests by route and response status.",
		}, []string{"service", "method", "route", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "tpc",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "API request latency by route.",
			Buckets:   apiLatencyBuckets,
		}, []string{"service", "method", "route"}),
		requestsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "tpc",
			Subsystem:   "http",
			Name:        "in_flight_requests",
			Help:        "API requests currently being served.",
			ConstLabels: prometheus.Labels{"service": service},
		}),
	}
	m.registry.MustRegister(
		m.requests, m.latency, m.requestsInFlight,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m.pipeline = newPipelineMetrics(service, m.registry)
	return m
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Pipeline returns the counters shared with use cases and upstream clients.
func (m *HTTPServerMetrics) Pipeline() *PipelineMetrics {
	return m.pipeline
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		route := routeTemplate(r.URL.Path)
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		m.requestsInFlight.Inc()
		defer m.requestsInFlight.Dec()

		next.ServeHTTP(ww, r)

		m.requests.WithLabelValues(service, r.Method, route, statusLabel(ww.Status())).Inc()
		m.latency.WithLabelValues(service, r.Method, route).Observe(time.Since(start).Seconds())
	})
}

func routeTemplate(path string) string {
	const prefix = "/v1/jobs/"
	if !strings.HasPrefix(path, prefix) {
		return path
	}
	rest := strings.TrimPrefix(path, prefix)
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		return prefix + "{id}" + rest[i:]
	}
	return prefix + "{id}"
}

func statusLabel(status int) string {
	if status == 0 {
		status = http.StatusOK
	}
	return strconv.Itoa(status)
}
