// Package metrics exposes Prometheus collectors for the HTTP API, booking
// admission, the response cache and WebSocket connections.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/coworking-booking/internal/booking"
)

// Metrics groups the collectors registered on one registry.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpErrorsTotal     *prometheus.CounterVec

	admissionsTotal   *prometheus.CounterVec
	admissionDuration prometheus.Histogram

	cacheLookupsTotal *prometheus.CounterVec

	wsActiveConnections prometheus.Gauge
}

// New registers every collector, plus the Go and process collectors, on a
// fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests.",
			},
			[]string{"method", "endpoint", "status"},
		),
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint", "status"},
		),
		httpErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_errors_total",
				Help: "Total number of HTTP responses with status >= 400.",
			},
			[]string{"method", "endpoint", "status"},
		),
		admissionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "booking_admissions_total",
				Help: "Booking admission attempts by outcome.",
			},
			[]string{"outcome"},
		),
		admissionDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "booking_admission_duration_seconds",
				Help:    "Time spent holding the room lock for an admission.",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
		),
		cacheLookupsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "response_cache_lookups_total",
				Help: "Response cache lookups by result.",
			},
			[]string{"result"},
		),
		wsActiveConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "ws_active_connections",
				Help: "Number of open WebSocket connections.",
			},
		),
	}
}

// RecordHTTP records one completed request.
func (m *Metrics) RecordHTTP(method, endpoint string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	code := strconv.Itoa(status)
	m.httpRequestsTotal.WithLabelValues(method, endpoint, code).Inc()
	m.httpRequestDuration.WithLabelValues(method, endpoint, code).Observe(duration.Seconds())
	if status >= 400 {
		m.httpErrorsTotal.WithLabelValues(method, endpoint, code).Inc()
	}
}

// ObserveAdmission matches booking.Observer.
func (m *Metrics) ObserveAdmission(outcome booking.Outcome, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.admissionsTotal.WithLabelValues(string(outcome)).Inc()
	m.admissionDuration.Observe(elapsed.Seconds())
}

// ObserveCache records a cache hit or miss.
func (m *Metrics) ObserveCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookupsTotal.WithLabelValues(result).Inc()
}

// SetWSActiveConnections sets the open connection gauge.
func (m *Metrics) SetWSActiveConnections(count int) {
	if m == nil {
		return
	}
	m.wsActiveConnections.Set(float64(count))
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
