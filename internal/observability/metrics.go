package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "admin_portal"

// Metrics holds the Prometheus collectors for the service
type Metrics struct {
	AuthDecisions       *prometheus.CounterVec
	KeyFetches          *prometheus.CounterVec
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	UpstreamRequests    *prometheus.CounterVec

	registerer prometheus.Registerer
	gatherer   prometheus.Gatherer
}

// NewMetrics creates the collectors and registers them on a fresh registry
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return NewMetricsWith(reg, reg)
}

// NewMetricsWith registers the collectors on reg and serves them from gatherer
func NewMetricsWith(reg prometheus.Registerer, gatherer prometheus.Gatherer) *Metrics {
	m := &Metrics{
		AuthDecisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "auth_decisions_total",
				Help:      "Token verification outcomes by denial reason",
			},
			[]string{"outcome", "reason"},
		),
		KeyFetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "signing_key_lookups_total",
				Help:      "Signing key lookups by result",
			},
			[]string{"result"},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Histogram of HTTP request latency",
				Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"method", "route"},
		),
		UpstreamRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "google_api_requests_total",
				Help:      "Outbound Google API requests by service and status",
			},
			[]string{"service", "status"},
		),
		registerer: reg,
		gatherer:   gatherer,
	}

	reg.MustRegister(
		m.AuthDecisions,
		m.KeyFetches,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.UpstreamRequests,
	)

	return m
}

// RecordDecision counts a token verification outcome
func (m *Metrics) RecordDecision(outcome, reason string) {
	m.AuthDecisions.WithLabelValues(outcome, reason).Inc()
}

// RecordKeyFetch counts a signing key lookup
func (m *Metrics) RecordKeyFetch(result string) {
	m.KeyFetches.WithLabelValues(result).Inc()
}

// RecordRequest counts a finished HTTP request and observes its latency
func (m *Metrics) RecordRequest(method, route string, status int, elapsed time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// RecordUpstream counts an outbound Google API call. status is the HTTP
// status code, or 0 when no response was received.
func (m *Metrics) RecordUpstream(service string, status int) {
	m.UpstreamRequests.WithLabelValues(service, strconv.Itoa(status)).Inc()
}

// GaugeFunc registers a gauge whose value is read from fn at scrape time
func (m *Metrics) GaugeFunc(name, help string, fn func() float64) {
	m.registerer.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	}, fn))
}

// CounterFunc registers a counter whose value is read from fn at scrape time.
// fn must never decrease.
func (m *Metrics) CounterFunc(name, help string, fn func() float64) {
	m.registerer.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	}, fn))
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
