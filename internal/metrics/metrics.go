// Package metrics exposes Prometheus metrics for the request layer.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the request-layer Prometheus collectors behind a private
// registry. A nil *Metrics is valid and records nothing, so instrumented
// components never need to branch on whether metrics are enabled.
type Metrics struct {
	registry *prometheus.Registry

	requests       *prometheus.CounterVec
	duration       *prometheus.HistogramVec
	retries        *prometheus.CounterVec
	renewals       *prometheus.CounterVec
	renewalWaiters prometheus.Gauge
}

// New creates a Metrics instance with all collectors registered.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.requests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_requests_total",
			Help: "Total number of logical requests by final outcome",
		},
		[]string{"method", "outcome"},
	)

	m.duration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "relay_request_duration_seconds",
			Help:    "End-to-end request duration including retries and renewal",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"method", "outcome"},
	)

	m.retries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_retries_total",
			Help: "Total number of backoff retries by failure kind",
		},
		[]string{"kind"},
	)

	m.renewals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_credential_renewals_total",
			Help: "Total number of credential renewal calls by outcome",
		},
		[]string{"outcome"},
	)

	m.renewalWaiters = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "relay_renewal_waiters",
		Help: "Number of callers currently queued on an in-flight renewal",
	})

	m.registry.MustRegister(m.requests, m.duration, m.retries, m.renewals, m.renewalWaiters)
	return m
}

// Handler returns an HTTP handler serving the registry in Prometheus format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRequest records a finished logical request.
func (m *Metrics) ObserveRequest(method, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, outcome).Inc()
	m.duration.WithLabelValues(method, outcome).Observe(elapsed.Seconds())
}

// IncRetry records one backoff retry for the given failure kind.
func (m *Metrics) IncRetry(kind string) {
	if m == nil {
		return
	}
	m.retries.WithLabelValues(kind).Inc()
}

// IncRenewal records one renewal call outcome ("success" or "failure").
func (m *Metrics) IncRenewal(outcome string) {
	if m == nil {
		return
	}
	m.renewals.WithLabelValues(outcome).Inc()
}

// AddRenewalWaiters adjusts the queued-waiter gauge.
func (m *Metrics) AddRenewalWaiters(delta float64) {
	if m == nil {
		return
	}
	m.renewalWaiters.Add(delta)
}
