// Package metrics exposes the store's Prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"appstore/internal/auth"
)

const namespace = "appstore"

// Metrics owns a registry and every collector registered on it.
// It satisfies auth.Observer.
type Metrics struct {
	Registry *prometheus.Registry

	httpInFlight   prometheus.Gauge
	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
	queryDuration  *prometheus.HistogramVec
	guardDecisions *prometheus.CounterVec
	provisioned    prometheus.Counter
	downloads      prometheus.Counter
	rateLimited    prometheus.Counter
	dispatches     *prometheus.CounterVec
	sweeps         *prometheus.CounterVec
}

var _ auth.Observer = (*Metrics)(nil)

// New creates a Metrics with its own registry, including Go and process collectors.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		}, []string{"method", "route"}),
		queryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "query_duration_seconds",
			Help:      "Duration of SQLite calls by operation.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		}, []string{"op"}),
		guardDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "guard_decisions_total",
			Help:      "Guard outcomes; degraded is true when resolution hit an error.",
		}, []string{"decision", "degraded"}),
		provisioned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "accounts_provisioned_total",
			Help:      "Default member accounts created on first sight of an identity.",
		}),
		downloads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "catalog",
			Name:      "downloads_total",
			Help:      "Signed download links issued.",
		}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the per-client rate limiter.",
		}),
		dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "router",
			Name:      "dispatches_total",
			Help:      "Route dispatches by matched pattern.",
		}, []string{"pattern"}),
		sweeps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "swept_total",
			Help:      "Expired rows or sessions removed by background sweeps.",
		}, []string{"job"}),
	}
	m.Registry.MustRegister(
		m.httpInFlight,
		m.httpRequests,
		m.httpDuration,
		m.queryDuration,
		m.guardDecisions,
		m.provisioned,
		m.downloads,
		m.rateLimited,
		m.dispatches,
		m.sweeps,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
	return m
}

// Handler returns an HTTP handler exposing the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// RequestStarted increments the in-flight gauge and returns its matching decrement.
func (m *Metrics) RequestStarted() (done func()) {
	m.httpInFlight.Inc()
	return m.httpInFlight.Dec
}

// ObserveRequest records one finished HTTP request. route should be a pattern,
// not a raw path, to keep label cardinality bounded.
func (m *Metrics) ObserveRequest(method, route string, status int, d time.Duration) {
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// ObserveQuery records one database call.
func (m *Metrics) ObserveQuery(op string, d time.Duration) {
	m.queryDuration.WithLabelValues(op).Observe(d.Seconds())
}

// AccountProvisioned implements auth.Observer.
func (m *Metrics) AccountProvisioned() {
	m.provisioned.Inc()
}

// GuardDecision implements auth.Observer.
func (m *Metrics) GuardDecision(d auth.Decision, cause error) {
	m.guardDecisions.WithLabelValues(d.String(), strconv.FormatBool(cause != nil)).Inc()
}

// DownloadIssued counts a signed download link.
func (m *Metrics) DownloadIssued() {
	m.downloads.Inc()
}

// RateLimited counts a rejected request.
func (m *Metrics) RateLimited() {
	m.rateLimited.Inc()
}

// RouteDispatched counts a router dispatch for pattern ("" for not found).
func (m *Metrics) RouteDispatched(pattern string) {
	if pattern == "" {
		pattern = "not_found"
	}
	m.dispatches.WithLabelValues(pattern).Inc()
}

// Swept counts n rows removed by job.
func (m *Metrics) Swept(job string, n int) {
	if n > 0 {
		m.sweeps.WithLabelValues(job).Add(float64(n))
	}
}
