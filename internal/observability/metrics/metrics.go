// Package metrics exposes the gate's Prometheus instruments. All methods are
// safe on a nil *Metrics so components can run without instrumentation.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	obserrors "github.com/target/marketgate/internal/observability/errors"
)

// Result labels.
const (
	ResultSuccess = "success"
	ResultError   = "error"
)

// Config configures the instruments.
type Config struct {
	// Namespace prefixes every metric name (default "marketgate").
	Namespace string
	// Registry receives the collectors. A fresh registry with Go and process
	// collectors is created when nil.
	Registry *prometheus.Registry
	Buckets  []float64
}

// Metrics holds the collectors.
type Metrics struct {
	registry *prometheus.Registry

	gateDecisions   *prometheus.CounterVec
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	authOps         *prometheus.CounterVec
	policyReloads   *prometheus.CounterVec
	policyRules     prometheus.Gauge
	profileFailures *prometheus.CounterVec
}

// New registers the collectors with cfg.Registry.
func New(cfg Config) *Metrics {
	if cfg.Namespace == "" {
		cfg.Namespace = "marketgate"
	}
	if cfg.Buckets == nil {
		cfg.Buckets = prometheus.DefBuckets
	}
	reg := cfg.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		gateDecisions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: "gate",
			Name:      "decisions_total",
			Help:      "Authorization decisions by outcome and area.",
		}, []string{"outcome", "area"}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   cfg.Buckets,
		}, []string{"method", "route"}),
		authOps: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: "auth",
			Name:      "operations_total",
			Help:      "Backend auth operations by result and error class.",
		}, []string{"op", "result", "error_class"}),
		policyReloads: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: "gate",
			Name:      "policy_reloads_total",
			Help:      "Policy file reload attempts.",
		}, []string{"result"}),
		policyRules: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: "gate",
			Name:      "policy_rules",
			Help:      "Rules in the active policy.",
		}),
		profileFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: "client",
			Name:      "profile_failures_total",
			Help:      "Failed profile resolutions in the client auth context.",
		}, []string{"error_class"}),
	}
}

// Registry returns the registry the collectors live in.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// GateDecision counts one authorization decision. area is empty for
// passthrough and auth-only routes.
func (m *Metrics) GateDecision(outcome, area string) {
	if m == nil {
		return
	}
	if area == "" {
		area = "none"
	}
	m.gateDecisions.WithLabelValues(outcome, area).Inc()
}

// HTTPRequest records a served request. route should be a mux pattern, not a raw path.
func (m *Metrics) HTTPRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// AuthOp records the result of a backend auth operation.
func (m *Metrics) AuthOp(op string, err error) {
	if m == nil {
		return
	}
	result := ResultSuccess
	if err != nil {
		result = ResultError
	}
	m.authOps.WithLabelValues(op, result, obserrors.Classify(err)).Inc()
}

// PolicyReload records a reload attempt and, on success, the new rule count.
func (m *Metrics) PolicyReload(err error, rules int) {
	if m == nil {
		return
	}
	if err != nil {
		m.policyReloads.WithLabelValues(ResultError).Inc()
		return
	}
	m.policyReloads.WithLabelValues(ResultSuccess).Inc()
	m.policyRules.Set(float64(rules))
}

// ProfileFailure counts a failed profile resolution.
func (m *Metrics) ProfileFailure(err error) {
	if m == nil || err == nil {
		return
	}
	m.profileFailures.WithLabelValues(obserrors.Classify(err)).Inc()
}
