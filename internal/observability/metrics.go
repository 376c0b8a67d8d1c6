package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "library_portal"

// Metrics holds the portal's Prometheus collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	RoleAssignments *prometheus.CounterVec
	AccessDecisions *prometheus.CounterVec
	CatalogRequests *prometheus.CounterVec
	CatalogLatency  *prometheus.HistogramVec
	AuditDropped    prometheus.Counter
}

// NewMetrics registers all collectors. withRuntime adds the Go and
// process collectors, which tests usually leave out.
func NewMetrics(withRuntime bool) *Metrics {
	reg := prometheus.NewRegistry()
	if withRuntime {
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	m := &Metrics{
		registry: reg,
		RoleAssignments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "role_assignments_total",
			Help:      "Roles assigned at sign-in.",
		}, []string{"role"}),
		AccessDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "access_decisions_total",
			Help:      "Route guard decisions by requirement and outcome.",
		}, []string{"requirement", "outcome"}),
		CatalogRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_requests_total",
			Help:      "Calls to the catalog API by operation and outcome.",
		}, []string{"operation", "outcome"}),
		CatalogLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "catalog_request_duration_seconds",
			Help:      "Latency of catalog API calls.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		AuditDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_events_dropped_total",
			Help:      "Audit events dropped because the buffer was full.",
		}),
	}

	reg.MustRegister(m.RoleAssignments, m.AccessDecisions, m.CatalogRequests, m.CatalogLatency, m.AuditDropped)
	return m
}

// Handler exposes the registry for scraping.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
