// Package metrics exposes prometheus instrumentation for the engine.
// One-shot CLI sessions update the registry but never serve it; the
// long-lived arbiter exposes it over /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dd0wney/cluso-lineage/pkg/audit"
	"github.com/dd0wney/cluso-lineage/pkg/graph"
)

// Registry bundles every engine metric behind one prometheus registry.
type Registry struct {
	registry *prometheus.Registry

	NodesTotal              prometheus.Gauge
	EdgesTotal              prometheus.Gauge
	StaleNodesTotal         prometheus.Gauge
	MutationsTotal          *prometheus.CounterVec
	InvalidationsTotal      prometheus.Counter
	InvalidationCascadeSize prometheus.Histogram
	ClaimsTotal             *prometheus.CounterVec
	ValidationIssues        *prometheus.GaugeVec
}

// NewRegistry creates a registry with all engine metrics registered.
func NewRegistry() *Registry {
	r := &Registry{registry: prometheus.NewRegistry()}

	r.NodesTotal = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "lineage_nodes_total",
			Help: "Total number of nodes in the graph",
		},
	)

	r.EdgesTotal = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "lineage_edges_total",
			Help: "Total number of dependency edges in the graph",
		},
	)

	r.StaleNodesTotal = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "lineage_stale_nodes_total",
			Help: "Number of nodes currently marked stale",
		},
	)

	r.MutationsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "lineage_mutations_total",
			Help: "Total graph mutations by audit action",
		},
		[]string{"action"},
	)

	r.InvalidationsTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "lineage_invalidations_total",
			Help: "Total invalidation cascades performed",
		},
	)

	r.InvalidationCascadeSize = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "lineage_invalidation_cascade_size",
			Help:    "Number of nodes changed per invalidation cascade",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100, 250},
		},
	)

	r.ClaimsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "lineage_claims_total",
			Help: "Task claim attempts by result",
		},
		[]string{"result"}, // claimed, rejected
	)

	r.ValidationIssues = promauto.With(r.registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "lineage_validation_issues",
			Help: "Issues found by the last validation run, by kind",
		},
		[]string{"kind"},
	)

	return r
}

// ObserveEvents counts a session's committed mutations by audit action.
func (r *Registry) ObserveEvents(events []audit.Event) {
	for _, e := range events {
		r.MutationsTotal.WithLabelValues(string(e.Action)).Inc()
	}
}

// ObserveInvalidation records one invalidation cascade and how many nodes
// it changed.
func (r *Registry) ObserveInvalidation(changed int) {
	r.InvalidationsTotal.Inc()
	r.InvalidationCascadeSize.Observe(float64(changed))
}

// ObserveGraph refreshes the size gauges from the current graph state.
func (r *Registry) ObserveGraph(g *graph.Graph) {
	r.NodesTotal.Set(float64(g.NodeCount()))
	r.EdgesTotal.Set(float64(g.EdgeCount()))

	stale := 0
	for _, node := range g.Nodes {
		if node.Status == graph.StatusStale {
			stale++
		}
	}
	r.StaleNodesTotal.Set(float64(stale))
}

// ObserveValidation refreshes the issue gauges from a validation run.
func (r *Registry) ObserveValidation(issues []graph.Issue) {
	counts := map[graph.IssueKind]int{
		graph.IssueDanglingReference:  0,
		graph.IssueCycle:              0,
		graph.IssueInconsistentStatus: 0,
	}
	for _, issue := range issues {
		counts[issue.Kind]++
	}
	for kind, n := range counts {
		r.ValidationIssues.WithLabelValues(string(kind)).Set(float64(n))
	}
}

// Handler returns an HTTP handler serving the registry.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Gather exposes the underlying registry for tests.
func (r *Registry) Gather() prometheus.Gatherer {
	return r.registry
}
