package metrics

import (
	"testing"

	dto "github.com/prometheus/client_model/go"

	"github.com/dd0wney/cluso-lineage/pkg/audit"
	"github.com/dd0wney/cluso-lineage/pkg/graph"
)

func metricFamily(t *testing.T, r *Registry, name string) *dto.MetricFamily {
	t.Helper()
	families, err := r.Gather().Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	for _, family := range families {
		if family.GetName() == name {
			return family
		}
	}
	t.Fatalf("Metric %s not found", name)
	return nil
}

func gaugeValue(t *testing.T, r *Registry, name string) float64 {
	t.Helper()
	families, err := r.Gather().Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	for _, family := range families {
		if family.GetName() == name {
			return family.GetMetric()[0].GetGauge().GetValue()
		}
	}
	t.Fatalf("Metric %s not found", name)
	return 0
}

func labeledGaugeValue(t *testing.T, r *Registry, name, labelValue string) float64 {
	t.Helper()
	families, err := r.Gather().Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, metric := range family.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetValue() == labelValue {
					return metric.GetGauge().GetValue()
				}
			}
		}
	}
	t.Fatalf("Metric %s{%s} not found", name, labelValue)
	return 0
}

func TestObserveGraph(t *testing.T) {
	r := NewRegistry()

	g := graph.New()
	if _, err := g.AddNode("a", graph.TypeDataSource, "A", nil, nil); err != nil {
		t.Fatalf("AddNode failed: %v", err)
	}
	if _, err := g.AddNode("b", graph.TypeAnalysis, "B", []string{"a"}, nil); err != nil {
		t.Fatalf("AddNode failed: %v", err)
	}
	if _, err := g.SetStatus("b", graph.StatusStale); err != nil {
		t.Fatalf("SetStatus failed: %v", err)
	}

	r.ObserveGraph(g)

	if got := gaugeValue(t, r, "lineage_nodes_total"); got != 2 {
		t.Errorf("lineage_nodes_total: expected 2, got %v", got)
	}
	if got := gaugeValue(t, r, "lineage_edges_total"); got != 1 {
		t.Errorf("lineage_edges_total: expected 1, got %v", got)
	}
	if got := gaugeValue(t, r, "lineage_stale_nodes_total"); got != 1 {
		t.Errorf("lineage_stale_nodes_total: expected 1, got %v", got)
	}
}

func TestObserveValidation(t *testing.T) {
	r := NewRegistry()

	r.ObserveValidation([]graph.Issue{
		{Kind: graph.IssueDanglingReference, NodeID: "x", Ref: "Y"},
		{Kind: graph.IssueDanglingReference, NodeID: "z", Ref: "W"},
	})

	if got := labeledGaugeValue(t, r, "lineage_validation_issues", "dangling_reference"); got != 2 {
		t.Errorf("Expected 2 dangling issues, got %v", got)
	}
	if got := labeledGaugeValue(t, r, "lineage_validation_issues", "cycle"); got != 0 {
		t.Errorf("Expected 0 cycle issues reported explicitly, got %v", got)
	}

	// A later clean run resets the gauges.
	r.ObserveValidation(nil)
	if got := labeledGaugeValue(t, r, "lineage_validation_issues", "dangling_reference"); got != 0 {
		t.Errorf("Expected gauge reset to 0, got %v", got)
	}
}

// Every committed session's events land in the mutation counter, broken
// down by action.
func TestObserveEvents(t *testing.T) {
	r := NewRegistry()

	r.ObserveEvents([]audit.Event{
		audit.NewEvent(audit.ActionNodeAdded, "a", ""),
		audit.NewEvent(audit.ActionNodeAdded, "b", ""),
		audit.NewEvent(audit.ActionStatusChanged, "a", "pending -> valid"),
	})

	family := metricFamily(t, r, "lineage_mutations_total")
	counts := map[string]float64{}
	for _, metric := range family.GetMetric() {
		counts[metric.GetLabel()[0].GetValue()] = metric.GetCounter().GetValue()
	}
	if counts["node_added"] != 2 || counts["status_changed"] != 1 {
		t.Errorf("Unexpected mutation counts: %v", counts)
	}
}

func TestObserveInvalidation(t *testing.T) {
	r := NewRegistry()

	r.ObserveInvalidation(3)
	r.ObserveInvalidation(0)

	total := metricFamily(t, r, "lineage_invalidations_total")
	if got := total.GetMetric()[0].GetCounter().GetValue(); got != 2 {
		t.Errorf("lineage_invalidations_total: expected 2, got %v", got)
	}

	hist := metricFamily(t, r, "lineage_invalidation_cascade_size").GetMetric()[0].GetHistogram()
	if hist.GetSampleCount() != 2 {
		t.Errorf("Expected 2 cascade samples, got %d", hist.GetSampleCount())
	}
	if hist.GetSampleSum() != 3 {
		t.Errorf("Expected cascade sum 3, got %v", hist.GetSampleSum())
	}
}

func TestClaimsCounter(t *testing.T) {
	r := NewRegistry()
	r.ClaimsTotal.WithLabelValues("claimed").Inc()
	r.ClaimsTotal.WithLabelValues("rejected").Inc()
	r.ClaimsTotal.WithLabelValues("claimed").Inc()

	families, err := r.Gather().Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}

	var family *dto.MetricFamily
	for _, f := range families {
		if f.GetName() == "lineage_claims_total" {
			family = f
		}
	}
	if family == nil {
		t.Fatalf("lineage_claims_total not found")
	}

	counts := map[string]float64{}
	for _, metric := range family.GetMetric() {
		counts[metric.GetLabel()[0].GetValue()] = metric.GetCounter().GetValue()
	}
	if counts["claimed"] != 2 || counts["rejected"] != 1 {
		t.Errorf("Unexpected claim counts: %v", counts)
	}
}
