package graph

import (
	"errors"
	"testing"

	"github.com/dd0wney/cluso-lineage/pkg/audit"
)

// mustAdd creates a node and fails the test on error.
func mustAdd(t *testing.T, g *Graph, id string, typ NodeType, deps ...string) {
	t.Helper()
	if _, err := g.AddNode(id, typ, "node "+id, deps, nil); err != nil {
		t.Fatalf("AddNode(%s) failed: %v", id, err)
	}
}

// mustStatus overrides a node's status and fails the test on error.
func mustStatus(t *testing.T, g *Graph, id string, status Status) {
	t.Helper()
	if _, err := g.SetStatus(id, status); err != nil {
		t.Fatalf("SetStatus(%s, %s) failed: %v", id, status, err)
	}
}

func TestAddNode_Defaults(t *testing.T) {
	g := New()

	event, err := g.AddNode("raw-data", TypeDataSource, "Raw data", nil, nil)
	if err != nil {
		t.Fatalf("AddNode failed: %v", err)
	}

	node := g.Nodes["raw-data"]
	if node.Status != StatusPending {
		t.Errorf("Expected default status pending, got %s", node.Status)
	}
	if node.Version != 1 {
		t.Errorf("Expected version 1, got %d", node.Version)
	}
	if node.LastValidated != nil {
		t.Errorf("Expected no LastValidated on a fresh node")
	}
	if event.NodeID != "raw-data" {
		t.Errorf("Expected event for raw-data, got %s", event.NodeID)
	}
}

func TestAddNode_SortsDependencies(t *testing.T) {
	g := New()
	mustAdd(t, g, "c", TypeDataSource)
	mustAdd(t, g, "a", TypeDataSource)
	mustAdd(t, g, "b", TypeAnalysis, "c", "a")

	deps := g.Nodes["b"].DependsOn
	if len(deps) != 2 || deps[0] != "a" || deps[1] != "c" {
		t.Errorf("Expected sorted deps [a c], got %v", deps)
	}
}

func TestAddNode_Duplicate(t *testing.T) {
	g := New()
	mustAdd(t, g, "a", TypeDataSource)

	_, err := g.AddNode("a", TypeAnalysis, "again", nil, nil)
	if !errors.Is(err, ErrDuplicateNode) {
		t.Errorf("Expected ErrDuplicateNode, got %v", err)
	}
	if g.Nodes["a"].Type != TypeDataSource {
		t.Errorf("Duplicate AddNode must not overwrite the existing node")
	}
}

func TestAddDependency_BumpsVersion(t *testing.T) {
	g := New()
	mustAdd(t, g, "a", TypeDataSource)
	mustAdd(t, g, "b", TypeAnalysis)

	if _, err := g.AddDependency("b", "a"); err != nil {
		t.Fatalf("AddDependency failed: %v", err)
	}
	if !g.Nodes["b"].DependsOnContains("a") {
		t.Errorf("Expected b to depend on a")
	}
	if g.Nodes["b"].Version != 2 {
		t.Errorf("Expected version 2 after edge add, got %d", g.Nodes["b"].Version)
	}
	if g.Nodes["a"].Version != 1 {
		t.Errorf("Dependency target version must not change, got %d", g.Nodes["a"].Version)
	}
}

func TestAddDependency_UnknownNodes(t *testing.T) {
	g := New()
	mustAdd(t, g, "a", TypeDataSource)

	if _, err := g.AddDependency("ghost", "a"); !errors.Is(err, ErrUnknownNode) {
		t.Errorf("Expected ErrUnknownNode for missing from, got %v", err)
	}
	if _, err := g.AddDependency("a", "ghost"); !errors.Is(err, ErrUnknownNode) {
		t.Errorf("Expected ErrUnknownNode for missing to, got %v", err)
	}
}

func TestAddDependency_DuplicateEdge(t *testing.T) {
	g := New()
	mustAdd(t, g, "a", TypeDataSource)
	mustAdd(t, g, "b", TypeAnalysis, "a")

	_, err := g.AddDependency("b", "a")
	if !errors.Is(err, ErrDuplicateEdge) {
		t.Errorf("Expected ErrDuplicateEdge, got %v", err)
	}
	if g.Nodes["b"].Version != 1 {
		t.Errorf("Rejected edge must not bump version, got %d", g.Nodes["b"].Version)
	}
}

func TestAddDependency_SelfEdge(t *testing.T) {
	g := New()
	mustAdd(t, g, "a", TypeDataSource)

	_, err := g.AddDependency("a", "a")
	if !errors.Is(err, ErrCycle) {
		t.Errorf("Expected ErrCycle for self edge, got %v", err)
	}
}

// TestAddDependency_CycleRejected verifies the edge-time acyclicity check:
// adding an edge that would close a loop fails and leaves the graph
// exactly as it was.
func TestAddDependency_CycleRejected(t *testing.T) {
	g := New()
	mustAdd(t, g, "a", TypeDataSource)
	mustAdd(t, g, "b", TypeAnalysis, "a")
	mustAdd(t, g, "c", TypeReport, "b")

	// a -> c would make a depend on c while c already reaches a.
	_, err := g.AddDependency("a", "c")
	if !errors.Is(err, ErrCycle) {
		t.Fatalf("Expected ErrCycle, got %v", err)
	}

	if len(g.Nodes["a"].DependsOn) != 0 {
		t.Errorf("Rejected edge must not be recorded, got deps %v", g.Nodes["a"].DependsOn)
	}
	if g.Nodes["a"].Version != 1 {
		t.Errorf("Rejected edge must not bump version, got %d", g.Nodes["a"].Version)
	}
	if len(g.findCycles()) != 0 {
		t.Errorf("Graph must stay acyclic after a rejected edge")
	}
}

func TestAddDependency_ReciprocalEdgeRejected(t *testing.T) {
	g := New()
	mustAdd(t, g, "a", TypeAnalysis)
	mustAdd(t, g, "b", TypeAnalysis)

	if _, err := g.AddDependency("a", "b"); err != nil {
		t.Fatalf("AddDependency failed: %v", err)
	}
	versionA, versionB := g.Nodes["a"].Version, g.Nodes["b"].Version

	_, err := g.AddDependency("b", "a")
	if !errors.Is(err, ErrCycle) {
		t.Fatalf("Expected ErrCycle, got %v", err)
	}
	if len(g.Nodes["b"].DependsOn) != 0 {
		t.Errorf("Graph changed by rejected edge: %v", g.Nodes["b"].DependsOn)
	}
	if g.Nodes["a"].Version != versionA || g.Nodes["b"].Version != versionB {
		t.Errorf("Versions changed by rejected edge")
	}
}

func TestRemoveDependency(t *testing.T) {
	g := New()
	mustAdd(t, g, "a", TypeDataSource)
	mustAdd(t, g, "b", TypeAnalysis, "a")

	if _, err := g.RemoveDependency("b", "a"); err != nil {
		t.Fatalf("RemoveDependency failed: %v", err)
	}
	if g.Nodes["b"].DependsOnContains("a") {
		t.Errorf("Expected edge removed")
	}
	if g.Nodes["b"].Version != 2 {
		t.Errorf("Expected version 2 after removal, got %d", g.Nodes["b"].Version)
	}

	if _, err := g.RemoveDependency("b", "a"); !errors.Is(err, ErrEdgeNotFound) {
		t.Errorf("Expected ErrEdgeNotFound on second removal, got %v", err)
	}
}

// A reference to a node that never existed (or was removed) can still be
// deleted: membership in DependsOn is what matters, not the target node.
func TestRemoveDependency_DanglingReference(t *testing.T) {
	g := New()
	mustAdd(t, g, "report", TypeReport, "missing-source")

	if issues := g.Validate(); len(issues) != 1 {
		t.Fatalf("Expected 1 dangling issue before repair, got %v", issues)
	}

	event, err := g.RemoveDependency("report", "missing-source")
	if err != nil {
		t.Fatalf("RemoveDependency failed: %v", err)
	}
	if event.Action != audit.ActionDependencyRemoved {
		t.Errorf("Unexpected event action %s", event.Action)
	}
	if g.Nodes["report"].DependsOnContains("missing-source") {
		t.Errorf("Expected dangling reference removed")
	}
	if g.Nodes["report"].Version != 2 {
		t.Errorf("Expected version 2 after removal, got %d", g.Nodes["report"].Version)
	}
	if issues := g.Validate(); len(issues) != 0 {
		t.Errorf("Expected clean graph after repair, got %v", issues)
	}
}

// Rewiring away from a dangling reference replaces it with a live edge.
func TestRewire_RepairsDanglingDependency(t *testing.T) {
	g := New()
	mustAdd(t, g, "source", TypeDataSource)
	mustAdd(t, g, "report", TypeReport, "missing-source")

	if _, err := g.Rewire("report", "missing-source", "source"); err != nil {
		t.Fatalf("Rewire failed: %v", err)
	}
	deps := g.Nodes["report"].DependsOn
	if len(deps) != 1 || deps[0] != "source" {
		t.Errorf("Expected deps [source], got %v", deps)
	}
	if issues := g.Validate(); len(issues) != 0 {
		t.Errorf("Expected clean graph after rewire, got %v", issues)
	}
}

func TestSetStatus_ValidRecordsTimestamp(t *testing.T) {
	g := New()
	mustAdd(t, g, "a", TypeDataSource)

	event, err := g.SetStatus("a", StatusValid)
	if err != nil {
		t.Fatalf("SetStatus failed: %v", err)
	}
	if g.Nodes["a"].Status != StatusValid {
		t.Errorf("Expected status valid, got %s", g.Nodes["a"].Status)
	}
	if g.Nodes["a"].LastValidated == nil {
		t.Errorf("Expected LastValidated to be set when marking valid")
	}
	if event.Detail != "pending -> valid" {
		t.Errorf("Unexpected event detail %q", event.Detail)
	}

	// Non-valid transitions leave the timestamp alone.
	before := *g.Nodes["a"].LastValidated
	mustStatus(t, g, "a", StatusStale)
	if !g.Nodes["a"].LastValidated.Equal(before) {
		t.Errorf("LastValidated must not change on a stale transition")
	}
}

func TestUpdateNode(t *testing.T) {
	g := New()
	mustAdd(t, g, "a", TypeReport, "x")

	if _, err := g.UpdateNode("a", "Quarterly report", []string{"q3"}, "new notes"); err != nil {
		t.Fatalf("UpdateNode failed: %v", err)
	}

	node := g.Nodes["a"]
	if node.Title != "Quarterly report" || node.Notes != "new notes" {
		t.Errorf("Metadata not updated: %+v", node)
	}
	if len(node.DependsOn) != 1 || node.DependsOn[0] != "x" {
		t.Errorf("UpdateNode must not touch dependencies, got %v", node.DependsOn)
	}
	if node.Version != 2 {
		t.Errorf("Expected version 2, got %d", node.Version)
	}

	if _, err := g.UpdateNode("ghost", "t", nil, ""); !errors.Is(err, ErrUnknownNode) {
		t.Errorf("Expected ErrUnknownNode, got %v", err)
	}
}

func TestRewire_Atomic(t *testing.T) {
	g := New()
	mustAdd(t, g, "old", TypeDataSource)
	mustAdd(t, g, "new", TypeDataSource)
	mustAdd(t, g, "b", TypeAnalysis, "old")

	events, err := g.Rewire("b", "old", "new")
	if err != nil {
		t.Fatalf("Rewire failed: %v", err)
	}
	if len(events) != 2 {
		t.Errorf("Expected 2 events (remove+add), got %d", len(events))
	}
	if g.Nodes["b"].DependsOnContains("old") || !g.Nodes["b"].DependsOnContains("new") {
		t.Errorf("Expected b to depend on new only, got %v", g.Nodes["b"].DependsOn)
	}
}

// TestRewire_CycleLeavesGraphUnchanged verifies that a rewire rejected by
// the cycle check does not remove the old edge: either both changes apply
// or neither.
func TestRewire_CycleLeavesGraphUnchanged(t *testing.T) {
	g := New()
	mustAdd(t, g, "a", TypeDataSource)
	mustAdd(t, g, "b", TypeAnalysis, "a")
	mustAdd(t, g, "c", TypeReport, "b")

	// b -> c would close a loop, since c reaches b.
	_, err := g.Rewire("b", "a", "c")
	if !errors.Is(err, ErrCycle) {
		t.Fatalf("Expected ErrCycle, got %v", err)
	}

	if !g.Nodes["b"].DependsOnContains("a") {
		t.Errorf("Old edge must survive a rejected rewire")
	}
	if g.Nodes["b"].Version != 1 {
		t.Errorf("Rejected rewire must not bump version, got %d", g.Nodes["b"].Version)
	}
}

func TestRewire_MissingOldEdge(t *testing.T) {
	g := New()
	mustAdd(t, g, "a", TypeDataSource)
	mustAdd(t, g, "b", TypeAnalysis)

	if _, err := g.Rewire("b", "a", "a"); !errors.Is(err, ErrEdgeNotFound) {
		t.Errorf("Expected ErrEdgeNotFound, got %v", err)
	}
}

func TestEdgeCount(t *testing.T) {
	g := New()
	mustAdd(t, g, "a", TypeDataSource)
	mustAdd(t, g, "b", TypeParameter)
	mustAdd(t, g, "c", TypeAnalysis, "a", "b")
	mustAdd(t, g, "d", TypeReport, "c")

	if got := g.EdgeCount(); got != 3 {
		t.Errorf("Expected 3 edges, got %d", got)
	}
	if got := g.NodeCount(); got != 4 {
		t.Errorf("Expected 4 nodes, got %d", got)
	}
}

func TestGraphError_Message(t *testing.T) {
	g := New()
	_, err := g.AddDependency("ghost", "also-ghost")

	var ge *GraphError
	if !errors.As(err, &ge) {
		t.Fatalf("Expected *GraphError, got %T", err)
	}
	if ge.Op != "AddDependency" || ge.NodeID != "ghost" {
		t.Errorf("Unexpected error fields: %+v", ge)
	}
}
