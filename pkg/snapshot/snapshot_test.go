package snapshot

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/dd0wney/cluso-lineage/pkg/graph"
)

func testGraph(t *testing.T) *graph.Graph {
	t.Helper()
	g := graph.New()
	if _, err := g.AddNode("raw-data", graph.TypeDataSource, "Raw data", nil, nil); err != nil {
		t.Fatalf("AddNode failed: %v", err)
	}
	if _, err := g.AddNode("model", graph.TypeAnalysis, "Model", []string{"raw-data"}, nil); err != nil {
		t.Fatalf("AddNode failed: %v", err)
	}
	return g
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.json")
	g := testGraph(t)

	if err := Save(path, g); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.NodeCount() != 2 || loaded.EdgeCount() != 1 {
		t.Errorf("Expected 2 nodes 1 edge, got %d/%d", loaded.NodeCount(), loaded.EdgeCount())
	}
	if loaded.SchemaVersion != graph.SchemaVersion {
		t.Errorf("Expected schema version %d, got %d", graph.SchemaVersion, loaded.SchemaVersion)
	}
	node := loaded.Nodes["model"]
	if node == nil || !node.DependsOnContains("raw-data") {
		t.Errorf("Dependencies lost in round trip: %+v", node)
	}
}

func TestSave_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "graph.json")
	if err := Save(path, graph.New()); err != nil {
		t.Fatalf("Save into missing directory failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("Snapshot not written: %v", err)
	}
}

func TestLoad_RejectsNewerSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.json")
	if err := os.WriteFile(path, []byte(`{"nodes":{},"schemaVersion":999}`), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Errorf("Expected error for newer schema version")
	}
}

func TestLoadOrInit_MissingFile(t *testing.T) {
	g, err := LoadOrInit(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("LoadOrInit failed: %v", err)
	}
	if g.NodeCount() != 0 {
		t.Errorf("Expected fresh empty graph, got %d nodes", g.NodeCount())
	}
}

// TestSaveGuarded_Conflict: a second session committing between our load
// and save must be detected, not overwritten.
func TestSaveGuarded_Conflict(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.json")
	if err := Save(path, testGraph(t)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// Session A loads.
	sessionA, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	guardA := NewGuard(sessionA)

	// Session B loads, mutates and commits first.
	sessionB, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if _, err := sessionB.SetStatus("model", graph.StatusValid); err != nil {
		t.Fatalf("SetStatus failed: %v", err)
	}
	if err := Save(path, sessionB); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// Session A's save must now conflict.
	if _, err := sessionA.SetStatus("model", graph.StatusStale); err != nil {
		t.Fatalf("SetStatus failed: %v", err)
	}
	err = SaveGuarded(path, sessionA, guardA)
	if !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("Expected ErrVersionConflict, got %v", err)
	}

	// Session B's write survived.
	current, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if current.Nodes["model"].Status != graph.StatusValid {
		t.Errorf("Conflicting save must not overwrite, got %s", current.Nodes["model"].Status)
	}
}

func TestSaveGuarded_NoConflict(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.json")
	if err := Save(path, testGraph(t)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	g, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	guard := NewGuard(g)
	if _, err := g.SetStatus("model", graph.StatusValid); err != nil {
		t.Fatalf("SetStatus failed: %v", err)
	}
	if err := SaveGuarded(path, g, guard); err != nil {
		t.Fatalf("SaveGuarded failed without concurrent writer: %v", err)
	}
}

func TestSaveGuarded_FirstWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.json")
	g := testGraph(t)

	if err := SaveGuarded(path, g, NewGuard(g)); err != nil {
		t.Fatalf("SaveGuarded on a fresh path failed: %v", err)
	}
}

// A node created by another session is a conflict: the guard never saw it.
func TestSaveGuarded_NewNodeConflict(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.json")
	if err := Save(path, testGraph(t)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	sessionA, _ := Load(path)
	guardA := NewGuard(sessionA)

	sessionB, _ := Load(path)
	if _, err := sessionB.AddNode("extra", graph.TypeParameter, "Extra", nil, nil); err != nil {
		t.Fatalf("AddNode failed: %v", err)
	}
	if err := Save(path, sessionB); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if err := SaveGuarded(path, sessionA, guardA); !errors.Is(err, ErrVersionConflict) {
		t.Errorf("Expected ErrVersionConflict for unseen node, got %v", err)
	}
}
