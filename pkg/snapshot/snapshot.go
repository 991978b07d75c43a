// Package snapshot handles whole-file persistence of a graph: a session
// loads the entire graph, mutates it in memory, and writes the entire
// graph back. The engine itself never performs I/O; everything here sits
// outside the core.
package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dd0wney/cluso-lineage/pkg/graph"
)

// ErrVersionConflict is returned by SaveGuarded when the on-disk snapshot
// advanced past the versions captured at load time.
var ErrVersionConflict = errors.New("snapshot version conflict")

// Load reads a graph snapshot. A snapshot written by a newer schema is
// rejected rather than misread.
func Load(path string) (*graph.Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	g := graph.New()
	if err := json.Unmarshal(data, g); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot %s: %w", path, err)
	}
	if g.SchemaVersion > graph.SchemaVersion {
		return nil, fmt.Errorf("snapshot %s has schema version %d, this build understands <= %d",
			path, g.SchemaVersion, graph.SchemaVersion)
	}
	if g.Nodes == nil {
		g.Nodes = make(map[string]*graph.Node)
	}
	return g, nil
}

// LoadOrInit loads a snapshot, or returns a fresh empty graph when the
// file does not exist yet.
func LoadOrInit(path string) (*graph.Graph, error) {
	g, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return graph.New(), nil
	}
	return g, err
}

// Save writes the whole graph as indented JSON. The write goes to a
// temporary file in the same directory first and is renamed into place, so
// a crash mid-write never leaves a truncated snapshot.
func Save(path string, g *graph.Graph) error {
	g.SchemaVersion = graph.SchemaVersion

	data, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".snapshot-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp snapshot: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to sync snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close snapshot: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace snapshot: %w", err)
	}
	return nil
}

// Guard captures per-node versions at load time for an optimistic check at
// save time. Two concurrent load-mutate-save sessions would otherwise end
// in silent last-writer-wins: the second save discards the first writer's
// changes, which can double-assign a task.
type Guard struct {
	versions map[string]uint64
}

// NewGuard records the version of every node currently in the graph.
func NewGuard(g *graph.Graph) *Guard {
	versions := make(map[string]uint64, len(g.Nodes))
	for id, node := range g.Nodes {
		versions[id] = node.Version
	}
	return &Guard{versions: versions}
}

// SaveGuarded re-reads the on-disk snapshot and refuses to save if any
// node there has moved past the version the guard captured — meaning
// another session committed in between. The caller reloads and retries.
func SaveGuarded(path string, g *graph.Graph, guard *Guard) error {
	current, err := Load(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	if current != nil {
		var conflicts []string
		for id, node := range current.Nodes {
			loaded, seen := guard.versions[id]
			if !seen || node.Version > loaded {
				conflicts = append(conflicts, id)
			}
		}
		if len(conflicts) > 0 {
			return fmt.Errorf("%w: %d node(s) changed since load (e.g. %q); reload and retry",
				ErrVersionConflict, len(conflicts), conflicts[0])
		}
	}

	return Save(path, g)
}
