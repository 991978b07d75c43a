package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/golang/snappy"

	"github.com/dd0wney/cluso-lineage/pkg/graph"
)

// ManifestEntry describes one archived dump.
type ManifestEntry struct {
	Timestamp time.Time `json:"timestamp"`
	File      string    `json:"file"`
	NodeCount int       `json:"nodeCount"`
	EdgeCount int       `json:"edgeCount"`
}

const manifestFile = "manifest.json"

// Archive writes a timestamped snappy-compressed full-graph dump into dir
// and appends an entry to the manifest. Dumps are history for rollback;
// the engine never reads them during normal operation.
func Archive(dir string, g *graph.Graph, now time.Time) (ManifestEntry, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return ManifestEntry{}, fmt.Errorf("failed to create archive directory: %w", err)
	}

	data, err := json.Marshal(g)
	if err != nil {
		return ManifestEntry{}, fmt.Errorf("failed to marshal graph: %w", err)
	}

	name := fmt.Sprintf("graph-%s.json.sz", now.UTC().Format("20060102T150405Z"))
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, snappy.Encode(nil, data), 0644); err != nil {
		return ManifestEntry{}, fmt.Errorf("failed to write archive: %w", err)
	}

	entry := ManifestEntry{
		Timestamp: now.UTC(),
		File:      name,
		NodeCount: g.NodeCount(),
		EdgeCount: g.EdgeCount(),
	}

	manifest, err := ReadManifest(dir)
	if err != nil {
		return ManifestEntry{}, err
	}
	manifest = append(manifest, entry)

	if err := writeManifest(dir, manifest); err != nil {
		return ManifestEntry{}, err
	}
	return entry, nil
}

// ReadManifest returns the manifest entries, oldest first. A missing
// manifest is an empty history, not an error.
func ReadManifest(dir string) ([]ManifestEntry, error) {
	data, err := os.ReadFile(filepath.Join(dir, manifestFile))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var manifest []ManifestEntry
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to decode manifest: %w", err)
	}
	sort.Slice(manifest, func(i, j int) bool { return manifest[i].Timestamp.Before(manifest[j].Timestamp) })
	return manifest, nil
}

func writeManifest(dir string, manifest []ManifestEntry) error {
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, manifestFile), data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

// ReadArchive decompresses and decodes one archived dump.
func ReadArchive(path string) (*graph.Graph, error) {
	compressed, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	data, err := snappy.Decode(nil, compressed)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress archive %s: %w", path, err)
	}

	g := graph.New()
	if err := json.Unmarshal(data, g); err != nil {
		return nil, fmt.Errorf("failed to decode archive %s: %w", path, err)
	}
	return g, nil
}

// Prune deletes the oldest dumps beyond keep, rewriting the manifest.
// keep <= 0 disables pruning.
func Prune(dir string, keep int) (int, error) {
	if keep <= 0 {
		return 0, nil
	}

	manifest, err := ReadManifest(dir)
	if err != nil {
		return 0, err
	}
	if len(manifest) <= keep {
		return 0, nil
	}

	drop := manifest[:len(manifest)-keep]
	for _, entry := range drop {
		if err := os.Remove(filepath.Join(dir, entry.File)); err != nil && !os.IsNotExist(err) {
			return 0, fmt.Errorf("failed to prune %s: %w", entry.File, err)
		}
	}

	if err := writeManifest(dir, manifest[len(manifest)-keep:]); err != nil {
		return 0, err
	}
	return len(drop), nil
}
