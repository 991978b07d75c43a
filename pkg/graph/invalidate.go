package graph

import (
	"fmt"

	"github.com/dd0wney/cluso-lineage/pkg/audit"
)

// Invalidate marks id and every transitive dependent stale. This is the
// dirty-bit propagation of an incremental build system: once a producer's
// output is suspect, everything built from it is suspect until explicitly
// revalidated via SetStatus.
//
// Each node is visited at most once; nodes already stale are skipped and
// the returned events cover exactly the nodes that changed. Calling it
// again on a fully-stale region returns an empty slice.
func (g *Graph) Invalidate(id string) ([]audit.Event, error) {
	if _, ok := g.Nodes[id]; !ok {
		return nil, opError("Invalidate", id, ErrUnknownNode)
	}

	idx := g.buildIndex()
	start := idx.pos[id]
	affected := append([]int{start}, idx.closure(start, idx.dependents)...)

	events := make([]audit.Event, 0, len(affected))
	for _, member := range idx.orderSubset(affected) {
		node := g.Nodes[idx.ids[member]]
		if node.Status == StatusStale {
			continue
		}
		old := node.Status
		node.Status = StatusStale
		node.Version++
		events = append(events, audit.NewEvent(audit.ActionStatusChanged, node.ID,
			fmt.Sprintf("%s -> %s (invalidated from %s)", old, StatusStale, id)))
	}
	return events, nil
}
