package graph

import (
	"fmt"
	"strings"
)

// IssueKind classifies a structural problem found by Validate.
type IssueKind string

const (
	IssueDanglingReference  IssueKind = "dangling_reference"
	IssueCycle              IssueKind = "cycle"
	IssueInconsistentStatus IssueKind = "inconsistent_status"
)

// Issue is one integrity violation. Validate reports; it never repairs —
// repairing requires re-running the artifact's producer, which is outside
// the engine's authority.
type Issue struct {
	Kind    IssueKind `json:"kind"`
	NodeID  string    `json:"nodeId"`
	Ref     string    `json:"ref,omitempty"`
	Message string    `json:"message"`
}

// Validate checks the whole graph for:
//   - dependsOn entries that reference absent nodes,
//   - cycles present despite the edge-time check (a hand-edited snapshot
//     is the usual source),
//   - valid nodes with a non-valid dependency (soft invariant: the node's
//     cached result may be based on suspect input).
func (g *Graph) Validate() []Issue {
	var issues []Issue

	for _, id := range g.IDs() {
		node := g.Nodes[id]
		for _, dep := range node.DependsOn {
			if _, ok := g.Nodes[dep]; !ok {
				issues = append(issues, Issue{
					Kind:    IssueDanglingReference,
					NodeID:  id,
					Ref:     dep,
					Message: fmt.Sprintf("%q depends on %q, which does not exist", id, dep),
				})
			}
		}
	}

	for _, cycle := range g.findCycles() {
		issues = append(issues, Issue{
			Kind:    IssueCycle,
			NodeID:  cycle[0],
			Message: fmt.Sprintf("dependency cycle: %s", strings.Join(cycle, " -> ")),
		})
	}

	for _, id := range g.IDs() {
		node := g.Nodes[id]
		if node.Status != StatusValid {
			continue
		}
		for _, dep := range node.DependsOn {
			depNode, ok := g.Nodes[dep]
			if !ok {
				continue // already reported as dangling
			}
			if depNode.Status != StatusValid {
				issues = append(issues, Issue{
					Kind:    IssueInconsistentStatus,
					NodeID:  id,
					Ref:     dep,
					Message: fmt.Sprintf("%q is valid but its dependency %q is %s", id, dep, depNode.Status),
				})
			}
		}
	}

	return issues
}

// findCycles runs a three-color DFS over the dependsOn relation.
// WHITE = unvisited, GRAY = in the current stack, BLACK = finished.
// A GRAY neighbor is a back edge, which means a cycle.
func (g *Graph) findCycles() [][]string {
	const (
		white = 0
		gray  = 1
		black = 2
	)

	idx := g.buildIndex()
	color := make([]int, len(idx.ids))
	parent := make([]int, len(idx.ids))
	for i := range parent {
		parent[i] = -1
	}

	var cycles [][]string

	for start := range idx.ids {
		if color[start] != white {
			continue
		}
		// Iterative DFS: (node, next edge offset) pairs.
		type frame struct {
			node int
			edge int
		}
		stack := []frame{{start, 0}}
		color[start] = gray

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			if top.edge < len(idx.deps[top.node]) {
				next := idx.deps[top.node][top.edge]
				top.edge++
				switch color[next] {
				case white:
					color[next] = gray
					parent[next] = top.node
					stack = append(stack, frame{next, 0})
				case gray:
					// Back edge: trace parents from top.node back to next.
					cycle := []string{idx.ids[next]}
					for current := top.node; current != next && current != -1; current = parent[current] {
						cycle = append(cycle, idx.ids[current])
					}
					// Reverse into dependency order and close the loop.
					for i, j := 1, len(cycle)-1; i < j; i, j = i+1, j-1 {
						cycle[i], cycle[j] = cycle[j], cycle[i]
					}
					cycles = append(cycles, append(cycle, idx.ids[next]))
				}
			} else {
				color[top.node] = black
				stack = stack[:len(stack)-1]
			}
		}
	}

	return cycles
}
