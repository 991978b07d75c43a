// Package scheduler answers "what work can start now" over the task nodes
// of a dependency graph. Only nodes of type task are scheduled; every
// other type is an artifact a task may wait on.
//
// Blockedness is derived from dependency state, never stored: a stored
// "blocked" status is accepted on load for compatibility with manual
// overrides but the functions here recompute it from the graph.
package scheduler

import (
	"fmt"
	"sort"

	"github.com/dd0wney/cluso-lineage/pkg/audit"
	"github.com/dd0wney/cluso-lineage/pkg/graph"
)

// Plannable returns pending tasks whose every dependency is valid,
// sorted by id.
func Plannable(g *graph.Graph) []*graph.Node {
	var out []*graph.Node
	for _, id := range g.IDs() {
		node := g.Nodes[id]
		if node.Type != graph.TypeTask || node.Status != graph.StatusPending {
			continue
		}
		if len(unmetDeps(g, node)) == 0 {
			out = append(out, node)
		}
	}
	return out
}

// BlockedTask pairs a blocked task with the dependency ids holding it up.
type BlockedTask struct {
	Node  *graph.Node
	Unmet []string
}

// Blocked returns pending tasks with at least one non-valid dependency,
// each paired with its unsatisfied dependency ids, sorted by task id.
func Blocked(g *graph.Graph) []BlockedTask {
	var out []BlockedTask
	for _, id := range g.IDs() {
		node := g.Nodes[id]
		if node.Type != graph.TypeTask || node.Status != graph.StatusPending {
			continue
		}
		if unmet := unmetDeps(g, node); len(unmet) > 0 {
			out = append(out, BlockedTask{Node: node, Unmet: unmet})
		}
	}
	return out
}

// Active returns tasks currently being worked on, sorted by id.
func Active(g *graph.Graph) []*graph.Node {
	var out []*graph.Node
	for _, id := range g.IDs() {
		node := g.Nodes[id]
		if node.Type == graph.TypeTask && node.Status == graph.StatusActive {
			out = append(out, node)
		}
	}
	return out
}

// Claim transitions a plannable task from pending to active, signaling a
// worker has started it. The task must exist, be a task, be pending, and
// have every dependency valid.
func Claim(g *graph.Graph, taskID string) (audit.Event, error) {
	node, ok := g.Nodes[taskID]
	if !ok {
		return audit.Event{}, &graph.GraphError{Op: "Claim", NodeID: taskID, Cause: graph.ErrUnknownNode}
	}
	if node.Type != graph.TypeTask {
		return audit.Event{}, &graph.GraphError{Op: "Claim", NodeID: taskID, Cause: graph.ErrNotATask}
	}
	if node.Status != graph.StatusPending {
		return audit.Event{}, &graph.GraphError{
			Op: "Claim", NodeID: taskID,
			Context: fmt.Sprintf("status is %s", node.Status),
			Cause:   graph.ErrNotPlannable,
		}
	}
	if unmet := unmetDeps(g, node); len(unmet) > 0 {
		return audit.Event{}, &graph.GraphError{
			Op: "Claim", NodeID: taskID,
			Context: fmt.Sprintf("unmet dependencies: %v", unmet),
			Cause:   graph.ErrNotPlannable,
		}
	}

	node.Status = graph.StatusActive
	node.Version++
	return audit.NewEvent(audit.ActionStatusChanged, taskID,
		fmt.Sprintf("%s -> %s (claimed)", graph.StatusPending, graph.StatusActive)), nil
}

// ParallelGroups partitions the plannable-or-soon-plannable pending tasks
// into ordered waves: group 0 is everything plannable right now, group k+1
// is every task whose only unmet dependencies are tasks in groups <= k.
// Tasks inside one group are mutually independent and safe to run
// concurrently.
//
// A pending task held up by a non-task artifact (or by another excluded
// task) cannot become plannable through task completions alone, so it is
// not part of the partition — Blocked reports it instead.
func ParallelGroups(g *graph.Graph) [][]*graph.Node {
	placed := make(map[string]int) // task id -> group index
	var groups [][]*graph.Node

	for level := 0; ; level++ {
		var wave []*graph.Node
		for _, id := range g.IDs() {
			node := g.Nodes[id]
			if node.Type != graph.TypeTask || node.Status != graph.StatusPending {
				continue
			}
			if _, done := placed[id]; done {
				continue
			}
			if placeable(g, node, placed, level) {
				wave = append(wave, node)
			}
		}
		if len(wave) == 0 {
			break
		}
		for _, node := range wave {
			placed[node.ID] = level
		}
		groups = append(groups, wave)
	}
	return groups
}

// placeable reports whether every dependency of the task is either valid
// already or a task placed in a group strictly before level.
func placeable(g *graph.Graph, node *graph.Node, placed map[string]int, level int) bool {
	for _, dep := range node.DependsOn {
		depNode, ok := g.Nodes[dep]
		if !ok {
			return false
		}
		if depNode.Status == graph.StatusValid {
			continue
		}
		if depNode.Type == graph.TypeTask {
			if at, ok := placed[dep]; ok && at < level {
				continue
			}
		}
		return false
	}
	return true
}

// unmetDeps returns the node's dependencies that are not valid, including
// dangling references (an absent dependency can never be satisfied).
func unmetDeps(g *graph.Graph, node *graph.Node) []string {
	var unmet []string
	for _, dep := range node.DependsOn {
		depNode, ok := g.Nodes[dep]
		if !ok || depNode.Status != graph.StatusValid {
			unmet = append(unmet, dep)
		}
	}
	sort.Strings(unmet)
	return unmet
}
