package graph

import (
	"fmt"
	"sort"
	"time"

	"github.com/dd0wney/cluso-lineage/pkg/audit"
)

// NodeOptions carries the optional metadata accepted by AddNode.
type NodeOptions struct {
	Tags   []string
	Notes  string
	Status Status // defaults to pending when empty
}

// AddNode creates a node at version 1. The id must be unused. Entries in
// dependsOn are recorded as given and are not required to exist yet;
// Validate is the authority for dangling references introduced this way.
func (g *Graph) AddNode(id string, typ NodeType, title string, dependsOn []string, opts *NodeOptions) (audit.Event, error) {
	if _, exists := g.Nodes[id]; exists {
		return audit.Event{}, opError("AddNode", id, ErrDuplicateNode)
	}

	status := StatusPending
	var tags []string
	var notes string
	if opts != nil {
		if opts.Status != "" {
			status = opts.Status
		}
		tags = append([]string(nil), opts.Tags...)
		notes = opts.Notes
	}

	deps := append([]string(nil), dependsOn...)
	sort.Strings(deps)

	g.Nodes[id] = &Node{
		ID:        id,
		Type:      typ,
		Title:     title,
		DependsOn: deps,
		Status:    status,
		Version:   1,
		Tags:      tags,
		Notes:     notes,
	}

	return audit.NewEvent(audit.ActionNodeAdded, id, fmt.Sprintf("type=%s deps=%d", typ, len(deps))), nil
}

// AddDependency adds `to` to from.DependsOn. The edge is rejected when
// either node is missing, the edge already exists, or adding it would make
// `to` transitively depend on `from` (checked by a reachability search over
// existing edges before anything is mutated).
func (g *Graph) AddDependency(from, to string) (audit.Event, error) {
	fromNode, ok := g.Nodes[from]
	if !ok {
		return audit.Event{}, opError("AddDependency", from, ErrUnknownNode)
	}
	if _, ok := g.Nodes[to]; !ok {
		return audit.Event{}, opError("AddDependency", to, ErrUnknownNode)
	}
	if fromNode.DependsOnContains(to) {
		return audit.Event{}, opErrorf("AddDependency", from, ErrDuplicateEdge, "-> %s", to)
	}
	if from == to || g.reachable(to, from) {
		return audit.Event{}, opErrorf("AddDependency", from, ErrCycle, "%s already reaches %s", to, from)
	}

	fromNode.DependsOn = insertSorted(fromNode.DependsOn, to)
	fromNode.Version++

	return audit.NewEvent(audit.ActionDependencyAdded, from, fmt.Sprintf("depends on %s", to)), nil
}

// RemoveDependency removes `to` from from.DependsOn. Only edge membership
// is checked, not `to`'s existence: a dangling reference reported by
// Validate is repaired with the same call as a live edge.
func (g *Graph) RemoveDependency(from, to string) (audit.Event, error) {
	fromNode, ok := g.Nodes[from]
	if !ok {
		return audit.Event{}, opError("RemoveDependency", from, ErrUnknownNode)
	}
	if !fromNode.DependsOnContains(to) {
		return audit.Event{}, opErrorf("RemoveDependency", from, ErrEdgeNotFound, "-> %s", to)
	}

	deps := fromNode.DependsOn[:0]
	for _, dep := range fromNode.DependsOn {
		if dep != to {
			deps = append(deps, dep)
		}
	}
	fromNode.DependsOn = deps
	fromNode.Version++

	return audit.NewEvent(audit.ActionDependencyRemoved, from, fmt.Sprintf("no longer depends on %s", to)), nil
}

// SetStatus unconditionally overwrites a node's status, bypassing
// invalidation cascades. Used to mark a node valid after recomputation or
// for manual overrides. Marking a node valid records LastValidated.
func (g *Graph) SetStatus(id string, status Status) (audit.Event, error) {
	node, ok := g.Nodes[id]
	if !ok {
		return audit.Event{}, opError("SetStatus", id, ErrUnknownNode)
	}

	old := node.Status
	node.Status = status
	node.Version++
	if status == StatusValid {
		now := time.Now().UTC()
		node.LastValidated = &now
	}

	return audit.NewEvent(audit.ActionStatusChanged, id, fmt.Sprintf("%s -> %s", old, status)), nil
}

// UpdateNode rewrites a node's mutable metadata (title, tags, notes).
// Type, id, dependencies and status are untouched.
func (g *Graph) UpdateNode(id, title string, tags []string, notes string) (audit.Event, error) {
	node, ok := g.Nodes[id]
	if !ok {
		return audit.Event{}, opError("UpdateNode", id, ErrUnknownNode)
	}

	node.Title = title
	node.Tags = append([]string(nil), tags...)
	node.Notes = notes
	node.Version++

	return audit.NewEvent(audit.ActionNodeUpdated, id, "metadata updated"), nil
}

// Rewire atomically replaces the edge from->oldDep with from->newDep.
// Either both changes apply or neither: the cycle and existence checks for
// the new edge run before the old edge is touched.
func (g *Graph) Rewire(from, oldDep, newDep string) ([]audit.Event, error) {
	fromNode, ok := g.Nodes[from]
	if !ok {
		return nil, opError("Rewire", from, ErrUnknownNode)
	}
	if _, ok := g.Nodes[newDep]; !ok {
		return nil, opError("Rewire", newDep, ErrUnknownNode)
	}
	if !fromNode.DependsOnContains(oldDep) {
		return nil, opErrorf("Rewire", from, ErrEdgeNotFound, "-> %s", oldDep)
	}
	if newDep != oldDep && fromNode.DependsOnContains(newDep) {
		return nil, opErrorf("Rewire", from, ErrDuplicateEdge, "-> %s", newDep)
	}
	if from == newDep || g.reachable(newDep, from) {
		return nil, opErrorf("Rewire", from, ErrCycle, "%s already reaches %s", newDep, from)
	}

	removeEvent, err := g.RemoveDependency(from, oldDep)
	if err != nil {
		return nil, err
	}
	addEvent, err := g.AddDependency(from, newDep)
	if err != nil {
		return nil, err
	}
	return []audit.Event{removeEvent, addEvent}, nil
}

// reachable reports whether target is reachable from start by following
// dependsOn edges.
func (g *Graph) reachable(start, target string) bool {
	if start == target {
		return true
	}
	visited := map[string]bool{start: true}
	frontier := []string{start}
	for len(frontier) > 0 {
		current := frontier[len(frontier)-1]
		frontier = frontier[:len(frontier)-1]

		node, ok := g.Nodes[current]
		if !ok {
			continue
		}
		for _, dep := range node.DependsOn {
			if dep == target {
				return true
			}
			if !visited[dep] {
				visited[dep] = true
				frontier = append(frontier, dep)
			}
		}
	}
	return false
}

func insertSorted(deps []string, id string) []string {
	i := sort.SearchStrings(deps, id)
	deps = append(deps, "")
	copy(deps[i+1:], deps[i:])
	deps[i] = id
	return deps
}
