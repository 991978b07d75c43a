package graph

import (
	"sort"
	"time"
)

// NodeType classifies an artifact within the dependency graph.
// Immutable after creation.
type NodeType string

const (
	TypeDataSource NodeType = "data_source"
	TypeParameter  NodeType = "parameter"
	TypeAnalysis   NodeType = "analysis"
	TypeReport     NodeType = "report"
	TypeTask       NodeType = "task"
)

// NodeTypes lists every valid node type in layer order (data sources
// first, tasks last). The order is used for impact breakdowns and layout.
var NodeTypes = []NodeType{TypeDataSource, TypeParameter, TypeAnalysis, TypeReport, TypeTask}

// ParseNodeType converts a string to a NodeType.
func ParseNodeType(s string) (NodeType, bool) {
	switch NodeType(s) {
	case TypeDataSource, TypeParameter, TypeAnalysis, TypeReport, TypeTask:
		return NodeType(s), true
	}
	return "", false
}

// LayerOrder returns the layer priority of a type (lower = further upstream).
func (t NodeType) LayerOrder() int {
	switch t {
	case TypeDataSource:
		return 0
	case TypeParameter:
		return 1
	case TypeAnalysis:
		return 2
	case TypeReport:
		return 3
	case TypeTask:
		return 4
	}
	return len(NodeTypes)
}

// Status is the freshness/progress state of a node.
type Status string

const (
	StatusValid   Status = "valid"
	StatusStale   Status = "stale"
	StatusPending Status = "pending"
	StatusActive  Status = "active"
	// StatusBlocked is accepted as a stored value for manual overrides and
	// hand-edited snapshots, but the scheduler derives blockedness from
	// dependencies and never writes it.
	StatusBlocked Status = "blocked"
)

// ParseStatus converts a string to a Status.
func ParseStatus(s string) (Status, bool) {
	switch Status(s) {
	case StatusValid, StatusStale, StatusPending, StatusActive, StatusBlocked:
		return Status(s), true
	}
	return "", false
}

// Node is one artifact or task. Edges point from dependent to dependency:
// DependsOn holds the ids this node is built from.
type Node struct {
	ID            string     `json:"id"`
	Type          NodeType   `json:"type"`
	Title         string     `json:"title"`
	DependsOn     []string   `json:"dependsOn,omitempty"`
	Status        Status     `json:"status"`
	Version       uint64     `json:"version"`
	LastValidated *time.Time `json:"lastValidated,omitempty"`
	Tags          []string   `json:"tags,omitempty"`
	Notes         string     `json:"notes,omitempty"`
}

// DependsOnContains reports whether the node already depends on id.
func (n *Node) DependsOnContains(id string) bool {
	for _, dep := range n.DependsOn {
		if dep == id {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the node.
func (n *Node) Clone() *Node {
	c := *n
	c.DependsOn = append([]string(nil), n.DependsOn...)
	c.Tags = append([]string(nil), n.Tags...)
	if n.LastValidated != nil {
		t := *n.LastValidated
		c.LastValidated = &t
	}
	return &c
}

// SchemaVersion is the current persisted-snapshot format version.
const SchemaVersion = 1

// Graph is the single source of truth for one engine session: a map from
// node id to node record plus a schema version. It is a plain value owned
// by the caller; every operation takes it explicitly.
type Graph struct {
	Nodes         map[string]*Node `json:"nodes"`
	SchemaVersion int              `json:"schemaVersion"`
}

// New creates an empty graph at the current schema version.
func New() *Graph {
	return &Graph{
		Nodes:         make(map[string]*Node),
		SchemaVersion: SchemaVersion,
	}
}

// Node returns the node with the given id, if present.
func (g *Graph) Node(id string) (*Node, bool) {
	n, ok := g.Nodes[id]
	return n, ok
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int {
	return len(g.Nodes)
}

// EdgeCount returns the total number of dependency edges.
func (g *Graph) EdgeCount() int {
	count := 0
	for _, n := range g.Nodes {
		count += len(n.DependsOn)
	}
	return count
}

// IDs returns all node ids in sorted order.
func (g *Graph) IDs() []string {
	ids := make([]string, 0, len(g.Nodes))
	for id := range g.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
