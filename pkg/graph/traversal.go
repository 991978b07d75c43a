package graph

// Upstream returns the transitive closure of dependsOn starting at id,
// excluding id itself, topologically ordered so a dependency always
// precedes anything that depends on it.
func (g *Graph) Upstream(id string) ([]string, error) {
	idx := g.buildIndex()
	start, ok := idx.pos[id]
	if !ok {
		return nil, opError("Upstream", id, ErrUnknownNode)
	}
	members := idx.closure(start, idx.deps)
	return idx.toIDs(idx.orderSubset(members)), nil
}

// Downstream returns the transitive closure of the reverse relation
// (everything that directly or indirectly depends on id), excluding id,
// in the same dependency-first topological order.
func (g *Graph) Downstream(id string) ([]string, error) {
	idx := g.buildIndex()
	start, ok := idx.pos[id]
	if !ok {
		return nil, opError("Downstream", id, ErrUnknownNode)
	}
	members := idx.closure(start, idx.dependents)
	return idx.toIDs(idx.orderSubset(members)), nil
}

// StaleNodes returns every stale node, ordered so that recomputing the
// list front to back never reaches a node before a stale dependency of it:
// a safe recomputation order.
func (g *Graph) StaleNodes() []string {
	idx := g.buildIndex()
	var members []int
	for i, id := range idx.ids {
		if g.Nodes[id].Status == StatusStale {
			members = append(members, i)
		}
	}
	return idx.toIDs(idx.orderSubset(members))
}
