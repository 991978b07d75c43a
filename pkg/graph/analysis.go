package graph

import "sort"

// ImpactResult summarizes what an invalidation of Source would cascade to,
// without mutating anything.
type ImpactResult struct {
	Source       string           `json:"source"`
	CascadeCount int              `json:"cascadeCount"`
	Affected     []string         `json:"affected"`
	ByType       map[NodeType]int `json:"byType"`
}

// Impact simulates invalidating a node: the transitive dependents that
// would go stale, with a per-type breakdown.
func (g *Graph) Impact(id string) (*ImpactResult, error) {
	affected, err := g.Downstream(id)
	if err != nil {
		return nil, err
	}

	byType := make(map[NodeType]int)
	for _, a := range affected {
		byType[g.Nodes[a].Type]++
	}
	return &ImpactResult{
		Source:       id,
		CascadeCount: len(affected),
		Affected:     affected,
		ByType:       byType,
	}, nil
}

// Depths returns, per node, the length of the longest path from any root
// (a node with no dependencies). Roots have depth 0.
func (g *Graph) Depths() map[string]int {
	idx := g.buildIndex()
	all := make([]int, len(idx.ids))
	for i := range all {
		all[i] = i
	}

	depth := make([]int, len(idx.ids))
	for _, u := range idx.orderSubset(all) {
		for _, v := range idx.dependents[u] {
			if depth[v] < depth[u]+1 {
				depth[v] = depth[u] + 1
			}
		}
	}

	out := make(map[string]int, len(idx.ids))
	for i, id := range idx.ids {
		out[id] = depth[i]
	}
	return out
}

// CriticalPath returns the longest root-to-leaf dependency chain,
// dependency first. Empty graph yields an empty path.
func (g *Graph) CriticalPath() []string {
	idx := g.buildIndex()
	if len(idx.ids) == 0 {
		return nil
	}

	depths := g.Depths()

	deepest := idx.ids[0]
	for _, id := range idx.ids {
		if depths[id] > depths[deepest] {
			deepest = id
		}
	}

	// Walk back from the deepest node along its deepest dependency.
	path := []string{deepest}
	current := deepest
	for len(g.Nodes[current].DependsOn) > 0 {
		best := ""
		for _, dep := range g.Nodes[current].DependsOn {
			if _, ok := g.Nodes[dep]; !ok {
				continue
			}
			if best == "" || depths[dep] > depths[best] {
				best = dep
			}
		}
		if best == "" {
			break
		}
		path = append(path, best)
		current = best
	}

	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

// Orphans returns nodes with no edges in either direction, sorted by id.
func (g *Graph) Orphans() []string {
	idx := g.buildIndex()
	var orphans []string
	for i, id := range idx.ids {
		if len(idx.deps[i]) == 0 && len(idx.dependents[i]) == 0 {
			orphans = append(orphans, id)
		}
	}
	return orphans
}

// Paths returns every forward path from `from` to a downstream `to`,
// shortest first, capped at maxPaths to bound the combinatorial blowup on
// dense graphs.
func (g *Graph) Paths(from, to string, maxPaths int) ([][]string, error) {
	idx := g.buildIndex()
	start, ok := idx.pos[from]
	if !ok {
		return nil, opError("Paths", from, ErrUnknownNode)
	}
	target, ok := idx.pos[to]
	if !ok {
		return nil, opError("Paths", to, ErrUnknownNode)
	}

	var result [][]int
	path := []int{start}
	idx.dfsPaths(start, target, &path, &result, maxPaths)

	sort.Slice(result, func(i, j int) bool { return len(result[i]) < len(result[j]) })

	out := make([][]string, len(result))
	for i, p := range result {
		out[i] = idx.toIDs(p)
	}
	return out, nil
}

func (idx *index) dfsPaths(current, target int, path *[]int, result *[][]int, maxPaths int) {
	if len(*result) >= maxPaths {
		return
	}
	if current == target {
		*result = append(*result, append([]int(nil), *path...))
		return
	}
	for _, next := range idx.dependents[current] {
		onPath := false
		for _, p := range *path {
			if p == next {
				onPath = true
				break
			}
		}
		if onPath {
			continue
		}
		*path = append(*path, next)
		idx.dfsPaths(next, target, path, result, maxPaths)
		*path = (*path)[:len(*path)-1]
	}
}
