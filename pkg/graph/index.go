package graph

import "sort"

// index maps string node ids to dense integers once, so the closure,
// leveling and ordering algorithms run over int-indexed adjacency slices
// instead of map lookups. Built per call; ids are translated back only at
// the API boundary.
type index struct {
	ids        []string       // dense -> id, sorted for determinism
	pos        map[string]int // id -> dense
	deps       [][]int        // dependsOn adjacency (dangling refs skipped)
	dependents [][]int        // reverse adjacency
}

func (g *Graph) buildIndex() *index {
	ids := g.IDs()
	pos := make(map[string]int, len(ids))
	for i, id := range ids {
		pos[id] = i
	}

	idx := &index{
		ids:        ids,
		pos:        pos,
		deps:       make([][]int, len(ids)),
		dependents: make([][]int, len(ids)),
	}

	for i, id := range ids {
		node := g.Nodes[id]
		for _, dep := range node.DependsOn {
			j, ok := pos[dep]
			if !ok {
				// Dangling reference; Validate reports these.
				continue
			}
			idx.deps[i] = append(idx.deps[i], j)
			idx.dependents[j] = append(idx.dependents[j], i)
		}
	}
	for i := range idx.dependents {
		sort.Ints(idx.dependents[i])
	}
	return idx
}

// closure returns every index reachable from start over the given
// adjacency, excluding start itself.
func (idx *index) closure(start int, adjacency [][]int) []int {
	visited := make([]bool, len(idx.ids))
	visited[start] = true
	frontier := []int{start}
	var result []int
	for len(frontier) > 0 {
		current := frontier[len(frontier)-1]
		frontier = frontier[:len(frontier)-1]
		for _, next := range adjacency[current] {
			if !visited[next] {
				visited[next] = true
				result = append(result, next)
				frontier = append(frontier, next)
			}
		}
	}
	return result
}

// orderSubset returns the members of the given set in topological order,
// dependencies first. Kahn's algorithm restricted to the subset; in-degree
// counts only edges inside the set. If the subset contains a cycle (only
// possible in a corrupted snapshot), the leftovers are appended in id
// order so no member is silently dropped — Validate reports the cycle.
func (idx *index) orderSubset(members []int) []int {
	inSet := make([]bool, len(idx.ids))
	for _, m := range members {
		inSet[m] = true
	}

	inDegree := make(map[int]int, len(members))
	for _, m := range members {
		for _, dep := range idx.deps[m] {
			if inSet[dep] {
				inDegree[m]++
			}
		}
	}

	var queue []int
	for _, m := range members {
		if inDegree[m] == 0 {
			queue = append(queue, m)
		}
	}
	sort.Ints(queue)

	ordered := make([]int, 0, len(members))
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		ordered = append(ordered, current)

		for _, dependent := range idx.dependents[current] {
			if !inSet[dependent] {
				continue
			}
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				queue = append(queue, dependent)
			}
		}
	}

	if len(ordered) < len(members) {
		var leftovers []int
		placed := make([]bool, len(idx.ids))
		for _, m := range ordered {
			placed[m] = true
		}
		for _, m := range members {
			if !placed[m] {
				leftovers = append(leftovers, m)
			}
		}
		sort.Ints(leftovers)
		ordered = append(ordered, leftovers...)
	}
	return ordered
}

func (idx *index) toIDs(members []int) []string {
	out := make([]string, len(members))
	for i, m := range members {
		out[i] = idx.ids[m]
	}
	return out
}
