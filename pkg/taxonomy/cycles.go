package taxonomy

import "strings"

// color represents the state of a node during DFS cycle detection.
type color int

const (
	white color = iota // unvisited
	gray               // in current DFS path (cycle if revisited)
	black              // fully processed
)

// Cycle is a closed path through parent links. The first and last element
// are the same entity.
type Cycle []string

func (c Cycle) String() string {
	return strings.Join(c, " → ")
}

// DetectCycles returns every inheritance cycle reachable in the graph, one
// per back edge found, in a deterministic order.
//
// Cycles are tolerated by closure computation. They are only reported as
// structural warnings.
func DetectCycles(g *Graph) []Cycle {
	colors := make(map[string]color, len(g.order))
	parent := make(map[string]string, len(g.order))
	var cycles []Cycle

	var dfs func(id string)
	dfs = func(id string) {
		colors[id] = gray
		for _, next := range g.entities[id].Parents {
			if _, ok := g.entities[next]; !ok {
				continue
			}
			switch colors[next] {
			case gray:
				cycles = append(cycles, reconstructCycle(parent, id, next))
			case white:
				parent[next] = id
				dfs(next)
			}
		}
		colors[id] = black
	}

	for _, e := range g.order {
		if colors[e.ID] == white {
			dfs(e.ID)
		}
	}
	return cycles
}

// reconstructCycle builds the cycle path from the back edge from -> to.
func reconstructCycle(parent map[string]string, from, to string) Cycle {
	path := []string{from}
	for cur := from; cur != to; {
		cur = parent[cur]
		path = append(path, cur)
	}
	// reverse to get the forward direction starting at `to`
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return append(path, to)
}
