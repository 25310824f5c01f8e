package taxonomy

// Ancestors returns the inheritance closure of an entity: every ancestor
// reachable through parent links that owns at least one property, in
// depth-first discovery order. The entity itself is never included.
//
// Ancestors without properties are still traversed, so their own ancestors
// are reached, but they are left out of the result. Unknown parents are
// skipped. A cycle in the parent links stops descent at the first revisit.
//
// Results are memoized for the lifetime of the graph.
func (g *Graph) Ancestors(id string) []string {
	if c, ok := g.closures[id]; ok {
		return c
	}
	c := g.computeClosure(id)
	g.closures[id] = c
	return c
}

// ComputeClosures computes and memoizes the closure of every entity.
func (g *Graph) ComputeClosures() {
	for _, e := range g.order {
		g.Ancestors(e.ID)
	}
}

// computeClosure walks parent links depth-first from start.
//
// Example: for C -> B -> A where B owns no properties:
//   - closure(C) = [A]
//   - closure(B) = [A]
//   - closure(A) = []
func (g *Graph) computeClosure(start string) []string {
	visited := map[string]bool{start: true}
	var result []string

	var visit func(id string)
	visit = func(id string) {
		e, ok := g.entities[id]
		if !ok {
			return
		}
		for _, parent := range e.Parents {
			if visited[parent] {
				continue
			}
			visited[parent] = true
			pe, ok := g.entities[parent]
			if !ok {
				continue
			}
			if len(pe.Properties) > 0 {
				result = append(result, parent)
			}
			visit(parent)
		}
	}
	visit(start)

	return result
}

// AllAncestors returns every known ancestor of an entity, with or without
// properties, in depth-first discovery order.
func (g *Graph) AllAncestors(id string) []string {
	visited := map[string]bool{id: true}
	var result []string
	stack := []string{id}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		e, ok := g.entities[cur]
		if !ok {
			continue
		}
		// push in reverse so the first parent is visited first
		for i := len(e.Parents) - 1; i >= 0; i-- {
			p := e.Parents[i]
			if visited[p] {
				continue
			}
			if _, known := g.entities[p]; !known {
				continue
			}
			visited[p] = true
			result = append(result, p)
			stack = append(stack, p)
		}
	}
	return result
}

// InheritedProperties returns the set of property IDs (canonical form) owned
// by the entity's closure ancestors accepted by within. A nil within accepts
// every ancestor.
func (g *Graph) InheritedProperties(id string, within func(string) bool) map[string]bool {
	out := make(map[string]bool)
	for _, a := range g.Ancestors(id) {
		if within != nil && !within(a) {
			continue
		}
		for _, p := range g.entities[a].Properties {
			out[Canonical(p.ID)] = true
		}
	}
	return out
}

// Descendants returns every entity that inherits from id, directly or
// transitively, and is accepted by within, in breadth-first order.
// Traversal continues through rejected entities.
func (g *Graph) Descendants(id string, within func(string) bool) []string {
	seen := map[string]bool{id: true}
	var result []string
	queue := []string{id}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, child := range g.children[cur] {
			if seen[child] {
				continue
			}
			seen[child] = true
			if within == nil || within(child) {
				result = append(result, child)
			}
			queue = append(queue, child)
		}
	}
	return result
}
