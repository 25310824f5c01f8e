package grouping

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pthm/cfihos/pkg/taxonomy"
)

// ErrUnknownRoot is returned when a root node or anchor is not in the graph.
var ErrUnknownRoot = errors.New("grouping: unknown root entity")

// RootMap maps every non first-class entity that sits below a root to the
// root whose group stores its shared properties.
//
// An entity listed in nodes is its own root. Otherwise the nearest ancestor
// listed in nodes wins, breadth first. Entities without such an ancestor
// fall back to the nearest entity that is a direct child of an anchor,
// which may be the entity itself. Anything else is left out of the map and
// keeps range grouping. First-class entities are never roots.
func RootMap(g *taxonomy.Graph, anchors, nodes []string) (map[string]string, error) {
	var unknown []string
	set := func(ids []string, skipFirstClass bool) map[string]bool {
		out := make(map[string]bool, len(ids))
		for _, id := range ids {
			id = strings.TrimSpace(id)
			e, ok := g.Entity(id)
			if !ok {
				unknown = append(unknown, id)
				continue
			}
			if skipFirstClass && e.FirstClass {
				continue
			}
			out[id] = true
		}
		return out
	}
	isNode := set(nodes, true)
	isAnchor := set(anchors, false)
	if len(unknown) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRoot, strings.Join(unknown, ", "))
	}

	firstChild := make(map[string]bool)
	for _, e := range g.Entities() {
		if e.FirstClass {
			continue
		}
		for _, p := range e.Parents {
			if isAnchor[p] {
				firstChild[e.ID] = true
			}
		}
	}

	roots := make(map[string]string)
	for _, e := range g.Entities() {
		if e.FirstClass {
			continue
		}
		if root, ok := nearest(g, e.ID, isNode); ok {
			roots[e.ID] = root
			continue
		}
		if root, ok := nearest(g, e.ID, firstChild); ok {
			roots[e.ID] = root
		}
	}
	return roots, nil
}

// nearest returns id or its closest ancestor in set, breadth first.
func nearest(g *taxonomy.Graph, id string, set map[string]bool) (string, bool) {
	if len(set) == 0 {
		return "", false
	}
	queue := []string{id}
	seen := map[string]bool{id: true}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if set[cur] {
			return cur, true
		}
		e, ok := g.Entity(cur)
		if !ok {
			continue
		}
		for _, p := range e.Parents {
			if !seen[p] {
				seen[p] = true
				queue = append(queue, p)
			}
		}
	}
	return "", false
}
