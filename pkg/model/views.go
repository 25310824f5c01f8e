package model

import (
	"fmt"

	"github.com/pthm/cfihos/pkg/grouping"
	"github.com/pthm/cfihos/pkg/scope"
	"github.com/pthm/cfihos/pkg/taxonomy"
)

// BuildViews emits one view per entity of r, in resolution order. No
// containers are emitted; storage references point at the groups of a.
//
// A view declares only its entity's own properties. Properties owned by an
// ancestor inside r reach the view through Implements instead. Non
// first-class views also declare entityType and carry a filter on it that
// admits the entity and its descendants inside r.
func BuildViews(g *taxonomy.Graph, a *grouping.Assignment, r *scope.Resolved, opts Options) *Result {
	n := namer{g: g, mode: opts.Identifier}
	res := &Result{Metadata: opts.Metadata}

	for _, id := range r.IDs() {
		e, _ := g.Entity(id)
		viewID := n.view(id)

		v := View{
			View:        viewID,
			Name:        e.Name,
			Description: e.Description,
			InModel:     true,
		}
		for _, parent := range implements(g, r, id) {
			v.Implements = append(v.Implements, n.view(parent))
		}
		if e.FirstClass {
			v.Implements = append(v.Implements, e.CoreImplements...)
		}
		if !e.FirstClass {
			v.Filter = entityTypeFilter(g, r, opts.ContainerSpace, id).String()
		}
		res.Views = append(res.Views, v)

		inherited := g.InheritedProperties(id, r.Contains)
		ids := propertyIDs{}
		for _, pl := range a.Placements(id) {
			if pl.Excluded || inherited[pl.Base] {
				continue
			}
			res.Properties = append(res.Properties, viewProperty(n, opts, viewID, pl, ids))
		}
		if !e.FirstClass {
			ids.claim(grouping.EntityTypeProperty, grouping.EntityTypeProperty)
			res.Properties = append(res.Properties, entityTypeProperty(opts.ContainerSpace, viewID))
		}
	}
	return res
}

func viewProperty(n namer, opts Options, viewID string, pl grouping.Placement, ids propertyIDs) Property {
	m := pl.Member
	p := Property{
		View:         viewID,
		ViewProperty: ids.claim(n.property(m), m.ID),
		Name:         slotName(m),
		Description:  slotDescription(m),
		ValueType:    "text",
		MaxCount:     maxOne,
	}
	if pl.Stored {
		p.Container = containerRef(opts.ContainerSpace, pl.Group)
		p.ContainerProperty = m.ID
	}
	if m.Variant != grouping.VariantBase {
		return p
	}

	prop := m.Property
	switch prop.Kind {
	case taxonomy.KindScalar:
		p.ValueType = ValueType(prop.DataType)
	case taxonomy.KindDirect:
		p.Connection = "direct"
		p.ValueType = n.view(prop.Targets[0])
	case taxonomy.KindReverse:
		p.Connection = fmt.Sprintf("reverse(property=%s)", n.through(prop))
		p.ValueType = n.view(prop.Targets[0])
		p.MaxCount = maxUnbounded
	case taxonomy.KindEdge:
		dir := prop.EdgeDirection
		if dir == "" {
			dir = "outwards"
		}
		typ := prop.EdgeType
		if typ == "" {
			typ = m.ID
		}
		p.Connection = fmt.Sprintf("edge(type=%s, direction=%s)", typ, dir)
		p.ValueType = n.view(prop.Targets[0])
		p.MaxCount = maxUnbounded
	}
	return p
}

// implements returns the nearest ancestors of id inside r. A parent outside
// r is replaced by its own nearest ancestors inside r, so a chain through an
// ancestor without properties is not broken.
func implements(g *taxonomy.Graph, r *scope.Resolved, id string) []string {
	var out []string
	seen := map[string]bool{id: true}

	var walk func(string)
	walk = func(cur string) {
		e, ok := g.Entity(cur)
		if !ok {
			return
		}
		for _, parent := range e.Parents {
			if seen[parent] {
				continue
			}
			seen[parent] = true
			if r.Contains(parent) {
				out = append(out, parent)
				continue
			}
			walk(parent)
		}
	}
	walk(id)
	return out
}

func entityTypeFilter(g *taxonomy.Graph, r *scope.Resolved, space, id string) Filter {
	values := []string{taxonomy.Canonical(id)}
	for _, d := range g.Descendants(id, r.Contains) {
		values = append(values, taxonomy.Canonical(d))
	}
	return Filter{
		Property: [3]string{space, grouping.EntityTypeGroup, grouping.EntityTypeProperty},
		Values:   values,
	}
}

// propertyIDs tracks the property IDs used by one view.
type propertyIDs map[string]bool

// claim returns preferred unless it is taken, in which case fallback is used.
func (s propertyIDs) claim(preferred, fallback string) string {
	if s[preferred] {
		preferred = fallback
	}
	s[preferred] = true
	return preferred
}
