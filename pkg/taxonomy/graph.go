package taxonomy

import (
	"fmt"
	"strings"

	"github.com/pthm/cfihos/internal/naming"
)

// Graph is the merged entity/property graph of one processing run.
//
// A Graph memoizes closures internally and is not safe for concurrent use.
// Runs must not share a Graph.
type Graph struct {
	entities map[string]*Entity
	order    []*Entity
	props    map[Key]*Property
	propList []*Property
	byPropID map[string][]*Property
	children map[string][]string
	prefixes []string

	closures map[string][]string
}

// Build merges batches into a graph. Every consistency problem is collected
// and returned together as a *ConsistencyError; no graph is returned in that
// case.
func Build(batches ...Batch) (*Graph, error) {
	g := &Graph{
		entities: make(map[string]*Entity),
		props:    make(map[Key]*Property),
		byPropID: make(map[string][]*Property),
		children: make(map[string][]string),
		closures: make(map[string][]string),
	}
	var conflicts []Conflict

	seenPrefix := make(map[string]bool)
	for _, b := range batches {
		if p := Canonical(b.Prefix); p != "" && !seenPrefix[p] {
			seenPrefix[p] = true
			g.prefixes = append(g.prefixes, p)
		}
	}

	canonical := make(map[string]*Entity)
	for _, b := range batches {
		for i, rec := range b.Entities {
			rec.ID = strings.TrimSpace(rec.ID)
			if rec.ID == "" {
				conflicts = append(conflicts, Conflict{
					Subject: fmt.Sprintf("entity #%d", i+1),
					Message: "missing id",
					Sources: []string{b.Source},
				})
				continue
			}
			if prev, ok := g.entities[rec.ID]; ok {
				conflicts = append(conflicts, duplicateEntity(prev, rec, b.Source))
				continue
			}
			canon := Canonical(rec.ID)
			if prev, ok := canonical[canon]; ok {
				conflicts = append(conflicts, Conflict{
					Subject: canon,
					Message: fmt.Sprintf("entity ids %q and %q are the same after normalization", prev.ID, rec.ID),
					Sources: []string{prev.Source, b.Source},
				})
				continue
			}
			rec.Parents = cleanIDs(rec.Parents)
			rec.CoreImplements = cleanIDs(rec.CoreImplements)
			if rec.StorageName == "" {
				rec.StorageName = naming.Entity(firstNonEmpty(rec.Name, rec.ID))
			}
			e := &Entity{EntityRecord: rec, Source: b.Source}
			g.entities[rec.ID] = e
			canonical[canon] = e
			g.order = append(g.order, e)
		}
	}

	for _, e := range g.order {
		for _, parent := range e.Parents {
			g.children[parent] = append(g.children[parent], e.ID)
		}
	}

	first := make(map[string]*Property)
	for _, b := range batches {
		for i, rec := range b.Properties {
			rec.ID = strings.TrimSpace(rec.ID)
			rec.EntityID = strings.TrimSpace(rec.EntityID)
			if rec.ID == "" || rec.EntityID == "" {
				conflicts = append(conflicts, Conflict{
					Subject: fmt.Sprintf("property #%d", i+1),
					Message: "missing id or entity_id",
					Sources: []string{b.Source},
				})
				continue
			}
			key := Key{Entity: rec.EntityID, Property: rec.ID}
			owner, ok := g.entities[rec.EntityID]
			if !ok {
				conflicts = append(conflicts, Conflict{
					Subject: key.String(),
					Message: fmt.Sprintf("owning entity %q not found", rec.EntityID),
					Sources: []string{b.Source},
				})
				continue
			}
			if prev, dup := g.props[key]; dup {
				conflicts = append(conflicts, Conflict{
					Subject: key.String(),
					Message: "duplicate property occurrence",
					Sources: []string{prev.Source, b.Source},
				})
				continue
			}
			rec.Targets = cleanIDs(rec.Targets)
			if rec.Kind.IsRelation() && len(rec.Targets) == 0 {
				conflicts = append(conflicts, Conflict{
					Subject: key.String(),
					Message: fmt.Sprintf("%s relation has no target", rec.Kind),
					Sources: []string{b.Source},
				})
				continue
			}

			p := &Property{PropertyRecord: rec, Source: b.Source, FirstClass: owner.FirstClass}
			if !p.FirstClass {
				if _, err := ParseCode(p.ID, g.prefixes); err != nil {
					conflicts = append(conflicts, Conflict{
						Subject: key.String(),
						Message: err.Error(),
						Sources: []string{b.Source},
					})
					continue
				}
			}

			canon := Canonical(p.ID)
			if ref, ok := first[canon]; ok {
				if msg := attributeMismatch(ref, p); msg != "" {
					conflicts = append(conflicts, Conflict{
						Subject: canon,
						Message: msg,
						Sources: []string{ref.Source + ":" + ref.EntityID, p.Source + ":" + p.EntityID},
					})
					continue
				}
			} else {
				first[canon] = p
			}

			g.props[key] = p
			g.propList = append(g.propList, p)
			g.byPropID[canon] = append(g.byPropID[canon], p)
			owner.Properties = append(owner.Properties, p)
		}
	}

	if len(conflicts) > 0 {
		return nil, &ConsistencyError{Conflicts: conflicts}
	}
	return g, nil
}

func duplicateEntity(prev *Entity, rec EntityRecord, source string) Conflict {
	c := Conflict{
		Subject: rec.ID,
		Message: "duplicate entity id",
		Sources: []string{prev.Source, source},
	}
	if prev.FirstClass != rec.FirstClass {
		c.Message = fmt.Sprintf(
			"duplicate entity id with conflicting first_class_citizen (%t in %q, %t in %q)",
			prev.FirstClass, prev.Source, rec.FirstClass, source)
	}
	return c
}

// attributeMismatch compares two occurrences of the same property ID.
func attributeMismatch(a, b *Property) string {
	var diffs []string
	if a.Kind != b.Kind {
		diffs = append(diffs, fmt.Sprintf("kind %s vs %s", a.Kind, b.Kind))
	}
	if !strings.EqualFold(a.DataType, b.DataType) {
		diffs = append(diffs, fmt.Sprintf("data_type %q vs %q", a.DataType, b.DataType))
	}
	if a.UOM != b.UOM {
		diffs = append(diffs, fmt.Sprintf("uom %t vs %t", a.UOM, b.UOM))
	}
	if len(diffs) == 0 {
		return ""
	}
	return "inconsistent attributes: " + strings.Join(diffs, ", ")
}

func cleanIDs(ids []string) []string {
	out := ids[:0:0]
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	return out
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// Entity returns the entity with the given ID.
func (g *Graph) Entity(id string) (*Entity, bool) {
	e, ok := g.entities[id]
	return e, ok
}

// Entities returns all entities in ingestion order.
func (g *Graph) Entities() []*Entity {
	return g.order
}

// Properties returns all property occurrences in ingestion order.
func (g *Graph) Properties() []*Property {
	return g.propList
}

// Property returns the occurrence of propertyID on entityID.
func (g *Graph) Property(entityID, propertyID string) (*Property, bool) {
	p, ok := g.props[Key{Entity: entityID, Property: propertyID}]
	return p, ok
}

// Occurrences returns every occurrence of a property ID, compared in
// canonical form.
func (g *Graph) Occurrences(propertyID string) []*Property {
	return g.byPropID[Canonical(propertyID)]
}

// HasPropertyID reports whether any entity owns a property with this ID.
func (g *Graph) HasPropertyID(propertyID string) bool {
	return len(g.byPropID[Canonical(propertyID)]) > 0
}

// Prefixes returns the declared source prefixes in batch order.
func (g *Graph) Prefixes() []string {
	return g.prefixes
}

// Children returns the direct children of an entity.
func (g *Graph) Children(id string) []string {
	return g.children[id]
}

// Len returns the number of entities.
func (g *Graph) Len() int {
	return len(g.order)
}
