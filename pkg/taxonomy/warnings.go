package taxonomy

import "fmt"

// WarningKind classifies a structural warning.
type WarningKind string

const (
	WarnUnknownParent      WarningKind = "unknown_parent"
	WarnDanglingTarget     WarningKind = "dangling_target"
	WarnIneligibleRelation WarningKind = "ineligible_relation"
	WarnInheritanceCycle   WarningKind = "inheritance_cycle"
)

// Warning is a non-fatal structural problem. Processing continues; the
// offending element is left out of the output where that applies.
type Warning struct {
	Kind    WarningKind
	Subject string
	Message string
}

func (w Warning) String() string {
	return fmt.Sprintf("[%s] %s: %s", w.Kind, w.Subject, w.Message)
}

// Eligible reports whether a property may appear in the output.
//
// A relation must point at known entities, and a relation owned by a
// first-class entity may only point at first-class entities. Scalars are
// always eligible.
func (g *Graph) Eligible(p *Property) bool {
	if !p.Kind.IsRelation() {
		return true
	}
	for _, t := range p.Targets {
		target, ok := g.entities[t]
		if !ok {
			return false
		}
		if p.FirstClass && !target.FirstClass {
			return false
		}
	}
	return true
}

// Warnings returns every structural warning for the graph in a stable order:
// unknown parents, relation problems, then inheritance cycles.
func (g *Graph) Warnings() []Warning {
	var out []Warning

	for _, e := range g.order {
		for _, parent := range e.Parents {
			if _, ok := g.entities[parent]; !ok {
				out = append(out, Warning{
					Kind:    WarnUnknownParent,
					Subject: e.ID,
					Message: fmt.Sprintf("parent %q not found", parent),
				})
			}
		}
	}

	for _, p := range g.propList {
		if !p.Kind.IsRelation() {
			continue
		}
		key := Key{Entity: p.EntityID, Property: p.ID}.String()
		for _, t := range p.Targets {
			target, ok := g.entities[t]
			switch {
			case !ok:
				out = append(out, Warning{
					Kind:    WarnDanglingTarget,
					Subject: key,
					Message: fmt.Sprintf("%s relation target %q not found; relation excluded", p.Kind, t),
				})
			case p.FirstClass && !target.FirstClass:
				out = append(out, Warning{
					Kind:    WarnIneligibleRelation,
					Subject: key,
					Message: fmt.Sprintf("%s relation on first-class entity targets non first-class %q; relation excluded", p.Kind, t),
				})
			}
		}
	}

	for _, c := range DetectCycles(g) {
		out = append(out, Warning{
			Kind:    WarnInheritanceCycle,
			Subject: c[0],
			Message: c.String(),
		})
	}
	return out
}
