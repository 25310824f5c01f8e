package model

import (
	"fmt"
	"strings"

	"github.com/pthm/cfihos/pkg/grouping"
	"github.com/pthm/cfihos/pkg/taxonomy"
)

// BuildContainers emits one container per storage group of a, including
// EntityTypeGroup, and a 1:1 mirror view for every first-class group. Mirror
// views implement the core data model views their entity lists.
// Slots of range and root groups have no view.
func BuildContainers(g *taxonomy.Graph, a *grouping.Assignment, opts Options) *Result {
	n := namer{g: g, mode: opts.Identifier}
	res := &Result{Metadata: opts.Metadata}

	for _, sg := range a.Groups() {
		res.Containers = append(res.Containers, Container{
			Container:   sg.ID,
			Name:        groupName(g, sg),
			Description: groupDescription(g, sg),
			UsedFor:     usedForNode,
		})

		view := ""
		if sg.FirstClass {
			view = sg.ID
			name, desc := groupName(g, sg), groupDescription(g, sg)
			var core []string
			if e, ok := g.Entity(sg.Entity); ok {
				view = n.view(sg.Entity)
				core = e.CoreImplements
			}
			res.Views = append(res.Views, View{View: view, Name: name, Description: desc, Implements: core, InModel: true})
		}

		ids := propertyIDs{}
		for _, m := range sg.Members {
			if m.Variant == grouping.VariantEntityType {
				res.Properties = append(res.Properties, entityTypeProperty(opts.ContainerSpace, view))
				continue
			}
			p := Property{
				View:              view,
				ViewProperty:      m.ID,
				Name:              slotName(m),
				Description:       slotDescription(m),
				ValueType:         "text",
				MaxCount:          maxOne,
				Container:         containerRef(opts.ContainerSpace, sg.ID),
				ContainerProperty: m.ID,
			}
			if sg.FirstClass {
				p.ViewProperty = ids.claim(n.property(m), m.ID)
				p.Index = indexes(opts, sg.Entity, m)
			}
			if m.Variant == grouping.VariantBase {
				switch m.Property.Kind {
				case taxonomy.KindDirect:
					p.Connection = "direct"
					p.ValueType = "direct"
					if sg.FirstClass {
						p.ValueType = n.view(m.Property.Targets[0])
					}
				default:
					p.ValueType = ValueType(m.Property.DataType)
				}
				if sg.FirstClass && m.Property.Required {
					p.MinCount = 1
				}
			}
			res.Properties = append(res.Properties, p)
		}
	}
	return res
}

func groupName(g *taxonomy.Graph, sg *grouping.StorageGroup) string {
	if sg.Entity != "" && (sg.FirstClass || !strings.HasSuffix(sg.ID, grouping.ExtSuffix)) {
		if e, ok := g.Entity(sg.Entity); ok && e.Name != "" {
			return e.Name
		}
	}
	return sg.ID
}

func groupDescription(g *taxonomy.Graph, sg *grouping.StorageGroup) string {
	switch {
	case sg.ID == grouping.EntityTypeGroup:
		return "Entity type discriminator for instances stored in shared containers"
	case !sg.FirstClass && strings.HasSuffix(sg.ID, grouping.ExtSuffix):
		return fmt.Sprintf("Derived unit of measure and relation slots of %s", strings.TrimSuffix(sg.ID, grouping.ExtSuffix))
	case !sg.FirstClass && sg.Entity != "":
		return fmt.Sprintf("Shared properties of %s and the classes below it", sg.Entity)
	case sg.Entity != "":
		if e, ok := g.Entity(sg.Entity); ok {
			return e.Description
		}
		return ""
	default:
		return fmt.Sprintf("Shared property range %s", sg.ID)
	}
}
