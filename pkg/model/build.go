package model

import (
	"fmt"
	"strings"

	"github.com/pthm/cfihos/internal/naming"
	"github.com/pthm/cfihos/pkg/grouping"
	"github.com/pthm/cfihos/pkg/taxonomy"
)

// scalar types known to the storage side, keyed by lower-cased source type
var valueTypes = map[string]string{
	"":          "text",
	"string":    "text",
	"text":      "text",
	"integer":   "int64",
	"int":       "int64",
	"int32":     "int32",
	"int64":     "int64",
	"float":     "float64",
	"float32":   "float32",
	"float64":   "float64",
	"decimal":   "float64",
	"real":      "float64",
	"number":    "float64",
	"boolean":   "boolean",
	"bool":      "boolean",
	"date":      "date",
	"datetime":  "timestamp",
	"timestamp": "timestamp",
	"json":      "json",
}

// ValueType maps a source data type to a storage value type. Unknown types
// pass through unchanged.
func ValueType(dataType string) string {
	if vt, ok := valueTypes[strings.ToLower(strings.TrimSpace(dataType))]; ok {
		return vt
	}
	return dataType
}

// namer turns entities and slots into IDs according to the identifier mode.
type namer struct {
	g    *taxonomy.Graph
	mode Identifier
}

func (n namer) view(entityID string) string {
	if n.mode == IdentifierName {
		if e, ok := n.g.Entity(entityID); ok && e.StorageName != "" {
			return e.StorageName
		}
	}
	return taxonomy.Canonical(entityID)
}

func (n namer) property(m grouping.Member) string {
	if n.mode != IdentifierName || m.Property == nil || m.Property.Name == "" {
		return m.ID
	}
	name := naming.Property(m.Property.Name)
	switch m.Variant {
	case grouping.VariantUOM:
		name += grouping.UOMSuffix
	case grouping.VariantRelation:
		name += grouping.RelationSuffix
	}
	return name
}

// through returns the view property ID of the direct relation a reverse
// relation walks back over.
func (n namer) through(p *taxonomy.Property) string {
	id := taxonomy.Canonical(p.ThroughProperty)
	if n.mode != IdentifierName {
		return id
	}
	if occ := n.g.Occurrences(id); len(occ) > 0 && occ[0].Name != "" {
		return naming.Property(occ[0].Name)
	}
	return id
}

func containerRef(space, group string) string {
	if space == "" {
		return group
	}
	return space + ":" + group
}

// slotName and slotDescription label derived slots after their base.
func slotName(m grouping.Member) string {
	if m.Property == nil {
		return m.ID
	}
	name := m.Property.Name
	if name == "" {
		name = m.Base
	}
	switch m.Variant {
	case grouping.VariantUOM:
		return name + grouping.UOMSuffix
	case grouping.VariantRelation:
		return name + grouping.RelationSuffix
	}
	return name
}

func slotDescription(m grouping.Member) string {
	if m.Property == nil {
		return ""
	}
	switch m.Variant {
	case grouping.VariantUOM:
		return strings.TrimSpace(m.Property.Description + " unit of measure")
	case grouping.VariantRelation:
		return strings.TrimSpace(m.Property.Description + " target identifier")
	}
	return m.Property.Description
}

// indexes renders the container indexes a slot of a first-class entity
// takes part in, e.g. "btree:tag_idx(cursorable=true, order=0)".
func indexes(opts Options, entityID string, m grouping.Member) string {
	var out []string
	for _, idx := range lookupIndexes(opts.Indexes, entityID) {
		for _, p := range idx.Properties {
			if taxonomy.Canonical(p) != m.ID {
				continue
			}
			typ := idx.Type
			if typ == "" {
				typ = "btree"
			}
			out = append(out, fmt.Sprintf("%s:%s(cursorable=%t, order=%d)", typ, idx.ID, idx.Cursorable, len(out)))
			break
		}
	}
	return strings.Join(out, ",")
}

// lookupIndexes finds the indexes declared for an entity. Keys match by
// canonical ID, ignoring case, since config loaders may lower-case them.
func lookupIndexes(defs map[string][]Index, entityID string) []Index {
	if d, ok := defs[entityID]; ok {
		return d
	}
	want := taxonomy.Canonical(entityID)
	for k, d := range defs {
		if strings.EqualFold(taxonomy.Canonical(k), want) {
			return d
		}
	}
	return nil
}

// entityTypeProperty is the descriptor of the synthetic discriminator slot
// as declared by view.
func entityTypeProperty(space, view string) Property {
	return Property{
		View:              view,
		ViewProperty:      grouping.EntityTypeProperty,
		Name:              grouping.EntityTypeProperty,
		Description:       "Entity type of the instance",
		ValueType:         "text",
		MinCount:          1,
		MaxCount:          maxOne,
		Container:         containerRef(space, grouping.EntityTypeGroup),
		ContainerProperty: grouping.EntityTypeProperty,
	}
}
