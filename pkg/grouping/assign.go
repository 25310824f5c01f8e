package grouping

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pthm/cfihos/pkg/taxonomy"
)

// Variant tells how a member slot derives from its property.
type Variant int

const (
	VariantBase       Variant = iota // the property itself
	VariantUOM                       // unit of measure of a scalar
	VariantRelation                  // text mirror of a direct relation
	VariantEntityType                // the synthetic entityType slot
)

func (v Variant) String() string {
	switch v {
	case VariantBase:
		return "base"
	case VariantUOM:
		return "uom"
	case VariantRelation:
		return "relation"
	case VariantEntityType:
		return "entityType"
	}
	return fmt.Sprintf("variant(%d)", int(v))
}

// Member is one storage slot of a group.
type Member struct {
	ID      string // slot identifier, canonical form
	Base    string // canonical ID of the property the slot derives from
	Variant Variant

	// Property is the first occurrence of the base property. Nil for the
	// entityType slot.
	Property *taxonomy.Property
}

// StorageGroup is the unit of denormalized storage. It is immutable once
// Assign returns.
type StorageGroup struct {
	ID         string
	FirstClass bool
	Entity     string // owning entity of a first-class group, or root of a root group
	Members    []Member

	memberIdx map[string]bool
	sortKey   rangeKey
}

// MemberIDs returns the slot identifiers in member order.
func (sg *StorageGroup) MemberIDs() []string {
	ids := make([]string, len(sg.Members))
	for i, m := range sg.Members {
		ids[i] = m.ID
	}
	return ids
}

// HasMember reports whether the group stores the given slot.
func (sg *StorageGroup) HasMember(id string) bool {
	return sg.memberIdx[id]
}

func (sg *StorageGroup) add(m Member) {
	if sg.memberIdx[m.ID] {
		return
	}
	sg.memberIdx[m.ID] = true
	sg.Members = append(sg.Members, m)
}

type rangeKey struct {
	prefix string
	start  int
	ext    bool
	root   bool
}

// Placement records where one slot of an entity lives.
type Placement struct {
	Member
	Group string

	// Stored is false for reverse and edge relations, which have a group
	// but no storage slot, and for excluded relations.
	Stored bool

	// Excluded marks relations dropped by a structural warning.
	Excluded bool
}

// Assignment is the result of grouping a graph.
type Assignment struct {
	groups     []*StorageGroup
	byID       map[string]*StorageGroup
	placements map[string][]Placement
	index      map[taxonomy.Key]string
	width      int
	roots      map[string]string
}

// Groups returns every storage group: first-class groups in entity order,
// root groups ordered by ID, range groups ordered by prefix and range start,
// then EntityTypeGroup.
func (a *Assignment) Groups() []*StorageGroup {
	return a.groups
}

// Group returns a group by identifier.
func (a *Assignment) Group(id string) (*StorageGroup, bool) {
	sg, ok := a.byID[id]
	return sg, ok
}

// GroupOf returns the group of a slot of an entity. Slot IDs are compared in
// canonical form.
func (a *Assignment) GroupOf(entityID, slotID string) (string, bool) {
	id, ok := a.index[taxonomy.Key{Entity: entityID, Property: taxonomy.Canonical(slotID)}]
	return id, ok
}

// Placements returns the slots of an entity in property order, each base
// slot followed by its derived slots.
func (a *Assignment) Placements(entityID string) []Placement {
	return a.placements[entityID]
}

// Width returns the bucket width used.
func (a *Assignment) Width() int {
	return a.width
}

// Assign groups every property of g. The graph must have passed Build
// validation; an unparseable code is still reported as an error.
func (e Engine) Assign(g *taxonomy.Graph) (*Assignment, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	prefixes := e.Prefixes
	if len(prefixes) == 0 {
		prefixes = g.Prefixes()
	}

	a := &Assignment{
		byID:       make(map[string]*StorageGroup),
		placements: make(map[string][]Placement),
		index:      make(map[taxonomy.Key]string),
		width:      e.width(),
		roots:      e.Roots,
	}
	var firstClass, rooted, ranged []*StorageGroup

	group := func(id string, fc bool, entity string, key rangeKey) *StorageGroup {
		if sg, ok := a.byID[id]; ok {
			return sg
		}
		sg := &StorageGroup{ID: id, FirstClass: fc, Entity: entity, memberIdx: make(map[string]bool), sortKey: key}
		a.byID[id] = sg
		switch {
		case fc:
			firstClass = append(firstClass, sg)
		case key.root:
			rooted = append(rooted, sg)
		default:
			ranged = append(ranged, sg)
		}
		return sg
	}

	for _, ent := range g.Entities() {
		if ent.FirstClass {
			group(taxonomy.Canonical(ent.ID), true, ent.ID, rangeKey{})
		}
	}

	for _, ent := range g.Entities() {
		for _, p := range ent.Properties {
			base, err := e.GroupFor(p, prefixes)
			if err != nil {
				return nil, fmt.Errorf("grouping %s: %w", taxonomy.Key{Entity: p.EntityID, Property: p.ID}, err)
			}

			baseGroup, ext := a.groupsFor(p, base, prefixes, group)

			slot := taxonomy.Canonical(p.ID)
			eligible := g.Eligible(p)
			stored := eligible && (p.Kind == taxonomy.KindScalar || p.Kind == taxonomy.KindDirect)
			a.place(ent.ID, baseGroup, Placement{
				Member:   Member{ID: slot, Base: slot, Variant: VariantBase, Property: p},
				Group:    baseGroup.ID,
				Stored:   stored,
				Excluded: !eligible,
			})

			if p.UOM && p.Kind == taxonomy.KindScalar && !g.HasPropertyID(slot+UOMSuffix) {
				extGroup := ext()
				a.place(ent.ID, extGroup, Placement{
					Member: Member{ID: slot + UOMSuffix, Base: slot, Variant: VariantUOM, Property: p},
					Group:  extGroup.ID,
					Stored: true,
				})
			}
			if e.MirrorRelations && p.Kind == taxonomy.KindDirect && !g.HasPropertyID(slot+RelationSuffix) {
				extGroup := ext()
				a.place(ent.ID, extGroup, Placement{
					Member: Member{ID: slot + RelationSuffix, Base: slot, Variant: VariantRelation, Property: p},
					Group:  extGroup.ID,
					Stored: true,
				})
			}
		}
	}

	// shared groups that only received reverse or edge relations store nothing
	rooted, ranged = a.dropEmpty(rooted), a.dropEmpty(ranged)

	sort.SliceStable(rooted, func(i, j int) bool {
		ki, kj := rooted[i].sortKey, rooted[j].sortKey
		if ki.prefix != kj.prefix {
			return ki.prefix < kj.prefix
		}
		return !ki.ext && kj.ext
	})
	sort.SliceStable(ranged, func(i, j int) bool {
		ki, kj := ranged[i].sortKey, ranged[j].sortKey
		if ki.prefix != kj.prefix {
			return ki.prefix < kj.prefix
		}
		if ki.start != kj.start {
			return ki.start < kj.start
		}
		return !ki.ext && kj.ext
	})

	et := &StorageGroup{ID: EntityTypeGroup, FirstClass: true, memberIdx: make(map[string]bool)}
	et.add(Member{ID: EntityTypeProperty, Base: EntityTypeProperty, Variant: VariantEntityType})
	a.byID[EntityTypeGroup] = et

	a.groups = append(append(append(firstClass, rooted...), ranged...), et)
	return a, nil
}

func (a *Assignment) dropEmpty(groups []*StorageGroup) []*StorageGroup {
	kept := groups[:0]
	for _, sg := range groups {
		if len(sg.Members) > 0 {
			kept = append(kept, sg)
		} else {
			delete(a.byID, sg.ID)
		}
	}
	return kept
}

type groupFunc func(id string, fc bool, entity string, key rangeKey) *StorageGroup

// groupsFor returns the base group of p and a constructor for the group its
// derived slots go to. Extension groups are only created when used. For
// first-class owners both are the owner's group.
func (a *Assignment) groupsFor(p *taxonomy.Property, base string, prefixes []string, group groupFunc) (*StorageGroup, func() *StorageGroup) {
	if p.FirstClass {
		sg := a.byID[base]
		return sg, func() *StorageGroup { return sg }
	}
	if root, ok := a.roots[p.EntityID]; ok {
		rootID := taxonomy.Canonical(root)
		ext := func() *StorageGroup {
			return group(rootID+ExtSuffix, false, root, rangeKey{prefix: rootID, ext: true, root: true})
		}
		if base != rootID {
			sg := ext()
			return sg, ext
		}
		return group(rootID, false, root, rangeKey{prefix: rootID, root: true}), ext
	}
	code, _ := taxonomy.ParseCode(p.ID, prefixes)
	start, _ := Bucket(code.Value, a.width)
	key := rangeKey{prefix: code.GroupPrefix(), start: start}
	rangeID := RangeGroupID(code, a.width)
	ext := func() *StorageGroup {
		return group(rangeID+ExtSuffix, false, "", rangeKey{prefix: key.prefix, start: key.start, ext: true})
	}
	if base != rangeID {
		// declared _UOM / _REL slot
		sg := ext()
		return sg, ext
	}
	return group(base, false, "", key), ext
}

func (a *Assignment) place(entityID string, sg *StorageGroup, pl Placement) {
	a.placements[entityID] = append(a.placements[entityID], pl)
	a.index[taxonomy.Key{Entity: entityID, Property: pl.ID}] = sg.ID
	if pl.Stored {
		sg.add(pl.Member)
	}
}

// Summary is a compact description used in logs.
func (a *Assignment) Summary() string {
	var fc, rg, slots int
	for _, sg := range a.groups {
		if sg.FirstClass {
			fc++
		} else {
			rg++
		}
		slots += len(sg.Members)
	}
	return strings.Join([]string{
		fmt.Sprintf("groups=%d", len(a.groups)),
		fmt.Sprintf("first_class=%d", fc),
		fmt.Sprintf("ranged=%d", rg),
		fmt.Sprintf("slots=%d", slots),
	}, " ")
}
