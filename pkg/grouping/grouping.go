// Package grouping assigns every property of a taxonomy graph to exactly one
// storage group.
//
// Properties of first-class entities go to a group named after the entity.
// All other properties share numeric-range groups of a configurable width,
// named {prefix}_{digit}_{start}_{end}. Derived unit-of-measure and relation
// mirror slots of shared properties go to the matching "_ext" group.
//
// With Engine.Roots set, shared properties of entities below a root node are
// denormalized into one group per root instead, see RootMap.
package grouping

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/pthm/cfihos/pkg/taxonomy"
)

const (
	// DefaultWidth is the number of property codes covered by a range group.
	DefaultWidth = 100

	// EntityTypeGroup is the synthetic group holding EntityTypeProperty.
	EntityTypeGroup = "EntityTypeGroup"

	// EntityTypeProperty tells which entity an instance stored in a shared
	// group represents.
	EntityTypeProperty = "entityType"

	UOMSuffix      = "_UOM"
	RelationSuffix = "_REL"
	ExtSuffix      = "_ext"
)

// ErrInvalidWidth is returned for a bucket width below 1.
var ErrInvalidWidth = errors.New("grouping: bucket width must be a positive integer")

// Bucket returns the range [start, end] of width w that contains code.
// Ranges start at 1: 1..w, w+1..2w, and so on. A code that is an exact
// multiple of w is the last code of its range.
func Bucket(code, w int) (start, end int) {
	start = ((code-1)/w)*w + 1
	return start, start + w - 1
}

// RangeGroupID returns the range group identifier for a parsed code.
func RangeGroupID(c taxonomy.Code, w int) string {
	start, end := Bucket(c.Value, w)
	return c.GroupPrefix() + "_" + strconv.Itoa(start) + "_" + strconv.Itoa(end)
}

// Engine computes group assignments.
type Engine struct {
	// Width is the bucket width. Zero means DefaultWidth.
	Width int

	// MirrorRelations adds a text slot next to every direct relation that
	// holds the raw target identifier.
	MirrorRelations bool

	// Prefixes overrides the source prefixes declared by the graph.
	Prefixes []string

	// Roots maps an entity ID to the root entity whose group stores the
	// entity's shared properties. Unmapped entities use range groups.
	Roots map[string]string
}

func (e Engine) width() int {
	if e.Width == 0 {
		return DefaultWidth
	}
	return e.Width
}

// Validate checks the engine settings.
func (e Engine) Validate() error {
	if e.Width < 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidWidth, e.Width)
	}
	return nil
}

// IsDerivedID reports whether id names a unit-of-measure or relation mirror
// slot, whether derived by the engine or declared by a source.
func IsDerivedID(id string) bool {
	upper := strings.ToUpper(taxonomy.Canonical(id))
	return strings.HasSuffix(upper, UOMSuffix) || strings.HasSuffix(upper, RelationSuffix)
}

// GroupFor returns the group of a property occurrence. Declared _UOM and
// _REL slots of shared properties go to the "_ext" group, like derived ones.
func (e Engine) GroupFor(p *taxonomy.Property, prefixes []string) (string, error) {
	if p.FirstClass {
		return taxonomy.Canonical(p.EntityID), nil
	}
	if root, ok := e.Roots[p.EntityID]; ok {
		if IsDerivedID(p.ID) {
			return taxonomy.Canonical(root) + ExtSuffix, nil
		}
		return taxonomy.Canonical(root), nil
	}
	code, err := taxonomy.ParseCode(p.ID, prefixes)
	if err != nil {
		return "", err
	}
	if IsDerivedID(p.ID) {
		return RangeGroupID(code, e.width()) + ExtSuffix, nil
	}
	return RangeGroupID(code, e.width()), nil
}
