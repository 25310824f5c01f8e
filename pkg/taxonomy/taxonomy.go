// Package taxonomy holds the in-memory entity/property graph that every
// processing run is built on.
//
// A graph is assembled from ordered per-source batches, validated once, and
// then treated as read-only. Grouping and scope resolution derive new values
// from it without mutating it.
package taxonomy

import (
	"fmt"
	"strings"
)

// Kind is the declared kind of a property.
type Kind int

const (
	KindScalar Kind = iota
	KindDirect
	KindReverse
	KindEdge
)

var kindNames = map[Kind]string{
	KindScalar:  "scalar",
	KindDirect:  "direct",
	KindReverse: "reverse",
	KindEdge:    "edge",
}

// Aliases accepted by ParseKind. The upper-case forms are the column values
// used by the CFIHOS property sheets.
var kindAliases = map[string]Kind{
	"scalar":                  KindScalar,
	"basic_data_type":         KindScalar,
	"direct":                  KindDirect,
	"entity_relation":         KindDirect,
	"reverse":                 KindReverse,
	"entity_reverse_relation": KindReverse,
	"edge":                    KindEdge,
	"edge_relation":           KindEdge,
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// IsRelation reports whether the kind references other entities.
func (k Kind) IsRelation() bool {
	return k == KindDirect || k == KindReverse || k == KindEdge
}

// ParseKind parses a kind name. Empty input means scalar.
func ParseKind(s string) (Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return KindScalar, nil
	}
	if k, ok := kindAliases[s]; ok {
		return k, nil
	}
	return KindScalar, fmt.Errorf("unknown property kind %q", s)
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(b []byte) error {
	parsed, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// EntityRecord is an entity as delivered by a source.
type EntityRecord struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	StorageName string   `json:"storage_name,omitempty"`
	FirstClass  bool     `json:"first_class"`
	Parents     []string `json:"parents,omitempty"`

	// CoreImplements lists core data model views a first-class entity's
	// view implements, e.g. "cdf_cdm:CogniteAsset(version=v1)".
	CoreImplements []string `json:"implements_core_model,omitempty"`
}

// PropertyRecord is a property occurrence as delivered by a source. The same
// property ID may occur on several entities.
type PropertyRecord struct {
	ID          string `json:"id"`
	EntityID    string `json:"entity_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Kind        Kind   `json:"kind"`
	DataType    string `json:"data_type,omitempty"`
	Required    bool   `json:"required,omitempty"`
	UOM         bool   `json:"uom,omitempty"`

	// Relation kinds only.
	Targets         []string `json:"targets,omitempty"`
	ThroughProperty string   `json:"through_property,omitempty"`
	EdgeType        string   `json:"edge_type,omitempty"`
	EdgeDirection   string   `json:"edge_direction,omitempty"`
}

// Batch is the output of one source. Prefix is the identifier prefix the
// source declares, e.g. "CFIHOS".
type Batch struct {
	Source     string
	Prefix     string
	Entities   []EntityRecord
	Properties []PropertyRecord
}

// Entity is a graph node.
type Entity struct {
	EntityRecord
	Source string

	// Properties owned by the entity, in source order.
	Properties []*Property
}

// Property is one property occurrence owned by a single entity.
type Property struct {
	PropertyRecord
	Source string

	// FirstClass mirrors the owning entity's flag. It is set during Build
	// and never re-derived.
	FirstClass bool
}

// Key identifies a property occurrence.
type Key struct {
	Entity   string
	Property string
}

func (k Key) String() string {
	return k.Entity + "." + k.Property
}
