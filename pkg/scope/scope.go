// Package scope expands a seed set of entities into a self-contained subset
// of a taxonomy graph.
package scope

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pthm/cfihos/pkg/taxonomy"
)

// ErrUnknownSeed is returned when a seed ID is not in the graph.
var ErrUnknownSeed = errors.New("scope: unknown seed entity")

// ErrUnknownScope is returned when a named scope is not configured.
var ErrUnknownScope = errors.New("scope: unknown scope")

// Scope is a named, user-selected subset of entities.
type Scope struct {
	Name            string   `mapstructure:"scope_name" json:"scope_name"`
	Description     string   `mapstructure:"scope_description" json:"scope_description,omitempty"`
	ModelExternalID string   `mapstructure:"scope_model_external_id" json:"scope_model_external_id,omitempty"`
	ModelVersion    string   `mapstructure:"scope_model_version" json:"scope_model_version,omitempty"`
	Subset          []string `mapstructure:"scope_subset" json:"scope_subset"`

	// Config selects how seeds are chosen: "scoped" (the default) seeds
	// Subset, "tags" and "equipment" also seed every entity whose ID starts
	// with TagPrefix or EquipmentPrefix.
	Config string `mapstructure:"scope_config" json:"scope_config,omitempty"`

	// IncludeFirstClass also seeds every first-class entity.
	IncludeFirstClass bool `mapstructure:"include_first_class" json:"include_first_class,omitempty"`
}

// SeedMode is the parsed form of Scope.Config.
type SeedMode string

const (
	SeedScoped    SeedMode = "scoped"
	SeedTags      SeedMode = "tags"
	SeedEquipment SeedMode = "equipment"

	// TagPrefix and EquipmentPrefix mark the tag and equipment class IDs of
	// a CFIHOS taxonomy, e.g. T30000311 and E30000311.
	TagPrefix       = "T"
	EquipmentPrefix = "E"
)

// ErrUnknownSeedMode is returned for an unsupported scope_config.
var ErrUnknownSeedMode = errors.New("scope: unknown scope_config")

// ParseSeedMode parses a scope_config value. Empty input means scoped.
func ParseSeedMode(s string) (SeedMode, error) {
	switch m := SeedMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return SeedScoped, nil
	case SeedScoped, SeedTags, SeedEquipment:
		return m, nil
	}
	return "", fmt.Errorf("%w %q (want scoped, tags or equipment)", ErrUnknownSeedMode, s)
}

// Prefix returns the ID prefix seeded by the mode, or "" for scoped.
func (m SeedMode) Prefix() string {
	switch m {
	case SeedTags:
		return TagPrefix
	case SeedEquipment:
		return EquipmentPrefix
	}
	return ""
}

// Options returns the resolution options of s.
func (s Scope) Options() (Options, error) {
	mode, err := ParseSeedMode(s.Config)
	if err != nil {
		return Options{}, err
	}
	return Options{IncludeFirstClass: s.IncludeFirstClass, SeedPrefix: mode.Prefix()}, nil
}

// Resolve resolves s against g using the seeds and options it configures.
func (s Scope) Resolve(g *taxonomy.Graph) (*Resolved, error) {
	opts, err := s.Options()
	if err != nil {
		return nil, err
	}
	return Resolve(g, s.Subset, opts)
}

// Find returns the scope with the given name. Names are compared case
// insensitively.
func Find(scopes []Scope, name string) (Scope, error) {
	for _, s := range scopes {
		if strings.EqualFold(s.Name, name) {
			return s, nil
		}
	}
	return Scope{}, fmt.Errorf("%w: %q", ErrUnknownScope, name)
}

// Options control resolution.
type Options struct {
	IncludeFirstClass bool

	// SeedPrefix also seeds every entity whose ID starts with it.
	SeedPrefix string
}

// Resolved is a dependency-closed set of entity IDs in first-discovery order.
type Resolved struct {
	ids []string
	set map[string]bool
}

// IDs returns the resolved entity IDs in first-discovery order.
func (r *Resolved) IDs() []string {
	return r.ids
}

// Contains reports whether id is in the resolved set.
func (r *Resolved) Contains(id string) bool {
	return r.set[id]
}

// Len returns the number of resolved entities.
func (r *Resolved) Len() int {
	return len(r.ids)
}

func (r *Resolved) add(id string) bool {
	if r.set[id] {
		return false
	}
	r.set[id] = true
	r.ids = append(r.ids, id)
	return true
}

// Resolve returns the smallest superset of seeds closed under inheritance
// and relation dependencies.
//
// For every entity in the set, its closure ancestors and the targets of its
// direct, reverse and edge relations are added until nothing changes. Targets
// that are not in the graph are skipped; they are reported as structural
// warnings by the graph.
//
// Every unknown seed is reported in a single error wrapping ErrUnknownSeed.
func Resolve(g *taxonomy.Graph, seeds []string, opts Options) (*Resolved, error) {
	var unknown []string
	r := &Resolved{set: make(map[string]bool)}

	for _, s := range seeds {
		s = strings.TrimSpace(s)
		if _, ok := g.Entity(s); !ok {
			unknown = append(unknown, s)
			continue
		}
		r.add(s)
	}
	if len(unknown) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSeed, strings.Join(unknown, ", "))
	}

	if opts.SeedPrefix != "" {
		for _, e := range g.Entities() {
			if strings.HasPrefix(e.ID, opts.SeedPrefix) {
				r.add(e.ID)
			}
		}
	}
	if opts.IncludeFirstClass {
		for _, e := range g.Entities() {
			if e.FirstClass {
				r.add(e.ID)
			}
		}
	}

	// r.ids grows while iterating; the loop ends at the fixed point
	for i := 0; i < len(r.ids); i++ {
		e, _ := g.Entity(r.ids[i])
		for _, a := range g.Ancestors(e.ID) {
			r.add(a)
		}
		for _, p := range e.Properties {
			if !p.Kind.IsRelation() {
				continue
			}
			for _, t := range p.Targets {
				if _, ok := g.Entity(t); ok {
					r.add(t)
				}
			}
		}
	}

	return r, nil
}
