// Package source loads taxonomy batches from files on disk.
//
// A source is either a pair of CSV sheets (entities and properties) or one
// YAML document holding both lists. Sources are loaded concurrently and
// returned in declaration order, which is the order the graph merges them.
package source

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/pthm/cfihos/pkg/taxonomy"
)

// ErrInvalidSource is returned for a source declaration that cannot be
// loaded: missing name or paths, duplicate name, unknown format.
var ErrInvalidSource = errors.New("source: invalid source")

// Format is the file format of a source.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatYAML Format = "yaml"
)

// Spec declares one source.
type Spec struct {
	Name   string `mapstructure:"name" json:"name"`
	Prefix string `mapstructure:"prefix" json:"prefix"`
	Format Format `mapstructure:"format" json:"format,omitempty"`

	// Path is the YAML document.
	Path string `mapstructure:"path" json:"path,omitempty"`

	// Entities and Properties are the CSV sheets.
	Entities   string `mapstructure:"entities" json:"entities,omitempty"`
	Properties string `mapstructure:"properties" json:"properties,omitempty"`
}

// EffectiveFormat returns the declared format, or infers it from the paths.
func (s Spec) EffectiveFormat() Format {
	if s.Format != "" {
		return Format(strings.ToLower(string(s.Format)))
	}
	switch strings.ToLower(filepath.Ext(s.Path)) {
	case ".yaml", ".yml", ".json":
		return FormatYAML
	}
	return FormatCSV
}

// Validate checks that the declaration names everything its format needs.
func (s Spec) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidSource)
	}
	if strings.TrimSpace(s.Prefix) == "" {
		return fmt.Errorf("%w: %s: prefix is required", ErrInvalidSource, s.Name)
	}
	switch s.EffectiveFormat() {
	case FormatCSV:
		if s.Entities == "" && s.Properties == "" {
			return fmt.Errorf("%w: %s: csv source needs entities or properties", ErrInvalidSource, s.Name)
		}
	case FormatYAML:
		if s.Path == "" {
			return fmt.Errorf("%w: %s: yaml source needs path", ErrInvalidSource, s.Name)
		}
	default:
		return fmt.Errorf("%w: %s: unknown format %q", ErrInvalidSource, s.Name, s.Format)
	}
	return nil
}

// WithBase returns s with relative paths resolved against dir.
func (s Spec) WithBase(dir string) Spec {
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(dir, p)
	}
	s.Path = abs(s.Path)
	s.Entities = abs(s.Entities)
	s.Properties = abs(s.Properties)
	return s
}

// Load loads every source concurrently. Batches are returned in the order of
// specs; the first failure cancels the remaining loads.
func Load(ctx context.Context, specs []Spec) ([]taxonomy.Batch, error) {
	seen := make(map[string]bool, len(specs))
	for _, s := range specs {
		if err := s.Validate(); err != nil {
			return nil, err
		}
		if seen[s.Name] {
			return nil, fmt.Errorf("%w: duplicate source name %q", ErrInvalidSource, s.Name)
		}
		seen[s.Name] = true
	}

	batches := make([]taxonomy.Batch, len(specs))
	g, ctx := errgroup.WithContext(ctx)
	for i, s := range specs {
		i, s := i, s
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			b, err := LoadOne(s)
			if err != nil {
				return fmt.Errorf("source %q: %w", s.Name, err)
			}
			batches[i] = b
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return batches, nil
}

// LoadOne loads a single source.
func LoadOne(s Spec) (taxonomy.Batch, error) {
	b := taxonomy.Batch{Source: s.Name, Prefix: s.Prefix}
	var err error
	switch s.EffectiveFormat() {
	case FormatYAML:
		b.Entities, b.Properties, err = readYAML(s.Path)
	default:
		if s.Entities != "" {
			if b.Entities, err = readEntitiesCSV(s.Entities); err != nil {
				return b, err
			}
		}
		if s.Properties != "" {
			b.Properties, err = readPropertiesCSV(s.Properties)
		}
	}
	return b, err
}
