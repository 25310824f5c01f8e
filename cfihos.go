// Package cfihos compiles a CFIHOS-style taxonomy into a sparse storage
// model.
//
// # Pipeline
//
// A run takes ordered per-source batches of entity and property records and
// moves through fixed stages:
//
//	Uninitialized → GraphBuilt → ClosuresComputed → Grouped
//	    → ContainersEmitted → Done
//	    → ScopeResolved → ViewsEmitted → Done
//
// The graph is built and validated once (pkg/taxonomy), every property is
// assigned to a storage group (pkg/grouping), and the result is emitted as
// either containers or the views of one named scope (pkg/scope, pkg/model).
//
// # Basic Usage
//
//	cfg := cfihos.DefaultConfig()
//	cfg.ContainerSpace = "cfihos_containers"
//	strategy, err := cfihos.DefaultRegistry().New("sparse", cfg, logger)
//	res, err := strategy.Produce(batches)
//
// # Errors
//
// Configuration problems wrap ErrConfiguration. Conflicting source data is
// reported as one *taxonomy.ConsistencyError listing every conflict, which
// matches ErrConsistency. No result is returned with an error.
package cfihos

import (
	"fmt"
	"strings"

	"github.com/pthm/cfihos/pkg/grouping"
	"github.com/pthm/cfihos/pkg/model"
	"github.com/pthm/cfihos/pkg/scope"
)

// Mode selects the output shape of a run.
type Mode string

const (
	ModeContainers Mode = "containers"
	ModeViews      Mode = "views"
)

// ModelInfo describes the container data model.
type ModelInfo struct {
	Name        string
	Description string
	ExternalID  string
	Version     string
	Creator     string
}

// Config is the parsed configuration of a run.
type Config struct {
	Strategy string
	Mode     Mode

	// Scope names the entry of Scopes used in view mode.
	Scope  string
	Scopes []scope.Scope

	BucketWidth     int
	MirrorRelations bool

	// RootNodes and RootAnchors drive the root_containers strategy, see
	// grouping.RootMap.
	RootNodes   []string
	RootAnchors []string

	ContainerSpace string
	ViewsSpace     string
	Identifier     model.Identifier

	Model ModelInfo

	// Indexes maps a first-class entity ID to its container indexes.
	Indexes map[string][]model.Index
}

// DefaultConfig returns a container-mode configuration with the default
// bucket width. Spaces and model info still need to be set.
func DefaultConfig() Config {
	return Config{
		Strategy:    StrategySparse,
		Mode:        ModeContainers,
		BucketWidth: grouping.DefaultWidth,
		Identifier:  model.IdentifierCode,
	}
}

// Validate reports every missing or invalid setting in one error wrapping
// ErrConfiguration.
func (c Config) Validate() error {
	var problems []string
	missing := func(key, val string) {
		if strings.TrimSpace(val) == "" {
			problems = append(problems, key+" is required")
		}
	}

	missing("container_data_model_space", c.ContainerSpace)
	if c.BucketWidth < 1 {
		problems = append(problems, fmt.Sprintf("bucket_width must be a positive integer, got %d", c.BucketWidth))
	}
	if _, err := model.ParseIdentifier(string(c.Identifier)); err != nil {
		problems = append(problems, err.Error())
	}

	switch c.Mode {
	case ModeContainers:
		missing("data_model_name", c.Model.Name)
		missing("data_model_external_id", c.Model.ExternalID)
		missing("model_version", c.Model.Version)
	case ModeViews:
		missing("views_data_model_space", c.ViewsSpace)
		missing("scope", c.Scope)
		if c.Scope != "" {
			s, err := scope.Find(c.Scopes, c.Scope)
			if err != nil {
				problems = append(problems, err.Error())
				break
			}
			missing(fmt.Sprintf("scope %q: scope_model_external_id", s.Name), s.ModelExternalID)
			missing(fmt.Sprintf("scope %q: scope_model_version", s.Name), s.ModelVersion)
			mode, err := scope.ParseSeedMode(s.Config)
			if err != nil {
				problems = append(problems, fmt.Sprintf("scope %q: %v", s.Name, err))
				break
			}
			if mode == scope.SeedScoped && len(s.Subset) == 0 {
				problems = append(problems, fmt.Sprintf("scope %q: scope_subset is empty", s.Name))
			}
		}
	default:
		problems = append(problems, fmt.Sprintf("invalid model_type %q (want %s or %s)", c.Mode, ModeContainers, ModeViews))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrConfiguration, strings.Join(problems, "; "))
	}
	return nil
}

// modelName formats a scope-derived model identifier:
// "pump skid-A" -> "CFIHOS_PUMP_SKID_A".
func modelName(s string) string {
	return "CFIHOS_" + strings.ToUpper(strings.NewReplacer(" ", "_", "-", "_").Replace(s))
}

// metadata returns the model metadata for the configured mode.
func (c Config) metadata(s *scope.Scope) model.Metadata {
	md := model.Metadata{
		Role:          "DMS Architect",
		DataModelType: "enterprise",
		Schema:        "complete",
		Creator:       c.Model.Creator,
	}
	if s == nil {
		md.Space = c.ContainerSpace
		md.Name = c.Model.Name
		md.Description = c.Model.Description
		md.ExternalID = c.Model.ExternalID
		md.Version = c.Model.Version
		return md
	}
	md.Space = c.ViewsSpace
	md.Name = modelName(s.Name)
	md.Description = s.Description
	md.ExternalID = modelName(s.ModelExternalID)
	md.Version = s.ModelVersion
	return md
}

func (c Config) modelOptions(s *scope.Scope) model.Options {
	ident, _ := model.ParseIdentifier(string(c.Identifier))
	return model.Options{
		ContainerSpace: c.ContainerSpace,
		Identifier:     ident,
		Indexes:        c.Indexes,
		Metadata:       c.metadata(s),
	}
}
