package cfihos

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/pthm/cfihos/pkg/model"
	"github.com/pthm/cfihos/pkg/taxonomy"
)

const (
	// StrategySparse is the name of the sparse property strategy.
	StrategySparse = "sparse"

	// StrategyRootContainers is the sparse strategy with shared properties
	// denormalized into one container per root node.
	StrategyRootContainers = "root_containers"
)

// Strategy turns source batches into a result.
type Strategy interface {
	// Name returns the registry name of the strategy.
	Name() string

	// Produce runs the whole pipeline. It returns either a complete result
	// or an error, never both.
	Produce(batches []taxonomy.Batch) (*model.Result, error)
}

// Constructor builds a strategy from a configuration. It validates the
// configuration before returning.
type Constructor func(cfg Config, logger *zap.Logger) (Strategy, error)

// Registry maps strategy names to constructors. Build one explicitly at
// start-up and pass it to whatever selects the strategy.
type Registry map[string]Constructor

// DefaultRegistry returns a registry holding the built-in strategies.
func DefaultRegistry() Registry {
	return Registry{
		StrategySparse:         NewSparse,
		StrategyRootContainers: NewRootContainers,
	}
}

// New constructs the named strategy.
func (r Registry) New(name string, cfg Config, logger *zap.Logger) (Strategy, error) {
	ctor, ok := r[name]
	if !ok {
		return nil, fmt.Errorf("%w: %w %q (available: %v)", ErrConfiguration, ErrUnknownStrategy, name, r.Names())
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return ctor(cfg, logger)
}

// Names returns the registered strategy names, sorted.
func (r Registry) Names() []string {
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
