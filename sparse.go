package cfihos

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/pthm/cfihos/pkg/model"
	"github.com/pthm/cfihos/pkg/taxonomy"
)

// Sparse is the sparse property strategy: first-class entities get their
// own containers, everything else shares numeric-range containers.
type Sparse struct {
	cfg   Config
	log   *zap.Logger
	name  string
	roots bool
}

// NewSparse validates cfg and returns a sparse strategy.
func NewSparse(cfg Config, logger *zap.Logger) (Strategy, error) {
	return newSparse(cfg, logger, StrategySparse, false)
}

// NewRootContainers validates cfg and returns a sparse strategy that stores
// the shared properties of every class below a root node in the root's
// container. It needs RootNodes or RootAnchors.
func NewRootContainers(cfg Config, logger *zap.Logger) (Strategy, error) {
	if len(cfg.RootNodes) == 0 && len(cfg.RootAnchors) == 0 {
		return nil, fmt.Errorf("%w: %s needs root_nodes_list or root_anchors", ErrConfiguration, StrategyRootContainers)
	}
	return newSparse(cfg, logger, StrategyRootContainers, true)
}

func newSparse(cfg Config, logger *zap.Logger, name string, roots bool) (Strategy, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sparse{cfg: cfg, log: logger.Named(name), name: name, roots: roots}, nil
}

func (s *Sparse) Name() string {
	return s.name
}

// Produce runs every stage for the configured mode.
func (s *Sparse) Produce(batches []taxonomy.Batch) (*model.Result, error) {
	run, err := s.Prepare(batches)
	if err != nil {
		return nil, err
	}
	switch s.cfg.Mode {
	case ModeViews:
		if err := run.ResolveScope(s.cfg.Scope); err != nil {
			return nil, err
		}
		if err := run.EmitViews(); err != nil {
			return nil, err
		}
	default:
		if err := run.EmitContainers(); err != nil {
			return nil, err
		}
	}
	return run.Finish()
}

// Prepare runs the stages shared by both modes and returns the run in
// StageGrouped. Validation tooling stops here.
func (s *Sparse) Prepare(batches []taxonomy.Batch) (*Run, error) {
	run := NewRun(s.cfg, s.log)
	run.roots = s.roots
	s.log.Info("run started",
		zap.String("run", run.ID),
		zap.String("strategy", s.name),
		zap.String("mode", string(s.cfg.Mode)),
		zap.Int("bucket_width", s.cfg.BucketWidth))

	if err := run.BuildGraph(batches); err != nil {
		return nil, err
	}
	if err := run.ComputeClosures(); err != nil {
		return nil, err
	}
	if err := run.Group(); err != nil {
		return nil, err
	}
	return run, nil
}
