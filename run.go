package cfihos

import (
	"fmt"
	"slices"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pthm/cfihos/pkg/grouping"
	"github.com/pthm/cfihos/pkg/model"
	"github.com/pthm/cfihos/pkg/scope"
	"github.com/pthm/cfihos/pkg/taxonomy"
)

// Stage is a step of a run.
type Stage int

const (
	StageUninitialized Stage = iota
	StageGraphBuilt
	StageClosuresComputed
	StageGrouped
	StageContainersEmitted
	StageScopeResolved
	StageViewsEmitted
	StageDone
)

var stageNames = [...]string{
	StageUninitialized:     "Uninitialized",
	StageGraphBuilt:        "GraphBuilt",
	StageClosuresComputed:  "ClosuresComputed",
	StageGrouped:           "Grouped",
	StageContainersEmitted: "ContainersEmitted",
	StageScopeResolved:     "ScopeResolved",
	StageViewsEmitted:      "ViewsEmitted",
	StageDone:              "Done",
}

func (s Stage) String() string {
	if int(s) >= 0 && int(s) < len(stageNames) {
		return stageNames[s]
	}
	return fmt.Sprintf("Stage(%d)", int(s))
}

// transitions lists the stages reachable from each stage.
var transitions = map[Stage][]Stage{
	StageUninitialized:     {StageGraphBuilt},
	StageGraphBuilt:        {StageClosuresComputed},
	StageClosuresComputed:  {StageGrouped},
	StageGrouped:           {StageContainersEmitted, StageScopeResolved},
	StageContainersEmitted: {StageDone},
	StageScopeResolved:     {StageViewsEmitted},
	StageViewsEmitted:      {StageDone},
}

// Run holds the state of one processing run. A Run is owned by a single
// goroutine and must not be shared.
type Run struct {
	ID string

	cfg   Config
	log   *zap.Logger
	stage Stage
	roots bool

	graph      *taxonomy.Graph
	assignment *grouping.Assignment
	scope      *scope.Scope
	resolved   *scope.Resolved
	result     *model.Result
	warnings   []taxonomy.Warning
}

// NewRun starts a run in StageUninitialized.
func NewRun(cfg Config, logger *zap.Logger) *Run {
	if logger == nil {
		logger = zap.NewNop()
	}
	id := uuid.NewString()
	return &Run{
		ID:  id,
		cfg: cfg,
		log: logger.With(zap.String("run", id)),
	}
}

// Stage returns the current stage.
func (r *Run) Stage() Stage {
	return r.stage
}

// check verifies that the run may move to the next stage.
func (r *Run) check(next Stage) error {
	if !slices.Contains(transitions[r.stage], next) {
		return fmt.Errorf("%w: %s → %s", ErrInvalidTransition, r.stage, next)
	}
	return nil
}

func (r *Run) enter(next Stage) {
	r.log.Debug("stage", zap.Stringer("from", r.stage), zap.Stringer("to", next))
	r.stage = next
}

// BuildGraph merges and validates the source batches.
func (r *Run) BuildGraph(batches []taxonomy.Batch) error {
	if err := r.check(StageGraphBuilt); err != nil {
		return err
	}
	g, err := taxonomy.Build(batches...)
	if err != nil {
		return err
	}
	r.graph = g
	r.warnings = g.Warnings()
	for _, w := range r.warnings {
		r.log.Warn("structural warning",
			zap.String("kind", string(w.Kind)),
			zap.String("subject", w.Subject),
			zap.String("detail", w.Message))
	}
	r.log.Info("graph built",
		zap.Int("sources", len(batches)),
		zap.Int("entities", g.Len()),
		zap.Int("properties", len(g.Properties())),
		zap.Int("warnings", len(r.warnings)))
	r.enter(StageGraphBuilt)
	return nil
}

// ComputeClosures computes the inheritance closure of every entity.
func (r *Run) ComputeClosures() error {
	if err := r.check(StageClosuresComputed); err != nil {
		return err
	}
	r.graph.ComputeClosures()
	r.enter(StageClosuresComputed)
	return nil
}

// Group assigns every property to a storage group.
func (r *Run) Group() error {
	if err := r.check(StageGrouped); err != nil {
		return err
	}
	engine := grouping.Engine{Width: r.cfg.BucketWidth, MirrorRelations: r.cfg.MirrorRelations}
	if r.roots {
		roots, err := grouping.RootMap(r.graph, r.cfg.RootAnchors, r.cfg.RootNodes)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrConfiguration, err)
		}
		engine.Roots = roots
		r.log.Info("root nodes mapped", zap.Int("entities", len(roots)))
	}
	a, err := engine.Assign(r.graph)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	r.assignment = a
	r.log.Info("properties grouped", zap.String("summary", a.Summary()))
	r.enter(StageGrouped)
	return nil
}

// EmitContainers builds the container model.
func (r *Run) EmitContainers() error {
	if err := r.check(StageContainersEmitted); err != nil {
		return err
	}
	r.result = model.BuildContainers(r.graph, r.assignment, r.cfg.modelOptions(nil))
	r.log.Info("containers emitted",
		zap.Int("containers", len(r.result.Containers)),
		zap.Int("views", len(r.result.Views)),
		zap.Int("properties", len(r.result.Properties)))
	r.enter(StageContainersEmitted)
	return nil
}

// ResolveScope resolves the named scope against the graph.
func (r *Run) ResolveScope(name string) error {
	if err := r.check(StageScopeResolved); err != nil {
		return err
	}
	s, err := scope.Find(r.cfg.Scopes, name)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	resolved, err := s.Resolve(r.graph)
	if err != nil {
		return fmt.Errorf("%w: scope %q: %w", ErrConfiguration, s.Name, err)
	}
	r.scope = &s
	r.resolved = resolved
	r.log.Info("scope resolved",
		zap.String("scope", s.Name),
		zap.Int("seeds", len(s.Subset)),
		zap.Int("entities", resolved.Len()))
	r.enter(StageScopeResolved)
	return nil
}

// EmitViews builds the view model of the resolved scope.
func (r *Run) EmitViews() error {
	if err := r.check(StageViewsEmitted); err != nil {
		return err
	}
	r.result = model.BuildViews(r.graph, r.assignment, r.resolved, r.cfg.modelOptions(r.scope))
	r.log.Info("views emitted",
		zap.Int("views", len(r.result.Views)),
		zap.Int("properties", len(r.result.Properties)))
	r.enter(StageViewsEmitted)
	return nil
}

// Finish moves the run to StageDone and returns the result.
func (r *Run) Finish() (*model.Result, error) {
	if err := r.check(StageDone); err != nil {
		return nil, err
	}
	r.enter(StageDone)
	return r.result, nil
}

// Graph returns the graph once built.
func (r *Run) Graph() *taxonomy.Graph {
	return r.graph
}

// Assignment returns the grouping once computed.
func (r *Run) Assignment() *grouping.Assignment {
	return r.assignment
}

// Resolved returns the resolved scope in view mode.
func (r *Run) Resolved() *scope.Resolved {
	return r.resolved
}

// Warnings returns the structural warnings of the graph.
func (r *Run) Warnings() []taxonomy.Warning {
	return r.warnings
}
