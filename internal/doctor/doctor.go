// Package doctor runs health checks over a cfihos configuration and the
// taxonomy it points at.
//
// The checks walk the same stages a build does (configuration, sources,
// consistency, structure, grouping, scopes) and stop at the first stage
// that cannot continue. If a ledger is given, the last recorded output is
// compared with what a build would produce now.
//
//	d := doctor.New(cfg, specs, doctor.WithLedger(l))
//	report, err := d.Run(ctx)
//	report.Print(os.Stdout, verbose)
package doctor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/pthm/cfihos"
	"github.com/pthm/cfihos/pkg/grouping"
	"github.com/pthm/cfihos/pkg/ledger"
	"github.com/pthm/cfihos/pkg/model"
	"github.com/pthm/cfihos/pkg/scope"
	"github.com/pthm/cfihos/pkg/source"
	"github.com/pthm/cfihos/pkg/taxonomy"
)

// Status represents the result of a health check.
type Status int

const (
	// StatusPass indicates the check passed.
	StatusPass Status = iota
	// StatusWarn indicates a non-critical issue.
	StatusWarn
	// StatusFail indicates a critical issue that will cause failures.
	StatusFail
)

func (s Status) String() string {
	switch s {
	case StatusPass:
		return "pass"
	case StatusWarn:
		return "warn"
	case StatusFail:
		return "fail"
	default:
		return "unknown"
	}
}

// Symbol returns a status indicator symbol for terminal output.
func (s Status) Symbol() string {
	switch s {
	case StatusPass:
		return "✓"
	case StatusWarn:
		return "⚠"
	case StatusFail:
		return "✗"
	default:
		return "?"
	}
}

// CheckResult represents the outcome of a single health check.
type CheckResult struct {
	// Category groups related checks (e.g., "Sources", "Scopes").
	Category string

	// Name is a short identifier for the check.
	Name string

	Status  Status
	Message string

	// Details provides additional information for verbose output.
	Details string

	// FixHint suggests how to resolve issues.
	FixHint string
}

// Report contains all health check results.
type Report struct {
	Checks []CheckResult

	Passed   int
	Warnings int
	Errors   int
}

// AddCheck adds a check result and updates summary counts.
func (r *Report) AddCheck(check CheckResult) {
	r.Checks = append(r.Checks, check)
	switch check.Status {
	case StatusPass:
		r.Passed++
	case StatusWarn:
		r.Warnings++
	case StatusFail:
		r.Errors++
	}
}

// Print writes the report to the given writer.
func (r *Report) Print(w io.Writer, verbose bool) {
	categories := make(map[string][]CheckResult)
	var categoryOrder []string
	for _, check := range r.Checks {
		if _, exists := categories[check.Category]; !exists {
			categoryOrder = append(categoryOrder, check.Category)
		}
		categories[check.Category] = append(categories[check.Category], check)
	}

	for _, cat := range categoryOrder {
		_, _ = fmt.Fprintf(w, "\n%s\n", cat)
		for _, check := range categories[cat] {
			_, _ = fmt.Fprintf(w, "  %s %s\n", check.Status.Symbol(), check.Message)
			if verbose && check.Details != "" {
				for _, line := range strings.Split(check.Details, "\n") {
					_, _ = fmt.Fprintf(w, "      %s\n", line)
				}
			}
			if check.Status != StatusPass && check.FixHint != "" {
				_, _ = fmt.Fprintf(w, "      Fix: %s\n", check.FixHint)
			}
		}
	}

	_, _ = fmt.Fprintf(w, "\nSummary: %d passed, %d warnings, %d errors\n",
		r.Passed, r.Warnings, r.Errors)
}

// HasErrors returns true if any check failed.
func (r *Report) HasErrors() bool {
	return r.Errors > 0
}

// Check returns the first check with the given name.
func (r *Report) Check(name string) (CheckResult, bool) {
	for _, c := range r.Checks {
		if c.Name == name {
			return c, true
		}
	}
	return CheckResult{}, false
}

// Doctor performs health checks on a configuration.
type Doctor struct {
	cfg    cfihos.Config
	specs  []source.Spec
	ledger *ledger.Ledger

	// Cached data from checks (populated during Run)
	batches []taxonomy.Batch
	graph   *taxonomy.Graph
}

// Option configures a Doctor.
type Option func(*Doctor)

// WithLedger enables the ledger checks.
func WithLedger(l *ledger.Ledger) Option {
	return func(d *Doctor) { d.ledger = l }
}

// New creates a new Doctor instance.
func New(cfg cfihos.Config, specs []source.Spec, opts ...Option) *Doctor {
	d := &Doctor{cfg: cfg, specs: specs}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run executes all health checks and returns a report. Errors are returned
// only when a check itself cannot run (e.g. the ledger is unreachable).
func (d *Doctor) Run(ctx context.Context) (*Report, error) {
	report := &Report{}

	d.checkConfiguration(report)
	if !d.checkSources(ctx, report) {
		return report, nil
	}
	if !d.checkConsistency(report) {
		return report, nil
	}
	d.checkStructure(report)
	if !d.checkGrouping(report) {
		return report, nil
	}
	d.checkScopes(report)
	if d.ledger != nil {
		if err := d.checkLedger(ctx, report); err != nil {
			return nil, fmt.Errorf("checking ledger: %w", err)
		}
	}
	return report, nil
}

func (d *Doctor) checkConfiguration(report *Report) {
	if err := d.cfg.Validate(); err != nil {
		report.AddCheck(CheckResult{
			Category: "Configuration",
			Name:     "config_valid",
			Status:   StatusFail,
			Message:  "Configuration is incomplete",
			Details:  strings.ReplaceAll(strings.TrimPrefix(err.Error(), cfihos.ErrConfiguration.Error()+": "), "; ", "\n"),
			FixHint:  "Set the missing keys in cfihos.yaml or via CFIHOS_* environment variables",
		})
		return
	}
	report.AddCheck(CheckResult{
		Category: "Configuration",
		Name:     "config_valid",
		Status:   StatusPass,
		Message:  fmt.Sprintf("Configuration is valid (%s mode, bucket width %d)", d.cfg.Mode, d.cfg.BucketWidth),
	})
}

func (d *Doctor) checkSources(ctx context.Context, report *Report) bool {
	if len(d.specs) == 0 {
		report.AddCheck(CheckResult{
			Category: "Sources",
			Name:     "sources_declared",
			Status:   StatusFail,
			Message:  "No sources declared",
			FixHint:  "Add entries to model_processors_config",
		})
		return false
	}

	batches, err := source.Load(ctx, d.specs)
	if err != nil {
		report.AddCheck(CheckResult{
			Category: "Sources",
			Name:     "sources_loaded",
			Status:   StatusFail,
			Message:  "Sources could not be loaded",
			Details:  err.Error(),
			FixHint:  "Check the source paths and CSV headers",
		})
		return false
	}
	d.batches = batches

	var details []string
	for _, b := range batches {
		details = append(details, fmt.Sprintf("%s (%s): %d entities, %d properties",
			b.Source, b.Prefix, len(b.Entities), len(b.Properties)))
	}
	report.AddCheck(CheckResult{
		Category: "Sources",
		Name:     "sources_loaded",
		Status:   StatusPass,
		Message:  fmt.Sprintf("%d source(s) loaded", len(batches)),
		Details:  strings.Join(details, "\n"),
	})
	return true
}

func (d *Doctor) checkConsistency(report *Report) bool {
	g, err := taxonomy.Build(d.batches...)
	if err != nil {
		check := CheckResult{
			Category: "Consistency",
			Name:     "consistent",
			Status:   StatusFail,
			Message:  "Sources conflict",
			Details:  err.Error(),
			FixHint:  "Resolve the listed conflicts in the source data",
		}
		var ce *taxonomy.ConsistencyError
		if errors.As(err, &ce) {
			check.Message = fmt.Sprintf("Sources conflict (%d conflict(s))", len(ce.Conflicts))
			lines := make([]string, len(ce.Conflicts))
			for i, c := range ce.Conflicts {
				lines[i] = c.String()
			}
			check.Details = strings.Join(lines, "\n")
		}
		report.AddCheck(check)
		return false
	}
	d.graph = g
	g.ComputeClosures()

	report.AddCheck(CheckResult{
		Category: "Consistency",
		Name:     "consistent",
		Status:   StatusPass,
		Message:  fmt.Sprintf("Merged graph is consistent (%d entities, %d properties)", g.Len(), len(g.Properties())),
	})
	return true
}

// structureChecks names one check per warning kind.
var structureChecks = []struct {
	kind taxonomy.WarningKind
	name string
	ok   string
	bad  string
	hint string
}{
	{taxonomy.WarnUnknownParent, "unknown_parents", "All parents resolve", "%d parent reference(s) do not resolve", "Add the missing entities or fix the parents column"},
	{taxonomy.WarnDanglingTarget, "dangling_targets", "All relation targets resolve", "%d relation(s) point at unknown entities", "Add the target entities or fix the targets column"},
	{taxonomy.WarnIneligibleRelation, "ineligible_relations", "All relations are eligible for storage", "%d relation(s) excluded from storage", "First-class relations must target first-class entities"},
	{taxonomy.WarnInheritanceCycle, "inheritance_cycles", "No inheritance cycles detected", "%d inheritance cycle(s) detected", "Review the parents of the listed entities"},
}

func (d *Doctor) checkStructure(report *Report) {
	byKind := make(map[taxonomy.WarningKind][]taxonomy.Warning)
	for _, w := range d.graph.Warnings() {
		byKind[w.Kind] = append(byKind[w.Kind], w)
	}
	for _, sc := range structureChecks {
		ws := byKind[sc.kind]
		if len(ws) == 0 {
			report.AddCheck(CheckResult{Category: "Structure", Name: sc.name, Status: StatusPass, Message: sc.ok})
			continue
		}
		lines := make([]string, len(ws))
		for i, w := range ws {
			lines[i] = w.Subject + ": " + w.Message
		}
		report.AddCheck(CheckResult{
			Category: "Structure",
			Name:     sc.name,
			Status:   StatusWarn,
			Message:  fmt.Sprintf(sc.bad, len(ws)),
			Details:  strings.Join(lines, "\n"),
			FixHint:  sc.hint,
		})
	}
}

func (d *Doctor) checkGrouping(report *Report) bool {
	engine := grouping.Engine{Width: d.cfg.BucketWidth, MirrorRelations: d.cfg.MirrorRelations}
	a, err := engine.Assign(d.graph)
	if err != nil {
		report.AddCheck(CheckResult{
			Category: "Grouping",
			Name:     "grouped",
			Status:   StatusFail,
			Message:  "Properties could not be grouped",
			Details:  err.Error(),
			FixHint:  "Set bucket_width to a positive integer",
		})
		return false
	}

	ranged := 0
	largest, largestID := 0, ""
	for _, sg := range a.Groups() {
		if !sg.FirstClass {
			ranged++
		}
		if len(sg.Members) > largest {
			largest, largestID = len(sg.Members), sg.ID
		}
	}
	report.AddCheck(CheckResult{
		Category: "Grouping",
		Name:     "grouped",
		Status:   StatusPass,
		Message:  fmt.Sprintf("%d storage groups (%d shared ranges)", len(a.Groups()), ranged),
		Details:  fmt.Sprintf("%s\nlargest group: %s (%d slots)", a.Summary(), largestID, largest),
	})
	return true
}

func (d *Doctor) checkScopes(report *Report) {
	if len(d.cfg.Scopes) == 0 {
		status := StatusPass
		if d.cfg.Mode == cfihos.ModeViews {
			status = StatusFail
		}
		report.AddCheck(CheckResult{
			Category: "Scopes",
			Name:     "scopes_declared",
			Status:   status,
			Message:  "No scopes declared",
			FixHint:  "Add a scope under scopes to build views",
		})
		return
	}

	names := make([]string, 0, len(d.cfg.Scopes))
	for _, s := range d.cfg.Scopes {
		names = append(names, s.Name)
	}
	sort.Strings(names)

	for _, name := range names {
		s, _ := scope.Find(d.cfg.Scopes, name)
		r, err := s.Resolve(d.graph)
		if err != nil {
			report.AddCheck(CheckResult{
				Category: "Scopes",
				Name:     "scope:" + s.Name,
				Status:   StatusFail,
				Message:  fmt.Sprintf("Scope %q does not resolve", s.Name),
				Details:  err.Error(),
				FixHint:  "Fix scope_subset and scope_config so every seed is a known entity",
			})
			continue
		}
		report.AddCheck(CheckResult{
			Category: "Scopes",
			Name:     "scope:" + s.Name,
			Status:   StatusPass,
			Message:  fmt.Sprintf("Scope %q resolves to %d entities from %d seeds", s.Name, r.Len(), len(s.Subset)),
			Details:  strings.Join(r.IDs(), ", "),
		})
	}
}

// checkLedger compares the current container output with the last entry.
func (d *Doctor) checkLedger(ctx context.Context, report *Report) error {
	entries, err := d.ledger.List(ctx, 1)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		report.AddCheck(CheckResult{
			Category: "Ledger",
			Name:     "recorded",
			Status:   StatusWarn,
			Message:  "No runs recorded",
			FixHint:  "Run 'cfihos build --record' to record one",
		})
		return nil
	}

	var res *model.Result
	if d.cfg.Validate() == nil {
		if s, err := cfihos.DefaultRegistry().New(d.cfg.Strategy, d.cfg, nil); err == nil {
			res, _ = s.Produce(d.batches)
		}
	}
	var last *ledger.Entry
	if res != nil {
		if last, err = d.ledger.Last(ctx, res.Metadata.ExternalID); err != nil {
			return err
		}
	}
	if last == nil {
		report.AddCheck(CheckResult{
			Category: "Ledger",
			Name:     "recorded",
			Status:   StatusWarn,
			Message:  fmt.Sprintf("Current %s output is not recorded", d.cfg.Mode),
			Details:  fmt.Sprintf("latest entry: %s (%s)", entries[0].ExternalID, entries[0].CreatedAt.Format("2006-01-02 15:04:05")),
			FixHint:  "Run 'cfihos build --record' to record it",
		})
		return nil
	}

	sum, err := ledger.Checksum(res)
	if err != nil {
		return err
	}
	check := CheckResult{
		Category: "Ledger",
		Name:     "recorded",
		Status:   StatusPass,
		Message:  fmt.Sprintf("Last recorded output is current (%s, %s)", last.ExternalID, last.Version),
		Details:  fmt.Sprintf("entry %s\nchecksum %s", last.ID, last.Checksum),
	}
	if sum != last.Checksum {
		check.Status = StatusWarn
		check.Message = fmt.Sprintf("Output changed since the last record of %s", last.ExternalID)
		check.FixHint = "Run 'cfihos build --record' to record the new output"
	}
	report.AddCheck(check)
	return nil
}
