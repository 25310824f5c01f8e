package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pthm/cfihos"
	"github.com/pthm/cfihos/internal/cli"
	"github.com/pthm/cfihos/pkg/source"
	"github.com/pthm/cfihos/pkg/taxonomy"
)

// preparer is implemented by strategies that can stop after grouping.
type preparer interface {
	Prepare(batches []taxonomy.Batch) (*cfihos.Run, error)
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate sources and grouping",
	Long: `Load and merge every source, compute inheritance and assign storage
groups without emitting a model. Conflicting sources exit with code 3.`,
	Example: `  # Validate using config file settings
  cfihos validate

  # Validate a different config
  cfihos validate --config other/cfihos.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		return runValidate(ctx, cfg.Core(), cfg.SourceSpecs())
	},
}

func runValidate(ctx context.Context, core cfihos.Config, specs []source.Spec) error {
	strategy, err := cfihos.DefaultRegistry().New(core.Strategy, core, logger)
	if err != nil {
		return cli.RunError("configuring strategy", err)
	}
	p, ok := strategy.(preparer)
	if !ok {
		return cli.GeneralError(fmt.Sprintf("strategy %q does not support validation", strategy.Name()), nil)
	}

	batches, err := source.Load(ctx, specs)
	if err != nil {
		return cli.ConfigError("loading sources", err)
	}

	run, err := p.Prepare(batches)
	if err != nil {
		return cli.RunError("validating sources", err)
	}

	if quiet {
		return nil
	}

	g := run.Graph()
	fmt.Printf("Sources are valid. Merged %d sources into %d entities and %d properties.\n",
		len(batches), g.Len(), len(g.Properties()))
	fmt.Printf("Storage groups: %s\n", run.Assignment().Summary())

	warnings := run.Warnings()
	if len(warnings) == 0 {
		return nil
	}
	fmt.Printf("\n%d warning(s):\n", len(warnings))
	for _, w := range warnings {
		fmt.Printf("  - %s\n", w)
	}
	return nil
}
