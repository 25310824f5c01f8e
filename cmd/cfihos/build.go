package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pthm/cfihos"
	"github.com/pthm/cfihos/internal/cli"
	"github.com/pthm/cfihos/pkg/ledger"
	"github.com/pthm/cfihos/pkg/model"
	"github.com/pthm/cfihos/pkg/source"
)

var (
	buildMode        string
	buildScope       string
	buildStrategy    string
	buildIdentifier  string
	buildBucketWidth int
	buildOut         string
	buildFormat      string
	buildRecord      bool
	buildForce       bool
	buildDB          string
	buildDriver      string
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build the data model",
	Long: `Load the configured sources, group every property into storage containers
and write either the container model or the views of one scope.`,
	Example: `  # Build the container model to stdout
  cfihos build

  # Build the views of a scope as JSON
  cfihos build --mode views --scope "pump skid" --format json --out pumps.json

  # Build and record the result in the ledger
  cfihos build --out model.yaml --record`,
	RunE: func(cmd *cobra.Command, args []string) error {
		core := cfg.Core()
		core.Strategy = resolveString(buildStrategy, core.Strategy)
		core.Mode = cfihos.Mode(resolveString(buildMode, string(core.Mode)))
		core.Scope = resolveString(buildScope, core.Scope)
		if buildIdentifier != "" {
			core.Identifier = model.Identifier(buildIdentifier)
			if ident, err := model.ParseIdentifier(buildIdentifier); err == nil {
				core.Identifier = ident
			}
		}
		if cmd.Flags().Changed("bucket-width") {
			core.BucketWidth = buildBucketWidth
		}

		return runBuild(cmd.Context(), core, cfg.SourceSpecs())
	},
}

func init() {
	f := buildCmd.Flags()
	f.StringVar(&buildMode, "mode", "", "output mode: containers or views")
	f.StringVar(&buildScope, "scope", "", "scope to build in views mode")
	f.StringVar(&buildStrategy, "strategy", "", "processing strategy (sparse or root_containers)")
	f.StringVar(&buildIdentifier, "identifier", "", "view identifiers: code or name")
	f.IntVar(&buildBucketWidth, "bucket-width", 0, "property codes per range container")
	f.StringVarP(&buildOut, "out", "o", "", "output file (default: stdout)")
	f.StringVar(&buildFormat, "format", "", "output format: yaml or json (default: from --out extension, else yaml)")
	f.BoolVar(&buildRecord, "record", false, "record the result in the ledger")
	f.BoolVar(&buildForce, "force", false, "record even if the model is unchanged")
	f.StringVar(&buildDB, "db", "", "ledger database URL")
	f.StringVar(&buildDriver, "driver", "", "ledger driver: sqlite, postgres or pgx")
}

func outputFormat(flagFormat, out string) model.Format {
	if flagFormat != "" {
		return model.Format(flagFormat)
	}
	if filepath.Ext(out) == ".json" {
		return model.FormatJSON
	}
	return model.FormatYAML
}

func runBuild(ctx context.Context, core cfihos.Config, specs []source.Spec) error {
	if ctx == nil {
		ctx = context.Background()
	}

	strategy, err := cfihos.DefaultRegistry().New(core.Strategy, core, logger)
	if err != nil {
		return cli.RunError("configuring strategy", err)
	}

	batches, err := source.Load(ctx, specs)
	if err != nil {
		return cli.ConfigError("loading sources", err)
	}

	res, err := strategy.Produce(batches)
	if err != nil {
		return cli.RunError("building model", err)
	}

	if err := writeResult(res, outputFormat(buildFormat, buildOut)); err != nil {
		return cli.GeneralError("writing output", err)
	}

	if !resolveBool(buildRecord, buildForce) {
		return nil
	}

	l, db, err := openLedger(ctx, buildDriver, buildDB)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	entry, skipped, err := l.Record(ctx, res, ledger.RecordOptions{Mode: string(core.Mode), Force: buildForce})
	if err != nil {
		return cli.GeneralError("recording run", err)
	}
	logger.Info("ledger updated",
		zap.String("id", entry.ID),
		zap.Bool("skipped", skipped),
		zap.String("checksum", entry.Checksum))

	if quiet {
		return nil
	}
	if skipped {
		fmt.Fprintln(os.Stderr, "Model unchanged since the last record, not recorded.")
		fmt.Fprintln(os.Stderr, "Use --force to record anyway.")
	} else {
		fmt.Fprintf(os.Stderr, "Recorded %s %s as %s\n", entry.ExternalID, entry.Version, entry.ID)
	}
	return nil
}

func writeResult(res *model.Result, format model.Format) error {
	if buildOut == "" {
		return model.Encode(os.Stdout, res, format)
	}

	if dir := filepath.Dir(buildOut); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(buildOut)
	if err != nil {
		return err
	}
	if err := encodeTo(f, res, format); err != nil {
		return err
	}

	if !quiet {
		fmt.Fprintf(os.Stderr, "Wrote %d containers, %d views, %d properties to %s\n",
			len(res.Containers), len(res.Views), len(res.Properties), buildOut)
	}
	return nil
}

// encodeTo encodes res into wc and closes it, returning the close error.
func encodeTo(wc io.WriteCloser, res *model.Result, format model.Format) error {
	if err := model.Encode(wc, res, format); err != nil {
		_ = wc.Close()
		return err
	}
	return wc.Close()
}
