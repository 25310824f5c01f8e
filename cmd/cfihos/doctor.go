package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pthm/cfihos/internal/cli"
	"github.com/pthm/cfihos/internal/doctor"
)

var (
	doctorDB      string
	doctorDriver  string
	doctorVerbose bool
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run health checks",
	Long: `Run health checks on the configuration, sources, scopes and, when a
ledger is configured, whether the last recorded model is still current.`,
	Example: `  # Run health checks
  cfihos doctor

  # Run with verbose output
  cfihos doctor --verbose`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		return runDoctor(ctx, resolveBool(doctorVerbose, verbose > 0))
	},
}

func init() {
	f := doctorCmd.Flags()
	f.StringVar(&doctorDB, "db", "", "ledger database URL")
	f.StringVar(&doctorDriver, "driver", "", "ledger driver: sqlite, postgres or pgx")
	f.BoolVar(&doctorVerbose, "verbose", false, "show detailed output")
}

func runDoctor(ctx context.Context, verboseFlag bool) error {
	var opts []doctor.Option
	if doctorDB != "" || cfg.LedgerConfigured() {
		l, db, err := openLedger(ctx, doctorDriver, doctorDB)
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()
		opts = append(opts, doctor.WithLedger(l))
	}

	if !quiet {
		fmt.Println("cfihos doctor - Health Check")
	}

	report, err := doctor.New(cfg.Core(), cfg.SourceSpecs(), opts...).Run(ctx)
	if err != nil {
		return cli.GeneralError("running doctor", err)
	}

	report.Print(os.Stdout, verboseFlag)

	if report.HasErrors() {
		return cli.GeneralError("health checks failed", nil)
	}
	return nil
}
