package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pthm/cfihos/internal/cli"
)

var (
	statusDB     string
	statusDriver string
	statusLimit  int
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show recorded runs",
	Long:  `Show the most recent runs recorded in the ledger.`,
	Example: `  # Show the last runs
  cfihos status

  # Against a postgres ledger
  cfihos status --driver pgx --db postgres://localhost/cfihos`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		return runStatus(ctx)
	},
}

func init() {
	f := statusCmd.Flags()
	f.StringVar(&statusDB, "db", "", "ledger database URL")
	f.StringVar(&statusDriver, "driver", "", "ledger driver: sqlite, postgres or pgx")
	f.IntVarP(&statusLimit, "limit", "n", 10, "number of runs to show")
}

func runStatus(ctx context.Context) error {
	l, db, err := openLedger(ctx, statusDriver, statusDB)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	entries, err := l.List(ctx, statusLimit)
	if err != nil {
		return cli.GeneralError("reading ledger", err)
	}

	if len(entries) == 0 {
		fmt.Println("No runs recorded.")
		fmt.Println("Record one with: cfihos build --record")
		return nil
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tMODEL\tVERSION\tMODE\tCONTAINERS\tVIEWS\tPROPERTIES\tCHECKSUM\tRECORDED")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%.12s\t%s\n",
			e.ID, e.ExternalID, e.Version, e.Mode,
			e.Containers, e.Views, e.Properties, e.Checksum,
			e.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	}
	return tw.Flush()
}
