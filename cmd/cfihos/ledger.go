package main

import (
	"context"
	"database/sql"

	"github.com/pthm/cfihos/internal/cli"
	"github.com/pthm/cfihos/pkg/ledger"
)

// resolveDSN gets the ledger DSN from flag or config.
func resolveDSN(flagDSN string) (string, error) {
	if flagDSN != "" {
		return flagDSN, nil
	}

	dsn, err := cfg.DSN()
	if err != nil {
		return "", cli.ConfigError("ledger configuration", err)
	}
	if dsn == "" {
		return "", cli.ConfigError("ledger location is required (use --db or set ledger in config)", nil)
	}
	return dsn, nil
}

// openLedger connects to the ledger. The caller closes the returned DB.
func openLedger(ctx context.Context, flagDriver, flagDSN string) (*ledger.Ledger, *sql.DB, error) {
	dsn, err := resolveDSN(flagDSN)
	if err != nil {
		return nil, nil, err
	}
	driver := resolveString(flagDriver, cfg.Ledger.Driver, "sqlite")

	db, dialect, err := ledger.Open(ctx, driver, dsn)
	if err != nil {
		return nil, nil, cli.DBConnectError("connecting to ledger", err)
	}
	return ledger.New(db, dialect), db, nil
}
