package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	// Registered drivers: "postgres" (lib/pq), "pgx" (pgx stdlib) and
	// "sqlite" (modernc, pure Go).
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Dialect is the SQL flavour of a ledger database.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// DialectFor maps a database/sql driver name to its dialect.
func DialectFor(driver string) (Dialect, error) {
	switch strings.ToLower(driver) {
	case "postgres", "pgx", "postgresql":
		return DialectPostgres, nil
	case "sqlite", "sqlite3":
		return DialectSQLite, nil
	}
	return "", fmt.Errorf("ledger: unsupported driver %q (want postgres, pgx or sqlite)", driver)
}

// driverName normalizes aliases to a registered driver name.
func driverName(driver string) string {
	switch strings.ToLower(driver) {
	case "postgresql":
		return "postgres"
	case "sqlite3":
		return "sqlite"
	}
	return strings.ToLower(driver)
}

// Open opens and pings a ledger database.
func Open(ctx context.Context, driver, dsn string) (*sql.DB, Dialect, error) {
	d, err := DialectFor(driver)
	if err != nil {
		return nil, "", err
	}
	db, err := sql.Open(driverName(driver), dsn)
	if err != nil {
		return nil, "", fmt.Errorf("ledger: opening %s: %w", driver, err)
	}
	if d == DialectSQLite {
		// one writer; also keeps ":memory:" databases on a single connection
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, "", fmt.Errorf("ledger: connecting: %w", err)
	}
	return db, d, nil
}

// rebind rewrites "?" placeholders for the dialect.
func (d Dialect) rebind(query string) string {
	if d != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (d Dialect) blobType() string {
	if d == DialectPostgres {
		return "BYTEA"
	}
	return "BLOB"
}

func (d Dialect) ddl() string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id TEXT PRIMARY KEY,
	external_id TEXT NOT NULL,
	version TEXT NOT NULL,
	mode TEXT NOT NULL,
	checksum TEXT NOT NULL,
	codec_version TEXT NOT NULL,
	containers INTEGER NOT NULL,
	views INTEGER NOT NULL,
	properties INTEGER NOT NULL,
	payload %s NOT NULL,
	created_at BIGINT NOT NULL
)`, tableName, d.blobType())
}

func (d Dialect) tableExistsQuery() string {
	if d == DialectPostgres {
		return `SELECT EXISTS (
			SELECT 1 FROM pg_class c
			JOIN pg_namespace n ON n.oid = c.relnamespace
			WHERE c.relname = 'cfihos_runs'
			AND n.nspname = current_schema()
		)`
	}
	return `SELECT EXISTS (SELECT 1 FROM sqlite_master WHERE type = 'table' AND name = 'cfihos_runs')`
}
