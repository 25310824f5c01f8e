// Package ledger records produced models in a SQL table so that repeated
// runs with identical output can be detected and skipped.
//
// The ledger stores the hand-off payload only. It is not the storage system
// the model describes.
//
//	db, dialect, err := ledger.Open(ctx, "sqlite", "cfihos.db")
//	l := ledger.New(db, dialect)
//	entry, skipped, err := l.Record(ctx, res, ledger.RecordOptions{Mode: "containers"})
package ledger

import (
	"bytes"
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/pthm/cfihos/pkg/model"
)

// CodecVersion is bumped when the payload encoding or the YAML form used for
// checksums changes, so that records re-run even if the checksum matches.
const CodecVersion = "1"

const tableName = "cfihos_runs"

// Entry is one row of the ledger.
type Entry struct {
	ID           string
	ExternalID   string
	Version      string
	Mode         string
	Checksum     string
	CodecVersion string
	Containers   int
	Views        int
	Properties   int
	CreatedAt    time.Time
	Payload      []byte
}

// Result decodes the stored payload.
func (e Entry) Result() (*model.Result, error) {
	dec := msgpack.NewDecoder(bytes.NewReader(e.Payload))
	dec.SetCustomStructTag("json")
	var res model.Result
	if err := dec.Decode(&res); err != nil {
		return nil, fmt.Errorf("decoding payload of %s: %w", e.ID, err)
	}
	return &res, nil
}

// RecordOptions controls Record.
type RecordOptions struct {
	// Mode is stored alongside the result ("containers" or "views").
	Mode string

	// Force records even if the last entry for the model has the same
	// checksum.
	Force bool

	// Now overrides the clock. Defaults to time.Now.
	Now func() time.Time
}

// Ledger reads and writes the cfihos_runs table.
type Ledger struct {
	db      Execer
	dialect Dialect
}

// New creates a ledger over db. db is typically *sql.DB.
func New(db Execer, dialect Dialect) *Ledger {
	return &Ledger{db: db, dialect: dialect}
}

// EnsureSchema creates the ledger table if it does not exist.
func (l *Ledger) EnsureSchema(ctx context.Context) error {
	return l.ensureSchema(ctx, l.db)
}

func (l *Ledger) ensureSchema(ctx context.Context, db Execer) error {
	if _, err := db.ExecContext(ctx, l.dialect.ddl()); err != nil {
		return fmt.Errorf("applying ledger DDL: %w", err)
	}
	return nil
}

// Checksum returns the SHA-256 of the YAML encoding of res.
func Checksum(res *model.Result) (string, error) {
	var buf bytes.Buffer
	if err := model.Encode(&buf, res, model.FormatYAML); err != nil {
		return "", err
	}
	h := sha256.Sum256(buf.Bytes())
	return hex.EncodeToString(h[:]), nil
}

func encodePayload(res *model.Result) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(res); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// shouldSkip returns true if last already holds the same result.
func shouldSkip(last *Entry, checksum string) bool {
	if last == nil {
		return false
	}
	return last.Checksum == checksum && last.CodecVersion == CodecVersion
}

// Record stores res unless the last entry for the same model external ID
// has the same checksum. It returns the stored (or matching) entry and
// whether recording was skipped.
//
// Uses a transaction if the db supports it.
func (l *Ledger) Record(ctx context.Context, res *model.Result, opts RecordOptions) (Entry, bool, error) {
	sum, err := Checksum(res)
	if err != nil {
		return Entry{}, false, fmt.Errorf("computing checksum: %w", err)
	}

	if !opts.Force {
		last, err := l.Last(ctx, res.Metadata.ExternalID)
		if err != nil {
			return Entry{}, false, fmt.Errorf("checking last entry: %w", err)
		}
		if shouldSkip(last, sum) {
			return *last, true, nil
		}
	}

	payload, err := encodePayload(res)
	if err != nil {
		return Entry{}, false, fmt.Errorf("encoding payload: %w", err)
	}
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	e := Entry{
		ID:           uuid.NewString(),
		ExternalID:   res.Metadata.ExternalID,
		Version:      res.Metadata.Version,
		Mode:         opts.Mode,
		Checksum:     sum,
		CodecVersion: CodecVersion,
		Containers:   len(res.Containers),
		Views:        len(res.Views),
		Properties:   len(res.Properties),
		CreatedAt:    now().UTC().Truncate(time.Millisecond),
		Payload:      payload,
	}

	if txer, ok := l.db.(txBeginner); ok {
		tx, err := txer.BeginTx(ctx, nil)
		if err != nil {
			return Entry{}, false, fmt.Errorf("starting transaction: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		if err := l.ensureSchema(ctx, tx); err != nil {
			return Entry{}, false, err
		}
		if err := l.insert(ctx, tx, e); err != nil {
			return Entry{}, false, err
		}
		if err := tx.Commit(); err != nil {
			return Entry{}, false, fmt.Errorf("committing: %w", err)
		}
		return e, false, nil
	}

	// Fall back to non-transactional (for *sql.Conn)
	if err := l.ensureSchema(ctx, l.db); err != nil {
		return Entry{}, false, err
	}
	if err := l.insert(ctx, l.db, e); err != nil {
		return Entry{}, false, err
	}
	return e, false, nil
}

func (l *Ledger) insert(ctx context.Context, db Execer, e Entry) error {
	_, err := db.ExecContext(ctx, l.dialect.rebind(`
		INSERT INTO cfihos_runs (id, external_id, version, mode, checksum, codec_version,
			containers, views, properties, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`), e.ID, e.ExternalID, e.Version, e.Mode, e.Checksum, e.CodecVersion,
		e.Containers, e.Views, e.Properties, e.Payload, e.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("inserting ledger entry: %w", err)
	}
	return nil
}

func (l *Ledger) tableExists(ctx context.Context) (bool, error) {
	var exists bool
	if err := l.db.QueryRowContext(ctx, l.dialect.tableExistsQuery()).Scan(&exists); err != nil {
		return false, fmt.Errorf("checking %s table: %w", tableName, err)
	}
	return exists, nil
}

const selectColumns = `SELECT id, external_id, version, mode, checksum, codec_version,
	containers, views, properties, payload, created_at FROM cfihos_runs`

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (Entry, error) {
	var (
		e  Entry
		ms int64
	)
	err := s.Scan(&e.ID, &e.ExternalID, &e.Version, &e.Mode, &e.Checksum, &e.CodecVersion,
		&e.Containers, &e.Views, &e.Properties, &e.Payload, &ms)
	e.CreatedAt = time.UnixMilli(ms).UTC()
	return e, err
}

// Last returns the most recent entry for a model external ID, or nil if
// there is none or the table does not exist yet.
func (l *Ledger) Last(ctx context.Context, externalID string) (*Entry, error) {
	exists, err := l.tableExists(ctx)
	if err != nil || !exists {
		return nil, err
	}
	row := l.db.QueryRowContext(ctx, l.dialect.rebind(selectColumns+`
		WHERE external_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT 1`), externalID)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying last entry: %w", err)
	}
	return &e, nil
}

// List returns up to limit entries, newest first. A limit below 1 returns
// every entry.
func (l *Ledger) List(ctx context.Context, limit int) ([]Entry, error) {
	exists, err := l.tableExists(ctx)
	if err != nil || !exists {
		return nil, err
	}
	query := selectColumns + ` ORDER BY created_at DESC, id DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := l.db.QueryContext(ctx, l.dialect.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("querying ledger: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning ledger entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
