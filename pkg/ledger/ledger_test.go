package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthm/cfihos/pkg/model"
)

func sampleResult(version string) *model.Result {
	return &model.Result{
		Containers: []model.Container{{Container: "PUMP", Name: "Pump", UsedFor: "node"}},
		Views:      []model.View{{View: "PUMP", Name: "Pump", InModel: true, Implements: []string{"TAG"}}},
		Properties: []model.Property{{
			View:              "PUMP",
			ViewProperty:      "CFIHOS_10000001",
			ValueType:         "text",
			MaxCount:          "1",
			Container:         "sp:PUMP",
			ContainerProperty: "CFIHOS_10000001",
		}},
		Metadata: model.Metadata{
			Role:          "DMS Architect",
			DataModelType: "enterprise",
			Schema:        "complete",
			Space:         "sp",
			Name:          "pumps",
			ExternalID:    "pump_model",
			Version:       version,
		},
	}
}

var entryColumns = []string{"id", "external_id", "version", "mode", "checksum", "codec_version",
	"containers", "views", "properties", "payload", "created_at"}

func TestRebind(t *testing.T) {
	assert.Equal(t, "a = $1 AND b = $2", DialectPostgres.rebind("a = ? AND b = ?"))
	assert.Equal(t, "a = ? AND b = ?", DialectSQLite.rebind("a = ? AND b = ?"))
}

func TestDialectFor(t *testing.T) {
	tests := []struct {
		driver string
		want   Dialect
	}{
		{"postgres", DialectPostgres},
		{"pgx", DialectPostgres},
		{"PostgreSQL", DialectPostgres},
		{"sqlite", DialectSQLite},
		{"sqlite3", DialectSQLite},
	}
	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			d, err := DialectFor(tt.driver)
			require.NoError(t, err)
			assert.Equal(t, tt.want, d)
		})
	}

	_, err := DialectFor("mysql")
	assert.ErrorContains(t, err, `unsupported driver "mysql"`)
}

func TestRecord_SkipsUnchanged(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	res := sampleResult("1")
	sum, err := Checksum(res)
	require.NoError(t, err)

	mock.ExpectQuery("SELECT EXISTS").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery("FROM cfihos_runs").
		WithArgs("pump_model").
		WillReturnRows(sqlmock.NewRows(entryColumns).
			AddRow("prev", "pump_model", "1", "containers", sum, CodecVersion, 1, 1, 1, []byte{}, int64(1700000000000)))

	e, skipped, err := New(db, DialectPostgres).Record(context.Background(), res, RecordOptions{Mode: "containers"})
	require.NoError(t, err)
	assert.True(t, skipped)
	assert.Equal(t, "prev", e.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecord_InsertsInTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT EXISTS").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS cfihos_runs").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`INSERT INTO cfihos_runs[\s\S]*VALUES \(\$1, \$2, \$3, \$4, \$5, \$6, \$7, \$8, \$9, \$10, \$11\)`).
		WithArgs(sqlmock.AnyArg(), "pump_model", "1", "containers", sqlmock.AnyArg(), CodecVersion,
			1, 1, 1, sqlmock.AnyArg(), int64(1700000000000)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	now := func() time.Time { return time.UnixMilli(1700000000000) }
	e, skipped, err := New(db, DialectPostgres).Record(context.Background(), sampleResult("1"), RecordOptions{Mode: "containers", Now: now})
	require.NoError(t, err)
	assert.False(t, skipped)
	assert.NotEmpty(t, e.ID)
	assert.Len(t, e.Checksum, 64)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecord_ForceSkipsLookup(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS cfihos_runs").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO cfihos_runs").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	_, skipped, err := New(db, DialectSQLite).Record(context.Background(), sampleResult("1"), RecordOptions{Force: true})
	require.NoError(t, err)
	assert.False(t, skipped)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecord_RollsBackOnInsertError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS cfihos_runs").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO cfihos_runs").
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	_, _, err = New(db, DialectSQLite).Record(context.Background(), sampleResult("1"), RecordOptions{Force: true})
	require.ErrorIs(t, err, assert.AnError)
	assert.ErrorContains(t, err, "inserting ledger entry")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedger_SQLite(t *testing.T) {
	ctx := context.Background()
	db, dialect, err := Open(ctx, "sqlite", ":memory:")
	require.NoError(t, err)
	defer db.Close()
	assert.Equal(t, DialectSQLite, dialect)

	l := New(db, dialect)

	last, err := l.Last(ctx, "pump_model")
	require.NoError(t, err)
	assert.Nil(t, last, "no table yet")

	clock := time.UnixMilli(1700000000000).UTC()
	tick := func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}

	first, skipped, err := l.Record(ctx, sampleResult("1"), RecordOptions{Mode: "containers", Now: tick})
	require.NoError(t, err)
	assert.False(t, skipped)

	again, skipped, err := l.Record(ctx, sampleResult("1"), RecordOptions{Mode: "containers", Now: tick})
	require.NoError(t, err)
	assert.True(t, skipped)
	assert.Equal(t, first.ID, again.ID)

	second, skipped, err := l.Record(ctx, sampleResult("2"), RecordOptions{Mode: "containers", Now: tick})
	require.NoError(t, err)
	assert.False(t, skipped)
	assert.NotEqual(t, first.Checksum, second.Checksum)

	_, skipped, err = l.Record(ctx, sampleResult("2"), RecordOptions{Mode: "containers", Force: true, Now: tick})
	require.NoError(t, err)
	assert.False(t, skipped)

	entries, err := l.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "2", entries[0].Version)
	assert.Equal(t, first.ID, entries[2].ID)
	assert.True(t, first.CreatedAt.Equal(entries[2].CreatedAt))

	limited, err := l.List(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	last, err = l.Last(ctx, "pump_model")
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, entries[0].ID, last.ID)

	got, err := last.Result()
	require.NoError(t, err)
	if diff := cmp.Diff(sampleResult("2"), got, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("payload mismatch (-want +got):\n%s", diff)
	}
}
