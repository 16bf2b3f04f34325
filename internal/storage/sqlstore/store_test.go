package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "csstcli/internal/errors"
)

func TestDialectRebind(t *testing.T) {
	query := `SELECT id FROM properties WHERE name = ? AND unit = ?`

	assert.Equal(t, query, sqliteDialect.rebind(query))
	assert.Equal(t, `SELECT id FROM properties WHERE name = $1 AND unit = $2`, postgresDialect.rebind(query))
	assert.Equal(t, `SELECT 1`, postgresDialect.rebind(`SELECT 1`))
}

func TestDialectSchema(t *testing.T) {
	for _, d := range []dialect{sqliteDialect, postgresDialect} {
		t.Run(d.name, func(t *testing.T) {
			stmts := d.schema()
			require.Len(t, stmts, 10)
			for _, stmt := range stmts {
				assert.NotContains(t, stmt, "%!")
			}
			assert.Contains(t, stmts[0], d.idColumn)
		})
	}
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "oracle", "dsn", nil)
	assert.ErrorIs(t, err, apperrors.ErrConfig)
}

func TestOpen_PostgresRequiresDSN(t *testing.T) {
	_, err := Open(context.Background(), DriverPostgres, "", nil)
	assert.ErrorIs(t, err, apperrors.ErrConfig)
}

func TestOpen_DriverFailure(t *testing.T) {
	original := sqlOpen
	t.Cleanup(func() { sqlOpen = original })
	sqlOpen = func(driverName, dataSourceName string) (*sql.DB, error) {
		return nil, errors.New("driver unavailable")
	}

	_, err := Open(context.Background(), DriverPostgres, "postgres://localhost/csst", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrStorage)
	assert.True(t, strings.Contains(err.Error(), "driver unavailable"))
}

func TestOpen_SQLiteReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "csst.db")

	store, err := Open(ctx, DriverSQLite, path, nil)
	require.NoError(t, err)
	tx, err := store.DB().BeginTx(ctx, nil)
	require.NoError(t, err)
	wrapped := &sqlTx{tx: tx, dialect: sqliteDialect}
	require.NoError(t, wrapped.AddName(ctx, "polymer", "101", "PEG"))
	require.NoError(t, tx.Commit())
	require.NoError(t, store.Close())

	reopened, err := Open(ctx, DriverSQLite, path, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })

	tx, err = reopened.DB().BeginTx(ctx, nil)
	require.NoError(t, err)
	defer func() { _ = tx.Rollback() }()
	ids, err := (&sqlTx{tx: tx, dialect: sqliteDialect}).LookupName(ctx, "polymer", "peg")
	require.NoError(t, err)
	assert.Equal(t, []string{"101"}, ids)
}
