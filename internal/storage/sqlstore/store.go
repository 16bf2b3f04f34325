package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
	_ "modernc.org/sqlite"             // pure go sqlite driver

	apperrors "csstcli/internal/errors"
	"csstcli/internal/storage"
)

const (
	// DriverSQLite selects the embedded SQLite engine
	DriverSQLite = "sqlite"
	// DriverPostgres selects a Postgres server reached through pgx
	DriverPostgres = "postgres"

	defaultSQLitePath = "csst.db"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Store keeps experiments in a relational database
type Store struct {
	db      *sql.DB
	dialect dialect
	logger  *slog.Logger
}

var _ storage.Store = (*Store)(nil)

// Open connects to driver ("sqlite" or "postgres") and applies the schema.
// For SQLite dsn is a file path whose parent directory is created on demand.
func Open(ctx context.Context, driver, dsn string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch driver {
	case DriverSQLite:
		return openSQLite(ctx, dsn, logger)
	case DriverPostgres:
		return openPostgres(ctx, dsn, logger)
	default:
		return nil, apperrors.NewConfigError(fmt.Sprintf("unknown storage driver %q", driver), nil)
	}
}

func openSQLite(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	if path == "" {
		path = defaultSQLitePath
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, apperrors.NewStorageError("create database directory", err)
		}
	}
	openMu.Lock()
	db, err := sqlOpen(sqliteDialect.driver, path)
	openMu.Unlock()
	if err != nil {
		return nil, apperrors.NewStorageError("open sqlite", err)
	}
	// one writer at a time, and a single connection keeps :memory: databases alive
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, `PRAGMA foreign_keys = ON`); err != nil {
		_ = db.Close()
		return nil, apperrors.NewStorageError("enable foreign keys", err)
	}
	return newStore(ctx, db, sqliteDialect, logger.With(slog.String("path", path)))
}

func openPostgres(ctx context.Context, dsn string, logger *slog.Logger) (*Store, error) {
	if dsn == "" {
		return nil, apperrors.NewConfigError("postgres dsn is empty", nil)
	}
	openMu.Lock()
	db, err := sqlOpen(postgresDialect.driver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, apperrors.NewStorageError("open postgres", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, apperrors.NewStorageError("ping postgres", err)
	}
	return newStore(ctx, db, postgresDialect, logger)
}

func newStore(ctx context.Context, db *sql.DB, d dialect, logger *slog.Logger) (*Store, error) {
	for _, stmt := range d.schema() {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, apperrors.NewStorageError("apply schema", err)
		}
	}
	logger = logger.With(slog.String("component", "sqlstore"), slog.String("dialect", d.name))
	logger.DebugContext(ctx, "schema applied")
	return &Store{db: db, dialect: d, logger: logger}, nil
}

// RunInTransaction commits fn's writes when it returns nil and rolls them
// back otherwise
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx storage.Tx) error) (retErr error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.NewStorageError("begin transaction", err)
	}
	defer func() {
		if retErr != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				s.logger.WarnContext(ctx, "rollback failed", slog.String("error", rbErr.Error()))
			}
		}
	}()

	if err := fn(&sqlTx{tx: tx, dialect: s.dialect}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return apperrors.NewStorageError("commit transaction", err)
	}
	return nil
}

// Close releases the connection pool
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying pool for diagnostics
func (s *Store) DB() *sql.DB { return s.db }
