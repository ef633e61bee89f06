package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/felixgeelhaar/fortify/retry"
	_ "github.com/jackc/pgx/v5/stdlib" // register pgx driver
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // register sqlite driver

	"github.com/reneee98/layers/pkg/domain"
	"github.com/reneee98/layers/pkg/domain/billing"
)

// Supported database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "pgx"
)

const LayersDir = ".layers"
const DatabaseFile = "layers.db"

// Compile-time checks.
var (
	_ billing.Repository     = (*Repository)(nil)
	_ domain.AuditRepository = (*Repository)(nil)
)

// Repository persists billing state in a SQL database. Queries are written
// with '?' placeholders and rebound for the active driver.
type Repository struct {
	db          *sqlx.DB
	retryConfig retry.Config
}

// DefaultDSN returns the sqlite database path inside a workspace root.
func DefaultDSN(root string) string {
	return filepath.Join(root, LayersDir, DatabaseFile)
}

// Open connects to the database and applies the schema.
func Open(ctx context.Context, driver, dsn string) (*Repository, error) {
	var (
		db  *sqlx.DB
		err error
	)

	switch driver {
	case DriverSQLite, "":
		db, err = openSQLite(dsn)
	case DriverPostgres:
		db, err = sqlx.Open(DriverPostgres, dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("creating schema: %w", err)
		}
	}

	return &Repository{
		db: db,
		retryConfig: retry.Config{
			MaxAttempts:   3,
			InitialDelay:  10 * time.Millisecond,
			BackoffPolicy: retry.BackoffExponential,
		},
	}, nil
}

func openSQLite(dsn string) (*sqlx.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("sqlite DSN must not be empty")
	}
	if dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o750); err != nil {
			return nil, fmt.Errorf("creating database dir: %w", err)
		}
	}

	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	db, err := sqlx.Open(DriverSQLite, dsn+sep+"_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(on)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// One connection: sqlite has a single writer, and an in-memory database
	// only exists on the connection that created it.
	db.SetMaxOpenConns(1)
	return db, nil
}

// Close closes the database.
func (r *Repository) Close() error {
	return r.db.Close()
}

// Ping verifies the database is reachable.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *Repository) q(query string) string {
	return r.db.Rebind(query)
}

// getOne runs a single-row read with retry. A missing row yields (nil, nil).
func getOne[T any](ctx context.Context, r *Repository, query string, args ...any) (*T, error) {
	retryer := retry.New[*T](r.retryConfig)
	return retryer.Do(ctx, func(ctx context.Context) (*T, error) {
		var row T
		if err := r.db.GetContext(ctx, &row, r.q(query), args...); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, nil
			}
			return nil, err
		}
		return &row, nil
	})
}

// selectAll runs a multi-row read with retry.
func selectAll[T any](ctx context.Context, r *Repository, query string, args ...any) ([]T, error) {
	retryer := retry.New[[]T](r.retryConfig)
	return retryer.Do(ctx, func(ctx context.Context) ([]T, error) {
		var rows []T
		if err := r.db.SelectContext(ctx, &rows, r.q(query), args...); err != nil {
			return nil, err
		}
		return rows, nil
	})
}

// inTx runs fn in a transaction, rolling back on error.
func (r *Repository) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func affected(res sql.Result) int64 {
	n, err := res.RowsAffected()
	if err != nil {
		return 0
	}
	return n
}
