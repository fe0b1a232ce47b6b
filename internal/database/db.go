package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// SchemaVersion is written to PRAGMA user_version by Initialize.
const SchemaVersion = 1

// Default retry and locking values.
const (
	// DefaultBusyTimeout is how long SQLite itself waits on a lock before
	// reporting SQLITE_BUSY.
	DefaultBusyTimeout = 2 * time.Second

	// DefaultMaxRetries is how many times a busy transaction is retried.
	DefaultMaxRetries = 3

	// DefaultRetryInterval is the first backoff interval between retries.
	DefaultRetryInterval = 50 * time.Millisecond
)

// DB is the storage handle shared by the tracker, the store and the
// statistics engine. It owns the schema and the single SQL connection.
type DB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// path is the path to the SQLite database file.
	path string

	retry  retryPolicy
	logger *slog.Logger
	now    func() time.Time
}

// Options configures DB behavior.
type Options struct {
	// CreateIfNotExists creates the database file and its parent directory
	// when they are missing. When false, Open fails for a missing file.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool

	// BusyTimeout is passed to PRAGMA busy_timeout. Zero disables SQLite's
	// own waiting, leaving only the retry loop.
	BusyTimeout time.Duration

	// MaxRetries bounds how often a busy transaction is retried.
	MaxRetries int

	// RetryInterval is the initial backoff interval.
	RetryInterval time.Duration

	// Logger receives debug events for writes and warnings for retries.
	// Nil means slog.Default().
	Logger *slog.Logger

	// Clock returns the current time for stored timestamps. Nil means
	// time.Now. Tests use it to get deterministic ordering.
	Clock func() time.Time
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
		BusyTimeout:       DefaultBusyTimeout,
		MaxRetries:        DefaultMaxRetries,
		RetryInterval:     DefaultRetryInterval,
	}
}

// Open opens or creates the database at path and initializes its schema.
// Any failure is reported as ErrStorageUnavailable.
func Open(path string, opts Options) (*DB, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: empty database path", ErrStorageUnavailable)
	}

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: database not found at %s (use CreateIfNotExists option to create)", ErrStorageUnavailable, path)
		} else if err != nil {
			return nil, fmt.Errorf("%w: failed to check database path: %w", ErrStorageUnavailable, err)
		}
	} else if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("%w: failed to create database directory: %w", ErrStorageUnavailable, err)
		}
	}

	// The driver creates missing files on its own, so the existence check
	// above is what enforces CreateIfNotExists.
	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(%d)", path, opts.BusyTimeout.Milliseconds())

	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open database: %w", ErrStorageUnavailable, err)
	}

	// SQLite has one writer; a single connection also keeps per-connection
	// pragmas in effect for every statement.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	d := &DB{
		db:     sqlDB,
		path:   path,
		retry:  newRetryPolicy(opts.MaxRetries, opts.RetryInterval),
		logger: opts.Logger,
		now:    opts.Clock,
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	if d.now == nil {
		d.now = time.Now
	}

	ctx := context.Background()
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("%w: failed to connect: %w", ErrStorageUnavailable, err)
	}

	if opts.EnableWAL {
		if _, err := sqlDB.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("%w: failed to enable WAL mode: %w", ErrStorageUnavailable, err)
		}
	}

	if err := d.Initialize(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	d.logger.Debug("database opened", "path", path, "wal", opts.EnableWAL)
	return d, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// Path returns the database file path.
func (d *DB) Path() string {
	return d.path
}

// schema creates the three relations and their indexes.
const schema = `
-- Triangles are unique on their nodes and relation labels
CREATE TABLE IF NOT EXISTS triangles (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	node_a TEXT NOT NULL,
	node_b TEXT NOT NULL,
	node_c TEXT NOT NULL,
	relation_a_to_b TEXT NOT NULL,
	relation_c_to_b TEXT NOT NULL,
	relation_a_to_c TEXT NOT NULL,
	weight_a_to_b REAL NOT NULL,
	weight_c_to_b REAL NOT NULL,
	weight_a_to_c REAL NOT NULL,
	created_at TEXT NOT NULL,
	UNIQUE(node_a, node_b, node_c, relation_a_to_b, relation_c_to_b, relation_a_to_c)
);

CREATE INDEX IF NOT EXISTS idx_triangles_node_a ON triangles(node_a);
CREATE INDEX IF NOT EXISTS idx_triangles_node_b ON triangles(node_b);
CREATE INDEX IF NOT EXISTS idx_triangles_node_c ON triangles(node_c);

-- One row per visited node; completed rows are the resume point
CREATE TABLE IF NOT EXISTS processed_nodes (
	node_name TEXT PRIMARY KEY NOT NULL,
	processed_at TEXT NOT NULL,
	status TEXT NOT NULL CHECK (status IN ('in_progress', 'completed'))
);

CREATE INDEX IF NOT EXISTS idx_processed_status_time ON processed_nodes(status, processed_at);

-- Append-only statistics history
CREATE TABLE IF NOT EXISTS statistics (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL UNIQUE,
	created_at TEXT NOT NULL,
	execution_time REAL NOT NULL,
	total_triangles INTEGER NOT NULL,
	distinct_nodes INTEGER NOT NULL,
	completed_nodes INTEGER NOT NULL,
	in_progress_nodes INTEGER NOT NULL,
	schema_version INTEGER NOT NULL,
	payload TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_statistics_created ON statistics(created_at);
`

// Initialize creates the schema if it is absent. It is safe to call any
// number of times; Open already calls it once.
func (d *DB) Initialize(ctx context.Context) error {
	err := d.withTx(ctx, "initialize schema", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, schema); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", SchemaVersion))
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	return nil
}

// UserVersion returns the schema version stored in the database file.
func (d *DB) UserVersion(ctx context.Context) (int, error) {
	var v int
	if err := d.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&v); err != nil {
		return 0, classify("read user_version", err)
	}
	return v, nil
}

// querier is satisfied by both *sql.DB and *sql.Tx, so read helpers can run
// inside or outside a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// withTx runs fn in a transaction, committing on success and rolling back
// otherwise. Busy errors retry the whole transaction.
func (d *DB) withTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	attempt := 0
	err := d.retry.do(ctx, func() error {
		attempt++
		if attempt > 1 {
			d.logger.Warn("retrying busy transaction", "op", op, "attempt", attempt)
		}

		tx, err := d.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback() //nolint:errcheck // no-op after Commit

		if err := fn(tx); err != nil {
			return err
		}
		return tx.Commit()
	})
	return classify(op, err)
}

// read runs a read-only query function against the connection, retrying on
// lock conflicts.
func (d *DB) read(ctx context.Context, op string, fn func(q querier) error) error {
	return classify(op, d.retry.do(ctx, func() error {
		return fn(d.db)
	}))
}

// timestamp returns the current time in storage format.
func (d *DB) timestamp() string {
	return formatTimestamp(d.now())
}
