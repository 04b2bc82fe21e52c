// Package sqlite adapts the store ports to SQLite via database/sql and
// mattn/go-sqlite3, following the connection-pooling and schema-embedding
// approach the teacher repository uses for its own SQLite backend.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/dipnamdev/attendance-management-backend/internal/store"
)

//go:embed schema.sql
var schemaFS embed.FS

// DB wraps a pooled SQLite connection and exposes the transaction
// primitive every command, heartbeat, and reconciler step runs inside.
type DB struct {
	conn *sql.DB
}

// Config holds the SQLite connection settings.
type Config struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Open connects to the SQLite database at cfg.DSN and applies the schema.
// `_txlock=immediate` on the DSN makes every BeginTx acquire SQLite's
// RESERVED lock up front: the store's stand-in for row-level locking,
// since SQLite has no SELECT ... FOR UPDATE (see DESIGN.md).
func Open(cfg Config) (*DB, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("sqlite: dsn cannot be empty")
	}

	if dir := filepath.Dir(cfg.DSN); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sqlite: create data dir: %w", err)
		}
	}

	dsn := cfg.DSN +
		"?_foreign_keys=on" +
		"&_journal_mode=WAL" +
		"&_synchronous=NORMAL" +
		"&_txlock=immediate" +
		"&_timeout=5000"

	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		conn.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		conn.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		conn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

func (db *DB) migrate() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.conn.PingContext(ctx); err != nil {
		return fmt.Errorf("sqlite: ping: %w", err)
	}

	schema, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("sqlite: read schema: %w", err)
	}

	if _, err := db.conn.ExecContext(ctx, string(schema)); err != nil {
		return fmt.Errorf("sqlite: apply schema: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// WithTx begins an immediate-mode transaction, runs fn with it, and
// commits on success or rolls back on error/panic. This is the
// serialization point §5 requires: whichever caller's transaction begins
// first holds SQLite's write lock until it commits or rolls back.
func (db *DB) WithTx(ctx context.Context, fn func(ctx context.Context, q store.Queryer) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin tx: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(ctx, txQueryer{tx}); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit tx: %w", err)
	}
	return nil
}

// Queryer returns a store.Queryer backed directly by the pool, for
// read-only calls that don't need a dedicated transaction (e.g.
// GetTodayAttendance's live view).
func (db *DB) Queryer() store.Queryer {
	return dbQueryer{db.conn}
}

// dbQueryer and txQueryer adapt *sql.DB / *sql.Tx to store.Queryer so
// repository methods are agnostic to which one they were handed.

type dbQueryer struct{ db *sql.DB }

func (q dbQueryer) ExecContext(ctx context.Context, query string, args ...interface{}) (store.Result, error) {
	return q.db.ExecContext(ctx, query, args...)
}
func (q dbQueryer) QueryContext(ctx context.Context, query string, args ...interface{}) (store.Rows, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
func (q dbQueryer) QueryRowContext(ctx context.Context, query string, args ...interface{}) store.Row {
	return q.db.QueryRowContext(ctx, query, args...)
}

type txQueryer struct{ tx *sql.Tx }

func (q txQueryer) ExecContext(ctx context.Context, query string, args ...interface{}) (store.Result, error) {
	return q.tx.ExecContext(ctx, query, args...)
}
func (q txQueryer) QueryContext(ctx context.Context, query string, args ...interface{}) (store.Rows, error) {
	rows, err := q.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
func (q txQueryer) QueryRowContext(ctx context.Context, query string, args ...interface{}) store.Row {
	return q.tx.QueryRowContext(ctx, query, args...)
}
