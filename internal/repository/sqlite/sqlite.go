// Package sqlite implements repository.Store on SQLite.
//
// modernc.org/sqlite is a pure Go translation of SQLite, so the binary
// needs no C toolchain. The pool is pinned to a single connection: every
// statement and transaction is serialized, which is what makes the
// check-then-act candle toggle race free, and it also keeps ":memory:"
// databases alive (each new connection to ":memory:" would be a fresh,
// empty database).
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sqlitedrv "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/sakif/memorial/internal/repository"
)

var _ repository.Store = (*DB)(nil)

// DB wraps a sql.DB connection pool and provides repository methods.
type DB struct {
	conn *sql.DB
}

// New opens (or creates) the database at dbPath and runs migrations.
//
// dbPath examples:
//   - "data/memorial.db" → file-based database
//   - ":memory:"         → in-memory database, gone when closed
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := conn.Exec(p); err != nil {
			conn.Close()
			return nil, fmt.Errorf("sqlite: %s: %w", p, err)
		}
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Ping checks that the database still answers.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates every table. CREATE ... IF NOT EXISTS makes it safe to
// run on each start.
func (db *DB) migrate() error {
	stmts := []struct {
		name string
		sql  string
	}{
		{"accounts", `
			CREATE TABLE IF NOT EXISTS accounts (
				id            TEXT PRIMARY KEY,
				username      TEXT NOT NULL UNIQUE,
				password_hash TEXT NOT NULL,
				name          TEXT NOT NULL,
				email         TEXT NOT NULL DEFAULT '',
				is_admin      INTEGER NOT NULL DEFAULT 0,
				created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
			);`},
		{"sessions", `
			CREATE TABLE IF NOT EXISTS sessions (
				id         TEXT PRIMARY KEY,
				account_id TEXT NOT NULL REFERENCES accounts(id),
				created_at DATETIME NOT NULL,
				expires_at DATETIME NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_sessions_account_id ON sessions(account_id);`},
		{"tributes", `
			CREATE TABLE IF NOT EXISTS tributes (
				id           TEXT PRIMARY KEY,
				account_id   TEXT NOT NULL REFERENCES accounts(id),
				content      TEXT NOT NULL,
				media_url    TEXT NOT NULL DEFAULT '',
				media_kind   TEXT NOT NULL DEFAULT '',
				candle_count INTEGER NOT NULL DEFAULT 0 CHECK (candle_count >= 0),
				created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
			);
			CREATE INDEX IF NOT EXISTS idx_tributes_created_at ON tributes(created_at);
			CREATE INDEX IF NOT EXISTS idx_tributes_account_id ON tributes(account_id);`},
		// UNIQUE(account_id, tribute_id) is what stops two concurrent
		// toggles from both inserting a candle.
		{"candles", `
			CREATE TABLE IF NOT EXISTS candles (
				account_id TEXT NOT NULL REFERENCES accounts(id),
				tribute_id TEXT NOT NULL REFERENCES tributes(id),
				created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
				UNIQUE (account_id, tribute_id)
			);
			CREATE INDEX IF NOT EXISTS idx_candles_tribute_id ON candles(tribute_id);`},
		{"gallery_images", `
			CREATE TABLE IF NOT EXISTS gallery_images (
				id            TEXT PRIMARY KEY,
				url           TEXT NOT NULL,
				caption       TEXT NOT NULL DEFAULT '',
				featured      INTEGER NOT NULL DEFAULT 0,
				display_order INTEGER NOT NULL DEFAULT 0,
				created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
			);
			CREATE INDEX IF NOT EXISTS idx_gallery_order ON gallery_images(display_order, created_at, id);`},
		{"settings", `
			CREATE TABLE IF NOT EXISTS settings (
				key        TEXT PRIMARY KEY,
				value      TEXT NOT NULL,
				updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
			);`},
		// The CHECK on id pins the table to a single row.
		{"funeral_program", `
			CREATE TABLE IF NOT EXISTS funeral_program (
				id          INTEGER PRIMARY KEY CHECK (id = 1),
				date        TEXT NOT NULL DEFAULT '',
				time        TEXT NOT NULL DEFAULT '',
				location    TEXT NOT NULL DEFAULT '',
				address     TEXT NOT NULL DEFAULT '',
				stream_url  TEXT NOT NULL DEFAULT '',
				program_url TEXT NOT NULL DEFAULT '',
				description TEXT NOT NULL DEFAULT '',
				updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
			);`},
	}

	for _, s := range stmts {
		if _, err := db.conn.Exec(s.sql); err != nil {
			return fmt.Errorf("creating %s table: %w", s.name, err)
		}
	}
	return nil
}

// inTx runs fn inside a transaction, committing on success and rolling
// back on error or panic. If ctx is cancelled mid-way the driver aborts
// and the rollback leaves no partial state behind.
func (db *DB) inTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
		if err != nil {
			tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// isUniqueViolation reports whether err is a UNIQUE constraint failure.
func isUniqueViolation(err error) bool {
	var se *sqlitedrv.Error
	if errors.As(err, &se) {
		return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
			se.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return false
}

// checkAffected turns a zero-row UPDATE/DELETE into a NotFound error.
func checkAffected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
