// Package sqlite implements the repository interfaces on top of SQLite.
//
// modernc.org/sqlite is a pure Go translation of SQLite, so the binary
// builds without cgo. All access goes through database/sql; the driver
// registers itself as "sqlite" via the blank import below.
//
// Use ":memory:" as the path for tests. Every test then gets its own
// throwaway database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sakif/imagesearch/internal/repository"

	_ "modernc.org/sqlite"
)

const maxPageSize = 100

// DB wraps a sql.DB connection pool and implements every repository
// interface in the parent package.
type DB struct {
	conn *sql.DB
}

// New opens the database at dbPath, applies pragmas and runs migrations.
//
// An in-memory database is private to one connection, so for ":memory:"
// the pool is pinned to a single connection. Otherwise each pooled
// connection would see its own empty database.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}
	if dbPath == ":memory:" {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL lets readers proceed while a write is in flight.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}
	// Concurrent writers wait up to 5s for the lock instead of failing
	// immediately with SQLITE_BUSY. The history workers rely on this.
	if _, err := conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting busy timeout: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping verifies the database is reachable. After Close it always fails,
// which is how tests simulate an outage.
func (db *DB) Ping(ctx context.Context) error {
	if err := db.conn.PingContext(ctx); err != nil {
		return fmt.Errorf("sqlite: ping: %w", err)
	}
	return nil
}

// migrate creates tables and indexes. CREATE ... IF NOT EXISTS keeps it
// idempotent so it runs on every start.
//
// No foreign keys: history and saved rows may outlive their user.
//
// Timestamps are stored as INTEGER unix nanoseconds. They sort correctly,
// survive MAX() in aggregates, and keep insertion order for rows written
// within the same millisecond.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			provider    TEXT NOT NULL,
			provider_id TEXT NOT NULL,
			name        TEXT NOT NULL DEFAULT '',
			email       TEXT NOT NULL DEFAULT '',
			photo       TEXT NOT NULL DEFAULT '',
			created_at  INTEGER NOT NULL,
			UNIQUE (provider, provider_id)
		);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS saved_images (
			id           TEXT PRIMARY KEY,
			user_id      INTEGER NOT NULL,
			image_id     TEXT NOT NULL,
			title        TEXT NOT NULL,
			url          TEXT NOT NULL,
			thumbnail    TEXT NOT NULL DEFAULT '',
			author       TEXT NOT NULL DEFAULT '',
			author_url   TEXT NOT NULL DEFAULT '',
			download_url TEXT NOT NULL DEFAULT '',
			saved_at     INTEGER NOT NULL,
			UNIQUE (user_id, image_id)
		);
		CREATE INDEX IF NOT EXISTS idx_saved_images_user_saved ON saved_images(user_id, saved_at DESC);
	`)
	if err != nil {
		return fmt.Errorf("creating saved_images table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS search_history (
			id            TEXT PRIMARY KEY,
			user_id       INTEGER NOT NULL,
			term          TEXT NOT NULL,
			timestamp     INTEGER NOT NULL,
			results_count INTEGER NOT NULL DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS idx_search_history_user_ts ON search_history(user_id, timestamp DESC);
		CREATE INDEX IF NOT EXISTS idx_search_history_term ON search_history(term);
	`)
	if err != nil {
		return fmt.Errorf("creating search_history table: %w", err)
	}

	return nil
}

// clampList applies the shared paging defaults.
func clampList(opts repository.ListOptions, def int) (limit, offset int) {
	limit = opts.Limit
	if limit <= 0 {
		limit = def
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	offset = opts.Offset
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func toUnix(t time.Time) int64 {
	return t.UTC().UnixNano()
}

func fromUnix(ns int64) time.Time {
	return time.Unix(0, ns).UTC()
}
