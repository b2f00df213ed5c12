// Package sqlite implements the repository interfaces on top of SQLite using
// the pure-Go modernc.org/sqlite driver.
//
// Every timestamp is written in UTC so that range comparisons on the DATETIME
// text columns order correctly.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/sakif/pixvault/internal/apperror"
)

const memoryPath = ":memory:"

// DB wraps a sql.DB connection pool and implements every repository
// interface in internal/repository.
type DB struct {
	conn *sql.DB
	now  func() time.Time
}

// New opens (or creates) the database at dbPath and runs migrations.
//
// dbPath examples:
//   - "data/app.db" → file-based database
//   - ":memory:"    → in-memory database for tests
func New(dbPath string) (*DB, error) {
	dsn := dbPath
	if dbPath != memoryPath {
		dsn = "file:" + dbPath +
			"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}

	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	if dbPath == memoryPath {
		// Each pooled connection to ":memory:" is a separate, empty database.
		conn.SetMaxOpenConns(1)
		if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
			conn.Close()
			return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
		}
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	db := &DB{
		conn: conn,
		now:  func() time.Time { return time.Now().UTC() },
	}

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

// Ping reports whether the database is reachable; used by the health route.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// migrate creates the schema. Statements are idempotent, so it runs on every
// start.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id              TEXT PRIMARY KEY,
			google_id       TEXT UNIQUE,
			facebook_id     TEXT UNIQUE,
			github_id       TEXT UNIQUE,
			display_name    TEXT NOT NULL,
			email           TEXT NOT NULL DEFAULT '',
			avatar          TEXT NOT NULL DEFAULT '',
			bio             TEXT NOT NULL DEFAULT '',
			theme           TEXT NOT NULL DEFAULT 'light',
			total_searches  INTEGER NOT NULL DEFAULT 0,
			total_downloads INTEGER NOT NULL DEFAULT 0,
			favorite_count  INTEGER NOT NULL DEFAULT 0,
			created_at      DATETIME NOT NULL,
			last_active     DATETIME NOT NULL,
			CHECK (google_id IS NOT NULL OR facebook_id IS NOT NULL OR github_id IS NOT NULL)
		);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			id_hash    TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL REFERENCES users(id),
			created_at DATETIME NOT NULL,
			touched_at DATETIME NOT NULL,
			expires_at DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON sessions(expires_at);
	`)
	if err != nil {
		return fmt.Errorf("creating sessions table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS search_history (
			id            TEXT PRIMARY KEY,
			user_id       TEXT NOT NULL REFERENCES users(id),
			term          TEXT NOT NULL,
			orientation   TEXT NOT NULL DEFAULT '',
			color         TEXT NOT NULL DEFAULT '',
			order_by      TEXT NOT NULL DEFAULT '',
			results_count INTEGER NOT NULL DEFAULT 0,
			created_at    DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_search_history_user ON search_history(user_id, created_at);
		CREATE INDEX IF NOT EXISTS idx_search_history_term ON search_history(term);
		CREATE INDEX IF NOT EXISTS idx_search_history_created_at ON search_history(created_at);
	`)
	if err != nil {
		return fmt.Errorf("creating search_history table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS favorites (
			id               TEXT PRIMARY KEY,
			user_id          TEXT NOT NULL REFERENCES users(id),
			image_id         TEXT NOT NULL,
			image_url        TEXT NOT NULL DEFAULT '',
			thumbnail_url    TEXT NOT NULL DEFAULT '',
			photographer     TEXT NOT NULL DEFAULT '',
			photographer_url TEXT NOT NULL DEFAULT '',
			description      TEXT NOT NULL DEFAULT '',
			tags             TEXT NOT NULL DEFAULT '[]',
			created_at       DATETIME NOT NULL,
			UNIQUE (user_id, image_id)
		);
		CREATE INDEX IF NOT EXISTS idx_favorites_user ON favorites(user_id, created_at);
	`)
	if err != nil {
		return fmt.Errorf("creating favorites table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS collections (
			id          TEXT PRIMARY KEY,
			user_id     TEXT NOT NULL REFERENCES users(id),
			name        TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			is_public   INTEGER NOT NULL DEFAULT 0,
			tags        TEXT NOT NULL DEFAULT '[]',
			images      TEXT NOT NULL DEFAULT '[]',
			version     INTEGER NOT NULL DEFAULT 1,
			created_at  DATETIME NOT NULL,
			updated_at  DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_collections_user ON collections(user_id, created_at);
	`)
	if err != nil {
		return fmt.Errorf("creating collections table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS downloads (
			id            TEXT PRIMARY KEY,
			user_id       TEXT NOT NULL REFERENCES users(id),
			image_id      TEXT NOT NULL,
			image_url     TEXT NOT NULL DEFAULT '',
			thumbnail_url TEXT NOT NULL DEFAULT '',
			photographer  TEXT NOT NULL DEFAULT '',
			description   TEXT NOT NULL DEFAULT '',
			download_url  TEXT NOT NULL DEFAULT '',
			quality       TEXT NOT NULL DEFAULT 'regular'
				CHECK (quality IN ('raw', 'full', 'regular', 'small')),
			created_at    DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_downloads_user ON downloads(user_id, created_at);
	`)
	if err != nil {
		return fmt.Errorf("creating downloads table: %w", err)
	}

	return nil
}

// isUniqueViolation reports whether err came from a UNIQUE or PRIMARY KEY
// constraint.
func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	code := sqliteErr.Code()
	return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}

// notFoundOr translates sql.ErrNoRows into an apperror and wraps anything else.
func notFoundOr(err error, resource, id, op string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return apperror.NotFound(resource, id)
	}
	return fmt.Errorf("sqlite: %s %s: %w", op, id, err)
}

// nullIfEmpty stores "" as NULL so optional UNIQUE columns don't collide.
func nullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// escapeLike escapes LIKE wildcards so user input only matches literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// jsonColumn encodes v for a TEXT column. nil slices become "[]".
func jsonColumn(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	if string(b) == "null" {
		return "[]", nil
	}
	return string(b), nil
}

func scanJSON[T any](raw string) ([]T, error) {
	out := []T{}
	if raw == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []T{}
	}
	return out, nil
}

// rowsAffectedOrNotFound returns NotFound when a write matched nothing.
func rowsAffectedOrNotFound(res sql.Result, resource, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound(resource, id)
	}
	return nil
}
