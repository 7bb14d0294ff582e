// Package index provides a SQLite-backed catalogue of stored submissions and
// a local log of grading attempts, with optional FTS5 full-text search.
package index

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const coreSchemaSQL = `
CREATE TABLE IF NOT EXISTS documents (
	path           TEXT PRIMARY KEY,
	title          TEXT NOT NULL DEFAULT '',
	kind           TEXT NOT NULL DEFAULT '',
	checksum       TEXT NOT NULL DEFAULT '',
	size           INTEGER NOT NULL DEFAULT 0,
	total_cells    INTEGER NOT NULL DEFAULT 0,
	code_cells     INTEGER NOT NULL DEFAULT 0,
	markdown_cells INTEGER NOT NULL DEFAULT 0,
	body           TEXT NOT NULL DEFAULT '',
	updated_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS submissions (
	id            TEXT PRIMARY KEY,
	lab_id        TEXT NOT NULL DEFAULT '',
	path          TEXT NOT NULL DEFAULT '',
	file_name     TEXT NOT NULL DEFAULT '',
	overall_score REAL NOT NULL DEFAULT 0,
	success       INTEGER NOT NULL DEFAULT 0,
	feedback      TEXT NOT NULL DEFAULT '',
	result        TEXT NOT NULL DEFAULT '{}',
	created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_documents_kind ON documents(kind);
CREATE INDEX IF NOT EXISTS idx_submissions_lab ON submissions(lab_id);
CREATE INDEX IF NOT EXISTS idx_submissions_created ON submissions(created_at);
`

// DB wraps a sql.DB with index-specific operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("index: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: ping: %w", err)
	}
	if _, err := conn.Exec(coreSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply core schema: %w", err)
	}
	if err := initFTS(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply fts schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
