// Package index provides a SQLite-backed registry of placeholder files and
// of the notes that embed them.
package index

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS placeholders (
	filename    TEXT PRIMARY KEY,
	document_id TEXT NOT NULL,
	path        TEXT NOT NULL,
	preview_url TEXT NOT NULL,
	checksum    TEXT NOT NULL DEFAULT '',
	updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_placeholders_path ON placeholders(path);
CREATE INDEX IF NOT EXISTS idx_placeholders_document ON placeholders(document_id);

CREATE TABLE IF NOT EXISTS notes (
	path     TEXT PRIMARY KEY,
	checksum TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS embeds (
	note     TEXT NOT NULL,
	filename TEXT NOT NULL,
	UNIQUE(note, filename)
);

CREATE INDEX IF NOT EXISTS idx_embeds_note ON embeds(note);
CREATE INDEX IF NOT EXISTS idx_embeds_filename ON embeds(filename);
`

// DB wraps a sql.DB with registry operations.
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
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
