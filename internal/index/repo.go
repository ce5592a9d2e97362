package index

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/starford/paperlink/internal/apperr"
	"github.com/starford/paperlink/internal/models"
)

// UpsertPlaceholder records p keyed by filename. When the filename was
// previously bound to another document id, that id is returned so callers
// can report the alias.
func (db *DB) UpsertPlaceholder(p models.Placeholder) (string, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return "", fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	var previous string
	err = tx.QueryRow(`SELECT document_id FROM placeholders WHERE filename = ?`, p.Filename).Scan(&previous)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("index: lookup placeholder: %w", err)
	}

	updated := p.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}
	_, err = tx.Exec(`
		INSERT INTO placeholders (filename, document_id, path, preview_url, checksum, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(filename) DO UPDATE SET
			document_id = excluded.document_id,
			path        = excluded.path,
			preview_url = excluded.preview_url,
			checksum    = excluded.checksum,
			updated_at  = excluded.updated_at
	`, p.Filename, p.DocumentID, p.Path, p.PreviewURL, p.Checksum, updated.UTC())
	if err != nil {
		return "", fmt.Errorf("index: upsert placeholder: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("index: commit: %w", err)
	}

	if previous == p.DocumentID {
		return "", nil
	}
	return previous, nil
}

// GetPlaceholder returns the placeholder registered under filename.
func (db *DB) GetPlaceholder(filename string) (*models.Placeholder, error) {
	var p models.Placeholder
	err := db.conn.QueryRow(`
		SELECT filename, document_id, path, preview_url, checksum, updated_at
		FROM placeholders WHERE filename = ?
	`, filename).Scan(&p.Filename, &p.DocumentID, &p.Path, &p.PreviewURL, &p.Checksum, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("index: get placeholder: %w", err)
	}
	return &p, nil
}

// ListPlaceholders returns every registered placeholder, newest first.
func (db *DB) ListPlaceholders() ([]models.Placeholder, error) {
	rows, err := db.conn.Query(`
		SELECT filename, document_id, path, preview_url, checksum, updated_at
		FROM placeholders ORDER BY updated_at DESC, filename
	`)
	if err != nil {
		return nil, fmt.Errorf("index: list placeholders: %w", err)
	}
	defer rows.Close()

	var out []models.Placeholder
	for rows.Next() {
		var p models.Placeholder
		if err := rows.Scan(&p.Filename, &p.DocumentID, &p.Path, &p.PreviewURL, &p.Checksum, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// DeletePlaceholderPath removes the placeholder stored at path, reporting
// whether one was registered.
func (db *DB) DeletePlaceholderPath(path string) (bool, error) {
	res, err := db.conn.Exec(`DELETE FROM placeholders WHERE path = ?`, path)
	if err != nil {
		return false, fmt.Errorf("index: delete placeholder: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// UpsertNote records a note's checksum and replaces its outgoing embeds.
func (db *DB) UpsertNote(path, checksum string, embeds []string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.Exec(`
		INSERT INTO notes (path, checksum) VALUES (?, ?)
		ON CONFLICT(path) DO UPDATE SET checksum = excluded.checksum
	`, path, checksum)
	if err != nil {
		return fmt.Errorf("index: upsert note: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM embeds WHERE note = ?`, path); err != nil {
		return fmt.Errorf("index: clear embeds: %w", err)
	}
	if len(embeds) > 0 {
		stmt, err := tx.Prepare(`INSERT OR IGNORE INTO embeds (note, filename) VALUES (?, ?)`)
		if err != nil {
			return fmt.Errorf("index: prepare embed insert: %w", err)
		}
		defer stmt.Close()
		for _, filename := range embeds {
			if _, err := stmt.Exec(path, filename); err != nil {
				return fmt.Errorf("index: insert embed: %w", err)
			}
		}
	}

	return tx.Commit()
}

// DeleteNote removes a note and its outgoing embeds.
func (db *DB) DeleteNote(path string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, _ = tx.Exec(`DELETE FROM embeds WHERE note = ?`, path)
	_, _ = tx.Exec(`DELETE FROM notes WHERE path = ?`, path)

	return tx.Commit()
}

// EmbeddingNotes returns all note paths that embed filename.
func (db *DB) EmbeddingNotes(filename string) ([]string, error) {
	rows, err := db.conn.Query(`SELECT note FROM embeds WHERE filename = ? ORDER BY note`, filename)
	if err != nil {
		return nil, fmt.Errorf("index: embedding notes: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// AllChecksums returns path → checksum for every indexed note.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM notes`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}
