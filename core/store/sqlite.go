package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/FocuswithJustin/marginalia/core/highlight"
	"github.com/FocuswithJustin/marginalia/internal/logging"
)

// SQLiteStore persists highlight documents in a single SQLite table, keyed by
// the same BLAKE3 path hash the filesystem backend shards on. The pure Go
// driver (modernc.org/sqlite) is used by default; build with -tags cgo_sqlite
// for mattn/go-sqlite3.
type SQLiteStore struct {
	db *sql.DB
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS highlights (
	path_hash  TEXT PRIMARY KEY,
	path       TEXT NOT NULL,
	doc        TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_highlights_path ON highlights(path);
`

// OpenSQLite opens (creating if needed) a SQLite-backed store at the given
// database path. Use ":memory:" for an ephemeral store in tests.
func OpenSQLite(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open(sqliteDriverName, dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite store: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize sqlite schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Load reads the document for a library path. Missing or corrupt rows load
// as an empty well-formed document.
func (s *SQLiteStore) Load(path string) (*highlight.Document, error) {
	if highlight.NormalizePath(path) == "" {
		return nil, ErrEmptyPath
	}

	var raw string
	err := s.db.QueryRow(
		`SELECT doc FROM highlights WHERE path_hash = ?`, PathHash(path),
	).Scan(&raw)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			logging.StoreEvent("load_unreadable", path, "error", err.Error())
		}
		return highlight.NewDocument(path), nil
	}

	var doc highlight.Document
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		logging.StoreEvent("load_corrupt", path, "error", err.Error())
		return highlight.NewDocument(path), nil
	}
	if doc.Highlights == nil {
		doc.Highlights = []highlight.Highlight{}
	}
	return &doc, nil
}

// Save replaces the stored document for a library path. An empty highlight
// list deletes the row instead. Write failures propagate.
func (s *SQLiteStore) Save(path string, doc *highlight.Document) (*highlight.Document, error) {
	if highlight.NormalizePath(path) == "" {
		return nil, ErrEmptyPath
	}

	doc = doc.Clone()
	doc.Path = path
	if doc.Empty() {
		if err := s.Delete(path); err != nil {
			return nil, err
		}
		doc.Path = highlight.NormalizePath(path)
		doc.UpdatedAt = now()
		return doc, nil
	}
	if err := doc.Normalize(now()); err != nil {
		return nil, fmt.Errorf("invalid document: %w", err)
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal document: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO highlights (path_hash, path, doc, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(path_hash) DO UPDATE SET
			path = excluded.path,
			doc = excluded.doc,
			updated_at = excluded.updated_at`,
		PathHash(path), doc.Path, string(data), doc.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to write document: %w", err)
	}

	logging.StoreEvent("saved", doc.Path, "highlights", len(doc.Highlights))
	return doc, nil
}

// Exists reports whether a row exists for the library path.
func (s *SQLiteStore) Exists(path string) bool {
	var one int
	err := s.db.QueryRow(
		`SELECT 1 FROM highlights WHERE path_hash = ?`, PathHash(path),
	).Scan(&one)
	return err == nil
}

// List returns the normalized library paths of every stored document.
func (s *SQLiteStore) List() ([]string, error) {
	rows, err := s.db.Query(`SELECT path FROM highlights ORDER BY path`)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("failed to scan path: %w", err)
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

// Delete removes the row for a library path. Deleting a missing row is a
// no-op.
func (s *SQLiteStore) Delete(path string) error {
	_, err := s.db.Exec(`DELETE FROM highlights WHERE path_hash = ?`, PathHash(path))
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return nil
}
