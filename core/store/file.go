package store

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/FocuswithJustin/marginalia/core/highlight"
	"github.com/FocuswithJustin/marginalia/internal/logging"
)

// osRename is a variable to allow testing of rename errors.
var osRename = os.Rename

// tempFileWrite is a function variable for writing to temp files (for testing).
var tempFileWrite = func(f *os.File, data []byte) (int, error) {
	return f.Write(data)
}

// tempFileClose is a function variable for closing temp files (for testing).
var tempFileClose = func(f io.Closer) error {
	return f.Close()
}

// FileStore persists one JSON document per library path under
// <root>/highlights/blake3/<first2>/<hash>.json.
type FileStore struct {
	root string
}

// NewFileStore creates a filesystem-backed store rooted at the given
// directory. The directory structure is created if it doesn't exist.
func NewFileStore(root string) (*FileStore, error) {
	dir := filepath.Join(root, "highlights", "blake3")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	return &FileStore{root: root}, nil
}

// Load reads the document for a library path. A missing, unreadable, or
// corrupt record is never fatal: it loads as an empty well-formed document.
func (s *FileStore) Load(path string) (*highlight.Document, error) {
	if highlight.NormalizePath(path) == "" {
		return nil, ErrEmptyPath
	}

	data, err := os.ReadFile(s.pathFor(path))
	if err != nil {
		if !os.IsNotExist(err) {
			logging.StoreEvent("load_unreadable", path, "error", err.Error())
		}
		return highlight.NewDocument(path), nil
	}

	var doc highlight.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		logging.StoreEvent("load_corrupt", path, "error", err.Error())
		return highlight.NewDocument(path), nil
	}
	if doc.Highlights == nil {
		doc.Highlights = []highlight.Highlight{}
	}
	return &doc, nil
}

// Save replaces the stored document for a library path with the given one.
// The input is normalized (ids generated, path canonicalized) first. Saving
// an empty highlight list deletes the backing record instead.
func (s *FileStore) Save(path string, doc *highlight.Document) (*highlight.Document, error) {
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

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal document: %w", err)
	}

	target := s.pathFor(path)
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create shard directory: %w", err)
	}

	// Write atomically using a temp file in the same directory.
	tempFile, err := os.CreateTemp(dir, ".doc-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	tempPath := tempFile.Name()

	if _, err := tempFileWrite(tempFile, data); err != nil {
		tempFileClose(tempFile)
		os.Remove(tempPath)
		return nil, fmt.Errorf("failed to write document: %w", err)
	}
	if err := tempFileClose(tempFile); err != nil {
		os.Remove(tempPath)
		return nil, fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := osRename(tempPath, target); err != nil {
		os.Remove(tempPath)
		return nil, fmt.Errorf("failed to rename document: %w", err)
	}

	logging.StoreEvent("saved", doc.Path, "highlights", len(doc.Highlights))
	return doc, nil
}

// Exists reports whether a record exists for the library path.
func (s *FileStore) Exists(path string) bool {
	_, err := os.Stat(s.pathFor(path))
	return err == nil
}

// List returns the normalized library paths of every stored document.
func (s *FileStore) List() ([]string, error) {
	var paths []string
	base := filepath.Join(s.root, "highlights", "blake3")
	err := filepath.Walk(base, func(p string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() || !strings.HasSuffix(p, ".json") {
			return nil
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return nil
		}
		var doc highlight.Document
		if err := json.Unmarshal(data, &doc); err != nil {
			// Corrupt records are skipped, not fatal.
			return nil
		}
		paths = append(paths, doc.Path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk store: %w", err)
	}
	return paths, nil
}

// Delete removes the record for a library path, pruning its shard directory
// only when nothing else remains in it. Deleting a missing record is a no-op.
func (s *FileStore) Delete(path string) error {
	target := s.pathFor(path)
	if err := os.Remove(target); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to delete document: %w", err)
	}

	shard := filepath.Dir(target)
	entries, err := os.ReadDir(shard)
	if err == nil && len(entries) == 0 {
		os.Remove(shard)
	}
	logging.StoreEvent("deleted", highlight.NormalizePath(path))
	return nil
}

// pathFor returns the backing file path for a library path.
func (s *FileStore) pathFor(libraryPath string) string {
	hash := PathHash(libraryPath)
	return filepath.Join(s.root, "highlights", "blake3", hash[:2], hash+".json")
}
