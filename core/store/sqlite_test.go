package store

import (
	"path/filepath"
	"testing"

	"github.com/FocuswithJustin/marginalia/core/highlight"
)

var _ Store = (*SQLiteStore)(nil)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "highlights.db"))
	if err != nil {
		t.Fatalf("failed to open sqlite store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// TestSQLiteRoundTrip tests that the SQLite backend honors the same
// save/load contract as the filesystem backend.
func TestSQLiteRoundTrip(t *testing.T) {
	s := newTestSQLite(t)

	doc := highlight.NewDocument("notes/go.md")
	doc.Highlights = []highlight.Highlight{
		{Text: "accept interfaces"},
		{ID: "fixed-id", Text: "return structs"},
	}

	saved, err := s.Save("notes/go.md", doc)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if saved.Highlights[0].ID == "" {
		t.Fatal("expected generated id")
	}

	loaded, err := s.Load("notes/go.md")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(loaded.Highlights) != 2 {
		t.Fatalf("loaded %d highlights, want 2", len(loaded.Highlights))
	}
	if loaded.Highlights[0].ID != saved.Highlights[0].ID {
		t.Error("generated id not stable across reload")
	}
}

// TestSQLiteMissingLoadsEmpty tests the never-fails load contract.
func TestSQLiteMissingLoadsEmpty(t *testing.T) {
	s := newTestSQLite(t)

	doc, err := s.Load("never/saved.md")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(doc.Highlights) != 0 {
		t.Errorf("expected empty document, got %d highlights", len(doc.Highlights))
	}
}

// TestSQLiteEmptySaveDeletes tests that saving an empty list removes the row.
func TestSQLiteEmptySaveDeletes(t *testing.T) {
	s := newTestSQLite(t)

	if _, err := s.Save("notes/go.md", docWith("x")); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if !s.Exists("notes/go.md") {
		t.Fatal("Exists false after save")
	}

	if _, err := s.Save("notes/go.md", highlight.NewDocument("notes/go.md")); err != nil {
		t.Fatalf("empty Save failed: %v", err)
	}
	if s.Exists("notes/go.md") {
		t.Error("row still present after empty save")
	}
}

// TestSQLiteList tests path enumeration ordering and content.
func TestSQLiteList(t *testing.T) {
	s := newTestSQLite(t)

	for _, p := range []string{"b.md", "a.md"} {
		if _, err := s.Save(p, docWith("x")); err != nil {
			t.Fatalf("Save(%s) failed: %v", p, err)
		}
	}

	paths, err := s.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(paths) != 2 || paths[0] != "a.md" || paths[1] != "b.md" {
		t.Errorf("List = %v, want [a.md b.md]", paths)
	}
}
