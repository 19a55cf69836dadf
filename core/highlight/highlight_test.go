package highlight

import (
	"testing"
	"time"
)

// TestNormalizePath tests library path canonicalization.
func TestNormalizePath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"notes/go.md", "notes/go.md"},
		{"./notes/go.md", "notes/go.md"},
		{"/notes/go.md", "notes/go.md"},
		{"notes//go.md", "notes/go.md"},
		{"notes/../go.md", "go.md"},
		{"notes\\win\\go.md", "notes/win/go.md"},
		{".", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizePath(tt.in); got != tt.want {
			t.Errorf("NormalizePath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// TestNormalizeGeneratesIDs tests that missing ids and timestamps are filled
// in and that generated ids are distinct even for identical highlights.
func TestNormalizeGeneratesIDs(t *testing.T) {
	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	doc := NewDocument("notes/go.md")
	doc.Highlights = []Highlight{
		{Text: "the same passage", Prefix: "before ", Suffix: " after"},
		{Text: "the same passage", Prefix: "before ", Suffix: " after"},
	}

	if err := doc.Normalize(now); err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}

	a, b := doc.Highlights[0], doc.Highlights[1]
	if a.ID == "" || b.ID == "" {
		t.Fatal("expected generated ids")
	}
	if a.ID == b.ID {
		t.Errorf("identical highlights got the same generated id %s", a.ID)
	}
	if !a.CreatedAt.Equal(now) {
		t.Errorf("CreatedAt = %v, want %v", a.CreatedAt, now)
	}
}

// TestNormalizeGeneratedIDUniqueness property-tests id distinctness across
// many highlights sharing identical text/prefix/suffix.
func TestNormalizeGeneratedIDUniqueness(t *testing.T) {
	doc := NewDocument("notes/go.md")
	for i := 0; i < 200; i++ {
		doc.Highlights = append(doc.Highlights, Highlight{
			Text: "repeated", Prefix: "p", Suffix: "s",
		})
	}
	if err := doc.Normalize(time.Now()); err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	seen := make(map[string]bool)
	for _, h := range doc.Highlights {
		if seen[h.ID] {
			t.Fatalf("duplicate generated id %s", h.ID)
		}
		seen[h.ID] = true
	}
}

// TestNormalizeRejectsBadInput tests validation failures.
func TestNormalizeRejectsBadInput(t *testing.T) {
	now := time.Now()

	doc := NewDocument("notes/go.md")
	doc.Highlights = []Highlight{{Text: "   "}}
	if err := doc.Normalize(now); err == nil {
		t.Error("expected error for whitespace-only text")
	}

	doc = NewDocument("notes/go.md")
	doc.Highlights = []Highlight{
		{ID: "dup", Text: "one"},
		{ID: "dup", Text: "two"},
	}
	if err := doc.Normalize(now); err == nil {
		t.Error("expected error for duplicate ids")
	}

	doc = NewDocument("")
	if err := doc.Normalize(now); err == nil {
		t.Error("expected error for empty path")
	}
}

// TestCloneIsolation tests that mutating a clone leaves the original intact.
func TestCloneIsolation(t *testing.T) {
	doc := NewDocument("notes/go.md")
	doc.Highlights = []Highlight{{ID: "a", Text: "original"}}

	c := doc.Clone()
	c.Highlights[0].Text = "changed"

	if doc.Highlights[0].Text != "original" {
		t.Error("clone mutation leaked into the original document")
	}
}
