// Package highlight defines the canonical highlight data model shared by the
// persistence and anchoring paths. A highlight is a user-captured passage plus
// enough surrounding context to relocate it after the document is re-rendered.
package highlight

import (
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DocumentVersion is the on-disk record version written by Normalize.
const DocumentVersion = 1

// Highlight is one captured passage. Prefix and Suffix are short context
// snippets taken from immediately before/after the passage at capture time;
// either may be empty. Note and Color are pass-through extras the engine
// stores but never interprets.
type Highlight struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Prefix    string    `json:"prefix,omitempty"`
	Suffix    string    `json:"suffix,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	Note      string    `json:"note,omitempty"`
	Color     string    `json:"color,omitempty"`
}

// Document is the full highlight record for one library document.
// Identity is the normalized library-relative path; the document is fully
// replaced on every save, never merged.
type Document struct {
	Version    int         `json:"version"`
	Path       string      `json:"path"`
	URL        string      `json:"url,omitempty"`
	Title      string      `json:"title,omitempty"`
	UpdatedAt  time.Time   `json:"updated_at"`
	Highlights []Highlight `json:"highlights"`
}

// NewDocument creates an empty, well-formed document for the given path.
func NewDocument(libraryPath string) *Document {
	return &Document{
		Version:    DocumentVersion,
		Path:       NormalizePath(libraryPath),
		Highlights: []Highlight{},
	}
}

// Empty reports whether the document carries no highlights.
func (d *Document) Empty() bool {
	return len(d.Highlights) == 0
}

// NormalizePath canonicalizes a library-relative path: slash separators,
// cleaned, no leading "./" or "/". The result is the document's identity.
func NormalizePath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	p = path.Clean(p)
	p = strings.TrimPrefix(p, "/")
	if p == "." {
		return ""
	}
	return p
}

// Normalize validates the document and fills in generated fields: missing
// highlight ids get a fresh UUID, missing timestamps get now, and the path is
// canonicalized. Returns an error when a highlight is empty after trimming or
// when two highlights share an id.
func (d *Document) Normalize(now time.Time) error {
	d.Version = DocumentVersion
	d.Path = NormalizePath(d.Path)
	if d.Path == "" {
		return fmt.Errorf("document path is empty")
	}
	d.UpdatedAt = now

	seen := make(map[string]bool, len(d.Highlights))
	for i := range d.Highlights {
		h := &d.Highlights[i]
		if strings.TrimSpace(h.Text) == "" {
			return fmt.Errorf("highlight %d: text is empty", i)
		}
		if h.ID == "" {
			h.ID = uuid.NewString()
		}
		if seen[h.ID] {
			return fmt.Errorf("highlight %d: duplicate id %s", i, h.ID)
		}
		seen[h.ID] = true
		if h.CreatedAt.IsZero() {
			h.CreatedAt = now
		}
	}
	if d.Highlights == nil {
		d.Highlights = []Highlight{}
	}
	return nil
}

// Clone returns a deep copy. Matching and marking operate on copies so the
// canonical record is never mutated in place.
func (d *Document) Clone() *Document {
	c := *d
	c.Highlights = make([]Highlight, len(d.Highlights))
	copy(c.Highlights, d.Highlights)
	return &c
}
