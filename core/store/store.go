// Package store provides keyed persistence for highlight documents.
// Documents are addressed by a BLAKE3 hash of their normalized library path
// and sharded by the hash's first two characters to bound directory fan-out.
// The filesystem backend is the default; a SQLite backend implements the same
// interface for embedded deployments.
package store

import (
	"encoding/hex"
	"errors"
	"time"

	"github.com/zeebo/blake3"

	"github.com/FocuswithJustin/marginalia/core/highlight"
)

// ErrEmptyPath is returned when a caller passes an empty library path.
var ErrEmptyPath = errors.New("empty library path")

// Store is the keyed persistence contract for highlight documents.
//
// Load never fails into an error for a missing or corrupt record: it returns
// an empty, well-formed document instead. Save is full-replace: the caller
// submits the complete desired highlight list, and saving an empty list
// removes the backing record. Write failures propagate.
type Store interface {
	Load(path string) (*highlight.Document, error)
	Save(path string, doc *highlight.Document) (*highlight.Document, error)
	Exists(path string) bool
	List() ([]string, error)
	Delete(path string) error
}

// now is a variable to allow tests to pin timestamps.
var now = time.Now

// PathHash returns the BLAKE3 hex hash of a normalized library path.
// This is the on-disk key for the document's record.
func PathHash(libraryPath string) string {
	h := blake3.Sum256([]byte(highlight.NormalizePath(libraryPath)))
	return hex.EncodeToString(h[:])
}
