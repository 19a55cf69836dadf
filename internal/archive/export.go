package archive

import (
	"archive/tar"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/FocuswithJustin/marginalia/core/highlight"
	"github.com/FocuswithJustin/marginalia/core/store"
)

// ManifestName is the metadata entry written at the head of every export.
const ManifestName = "manifest.json"

// ManifestVersion is the export format version.
const ManifestVersion = "1"

// Manifest describes an exported highlight library.
type Manifest struct {
	Version    string `json:"version"`
	ExportedAt string `json:"exported_at"`
	Documents  int    `json:"documents"`
}

// ExportLibrary writes every document in the store into a compressed tar
// archive. Entries are named highlights/<path-hash>.json; identity lives in
// the document payload, so hostile paths never become tar entry names.
// Returns the number of documents exported.
func ExportLibrary(st store.Store, dstPath string) (int, error) {
	paths, err := st.List()
	if err != nil {
		return 0, fmt.Errorf("list store: %w", err)
	}

	w, err := NewWriter(dstPath)
	if err != nil {
		return 0, err
	}
	closed := false
	defer func() {
		if !closed {
			w.Close()
		}
	}()

	manifest := Manifest{
		Version:    ManifestVersion,
		ExportedAt: time.Now().UTC().Format(time.RFC3339),
		Documents:  len(paths),
	}
	manifestData, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return 0, err
	}
	if err := w.AddFile(ManifestName, manifestData); err != nil {
		return 0, err
	}

	exported := 0
	for _, p := range paths {
		doc, err := st.Load(p)
		if err != nil {
			return exported, fmt.Errorf("load %s: %w", p, err)
		}
		if doc.Empty() {
			continue
		}

		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return exported, fmt.Errorf("encode %s: %w", p, err)
		}
		name := "highlights/" + store.PathHash(p) + ".json"
		if err := w.AddFile(name, data); err != nil {
			return exported, err
		}
		exported++
	}

	closed = true
	if err := w.Close(); err != nil {
		return exported, err
	}
	return exported, nil
}

// ImportLibrary reads an export archive and saves every document record into
// the store. Existing records for the same paths are replaced. Returns the
// number of documents imported.
func ImportLibrary(st store.Store, srcPath string) (int, error) {
	imported := 0
	err := IterateArchive(srcPath, func(header *tar.Header, r io.Reader) (bool, error) {
		name := header.Name
		if header.FileInfo().IsDir() || !strings.HasSuffix(name, ".json") {
			return false, nil
		}
		if name == ManifestName || strings.HasSuffix(name, "/"+ManifestName) {
			return false, validateManifest(r)
		}
		if !strings.Contains(name, "highlights/") {
			return false, nil
		}

		data, err := io.ReadAll(r)
		if err != nil {
			return false, fmt.Errorf("read %s: %w", name, err)
		}

		var doc highlight.Document
		if err := json.Unmarshal(data, &doc); err != nil {
			return false, fmt.Errorf("decode %s: %w", name, err)
		}
		if doc.Path == "" {
			return false, fmt.Errorf("entry %s has no document path", name)
		}

		if _, err := st.Save(doc.Path, &doc); err != nil {
			return false, fmt.Errorf("save %s: %w", doc.Path, err)
		}
		imported++
		return false, nil
	})
	return imported, err
}

// validateManifest rejects archives from incompatible export versions.
func validateManifest(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("decode manifest: %w", err)
	}
	if m.Version != ManifestVersion {
		return fmt.Errorf("unsupported export version %q", m.Version)
	}
	return nil
}
