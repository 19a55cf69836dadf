// Package report renders a library overview: which documents carry
// highlights, how many, and where they sit in each document's section
// structure.
package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/disiqueira/gotree/v3"
	"golang.org/x/term"

	"github.com/FocuswithJustin/marginalia/core/anchor"
	"github.com/FocuswithJustin/marginalia/core/highlight"
	"github.com/FocuswithJustin/marginalia/core/normalize"
	"github.com/FocuswithJustin/marginalia/core/store"
)

// Options controls report rendering.
type Options struct {
	// Flat forces the plain line-per-document layout used when output is
	// not a terminal.
	Flat bool
	// ShowSections groups highlights under the markdown section they
	// resolve to. Requires the document sources under LibraryDir.
	ShowSections bool
	// LibraryDir is the markdown library root, used to read sources for
	// section grouping.
	LibraryDir string
}

// IsTerminal reports whether f is attached to a terminal. Callers use it to
// pick between the tree and flat layouts.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// docEntry is one document's rendering input.
type docEntry struct {
	path string
	doc  *highlight.Document
}

// Render writes the library report to w.
func Render(st store.Store, w io.Writer, opts Options) error {
	paths, err := st.List()
	if err != nil {
		return fmt.Errorf("list store: %w", err)
	}
	sort.Strings(paths)

	entries := make([]docEntry, 0, len(paths))
	total := 0
	for _, p := range paths {
		doc, err := st.Load(p)
		if err != nil {
			return fmt.Errorf("load %s: %w", p, err)
		}
		if doc.Empty() {
			continue
		}
		entries = append(entries, docEntry{path: p, doc: doc})
		total += len(doc.Highlights)
	}

	if opts.Flat {
		return renderFlat(w, entries, total)
	}
	return renderTree(w, entries, total, opts)
}

// renderFlat prints one line per document, suitable for pipes and scripts.
func renderFlat(w io.Writer, entries []docEntry, total int) error {
	for _, e := range entries {
		if _, err := fmt.Fprintf(w, "%s\t%d\n", e.path, len(e.doc.Highlights)); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "total\t%d\n", total)
	return err
}

// renderTree prints the directory-shaped tree with per-document counts and
// optional section grouping.
func renderTree(w io.Writer, entries []docEntry, total int, opts Options) error {
	root := gotree.New(fmt.Sprintf("library (%d documents, %d highlights)", len(entries), total))
	dirs := map[string]gotree.Tree{"": root}

	var dirNode func(dir string) gotree.Tree
	dirNode = func(dir string) gotree.Tree {
		if node, ok := dirs[dir]; ok {
			return node
		}
		parent := dirNode(parentDir(dir))
		node := parent.Add(filepath.Base(dir) + "/")
		dirs[dir] = node
		return node
	}

	for _, e := range entries {
		parent := dirNode(parentDir(e.path))
		label := fmt.Sprintf("%s (%d)", filepath.Base(e.path), len(e.doc.Highlights))
		docNode := parent.Add(label)

		if opts.ShowSections {
			addSections(docNode, e, opts.LibraryDir)
		}
	}

	_, err := io.WriteString(w, root.Print())
	return err
}

func parentDir(p string) string {
	dir := filepath.Dir(p)
	if dir == "." {
		return ""
	}
	return dir
}

// addSections re-anchors each highlight against the document source and
// groups the resolved ones under their section headings. Unresolved
// highlights land under "(unanchored)".
func addSections(docNode gotree.Tree, e docEntry, libraryDir string) {
	src, err := os.ReadFile(filepath.Join(libraryDir, filepath.FromSlash(e.path)))
	if err != nil {
		docNode.Add("(source unavailable)")
		return
	}

	res := normalize.MarkdownSections(string(src))

	sections := make(map[string][]string)
	var order []string
	record := func(section, label string) {
		if _, seen := sections[section]; !seen {
			order = append(order, section)
		}
		sections[section] = append(sections[section], label)
	}

	for _, h := range e.doc.Highlights {
		folded := h
		folded.Text = normalize.Fold(h.Text)
		folded.Prefix = normalize.Fold(h.Prefix)
		folded.Suffix = normalize.Fold(h.Suffix)

		span, ok := anchor.MatchHighlight(res.Visible, folded)
		if !ok {
			record("(unanchored)", excerpt(h.Text))
			continue
		}
		section := res.SectionAt(span.Start)
		if section == "" {
			section = "(preamble)"
		}
		record(section, excerpt(h.Text))
	}

	for _, section := range order {
		node := docNode.Add(section)
		for _, label := range sections[section] {
			node.Add(label)
		}
	}
}

// excerpt shortens a highlight's text to a one-line label.
func excerpt(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	const max = 48
	if len(text) > max {
		return text[:max-3] + "..."
	}
	return text
}
