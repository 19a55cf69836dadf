// Package marker rewrites a markdown document's source so every resolved
// highlight span is bracketed by an invisible begin/end comment pair. Markers
// render as nothing under any standard markdown renderer; stripping and
// re-deriving them from the canonical highlight list on every run keeps the
// rewrite idempotent.
package marker

import (
	"sort"
	"strings"
	"time"

	"github.com/FocuswithJustin/marginalia/core/anchor"
	"github.com/FocuswithJustin/marginalia/core/highlight"
	"github.com/FocuswithJustin/marginalia/core/normalize"
)

// Begin/end marker syntax. The begin marker carries the primary id, the full
// id list when more than one highlight contributes, and the primary's capture
// timestamp.
//
//	<!--hl id=<uuid> ids=<uuid>,<uuid> created_at=<RFC3339>-->...<!--/hl-->
const (
	beginPrefix = "<!--hl "
	endMarker   = "<!--/hl-->"
)

// Strip removes every highlight marker pair from the source. Running it on
// marker-free source returns the source unchanged.
func Strip(source string) string {
	var b strings.Builder
	b.Grow(len(source))
	for {
		idx := strings.Index(source, "<!--")
		if idx < 0 {
			b.WriteString(source)
			return b.String()
		}
		rest := source[idx:]
		if !strings.HasPrefix(rest, beginPrefix) && !strings.HasPrefix(rest, endMarker) {
			b.WriteString(source[:idx+4])
			source = source[idx+4:]
			continue
		}
		close := strings.Index(rest, "-->")
		if close < 0 {
			b.WriteString(source)
			return b.String()
		}
		b.WriteString(source[:idx])
		source = source[idx+close+3:]
	}
}

// Write produces the updated source: existing markers stripped, every
// highlight re-matched against the current content, overlaps consolidated,
// and fresh markers inserted at the resolved spans. Highlights that cannot be
// located are returned in skipped and simply carry no marker; they are never
// dropped from the canonical list.
//
// Running Write twice with an unchanged highlight list yields byte-identical
// output on the second pass.
func Write(source string, highlights []highlight.Highlight) (out string, skipped []highlight.Highlight) {
	base := Strip(source)
	res := normalize.MarkdownDefault(base)

	var spans []anchor.Span
	for _, h := range highlights {
		folded := h
		folded.Text = normalize.Fold(h.Text)
		folded.Prefix = normalize.Fold(h.Prefix)
		folded.Suffix = normalize.Fold(h.Suffix)
		span, ok := anchor.MatchHighlight(res.Visible, folded)
		if !ok {
			skipped = append(skipped, h)
			continue
		}
		// Project to source coordinates before consolidating. Folding can
		// expand one source rune into several visible bytes, so spans that
		// are disjoint in visible text may still share a source rune; only
		// source-coordinate consolidation keeps the marker pairs nested.
		srcStart, srcEnd, ok := res.Project(span.Start, span.End)
		if !ok {
			skipped = append(skipped, h)
			continue
		}
		spans = append(spans, anchor.Span{Start: srcStart, End: srcEnd, Highlight: h})
	}
	if len(spans) == 0 {
		return base, skipped
	}

	inserts := buildInserts(anchor.Consolidate(spans))
	return apply(base, inserts), skipped
}

// insert is one marker string destined for a source offset.
type insert struct {
	off     int
	text    string
	isEnd   bool
	spanEnd int // source end of the owning span, for coincident-start ordering
}

// buildInserts renders marker strings for consolidated source-coordinate
// spans.
func buildInserts(spans []anchor.ConsolidatedSpan) []insert {
	var out []insert
	for _, c := range spans {
		out = append(out, insert{off: c.Start, text: beginMarker(c), spanEnd: c.End})
		out = append(out, insert{off: c.End, text: endMarker, isEnd: true, spanEnd: c.End})
	}

	// Coincident offsets: all end markers precede all begin markers, and
	// begin markers for longer spans come first. This keeps nesting
	// well-formed however spans collide.
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.off != b.off {
			return a.off < b.off
		}
		if a.isEnd != b.isEnd {
			return a.isEnd
		}
		if !a.isEnd {
			return a.spanEnd > b.spanEnd
		}
		return a.spanEnd < b.spanEnd
	})
	return out
}

// apply splices the marker strings into the source at their offsets.
func apply(source string, inserts []insert) string {
	var b strings.Builder
	b.Grow(len(source) + len(inserts)*48)
	cursor := 0
	for _, ins := range inserts {
		b.WriteString(source[cursor:ins.off])
		b.WriteString(ins.text)
		cursor = ins.off
	}
	b.WriteString(source[cursor:])
	return b.String()
}

// beginMarker renders the begin marker for one consolidated span.
func beginMarker(c anchor.ConsolidatedSpan) string {
	var b strings.Builder
	b.WriteString(beginPrefix)
	b.WriteString("id=")
	b.WriteString(c.Primary.Highlight.ID)
	if ids := c.IDs(); len(ids) > 1 {
		b.WriteString(" ids=")
		b.WriteString(strings.Join(ids, ","))
	}
	b.WriteString(" created_at=")
	b.WriteString(c.Primary.Highlight.CreatedAt.UTC().Format(time.RFC3339))
	b.WriteString("-->")
	return b.String()
}
