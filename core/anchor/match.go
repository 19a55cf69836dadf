// Package anchor locates remembered passages inside a document's visible
// text and merges overlapping matches into disjoint, renderable spans.
package anchor

import (
	"strings"

	"github.com/FocuswithJustin/marginalia/core/highlight"
)

// NoMatch is the sentinel offset returned when a passage cannot be located.
const NoMatch = -1

// Span is one resolved [Start, End) range for a highlight, in the coordinate
// space of whatever text was matched against.
type Span struct {
	Start     int
	End       int
	Highlight highlight.Highlight
}

// Match finds the best occurrence of text inside visible, disambiguating
// repeated occurrences with the expected prefix/suffix context.
//
// Zero occurrences return (NoMatch, NoMatch, false). A single occurrence is
// accepted unconditionally. With several occurrences, the first whose actual
// surrounding windows agree with the expected context (exact or whitespace-
// trimmed, since collapse boundaries legitimately shift) wins; when no
// occurrence agrees, the first one wins outright. That fallback is deliberate
// best-effort behavior, not an error.
func Match(visible, text, prefix, suffix string) (start, end int, ok bool) {
	if text == "" {
		return NoMatch, NoMatch, false
	}

	occurrences := findAll(visible, text)
	switch len(occurrences) {
	case 0:
		return NoMatch, NoMatch, false
	case 1:
		return occurrences[0], occurrences[0] + len(text), true
	}

	for _, occ := range occurrences {
		if contextAgrees(window(visible, occ-len(prefix), occ), prefix) &&
			contextAgrees(window(visible, occ+len(text), occ+len(text)+len(suffix)), suffix) {
			return occ, occ + len(text), true
		}
	}

	// No context disambiguates: fall back to the first occurrence.
	return occurrences[0], occurrences[0] + len(text), true
}

// MatchHighlight resolves one highlight against visible text, returning a
// Span and whether it was located.
func MatchHighlight(visible string, h highlight.Highlight) (Span, bool) {
	start, end, ok := Match(visible, h.Text, h.Prefix, h.Suffix)
	if !ok {
		return Span{}, false
	}
	return Span{Start: start, End: end, Highlight: h}, true
}

// findAll returns the start offset of every literal occurrence of needle.
func findAll(haystack, needle string) []int {
	var out []int
	off := 0
	for {
		idx := strings.Index(haystack[off:], needle)
		if idx < 0 {
			return out
		}
		out = append(out, off+idx)
		off += idx + 1
	}
}

// window slices [start, end) out of s, clamped to its bounds.
func window(s string, start, end int) string {
	if start < 0 {
		start = 0
	}
	if end > len(s) {
		end = len(s)
	}
	if start >= end {
		return ""
	}
	return s[start:end]
}

// contextAgrees compares an actual context window against the expected one.
// An empty expectation always agrees. Whitespace-trimmed equality on either
// side is accepted because whitespace boundaries shift between renders.
func contextAgrees(actual, expected string) bool {
	if expected == "" {
		return true
	}
	if actual == expected {
		return true
	}
	at, et := strings.TrimSpace(actual), strings.TrimSpace(expected)
	return at == expected || actual == et || at == et
}
