package anchor

import (
	"testing"

	"github.com/FocuswithJustin/marginalia/core/highlight"
)

// TestMatchSingleOccurrence tests the unconditional single-occurrence accept.
func TestMatchSingleOccurrence(t *testing.T) {
	start, end, ok := Match("hello world", "hello", "", "")
	if !ok || start != 0 || end != 5 {
		t.Errorf("Match = (%d, %d, %v), want (0, 5, true)", start, end, ok)
	}
}

// TestMatchMissing tests the sentinel for absent text.
func TestMatchMissing(t *testing.T) {
	start, end, ok := Match("hello world", "absent", "", "")
	if ok || start != NoMatch || end != NoMatch {
		t.Errorf("Match = (%d, %d, %v), want (NoMatch, NoMatch, false)", start, end, ok)
	}

	if _, _, ok := Match("hello", "", "p", "s"); ok {
		t.Error("empty target matched")
	}
}

// TestMatchDisambiguationByPrefix tests that repeated text resolves to the
// occurrence whose captured prefix agrees.
func TestMatchDisambiguationByPrefix(t *testing.T) {
	visible := "alpha target beta and gamma target delta"
	first := 6
	second := 28

	start, _, ok := Match(visible, "target", "alpha ", "")
	if !ok || start != first {
		t.Errorf("prefix 'alpha ': start = %d, want %d", start, first)
	}

	start, _, ok = Match(visible, "target", "gamma ", "")
	if !ok || start != second {
		t.Errorf("prefix 'gamma ': start = %d, want %d", start, second)
	}
}

// TestMatchDisambiguationBySuffix tests suffix-side context.
func TestMatchDisambiguationBySuffix(t *testing.T) {
	visible := "one target beta two target delta"

	start, _, ok := Match(visible, "target", "", " delta")
	if !ok || start != 20 {
		t.Errorf("suffix ' delta': start = %d, want 20", start)
	}
}

// TestMatchTrimmedContext tests that context still agrees when whitespace
// boundaries shifted between capture and the current render.
func TestMatchTrimmedContext(t *testing.T) {
	visible := "alpha target beta and gamma target delta"

	// Captured prefix carries a leading space the collapsed render lost.
	start, _, ok := Match(visible, "target", " gamma ", "")
	if !ok || start != 28 {
		t.Errorf("trimmed prefix: start = %d, want 28", start)
	}
}

// TestMatchFallbackToFirst tests the documented best-effort fallback when no
// context disambiguates.
func TestMatchFallbackToFirst(t *testing.T) {
	visible := "one target two target"

	start, _, ok := Match(visible, "target", "nowhere ", "")
	if !ok || start != 4 {
		t.Errorf("fallback start = %d, want 4 (first occurrence)", start)
	}
}

// TestMatchHighlight tests the Span-producing wrapper.
func TestMatchHighlight(t *testing.T) {
	h := highlight.Highlight{ID: "h1", Text: "world"}
	span, ok := MatchHighlight("hello world", h)
	if !ok {
		t.Fatal("expected a match")
	}
	if span.Start != 6 || span.End != 11 || span.Highlight.ID != "h1" {
		t.Errorf("span = %+v", span)
	}

	if _, ok := MatchHighlight("hello world", highlight.Highlight{ID: "h2", Text: "absent"}); ok {
		t.Error("absent text matched")
	}
}
