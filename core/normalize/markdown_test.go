package normalize

import (
	"strings"
	"testing"
)

// TestPlainTextPassesThrough tests that unmarked prose survives unchanged.
func TestPlainTextPassesThrough(t *testing.T) {
	r := MarkdownDefault("hello world")
	if r.Visible != "hello world" {
		t.Errorf("Visible = %q, want %q", r.Visible, "hello world")
	}
	start, end, ok := r.Project(0, 5)
	if !ok || start != 0 || end != 5 {
		t.Errorf("Project(0,5) = (%d, %d, %v)", start, end, ok)
	}
}

// TestStructuralMarkersDropped tests that heading, list, and quote prefixes
// vanish while their content stays.
func TestStructuralMarkersDropped(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"heading", "# Title here", "Title here"},
		{"deep heading", "### Deep title", "Deep title"},
		{"bullet", "- item one", "item one"},
		{"star bullet", "* item two", "item two"},
		{"ordered", "3. third item", "third item"},
		{"quote", "> quoted line", "quoted line"},
		{"nested quote", "> > deeper", "deeper"},
		{"emphasis", "some *bold* and _ital_ text", "some bold and ital text"},
		{"inline code", "call `Load` here", "call Load here"},
		{"not a heading", "#hashtag", "#hashtag"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := MarkdownDefault(tt.src)
			if r.Visible != tt.want {
				t.Errorf("Visible = %q, want %q", r.Visible, tt.want)
			}
		})
	}
}

// TestLinksKeepLabelOnly tests link and image handling.
func TestLinksKeepLabelOnly(t *testing.T) {
	r := MarkdownDefault("see [the docs](https://example.com/docs) for more")
	if r.Visible != "see the docs for more" {
		t.Errorf("Visible = %q", r.Visible)
	}

	r = MarkdownDefault("an image: ![alt text](img.png) end")
	if r.Visible != "an image: alt text end" {
		t.Errorf("Visible = %q", r.Visible)
	}

	// Label offsets must point at the label's own source bytes.
	src := "[label](url)"
	r = MarkdownDefault(src)
	start, end, ok := r.Project(0, len("label"))
	if !ok {
		t.Fatal("Project failed")
	}
	if src[start:end] != "label" {
		t.Errorf("projected %q, want %q", src[start:end], "label")
	}
}

// TestWhitespaceCollapses tests that any whitespace run becomes one space.
func TestWhitespaceCollapses(t *testing.T) {
	r := MarkdownDefault("alpha  \t beta\n\ngamma delta")
	if r.Visible != "alpha beta gamma delta" {
		t.Errorf("Visible = %q", r.Visible)
	}
}

// TestTypographicNormalization tests smart quote and dash folding.
func TestTypographicNormalization(t *testing.T) {
	r := MarkdownDefault("“quoted” and ‘single’ — dashed…")
	want := `"quoted" and 'single' - dashed...`
	if r.Visible != want {
		t.Errorf("Visible = %q, want %q", r.Visible, want)
	}
}

// TestFrontmatterExcluded tests that a leading YAML block contributes nothing
// and that offsets land after it.
func TestFrontmatterExcluded(t *testing.T) {
	src := "---\ntitle: Test\n---\nbody text"
	r := MarkdownDefault(src)
	if r.Visible != "body text" {
		t.Errorf("Visible = %q", r.Visible)
	}
	start, _, ok := r.Project(0, 4)
	if !ok {
		t.Fatal("Project failed")
	}
	if src[start:start+4] != "body" {
		t.Errorf("projection landed at %q", src[start:start+4])
	}
}

// TestCommentsExcluded tests that HTML comments (including markers) vanish.
func TestCommentsExcluded(t *testing.T) {
	r := MarkdownDefault("before <!--hl id=x-->marked<!--/hl--> after")
	if r.Visible != "before marked after" {
		t.Errorf("Visible = %q", r.Visible)
	}
}

// TestFencedCodeExcluded tests code-region exclusion and the retain option.
func TestFencedCodeExcluded(t *testing.T) {
	src := "before\n```go\nfmt.Println(1)\n```\nafter"

	r := MarkdownDefault(src)
	if strings.Contains(r.Visible, "Println") {
		t.Errorf("code leaked into visible text: %q", r.Visible)
	}
	if r.Visible != "before after" {
		t.Errorf("Visible = %q", r.Visible)
	}

	opts := DefaultOptions()
	opts.ExcludeCode = false
	r = Markdown(src, opts)
	if !strings.Contains(r.Visible, "fmt.Println(1)") {
		t.Errorf("retained code missing: %q", r.Visible)
	}
}

// TestProjectRoundTrip tests that projected source ranges cover exactly the
// bytes that produced the visible range.
func TestProjectRoundTrip(t *testing.T) {
	src := "## Heading\n\nSome *emphasized* words in a [link](u) here."
	r := MarkdownDefault(src)

	idx := strings.Index(r.Visible, "emphasized")
	if idx < 0 {
		t.Fatalf("visible text missing target: %q", r.Visible)
	}
	start, end, ok := r.Project(idx, idx+len("emphasized"))
	if !ok {
		t.Fatal("Project failed")
	}
	if src[start:end] != "emphasized" {
		t.Errorf("projected %q", src[start:end])
	}
}

// TestProjectBounds tests the sentinel behavior on bad ranges.
func TestProjectBounds(t *testing.T) {
	r := MarkdownDefault("short")
	if _, _, ok := r.Project(-1, 2); ok {
		t.Error("negative start accepted")
	}
	if _, _, ok := r.Project(2, 2); ok {
		t.Error("empty range accepted")
	}
	if _, _, ok := r.Project(0, 99); ok {
		t.Error("out-of-range end accepted")
	}
}

// TestSectionTracking tests nearest-preceding-heading queries.
func TestSectionTracking(t *testing.T) {
	src := "intro text\n\n# First\n\nalpha beta\n\n## Second\n\ngamma delta"
	r := MarkdownSections(src)

	if got := r.SectionAt(strings.Index(r.Visible, "intro")); got != "" {
		t.Errorf("pre-heading section = %q, want empty", got)
	}
	if got := r.SectionAt(strings.Index(r.Visible, "alpha")); got != "First" {
		t.Errorf("section of alpha = %q, want First", got)
	}
	if got := r.SectionAt(strings.Index(r.Visible, "gamma")); got != "Second" {
		t.Errorf("section of gamma = %q, want Second", got)
	}
}

// TestUnterminatedConstructs tests that pathological input cannot loop or
// panic.
func TestUnterminatedConstructs(t *testing.T) {
	for _, src := range []string{
		"<!-- never closed",
		"---\nno closing fence",
		"```\nunterminated code",
		"[label with no close",
		"](stray)",
	} {
		r := MarkdownDefault(src)
		_ = r.Visible
	}
}
