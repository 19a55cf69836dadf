// Package normalize projects document source into "visible text": the
// markup-stripped string a reader actually sees, plus an offset map back into
// the original source. Matching always runs against visible text, and marker
// insertion offsets are always projected back through the map, so a marker
// can never land inside a structural token.
package normalize

import (
	"strings"
	"unicode/utf8"
)

// Options controls normalization behavior.
type Options struct {
	// ExcludeCode drops fenced code blocks entirely. Inline code keeps its
	// content (only the backtick delimiters are dropped).
	ExcludeCode bool

	// TrackSections records the nearest preceding heading for every visible
	// run, for "which section is this passage under" queries.
	TrackSections bool
}

// DefaultOptions returns the options used by the matching and marking paths.
func DefaultOptions() Options {
	return Options{ExcludeCode: true}
}

// Section is one heading-delimited region of the visible text.
type Section struct {
	// Title is the heading's visible text.
	Title string
	// Start is the visible-text offset where the section begins (the heading
	// itself included).
	Start int
}

// Result is the visible-text projection of one source document.
type Result struct {
	// Visible is the normalized visible text.
	Visible string

	// Sections holds heading regions in visible order when TrackSections is
	// set. Passages before the first heading belong to no section.
	Sections []Section

	starts []int // per visible byte: source offset of its first source byte
	ends   []int // per visible byte: source offset just past its source bytes
}

// Project maps a [start, end) range in visible-text coordinates back to
// original-source coordinates. The returned range brackets exactly the source
// bytes that produced the visible range.
func (r *Result) Project(start, end int) (srcStart, srcEnd int, ok bool) {
	if start < 0 || end <= start || end > len(r.Visible) {
		return 0, 0, false
	}
	return r.starts[start], r.ends[end-1], true
}

// SectionAt returns the title of the nearest heading preceding the given
// visible-text offset, or "" when the offset lies before every heading.
func (r *Result) SectionAt(off int) string {
	title := ""
	for _, s := range r.Sections {
		if s.Start > off {
			break
		}
		title = s.Title
	}
	return title
}

// mdScanner carries the scan state for one markdown normalization pass.
type mdScanner struct {
	src  string
	opts Options

	visible []byte
	starts  []int
	ends    []int

	pendingWS   bool
	pendingWSAt int

	sections     []Section
	headingStart int // visible offset where the current heading began, -1 outside headings
}

// Markdown normalizes markdown source into visible text plus an offset map.
//
// Rules: YAML frontmatter, HTML comments, and (optionally) fenced code blocks
// contribute nothing; links and images contribute only their label/alt text;
// leading structural markers and emphasis/code delimiters are dropped;
// whitespace runs collapse to one space; typographic quotes and dashes
// normalize to ASCII.
func Markdown(source string, opts Options) *Result {
	s := &mdScanner{src: source, opts: opts, headingStart: -1}
	s.run()

	return &Result{
		Visible:  string(s.visible),
		Sections: s.sections,
		starts:   s.starts,
		ends:     s.ends,
	}
}

// MarkdownDefault normalizes with DefaultOptions.
func MarkdownDefault(source string) *Result {
	return Markdown(source, DefaultOptions())
}

// MarkdownSections normalizes with section tracking enabled.
func MarkdownSections(source string) *Result {
	opts := DefaultOptions()
	opts.TrackSections = true
	return Markdown(source, opts)
}

func (s *mdScanner) run() {
	i := s.skipFrontmatter()
	atLineStart := true

	for i < len(s.src) {
		if atLineStart {
			i = s.lineStart(i)
			atLineStart = false
			if i >= len(s.src) {
				break
			}
		}

		c := s.src[i]
		switch {
		case c == '\n':
			s.closeHeading()
			s.whitespace(i)
			i++
			atLineStart = true

		case isSpaceByte(c):
			s.whitespace(i)
			i++

		case strings.HasPrefix(s.src[i:], "<!--"):
			end := strings.Index(s.src[i+4:], "-->")
			if end < 0 {
				i = len(s.src)
				break
			}
			i += 4 + end + 3

		case c == '!' && s.linkAhead(i+1):
			i++ // the '[' is handled on the next pass

		case c == '[' && s.linkAhead(i):
			i++ // emit the label, skip the bracket

		case c == ']' && s.urlAhead(i):
			i = s.skipURL(i)

		case c == '*' || c == '_' || c == '`':
			// Emphasis and inline-code delimiters carry no visible text.
			i++

		default:
			i = s.emitRune(i)
		}
	}
	s.closeHeading()
}

// skipFrontmatter skips a leading YAML metadata block, if present.
func (s *mdScanner) skipFrontmatter() int {
	if !strings.HasPrefix(s.src, "---\n") && !strings.HasPrefix(s.src, "---\r\n") {
		return 0
	}
	rest := s.src[strings.Index(s.src, "\n")+1:]
	off := len(s.src) - len(rest)
	for {
		lineEnd := strings.IndexByte(rest, '\n')
		line := rest
		if lineEnd >= 0 {
			line = rest[:lineEnd]
		}
		if strings.TrimRight(line, "\r") == "---" {
			if lineEnd < 0 {
				return len(s.src)
			}
			return off + lineEnd + 1
		}
		if lineEnd < 0 {
			// Unterminated frontmatter: treat the whole file as content.
			return 0
		}
		rest = rest[lineEnd+1:]
		off += lineEnd + 1
	}
}

// lineStart consumes structural markers at the start of a line: blockquote
// prefixes, heading markers, list bullets, ordered-list numbers, and fenced
// code blocks.
func (s *mdScanner) lineStart(i int) int {
	// Blockquote markers may nest.
	for i < len(s.src) && s.src[i] == '>' {
		i++
		if i < len(s.src) && s.src[i] == ' ' {
			i++
		}
	}

	// Fenced code block.
	if strings.HasPrefix(s.src[i:], "```") {
		return s.fence(i)
	}

	// Heading marker.
	if i < len(s.src) && s.src[i] == '#' {
		j := i
		for j < len(s.src) && s.src[j] == '#' {
			j++
		}
		if j < len(s.src) && s.src[j] == ' ' {
			if s.opts.TrackSections {
				s.headingStart = s.visibleLenAfterPending()
			}
			return j + 1
		}
		return i
	}

	// Unordered list bullet.
	if i+1 < len(s.src) && (s.src[i] == '-' || s.src[i] == '*' || s.src[i] == '+') && s.src[i+1] == ' ' {
		return i + 2
	}

	// Ordered list marker: digits followed by '.' or ')' and a space.
	j := i
	for j < len(s.src) && s.src[j] >= '0' && s.src[j] <= '9' {
		j++
	}
	if j > i && j+1 < len(s.src) && (s.src[j] == '.' || s.src[j] == ')') && s.src[j+1] == ' ' {
		return j + 2
	}

	return i
}

// fence consumes a fenced code block. With ExcludeCode the contents vanish;
// otherwise only the fence lines vanish.
func (s *mdScanner) fence(i int) int {
	lineEnd := strings.IndexByte(s.src[i:], '\n')
	if lineEnd < 0 {
		return len(s.src)
	}
	body := i + lineEnd + 1

	// Find the closing fence line.
	rest := s.src[body:]
	off := body
	for {
		lineEnd := strings.IndexByte(rest, '\n')
		line := rest
		if lineEnd >= 0 {
			line = rest[:lineEnd]
		}
		if strings.HasPrefix(strings.TrimLeft(line, " "), "```") {
			if !s.opts.ExcludeCode {
				s.emitVerbatim(body, off)
			}
			if lineEnd < 0 {
				return len(s.src)
			}
			return off + lineEnd + 1
		}
		if lineEnd < 0 {
			// Unterminated fence: everything to EOF is code.
			if !s.opts.ExcludeCode {
				s.emitVerbatim(body, len(s.src))
			}
			return len(s.src)
		}
		rest = rest[lineEnd+1:]
		off += lineEnd + 1
	}
}

// emitVerbatim emits a source slice with whitespace collapsing but no other
// markup interpretation. Used for retained code block contents.
func (s *mdScanner) emitVerbatim(start, end int) {
	for i := start; i < end; {
		c := s.src[i]
		if c == '\n' || isSpaceByte(c) {
			s.whitespace(i)
			i++
			continue
		}
		i = s.emitRune(i)
	}
}

// linkAhead reports whether position i starts a [label](url) construct.
func (s *mdScanner) linkAhead(i int) bool {
	if i >= len(s.src) || s.src[i] != '[' {
		return false
	}
	close := strings.Index(s.src[i:], "](")
	if close < 0 {
		return false
	}
	// The label must not span a blank line.
	if strings.Contains(s.src[i:i+close], "\n\n") {
		return false
	}
	return strings.IndexByte(s.src[i+close+2:], ')') >= 0
}

// urlAhead reports whether position i is the ']' of a link whose '(url)'
// follows immediately.
func (s *mdScanner) urlAhead(i int) bool {
	return i+1 < len(s.src) && s.src[i+1] == '(' && strings.IndexByte(s.src[i+1:], ')') >= 0
}

// skipURL consumes "](url)" starting at the ']'.
func (s *mdScanner) skipURL(i int) int {
	end := strings.IndexByte(s.src[i+1:], ')')
	return i + 1 + end + 1
}

// whitespace records a pending whitespace run starting at the given offset.
func (s *mdScanner) whitespace(at int) {
	if !s.pendingWS {
		s.pendingWS = true
		s.pendingWSAt = at
	}
}

// visibleLenAfterPending returns the visible length a char emitted now would
// start at, accounting for a pending collapsed space.
func (s *mdScanner) visibleLenAfterPending() int {
	n := len(s.visible)
	if s.pendingWS && n > 0 {
		n++
	}
	return n
}

// closeHeading finalizes the current heading section, if one is open.
func (s *mdScanner) closeHeading() {
	if s.headingStart < 0 {
		return
	}
	title := strings.TrimSpace(string(s.visible[min(s.headingStart, len(s.visible)):]))
	if title != "" {
		s.sections = append(s.sections, Section{Title: title, Start: s.headingStart})
	}
	s.headingStart = -1
}

// emitRune emits the rune at source offset i, normalizing typographic
// characters, and returns the offset just past it.
func (s *mdScanner) emitRune(i int) int {
	r, size := utf8.DecodeRuneInString(s.src[i:])

	// Non-breaking space variants collapse like ordinary whitespace.
	if r == '\u00a0' || r == '\u2007' || r == '\u202f' {
		s.whitespace(i)
		return i + size
	}

	var out string
	switch r {
	case '‘', '’', '‚': // ‘ ’ ‚
		out = "'"
	case '“', '”', '„': // “ ” „
		out = `"`
	case '–', '—', '―': // – — ―
		out = "-"
	case '…': // …
		out = "..."
	default:
		out = s.src[i : i+size]
	}

	s.flushWS()
	for k := 0; k < len(out); k++ {
		s.visible = append(s.visible, out[k])
		s.starts = append(s.starts, i)
		s.ends = append(s.ends, i+size)
	}
	return i + size
}

// flushWS emits the single collapsed space for a pending whitespace run.
// Leading whitespace is dropped outright.
func (s *mdScanner) flushWS() {
	if !s.pendingWS {
		return
	}
	s.pendingWS = false
	if len(s.visible) == 0 {
		return
	}
	s.visible = append(s.visible, ' ')
	s.starts = append(s.starts, s.pendingWSAt)
	s.ends = append(s.ends, s.pendingWSAt+1)
}

func isSpaceByte(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r'
}
