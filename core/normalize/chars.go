package normalize

// Fold normalizes a captured text fragment (a highlight's text, prefix, or
// suffix) into the same character space as the visible-text projection:
// whitespace runs collapse to one space and typographic characters fold to
// ASCII. Edge whitespace collapses to a single space rather than vanishing,
// since a captured context snippet's boundary space is meaningful.
func Fold(s string) string {
	var b []byte
	pending := false
	for _, r := range s {
		out, space := FoldRune(r)
		if space {
			pending = true
			continue
		}
		if pending {
			if len(b) > 0 || hasLeadingSpace(s) {
				b = append(b, ' ')
			}
			pending = false
		}
		b = append(b, out...)
	}
	if pending {
		b = append(b, ' ')
	}
	return string(b)
}

func hasLeadingSpace(s string) bool {
	for _, r := range s {
		_, space := FoldRune(r)
		return space
	}
	return false
}

// FoldRune normalizes one rune the way the visible-text projection does.
// It returns the ASCII replacement string and whether the rune counts as
// whitespace. Both normalization paths (markdown source and rendered view)
// must agree on this mapping or context matching breaks across provenances.
func FoldRune(r rune) (out string, isSpace bool) {
	switch r {
	case ' ', '\t', '\r', '\n', '\u00a0', '\u2007', '\u202f':
		return " ", true
	case '‘', '’', '‚':
		return "'", false
	case '“', '”', '„':
		return `"`, false
	case '–', '—', '―':
		return "-", false
	case '…':
		return "...", false
	}
	return string(r), false
}
