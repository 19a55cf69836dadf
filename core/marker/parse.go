package marker

import (
	"fmt"
	"strings"
	"time"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// Marker is one begin marker scanned back out of a document's source.
type Marker struct {
	// ID is the primary highlight id.
	ID string
	// IDs lists every contributing id (primary first) when the span was
	// consolidated from several highlights; nil for single-highlight spans.
	IDs []string
	// CreatedAt is the primary highlight's capture timestamp.
	CreatedAt time.Time
	// Offset is the byte offset of the begin marker in the source.
	Offset int
}

// fieldList is the participle grammar for the space-separated key=value
// fields inside a begin marker.
type fieldList struct {
	Fields []field `@@*`
}

type field struct {
	Key   string `@Key`
	Value string `@Value`
}

// fieldLexer tokenizes marker fields. Keys include their trailing '=' so a
// bare value can never be mistaken for a key.
var fieldLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Key", Pattern: `[a-z_]+=`},
	{Name: "Value", Pattern: `[^\s=]+`},
	{Name: "Whitespace", Pattern: `\s+`},
})

var fieldParser = participle.MustBuild[fieldList](
	participle.Lexer(fieldLexer),
	participle.Elide("Whitespace"),
)

// Parse scans every begin marker out of a document's source. Malformed
// markers are reported, not skipped silently, since they indicate a
// hand-edited or corrupted rewrite.
func Parse(source string) ([]Marker, error) {
	var out []Marker
	off := 0
	for {
		idx := strings.Index(source[off:], beginPrefix)
		if idx < 0 {
			return out, nil
		}
		start := off + idx
		body := start + len(beginPrefix)
		close := strings.Index(source[body:], "-->")
		if close < 0 {
			return out, fmt.Errorf("unterminated marker at offset %d", start)
		}

		m, err := parseFields(source[body : body+close])
		if err != nil {
			return out, fmt.Errorf("marker at offset %d: %w", start, err)
		}
		m.Offset = start
		out = append(out, m)
		off = body + close + 3
	}
}

// parseFields decodes one begin marker's field string.
func parseFields(s string) (Marker, error) {
	parsed, err := fieldParser.ParseString("", s)
	if err != nil {
		return Marker{}, fmt.Errorf("invalid marker fields %q: %w", s, err)
	}

	var m Marker
	for _, f := range parsed.Fields {
		switch strings.TrimSuffix(f.Key, "=") {
		case "id":
			m.ID = f.Value
		case "ids":
			m.IDs = strings.Split(f.Value, ",")
		case "created_at":
			ts, err := time.Parse(time.RFC3339, f.Value)
			if err != nil {
				return Marker{}, fmt.Errorf("invalid created_at %q: %w", f.Value, err)
			}
			m.CreatedAt = ts
		default:
			// Unknown fields are tolerated for forward compatibility.
		}
	}
	if m.ID == "" {
		return Marker{}, fmt.Errorf("marker missing id field")
	}
	return m, nil
}
