package anchor

import (
	"sort"
)

// ConsolidatedSpan is a maximal run of overlapping spans collapsed into one
// disjoint range. The primary highlight is the group's longest contributor;
// every other contributing id is kept, in encounter order, as a secondary.
type ConsolidatedSpan struct {
	Start        int
	End          int
	Primary      Span
	SecondaryIDs []string
}

// IDs returns the primary id followed by the secondary ids.
func (c ConsolidatedSpan) IDs() []string {
	return append([]string{c.Primary.Highlight.ID}, c.SecondaryIDs...)
}

// Consolidate merges overlapping spans into a minimal, pairwise-disjoint,
// source-ordered sequence. Input order does not matter; the input slice is
// not mutated.
func Consolidate(spans []Span) []ConsolidatedSpan {
	if len(spans) == 0 {
		return nil
	}

	sorted := make([]Span, len(spans))
	copy(sorted, spans)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Start != sorted[j].Start {
			return sorted[i].Start < sorted[j].Start
		}
		return sorted[i].End < sorted[j].End
	})

	var out []ConsolidatedSpan
	group := []Span{sorted[0]}
	maxEnd := sorted[0].End

	for _, s := range sorted[1:] {
		if s.Start < maxEnd {
			group = append(group, s)
			if s.End > maxEnd {
				maxEnd = s.End
			}
			continue
		}
		out = append(out, closeGroup(group, maxEnd))
		group = []Span{s}
		maxEnd = s.End
	}
	out = append(out, closeGroup(group, maxEnd))
	return out
}

// closeGroup collapses one overlap group into a ConsolidatedSpan.
func closeGroup(group []Span, maxEnd int) ConsolidatedSpan {
	primary := group[0]
	for _, s := range group[1:] {
		// Longest sub-span wins; ties break toward the earliest start, which
		// the sort order already guarantees.
		if s.End-s.Start > primary.End-primary.Start {
			primary = s
		}
	}

	var secondaries []string
	seen := map[string]bool{primary.Highlight.ID: true}
	for _, s := range group {
		id := s.Highlight.ID
		if seen[id] {
			continue
		}
		seen[id] = true
		secondaries = append(secondaries, id)
	}

	return ConsolidatedSpan{
		Start:        group[0].Start,
		End:          maxEnd,
		Primary:      primary,
		SecondaryIDs: secondaries,
	}
}
