// Package view re-creates visual highlight wrappers inside a rendered XHTML
// view. It is the live-view analog of the matcher, consolidator, and marker
// writer: resolved passages are wrapped in <mark> elements and exposed for
// navigation.
//
// All match positions are computed once against an immutable snapshot of the
// view's visible text. Wrapping splits text nodes, so the snapshot's arena of
// text-run descriptors is updated in place as nodes split; a pending span's
// offsets therefore stay valid no matter what order highlights are wrapped
// in.
package view

import (
	"encoding/xml"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"

	"github.com/FocuswithJustin/marginalia/core/anchor"
	"github.com/FocuswithJustin/marginalia/core/highlight"
	"github.com/FocuswithJustin/marginalia/core/normalize"
)

// MarkClass is the class attribute stamped on every wrapper element.
const MarkClass = "mgl-hl"

// ChromeAttr flags interface chrome: any element carrying it is excluded
// from the match corpus along with its subtree.
const ChromeAttr = "data-ui-chrome"

// Progress reports navigation state: Current is the 1-based index of the
// focused passage (0 when none is focused) and Total the number of resolved
// passages.
type Progress struct {
	Current   int    `json:"current"`
	Total     int    `json:"total"`
	FocusedID string `json:"focused_id,omitempty"`
}

// Notifier receives a callback whenever focus or the total passage count
// changes, for consumption by surrounding chrome.
type Notifier interface {
	OnProgressChanged(Progress)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(Progress)

// OnProgressChanged implements Notifier.
func (f NotifierFunc) OnProgressChanged(p Progress) { f(p) }

// Options configures an Anchorer.
type Options struct {
	// Exclude lists XPath expressions whose matching subtrees are removed
	// from the match corpus, in addition to the built-in exclusions
	// (comments, script/style, ChromeAttr).
	Exclude []string

	// Notifier, when set, receives progress-changed callbacks.
	Notifier Notifier
}

// run is one arena descriptor: a contiguous slice of the corpus backed by a
// single text node. A nil node marks a gap (a collapsed space between
// nodes) that cannot be wrapped.
type run struct {
	cs   int             // corpus start offset
	node *xmlquery.Node  // backing text node, nil for gaps
	offs []int           // per corpus byte: offset into node.Data
	ends []int           // per corpus byte: offset just past its node bytes
}

func (r *run) ce() int { return r.cs + len(r.offs) }

// group is one consolidated span awaiting or holding its wrappers.
type group struct {
	span    anchor.ConsolidatedSpan
	wrapped bool
	marks   []*xmlquery.Node
}

// Anchorer wraps resolved highlight passages in a parsed view and navigates
// between them.
type Anchorer struct {
	doc      *xmlquery.Node
	corpus   string
	arena    []*run
	groups   []*group
	current  int // index into groups, -1 when nothing is focused
	notifier Notifier
}

// New snapshots the view and resolves every highlight against it. Highlights
// whose text cannot be located are silently omitted (they stay in the
// canonical store untouched). The document tree is not modified until Wrap
// or WrapAll is called.
func New(doc *xmlquery.Node, highlights []highlight.Highlight, opts Options) (*Anchorer, error) {
	excluded, err := excludedSet(doc, opts.Exclude)
	if err != nil {
		return nil, err
	}

	b := &corpusBuilder{excluded: excluded}
	b.walk(doc)

	a := &Anchorer{
		doc:      doc,
		corpus:   string(b.corpus),
		arena:    b.arena,
		current:  -1,
		notifier: opts.Notifier,
	}

	var spans []anchor.Span
	for _, h := range highlights {
		folded := h
		folded.Text = normalize.Fold(h.Text)
		folded.Prefix = normalize.Fold(h.Prefix)
		folded.Suffix = normalize.Fold(h.Suffix)
		span, ok := anchor.MatchHighlight(a.corpus, folded)
		if !ok {
			continue
		}
		span.Highlight = h
		spans = append(spans, a.snapToRune(span))
	}
	for _, c := range anchor.Consolidate(spans) {
		a.groups = append(a.groups, &group{span: c})
	}

	a.notify()
	return a, nil
}

// Wrap wraps the passage owning the given highlight id (as primary or
// secondary). Wrapping an already-wrapped or unresolved id is a no-op.
func (a *Anchorer) Wrap(id string) {
	for _, g := range a.groups {
		if g.wrapped || !groupOwns(g, id) {
			continue
		}
		a.wrapGroup(g)
		return
	}
}

// WrapAll wraps every resolved passage in document order.
func (a *Anchorer) WrapAll() {
	for _, g := range a.groups {
		if !g.wrapped {
			a.wrapGroup(g)
		}
	}
}

// Progress returns the current navigation state without mutating anything.
func (a *Anchorer) Progress() Progress {
	p := Progress{Current: a.current + 1, Total: len(a.groups)}
	if a.current >= 0 {
		p.FocusedID = a.groups[a.current].span.Primary.Highlight.ID
	}
	return p
}

// Next moves focus to the following wrapped passage in document order,
// clamped at the last one, and returns the updated progress.
func (a *Anchorer) Next() Progress {
	if len(a.groups) == 0 {
		return a.Progress()
	}
	if a.current < len(a.groups)-1 {
		a.current++
		a.notify()
	}
	return a.Progress()
}

// Prev moves focus to the preceding wrapped passage, clamped at the first
// one, and returns the updated progress.
func (a *Anchorer) Prev() Progress {
	if len(a.groups) == 0 {
		return a.Progress()
	}
	if a.current > 0 {
		a.current--
		a.notify()
	} else if a.current < 0 {
		a.current = 0
		a.notify()
	}
	return a.Progress()
}

// Focus moves focus directly to the passage owning the given id, for deep
// links supplied at load time. Returns an error when the id resolved to no
// passage.
func (a *Anchorer) Focus(id string) (Progress, error) {
	for i, g := range a.groups {
		if groupOwns(g, id) {
			if a.current != i {
				a.current = i
				a.notify()
			}
			return a.Progress(), nil
		}
	}
	return a.Progress(), fmt.Errorf("no resolved passage for highlight %s", id)
}

// FocusedAnchor returns the element id of the focused passage's first
// wrapper, for scroll-into-view by the consuming chrome. Empty when nothing
// is focused or the focused passage is not yet wrapped.
func (a *Anchorer) FocusedAnchor() string {
	if a.current < 0 {
		return ""
	}
	g := a.groups[a.current]
	if !g.wrapped {
		return ""
	}
	return "hl-" + g.span.Primary.Highlight.ID
}

// HTML serializes the (possibly rewrapped) view.
func (a *Anchorer) HTML() string {
	return a.doc.OutputXML(false)
}

func (a *Anchorer) notify() {
	if a.notifier != nil {
		a.notifier.OnProgressChanged(a.Progress())
	}
}

// snapToRune widens a corpus span outward to rune expansion boundaries.
// Folding can emit several corpus bytes for one source rune (an ellipsis
// becomes three dots), and every byte of the expansion maps to the same node
// bytes. A span edge inside an expansion must take the whole rune; otherwise
// the edge has no node offset of its own and spans meeting there would
// corrupt the split. Widened spans that come to share a rune overlap and
// consolidate into one group.
func (a *Anchorer) snapToRune(s anchor.Span) anchor.Span {
	if r := a.runAt(s.Start); r != nil && r.node != nil {
		for s.Start > r.cs && r.offs[s.Start-r.cs] == r.offs[s.Start-1-r.cs] {
			s.Start--
		}
	}
	if r := a.runAt(s.End - 1); r != nil && r.node != nil {
		for s.End < r.ce() && r.ends[s.End-1-r.cs] == r.ends[s.End-r.cs] {
			s.End++
		}
	}
	return s
}

// runAt returns the arena run covering the given corpus offset.
func (a *Anchorer) runAt(off int) *run {
	for _, r := range a.arena {
		if off >= r.cs && off < r.ce() {
			return r
		}
	}
	return nil
}

func groupOwns(g *group, id string) bool {
	if g.span.Primary.Highlight.ID == id {
		return true
	}
	for _, s := range g.span.SecondaryIDs {
		if s == id {
			return true
		}
	}
	return false
}

// wrapGroup wraps every run segment overlapping the group's corpus range in
// a mark element and updates the arena so pending spans stay resolvable.
func (a *Anchorer) wrapGroup(g *group) {
	s, e := g.span.Start, g.span.End
	first := true

	var next []*run
	for _, r := range a.arena {
		if r.node == nil || r.ce() <= s || r.cs >= e {
			next = append(next, r)
			continue
		}
		ls, le := max(s, r.cs), min(e, r.ce())
		head, tail, mark := a.splitRun(r, ls, le, g, first)
		first = false
		if head != nil {
			next = append(next, head)
		}
		g.marks = append(g.marks, mark)
		if tail != nil {
			next = append(next, tail)
		}
	}
	a.arena = next
	g.wrapped = true
}

// splitRun splits one run's text node around the [ls, le) corpus segment,
// inserting a mark element over the middle. Returns the surviving head and
// tail runs (nil when empty) and the mark element.
func (a *Anchorer) splitRun(r *run, ls, le int, g *group, first bool) (head, tail *run, mark *xmlquery.Node) {
	nodeStart := r.offs[ls-r.cs]
	nodeEnd := r.ends[le-1-r.cs]
	data := r.node.Data

	mark = a.newMark(g, first)
	markText := &xmlquery.Node{Type: xmlquery.TextNode, Data: data[nodeStart:nodeEnd]}
	appendChild(mark, markText)

	if nodeStart > 0 {
		// Head keeps the original node with truncated data; its offsets are
		// untouched, so runs before the split stay valid.
		r.node.Data = data[:nodeStart]
		insertAfter(r.node, mark)
		if ls > r.cs {
			head = &run{cs: r.cs, node: r.node, offs: r.offs[:ls-r.cs], ends: r.ends[:ls-r.cs]}
		}
	} else {
		replaceNode(r.node, mark)
	}

	if nodeEnd < len(data) {
		tailNode := &xmlquery.Node{Type: xmlquery.TextNode, Data: data[nodeEnd:]}
		insertAfter(mark, tailNode)
		if le < r.ce() {
			n := le - r.cs
			offs := make([]int, len(r.offs)-n)
			ends := make([]int, len(r.ends)-n)
			for i := range offs {
				offs[i] = r.offs[n+i] - nodeEnd
				ends[i] = r.ends[n+i] - nodeEnd
			}
			tail = &run{cs: le, node: tailNode, offs: offs, ends: ends}
		}
	}
	return head, tail, mark
}

// newMark builds the wrapper element for a group. Only the group's first
// segment carries the navigable element id.
func (a *Anchorer) newMark(g *group, first bool) *xmlquery.Node {
	primary := g.span.Primary.Highlight.ID
	mark := &xmlquery.Node{Type: xmlquery.ElementNode, Data: "mark"}
	addAttr(mark, "class", MarkClass)
	addAttr(mark, "data-hl-id", primary)
	if ids := g.span.IDs(); len(ids) > 1 {
		addAttr(mark, "data-hl-ids", strings.Join(ids, ","))
	}
	if first {
		addAttr(mark, "id", "hl-"+primary)
	}
	return mark
}

// excludedSet resolves the exclusion XPath expressions against the document.
func excludedSet(doc *xmlquery.Node, exprs []string) (map[*xmlquery.Node]bool, error) {
	if len(exprs) == 0 {
		return nil, nil
	}
	set := make(map[*xmlquery.Node]bool)
	for _, expr := range exprs {
		if _, err := xpath.Compile(expr); err != nil {
			return nil, fmt.Errorf("invalid exclusion xpath %q: %w", expr, err)
		}
		nodes, err := xmlquery.QueryAll(doc, expr)
		if err != nil {
			return nil, fmt.Errorf("exclusion xpath %q failed: %w", expr, err)
		}
		for _, n := range nodes {
			set[n] = true
		}
	}
	return set, nil
}

// corpusBuilder walks the view once, producing the immutable visible-text
// snapshot and its arena of run descriptors.
type corpusBuilder struct {
	excluded map[*xmlquery.Node]bool

	corpus []byte
	arena  []*run

	pending     bool
	pendingNode *xmlquery.Node // node the pending whitespace began in, nil between nodes
	pendingAt   int            // offset of the first pending whitespace byte in pendingNode
}

// breakWS records a whitespace break that belongs to no text node.
func (b *corpusBuilder) breakWS() {
	b.pending = true
	b.pendingNode = nil
}

// blockTags force a whitespace break between adjacent text even when no
// whitespace text node separates them.
var blockTags = map[string]bool{
	"p": true, "div": true, "section": true, "article": true, "main": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"ul": true, "ol": true, "li": true, "blockquote": true, "pre": true,
	"table": true, "tr": true, "td": true, "th": true, "br": true, "hr": true,
}

func (b *corpusBuilder) walk(n *xmlquery.Node) {
	switch n.Type {
	case xmlquery.CommentNode, xmlquery.DeclarationNode:
		return
	case xmlquery.ElementNode:
		name := strings.ToLower(n.Data)
		if name == "script" || name == "style" {
			return
		}
		if n.SelectAttr(ChromeAttr) != "" || b.excluded[n] {
			return
		}
		if blockTags[name] {
			b.breakWS()
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			b.walk(child)
		}
		if blockTags[name] {
			b.breakWS()
		}
		return
	case xmlquery.TextNode, xmlquery.CharDataNode:
		b.text(n)
		return
	}

	for child := n.FirstChild; child != nil; child = child.NextSibling {
		b.walk(child)
	}
}

// text folds one text node into the corpus, opening a run for its visible
// bytes.
func (b *corpusBuilder) text(n *xmlquery.Node) {
	data := n.Data
	var cur *run

	for i := 0; i < len(data); {
		r, size := utf8.DecodeRuneInString(data[i:])
		out, space := normalize.FoldRune(r)
		if space {
			if !b.pending {
				b.pending = true
				b.pendingNode = n
				b.pendingAt = i
			}
			i += size
			continue
		}

		if b.pending && len(b.corpus) > 0 {
			if cur != nil && b.pendingNode == n {
				cur.offs = append(cur.offs, b.pendingAt)
				cur.ends = append(cur.ends, b.pendingAt+1)
			} else {
				// A collapsed space between nodes is a gap: it belongs to
				// no wrappable run.
				b.arena = append(b.arena, &run{cs: len(b.corpus), offs: []int{0}, ends: []int{0}})
			}
			b.corpus = append(b.corpus, ' ')
		}
		b.pending = false

		if cur == nil {
			cur = &run{cs: len(b.corpus), node: n}
			b.arena = append(b.arena, cur)
		}
		for k := 0; k < len(out); k++ {
			cur.offs = append(cur.offs, i)
			cur.ends = append(cur.ends, i+size)
			b.corpus = append(b.corpus, out[k])
		}
		i += size
	}
}

// DOM link helpers. xmlquery exposes raw pointers, so insertion and removal
// relink siblings and parent bounds by hand.

func appendChild(parent, child *xmlquery.Node) {
	child.Parent = parent
	child.NextSibling = nil
	if parent.LastChild == nil {
		parent.FirstChild = child
		child.PrevSibling = nil
	} else {
		parent.LastChild.NextSibling = child
		child.PrevSibling = parent.LastChild
	}
	parent.LastChild = child
}

func insertAfter(ref, n *xmlquery.Node) {
	n.Parent = ref.Parent
	n.PrevSibling = ref
	n.NextSibling = ref.NextSibling
	if ref.NextSibling != nil {
		ref.NextSibling.PrevSibling = n
	} else if ref.Parent != nil {
		ref.Parent.LastChild = n
	}
	ref.NextSibling = n
}

func replaceNode(old, n *xmlquery.Node) {
	n.Parent = old.Parent
	n.PrevSibling = old.PrevSibling
	n.NextSibling = old.NextSibling
	if old.PrevSibling != nil {
		old.PrevSibling.NextSibling = n
	} else if old.Parent != nil {
		old.Parent.FirstChild = n
	}
	if old.NextSibling != nil {
		old.NextSibling.PrevSibling = n
	} else if old.Parent != nil {
		old.Parent.LastChild = n
	}
}

func addAttr(n *xmlquery.Node, name, value string) {
	n.Attr = append(n.Attr, xmlquery.Attr{
		Name:  xml.Name{Local: name},
		Value: value,
	})
}
