package markup

import (
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// Selector is a compiled CSS selector. A selector that fails to compile is
// inert and matches nothing.
type Selector struct {
	source string
	sel    cascadia.Sel
}

// CompileSelector compiles s. Invalid syntax yields an inert selector rather
// than an error.
func CompileSelector(s string) Selector {
	s = strings.TrimSpace(s)
	sel, err := cascadia.Parse(s)
	if err != nil || s == "" {
		return Selector{source: s}
	}
	return Selector{source: s, sel: sel}
}

// CompileSelectors compiles each entry in order.
func CompileSelectors(sources []string) []Selector {
	out := make([]Selector, 0, len(sources))
	for _, s := range sources {
		out = append(out, CompileSelector(s))
	}
	return out
}

// Valid reports whether the selector compiled.
func (s Selector) Valid() bool {
	return s.sel != nil
}

func (s Selector) String() string {
	return s.source
}

// index pairs an owned tree with an html mirror so selectors can see
// ancestors and siblings.
type index struct {
	toOwned map[*html.Node]*Node
	toHTML  map[*Node]*html.Node
}

func newIndex(root *Node) *index {
	ix := &index{toOwned: make(map[*html.Node]*Node)}
	root.toHTML(ix.toOwned)
	ix.toHTML = make(map[*Node]*html.Node, len(ix.toOwned))
	for h, n := range ix.toOwned {
		ix.toHTML[n] = h
	}
	return ix
}

// queryAll returns the descendants of scope matching sel, in document order.
// Ancestors of scope take part in matching, so "header nav" matches a nav
// inside scope even when the header lies outside it.
func (ix *index) queryAll(scope *Node, sel Selector) []*Node {
	if !sel.Valid() {
		return nil
	}
	h, ok := ix.toHTML[scope]
	if !ok {
		return nil
	}

	matches := cascadia.QueryAll(h, sel.sel)
	out := make([]*Node, 0, len(matches))
	for _, m := range matches {
		out = append(out, ix.toOwned[m])
	}
	return out
}

// Select returns the descendants of root matching selector, in document
// order. Invalid selectors match nothing.
func Select(root *Node, selector string) []*Node {
	return newIndex(root).queryAll(root, CompileSelector(selector))
}
