package markup

import (
	"strings"

	"github.com/pevans/linky/rules"
)

var tableTags = map[string]bool{
	"table": true, "thead": true, "tbody": true, "tfoot": true, "tr": true,
	"td": true, "th": true, "caption": true, "colgroup": true, "col": true,
}

// wrapperTags are generic containers that carry no meaning of their own.
var wrapperTags = map[string]bool{
	"div": true, "section": true, "article": true, "main": true, "aside": true,
	"figure": true, "header": true, "nav": true, "center": true, "body": true,
}

// inlineTags only style their text, so they collapse into any lone child.
var inlineTags = map[string]bool{
	"span": true, "font": true, "em": true, "strong": true, "b": true,
	"i": true, "u": true, "s": true, "small": true, "mark": true, "abbr": true,
	"cite": true, "q": true, "sub": true, "sup": true, "time": true,
	"label": true, "bdi": true, "bdo": true, "ins": true,
}

var blockTags = map[string]bool{
	"div": true, "section": true, "article": true, "main": true, "aside": true,
	"figure": true, "header": true, "nav": true, "center": true, "p": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"ul": true, "ol": true, "li": true, "dl": true, "dt": true, "dd": true,
	"pre": true, "blockquote": true, "hr": true, "figcaption": true,
	"address": true, "details": true, "summary": true,
}

// emptyTags are dropped when their text is blank.
var emptyTags = map[string]bool{
	"p": true, "div": true, "span": true, "section": true, "article": true,
	"aside": true, "main": true, "header": true, "nav": true, "li": true,
	"ul": true, "ol": true, "h1": true, "h2": true, "h3": true, "h4": true,
	"h5": true, "h6": true, "strong": true, "em": true, "b": true, "i": true,
	"u": true, "small": true, "blockquote": true, "figure": true,
	"figcaption": true, "label": true, "button": true,
}

// Clean reduces a markup tree to archivable content using rs. The input is
// not modified. The result is a "body" element holding the selected content.
func Clean(root *Node, rs rules.RuleSet) *Node {
	tree := root.Clone()
	ix := newIndex(tree)

	scopes := selectScopes(tree, ix, CompileSelectors(rs.InclusionSelectors))

	exclusions := CompileSelectors(rs.ExclusionSelectors)
	removed := make(map[*Node]bool)
	for _, scope := range scopes {
		for _, sel := range exclusions {
			for _, n := range ix.queryAll(scope, sel) {
				removed[n] = true
			}
		}
	}

	out := Element("body", nil)
	for _, scope := range scopes {
		if scope == tree {
			out.Children = append(out.Children, tree.Children...)
			continue
		}
		out.Children = append(out.Children, scope)
	}

	prune(out, removed)
	replaceImages(out)
	replaceLinks(out)
	unwrapTables(out)
	out.Children = collapseChildren(out.Children)
	dropEmpty(out)

	return out
}

// selectScopes returns the subtrees to process. Without inclusion selectors
// that is the whole tree. Otherwise matches are gathered in selector order and
// any match nested inside another match is dropped so only the outermost
// remains.
func selectScopes(tree *Node, ix *index, inclusions []Selector) []*Node {
	if len(inclusions) == 0 {
		return []*Node{tree}
	}

	var candidates []*Node
	seen := make(map[*Node]bool)
	for _, sel := range inclusions {
		for _, n := range ix.queryAll(tree, sel) {
			if !seen[n] {
				seen[n] = true
				candidates = append(candidates, n)
			}
		}
	}

	scopes := make([]*Node, 0, len(candidates))
	for _, n := range candidates {
		if !hasSelectedAncestor(ix, n, seen) {
			scopes = append(scopes, n)
		}
	}
	return scopes
}

func hasSelectedAncestor(ix *index, n *Node, selected map[*Node]bool) bool {
	h := ix.toHTML[n]
	for p := h.Parent; p != nil; p = p.Parent {
		if selected[ix.toOwned[p]] {
			return true
		}
	}
	return false
}

// prune deletes removed nodes along with their descendants.
func prune(n *Node, removed map[*Node]bool) {
	kept := n.Children[:0]
	for _, c := range n.Children {
		if removed[c] {
			continue
		}
		prune(c, removed)
		kept = append(kept, c)
	}
	n.Children = kept
}

// replaceImages swaps each img for its alt text.
func replaceImages(n *Node) {
	for i, c := range n.Children {
		if c.Kind == ElementNode && c.Tag == "img" {
			n.Children[i] = NewText(c.Attr("alt"))
			continue
		}
		replaceImages(c)
	}
}

// replaceLinks swaps each hyperlink for its visible text, dropping the href.
func replaceLinks(n *Node) {
	for i, c := range n.Children {
		if c.Kind == ElementNode && c.Tag == "a" {
			n.Children[i] = NewText(c.TextContent())
			continue
		}
		replaceLinks(c)
	}
}

// unwrapTables promotes the children of table structure into its parent.
// Cells and rows leave a whitespace leaf behind so adjacent cell text stays
// apart.
func unwrapTables(n *Node) {
	var out []*Node
	for _, c := range n.Children {
		unwrapTables(c)
		if c.Kind == ElementNode && tableTags[c.Tag] {
			out = append(out, c.Children...)
			switch c.Tag {
			case "td", "th":
				out = append(out, NewText(" "))
			case "tr", "caption":
				out = append(out, NewText("\n"))
			}
			continue
		}
		out = append(out, c)
	}
	n.Children = out
}

// collapseChildren replaces single-child wrappers with their child,
// repeatedly and bottom-up. Inline wrappers collapse into any child. Generic
// containers only collapse into a block child, so a container's text never
// runs into its neighbour's.
func collapseChildren(children []*Node) []*Node {
	for i, c := range children {
		children[i] = collapse(c)
	}
	return children
}

func collapse(n *Node) *Node {
	if n.IsText() {
		return n
	}
	n.Children = collapseChildren(n.Children)
	for len(n.Children) == 1 {
		child := n.Children[0]
		if !inlineTags[n.Tag] && !(wrapperTags[n.Tag] && isBlock(child)) {
			break
		}
		n = child
	}
	return n
}

func isBlock(n *Node) bool {
	return n.Kind == ElementNode && blockTags[n.Tag]
}

// dropEmpty removes blank containers and empty text leaves, bottom-up.
func dropEmpty(n *Node) {
	kept := n.Children[:0]
	for _, c := range n.Children {
		if c.IsText() {
			if c.Text != "" {
				kept = append(kept, c)
			}
			continue
		}
		dropEmpty(c)
		if emptyTags[c.Tag] && strings.TrimSpace(c.TextContent()) == "" {
			continue
		}
		kept = append(kept, c)
	}
	n.Children = kept
}
