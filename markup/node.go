// Package markup models page markup as an owned tree and reduces it to the
// content worth archiving.
package markup

import (
	"sort"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// documentTag marks the synthetic root produced from a whole document.
const documentTag = "#document"

// Kind distinguishes element nodes from text leaves.
type Kind int

const (
	ElementNode Kind = iota
	TextNode
)

// Node is one node of a markup tree. A tree is owned by whoever built it and
// contains no shared subtrees or cycles; child order is document order.
type Node struct {
	Kind     Kind
	Tag      string            // lowercase element name, empty for text
	Attrs    map[string]string // nil for text
	Children []*Node
	Text     string // text leaves only
}

// Element builds an element node.
func Element(tag string, attrs map[string]string, children ...*Node) *Node {
	return &Node{
		Kind:     ElementNode,
		Tag:      strings.ToLower(tag),
		Attrs:    attrs,
		Children: children,
	}
}

// NewDocument builds a document root holding children.
func NewDocument(children ...*Node) *Node {
	return &Node{Kind: ElementNode, Tag: documentTag, Children: children}
}

// NewText builds a text leaf.
func NewText(s string) *Node {
	return &Node{Kind: TextNode, Text: s}
}

// IsText reports whether n is a text leaf.
func (n *Node) IsText() bool {
	return n.Kind == TextNode
}

// Attr returns the named attribute, or "".
func (n *Node) Attr(key string) string {
	return n.Attrs[key]
}

// TextContent concatenates every text leaf under n in document order.
func (n *Node) TextContent() string {
	var sb strings.Builder
	n.writeText(&sb)
	return sb.String()
}

func (n *Node) writeText(sb *strings.Builder) {
	if n.IsText() {
		sb.WriteString(n.Text)
		return
	}
	for _, c := range n.Children {
		c.writeText(sb)
	}
}

// Clone returns a deep copy of n.
func (n *Node) Clone() *Node {
	out := &Node{Kind: n.Kind, Tag: n.Tag, Text: n.Text}
	if n.Attrs != nil {
		out.Attrs = make(map[string]string, len(n.Attrs))
		for k, v := range n.Attrs {
			out.Attrs[k] = v
		}
	}
	if len(n.Children) > 0 {
		out.Children = make([]*Node, len(n.Children))
		for i, c := range n.Children {
			out.Children[i] = c.Clone()
		}
	}
	return out
}

// FromHTML converts a parsed html node into an owned tree. Comments, doctypes,
// and other non-content nodes are dropped.
func FromHTML(h *html.Node) *Node {
	switch h.Type {
	case html.TextNode:
		return NewText(h.Data)
	case html.ElementNode, html.DocumentNode:
	default:
		return nil
	}

	n := &Node{Kind: ElementNode, Tag: strings.ToLower(h.Data)}
	if h.Type == html.DocumentNode {
		n.Tag = documentTag
	}
	if len(h.Attr) > 0 {
		n.Attrs = make(map[string]string, len(h.Attr))
		for _, a := range h.Attr {
			n.Attrs[a.Key] = a.Val
		}
	}
	for c := h.FirstChild; c != nil; c = c.NextSibling {
		if child := FromHTML(c); child != nil {
			n.Children = append(n.Children, child)
		}
	}
	return n
}

// ToHTML converts the tree into a fresh html node tree with parent and
// sibling links, as needed by selector engines and renderers.
func (n *Node) ToHTML() *html.Node {
	return n.toHTML(nil)
}

// toHTML builds the html tree and, when index is non-nil, records which owned
// node each html node came from.
func (n *Node) toHTML(index map[*html.Node]*Node) *html.Node {
	var h *html.Node
	switch {
	case n.IsText():
		h = &html.Node{Type: html.TextNode, Data: n.Text}
	case n.Tag == documentTag:
		h = &html.Node{Type: html.DocumentNode}
	default:
		h = &html.Node{
			Type:     html.ElementNode,
			Data:     n.Tag,
			DataAtom: atom.Lookup([]byte(n.Tag)),
		}
		keys := make([]string, 0, len(n.Attrs))
		for k := range n.Attrs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			h.Attr = append(h.Attr, html.Attribute{Key: k, Val: n.Attrs[k]})
		}
	}
	if !n.IsText() {
		for _, c := range n.Children {
			h.AppendChild(c.toHTML(index))
		}
	}
	if index != nil {
		index[h] = n
	}
	return h
}

// Render serializes the tree back to HTML.
func (n *Node) Render() (string, error) {
	var sb strings.Builder
	if err := html.Render(&sb, n.ToHTML()); err != nil {
		return "", err
	}
	return sb.String(), nil
}
