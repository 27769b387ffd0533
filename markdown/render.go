// Package markdown turns cleaned markup into normalized archive text.
package markdown

import (
	"fmt"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/microcosm-cc/bluemonday"
	"github.com/pevans/linky/markup"
)

// inlineTags lose their formatting and render as plain text.
var inlineTags = []string{
	"strong", "b", "em", "i", "u", "s", "del", "ins", "mark", "small",
	"code", "kbd", "samp", "sub", "sup", "abbr", "cite", "q", "span", "font",
}

// Renderer converts markup trees to markdown. It is safe for concurrent use.
type Renderer struct {
	conv *htmltomarkdown.Converter

	// sanitizer filters markup embedded in feeds, which never passes
	// through a domain rule set.
	sanitizer *bluemonday.Policy
}

// NewRenderer builds a renderer that keeps block structure (headings, lists,
// paragraphs) and flattens inline formatting.
func NewRenderer() *Renderer {
	conv := htmltomarkdown.NewConverter(
		htmltomarkdown.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(
				commonmark.WithListEndComment(false),
			),
		),
		htmltomarkdown.WithEscapeMode(htmltomarkdown.EscapeModeDisabled),
	)

	for _, tag := range inlineTags {
		conv.Register.RendererFor(tag, htmltomarkdown.TagTypeInline, base.RenderAsPlaintextWrapper, htmltomarkdown.PriorityEarly)
	}

	return &Renderer{conv: conv, sanitizer: bluemonday.UGCPolicy()}
}

// Render converts a cleaned tree to markdown.
func (r *Renderer) Render(tree *markup.Node) (string, error) {
	doc := markup.NewDocument(markup.Element("html", nil, tree.Clone()))
	out, err := r.conv.ConvertNode(doc.ToHTML())
	if err != nil {
		return "", fmt.Errorf("failed to convert markup: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}
