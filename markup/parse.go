package markup

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/dyatlov/go-opengraph/opengraph"
)

// Document is a parsed page: its body as an owned tree plus its title.
type Document struct {
	Root  *Node
	Title string
}

// ParseDocument parses a full page or a markup fragment. The root of the
// returned tree is the page body. The title comes from <title>, or from the
// page's og:title when <title> is missing or blank.
func ParseDocument(r io.Reader) (*Document, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read markup: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse markup: %w", err)
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		title = openGraphTitle(raw)
	}

	body := doc.Find("body").First()
	if body.Length() == 0 {
		return &Document{Root: FromHTML(doc.Nodes[0]), Title: title}, nil
	}

	return &Document{Root: FromHTML(body.Nodes[0]), Title: title}, nil
}

// ParseString is ParseDocument over a string.
func ParseString(s string) (*Document, error) {
	return ParseDocument(strings.NewReader(s))
}

// openGraphTitle returns the og:title meta value, or "" if there is none.
func openGraphTitle(raw []byte) string {
	og := opengraph.NewOpenGraph()
	if err := og.ProcessHTML(bytes.NewReader(raw)); err != nil {
		return ""
	}
	return strings.TrimSpace(og.Title)
}
