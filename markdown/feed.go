package markdown

import (
	"fmt"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/pevans/linky/markup"
)

// IsFeed reports whether raw is an RSS, Atom, or JSON feed document.
func IsFeed(raw string) bool {
	return gofeed.DetectFeedType(strings.NewReader(raw)) != gofeed.FeedTypeUnknown
}

// ParseFeed parses an RSS, Atom, or JSON feed. gofeed normalizes all three
// into one structure.
func ParseFeed(raw string) (*gofeed.Feed, error) {
	fp := gofeed.NewParser()
	feed, err := fp.ParseString(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}
	return feed, nil
}

// RenderFeed converts a feed to markdown with one section per item. Item
// bodies may hold markup and go through the same conversion as pages.
func (r *Renderer) RenderFeed(feed *gofeed.Feed) (string, error) {
	var sb strings.Builder

	if feed.Description != "" {
		sb.WriteString(strings.TrimSpace(feed.Description))
		sb.WriteString("\n\n")
	}

	for _, item := range feed.Items {
		title := strings.TrimSpace(item.Title)
		if title == "" {
			title = "(No title)"
		}
		fmt.Fprintf(&sb, "## %s\n\n", title)

		if meta := itemByline(item); meta != "" {
			sb.WriteString(meta)
			sb.WriteString("\n\n")
		}

		// Content carries the full body when present, Description the summary
		body := item.Content
		if body == "" {
			body = item.Description
		}
		if body == "" {
			continue
		}

		text, err := r.renderFragment(body)
		if err != nil {
			return "", err
		}
		if text != "" {
			sb.WriteString(text)
			sb.WriteString("\n\n")
		}
	}

	return strings.TrimSpace(sb.String()), nil
}

// renderFragment sanitizes and renders markup taken from a feed item.
func (r *Renderer) renderFragment(s string) (string, error) {
	doc, err := markup.ParseString(r.sanitizer.Sanitize(s))
	if err != nil {
		return "", err
	}
	return r.Render(doc.Root)
}

// itemByline joins authors and the publication date.
func itemByline(item *gofeed.Item) string {
	authors := make([]string, 0)
	if item.Author != nil && item.Author.Name != "" {
		authors = append(authors, item.Author.Name)
	}
	for _, author := range item.Authors {
		if author.Name != "" && !contains(authors, author.Name) {
			authors = append(authors, author.Name)
		}
	}
	if item.DublinCoreExt != nil {
		for _, creator := range item.DublinCoreExt.Creator {
			if creator != "" && !contains(authors, creator) {
				authors = append(authors, creator)
			}
		}
	}

	var published *time.Time
	if item.PublishedParsed != nil {
		published = item.PublishedParsed
	} else if item.UpdatedParsed != nil {
		published = item.UpdatedParsed
	}

	parts := make([]string, 0, 2)
	if len(authors) > 0 {
		parts = append(parts, strings.Join(authors, ", "))
	}
	if published != nil {
		parts = append(parts, published.UTC().Format("2006-01-02"))
	}
	return strings.Join(parts, " · ")
}

// contains checks if a string slice contains a specific string
func contains(slice []string, str string) bool {
	for _, s := range slice {
		if strings.EqualFold(s, str) {
			return true
		}
	}
	return false
}
