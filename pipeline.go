// Package linky archives the readable text of web pages. A Pipeline cleans
// captured markup, renders it to markdown, rejects loading screens and
// unchanged content, classifies the URL, and hands the result to a Sink.
package linky

import (
	"context"
	"fmt"
	"strings"

	"github.com/pevans/linky/classify"
	"github.com/pevans/linky/loading"
	"github.com/pevans/linky/markdown"
	"github.com/pevans/linky/markup"
	"github.com/pevans/linky/rules"
	"github.com/rs/zerolog"
)

// Reasons a page is skipped without an error.
const (
	SkipPlaceholder = "placeholder"
	SkipUnchanged   = "unchanged"
)

// ChangeTracker remembers content that has already been archived.
type ChangeTracker interface {
	HasChanged(content string) bool
	RecordSeen(content string) error
}

// Page is one capture handed to the pipeline.
type Page struct {
	URL    string
	Markup string
	Title  string
}

// Extraction is the text derived from one capture.
type Extraction struct {
	// Title is the caller's title, or the document's when none was given.
	Title string `json:"title"`

	// Body is the normalized text used for placeholder detection.
	Body string `json:"body"`

	// Content is Body with the title heading, truncated to the cap.
	Content string `json:"content"`

	Loading loading.Result `json:"loading"`
}

// Result reports what happened to one capture. Skipped is set, and Saved is
// false, when the capture was deliberately not archived.
type Result struct {
	Saved    bool   `json:"saved"`
	Bucket   string `json:"bucket,omitempty"`
	Filename string `json:"filename,omitempty"`
	Skipped  string `json:"skipped,omitempty"`
	Error    string `json:"error,omitempty"`
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithLogger sets the pipeline's logger.
func WithLogger(l zerolog.Logger) PipelineOption {
	return func(p *Pipeline) { p.log = l }
}

// WithMaxBytes sets the content cap.
func WithMaxBytes(n int) PipelineOption {
	return func(p *Pipeline) { p.maxBytes = n }
}

// WithTracker enables the unchanged-content check.
func WithTracker(t ChangeTracker) PipelineOption {
	return func(p *Pipeline) { p.tracker = t }
}

// Pipeline runs captures through extraction, filtering, classification, and
// storage. It is safe for concurrent use when its sink and tracker are.
type Pipeline struct {
	rules    *rules.Config
	renderer *markdown.Renderer
	detector *loading.Detector
	tracker  ChangeTracker
	sink     Sink
	maxBytes int
	log      zerolog.Logger
}

// NewPipeline wires a pipeline over cfg and sink. A nil cfg uses the
// compiled-in rules.
func NewPipeline(cfg *rules.Config, sink Sink, opts ...PipelineOption) *Pipeline {
	if cfg == nil {
		cfg = rules.Default()
	}

	p := &Pipeline{
		rules:    cfg,
		renderer: markdown.NewRenderer(),
		detector: loading.NewDetector(cfg),
		sink:     sink,
		maxBytes: markdown.ArchiveMaxBytes,
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Extract turns a capture into normalized text. Feed documents are rendered
// from their items, everything else goes through the markup cleaner.
func (p *Pipeline) Extract(page Page) (*Extraction, error) {
	host := classify.Host(page.URL)

	var rendered, docTitle string
	if markdown.IsFeed(page.Markup) {
		feed, err := markdown.ParseFeed(page.Markup)
		if err != nil {
			return nil, err
		}
		rendered, err = p.renderer.RenderFeed(feed)
		if err != nil {
			return nil, err
		}
		docTitle = feed.Title
	} else {
		doc, err := markup.ParseString(page.Markup)
		if err != nil {
			return nil, err
		}
		cleaned := markup.Clean(doc.Root, p.rules.For(host))
		rendered, err = p.renderer.Render(cleaned)
		if err != nil {
			return nil, err
		}
		docTitle = doc.Title
	}

	title := strings.TrimSpace(page.Title)
	if title == "" {
		title = docTitle
	}

	body := markdown.NormalizeWith(rendered, markdown.Options{})
	return &Extraction{
		Title:   title,
		Body:    body,
		Content: markdown.Truncate(markdown.PrependTitle(body, title), p.maxBytes),
		Loading: p.detector.Check(body, host),
	}, nil
}

// Process runs a markup capture through the whole pipeline.
func (p *Pipeline) Process(ctx context.Context, page Page) Result {
	ext, err := p.Extract(page)
	if err != nil {
		p.log.Error().Err(err).Str("url", page.URL).Msg("Failed to extract page")
		return Result{Saved: false, Error: fmt.Sprintf("failed to extract page: %v", err)}
	}

	if ext.Loading.Placeholder {
		p.log.Debug().Str("url", page.URL).Strs("lines", ext.Loading.MeaningfulLines).Msg("Skipping placeholder content")
		return Result{Saved: false, Skipped: SkipPlaceholder}
	}

	return p.save(ctx, page.URL, ext.Content)
}

// Save archives text that is already markdown, such as content normalized by
// the browser. It still applies the cap, the placeholder check, and the
// change check.
func (p *Pipeline) Save(ctx context.Context, url, content string) Result {
	content = markdown.Truncate(content, p.maxBytes)

	res := p.detector.Check(content, classify.Host(url))
	if res.Placeholder {
		p.log.Debug().Str("url", url).Msg("Skipping placeholder content")
		return Result{Saved: false, Skipped: SkipPlaceholder}
	}

	return p.save(ctx, url, content)
}

func (p *Pipeline) save(ctx context.Context, url, content string) Result {
	if p.tracker != nil && !p.tracker.HasChanged(content) {
		p.log.Debug().Str("url", url).Msg("Skipping unchanged content")
		return Result{Saved: false, Skipped: SkipUnchanged}
	}

	if _, err := classify.SplitURL(url); err != nil {
		p.log.Debug().Err(err).Str("url", url).Msg("Unparseable URL, using fallback bucket")
	}
	bucket := classify.Classify(url)

	put := p.sink.Put(ctx, url, content, bucket)
	result := Result{Saved: put.Saved, Bucket: put.Bucket, Error: put.Error}
	if !put.Saved {
		p.log.Warn().Str("url", url).Str("bucket", bucket).Str("error", put.Error).Msg("Sink rejected content")
		return result
	}

	if namer, ok := p.sink.(FileNamer); ok {
		if name, err := namer.FileName(url); err == nil {
			result.Filename = name
		}
	}

	if p.tracker != nil {
		if err := p.tracker.RecordSeen(content); err != nil {
			p.log.Warn().Err(err).Str("url", url).Msg("Failed to record archived content")
		}
	}

	p.log.Info().Str("url", url).Str("bucket", bucket).Int("bytes", len(content)).Msg("Archived page")
	return result
}
