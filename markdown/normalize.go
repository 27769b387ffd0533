package markdown

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Content caps applied when truncating normalized text.
const (
	LiveMaxBytes    = 30 * 1024
	ArchiveMaxBytes = 256 * 1024
)

const ellipsis = "…"

// Options controls the final steps of Normalize.
type Options struct {
	// Title, when set, is prepended as a level-one heading.
	Title string

	// MaxBytes caps the result. Zero disables truncation.
	MaxBytes int
}

var (
	markdownImage = regexp.MustCompile(`!\[([^\]]*)\]\([^)]*\)`)
	markdownLink  = regexp.MustCompile(`\[([^\]]+)\]\([^)]*\)`)
	anchorTag     = regexp.MustCompile(`(?is)<a\b[^>]*>(.*?)</a>`)

	listMarker  = regexp.MustCompile(`(?m)^([ \t]*[-*+])[ \t]+`)
	headingText = regexp.MustCompile(`(?m)^(#{1,6}[ \t].*)$`)

	blankLine    = regexp.MustCompile(`(?m)^[ \t]+$`)
	newlineRun   = regexp.MustCompile(`\n{3,}`)
	emptyPair    = regexp.MustCompile(`(?i)<([a-z][a-z0-9]*)\b[^>]*>\s*</([a-z][a-z0-9]*)>`)
	customLoader = regexp.MustCompile(`(?i)<-[a-z][a-z0-9-]*->\s*(?:loading)?\s*</-[a-z][a-z0-9-]*->`)
	slotTag      = regexp.MustCompile(`(?i)</?__slot-el>`)

	logoPrefix  = regexp.MustCompile(`(?i)^.*logo`)
	dashRun     = regexp.MustCompile(`^[-\s]{2,}$`)
	boilerplate = regexp.MustCompile(`(?i)^(subscribe|join|follow|connections|connect|-)$`)
	likePrefix  = regexp.MustCompile(`(?i)^like`)
	countSuffix = regexp.MustCompile(`(?i)(followers|members)\s*$`)

	headingLine = regexp.MustCompile(`^#{1,6}\s`)
	wordToken   = regexp.MustCompile(`\s*\S+`)
)

// Normalize cleans rendered markdown for the live path, prepending title and
// truncating to LiveMaxBytes.
func Normalize(text, title string) string {
	return NormalizeWith(text, Options{Title: title, MaxBytes: LiveMaxBytes})
}

// NormalizeWith runs every normalization step in order.
func NormalizeWith(text string, opts Options) string {
	text = stripLinks(text)
	text = breakAfterMarkers(text)
	text = collapseBlankLines(text)
	text = dropEmptyTags(text)

	lines := strings.Split(text, "\n")
	lines = filterLines(lines)
	lines = dropContainedLines(lines)
	for i, line := range lines {
		lines[i] = halveRepeated(line)
	}
	lines = spaceHeadings(lines)
	for i, line := range lines {
		lines[i] = dedupeWords(line)
	}

	text = strings.TrimSpace(strings.Join(lines, "\n"))
	text = PrependTitle(text, opts.Title)
	return Truncate(text, opts.MaxBytes)
}

// stripLinks keeps the visible text of markdown and anchor links.
func stripLinks(text string) string {
	text = markdownImage.ReplaceAllString(text, "$1")
	text = markdownLink.ReplaceAllString(text, "$1")
	return anchorTag.ReplaceAllString(text, "$1")
}

// breakAfterMarkers puts list items and headings on their own lines.
func breakAfterMarkers(text string) string {
	text = listMarker.ReplaceAllString(text, "$1\n")
	return headingText.ReplaceAllString(text, "$1\n")
}

func collapseBlankLines(text string) string {
	text = blankLine.ReplaceAllString(text, "")
	return newlineRun.ReplaceAllString(text, "\n\n")
}

// dropEmptyTags removes empty tag pairs and loader placeholders left as raw
// markup.
func dropEmptyTags(text string) string {
	text = emptyPair.ReplaceAllStringFunc(text, func(m string) string {
		parts := emptyPair.FindStringSubmatch(m)
		if strings.EqualFold(parts[1], parts[2]) {
			return ""
		}
		return m
	})
	text = customLoader.ReplaceAllString(text, "")
	return slotTag.ReplaceAllString(text, "")
}

// filterLines trims every line, drops social boilerplate and separators, and
// keeps at most one blank line in a row.
func filterLines(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if logoPrefix.MatchString(line) {
			line = strings.TrimSpace(logoPrefix.ReplaceAllString(line, ""))
		}

		if line == "" {
			if len(out) > 0 && out[len(out)-1] != "" {
				out = append(out, "")
			}
			continue
		}

		if isBoilerplate(line) {
			continue
		}
		out = append(out, line)
	}
	return out
}

func isBoilerplate(line string) bool {
	return dashRun.MatchString(line) ||
		boilerplate.MatchString(line) ||
		likePrefix.MatchString(line) ||
		countSuffix.MatchString(line)
}

// dropContainedLines removes a line whose text already appears in the line
// kept just before it.
func dropContainedLines(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if line != "" && len(out) > 0 && strings.Contains(out[len(out)-1], line) {
			continue
		}
		out = append(out, line)
	}
	return out
}

// halveRepeated turns "X X" into "X", repeatedly.
func halveRepeated(line string) string {
	for {
		r := []rune(line)
		n := len(r)
		if n < 3 || n%2 == 0 || r[n/2] != ' ' {
			return line
		}
		left, right := string(r[:n/2]), string(r[n/2+1:])
		if left != right {
			return line
		}
		line = left
	}
}

// spaceHeadings ensures a blank line precedes every heading.
func spaceHeadings(lines []string) []string {
	out := make([]string, 0, len(lines))
	for i, line := range lines {
		if i > 0 && headingLine.MatchString(line) && out[len(out)-1] != "" {
			out = append(out, "")
		}
		out = append(out, line)
	}
	return out
}

// dedupeWords drops a token equal to the one before it.
func dedupeWords(line string) string {
	var sb strings.Builder
	prev := ""
	for _, tok := range wordToken.FindAllString(line, -1) {
		word := strings.TrimLeftFunc(tok, unicode.IsSpace)
		if word == prev {
			continue
		}
		sb.WriteString(tok)
		prev = word
	}
	return sb.String()
}

// PrependTitle adds title as a top-level heading.
func PrependTitle(text, title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return text
	}
	if text == "" {
		return "# " + title
	}
	return "# " + title + "\n\n" + text
}

// Truncate cuts s to at most maxBytes bytes, ending with an ellipsis. It
// never splits a multi-byte character. A non-positive maxBytes disables it.
func Truncate(s string, maxBytes int) string {
	if maxBytes <= 0 || len(s) <= maxBytes {
		return s
	}
	cut := max(maxBytes-len(ellipsis), 0)
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + ellipsis
}
