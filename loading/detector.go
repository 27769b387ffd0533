// Package loading recognizes pages captured before their content arrived.
package loading

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/pevans/linky/rules"
)

// Pages whose surviving lines are this few and all shorter than
// shortLineRunes carry too little signal to be real content.
const (
	maxShortLines  = 2
	shortLineRunes = 10
)

var (
	imageOnly     = regexp.MustCompile(`^!\[.*\]\(.*\)$`)
	headingMarker = regexp.MustCompile(`^#+$`)
	symbolsOnly   = regexp.MustCompile(`^[\p{P}\p{S}\s]+$`)
	numericOnly   = regexp.MustCompile(`^(nan|\d+|(\d+|nan)\s*/\s*(\d+|nan))$`)
)

// Result is the verdict for one piece of text. MeaningfulLines lists the
// lines that survived filtering, for diagnostics.
type Result struct {
	Placeholder     bool     `json:"placeholder"`
	MeaningfulLines []string `json:"meaningful_lines"`
}

// Detector applies per-host loading indicators. It is safe for concurrent
// use.
type Detector struct {
	rules *rules.Config
}

// NewDetector returns a detector over cfg. A nil cfg uses the compiled-in
// rules.
func NewDetector(cfg *rules.Config) *Detector {
	if cfg == nil {
		cfg = rules.Default()
	}
	return &Detector{rules: cfg}
}

// IsPlaceholder reports whether text looks like a loading screen on host.
func (d *Detector) IsPlaceholder(text, host string) bool {
	return d.Check(text, host).Placeholder
}

// Check evaluates text captured from host.
func (d *Detector) Check(text, host string) Result {
	rs := d.rules.For(host)
	indicators := rs.LoadingIndicators
	exact := rs.LoadingIndicatorMatch == rules.MatchExact

	trimmed := strings.ToLower(strings.TrimSpace(text))
	if trimmed == "" {
		return Result{Placeholder: true}
	}

	for _, indicator := range indicators {
		if indicator == "" {
			continue
		}
		if trimmed == indicator || strings.HasPrefix(trimmed, indicator) || strings.Contains(trimmed, indicator) {
			return Result{Placeholder: true}
		}
	}

	meaningful := make([]string, 0)
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || isNoise(line) {
			continue
		}
		if matchesIndicator(strings.ToLower(line), indicators, exact) {
			continue
		}
		meaningful = append(meaningful, line)
	}

	if len(meaningful) == 0 {
		return Result{Placeholder: true, MeaningfulLines: meaningful}
	}
	if len(meaningful) <= maxShortLines && allShort(meaningful) {
		return Result{Placeholder: true, MeaningfulLines: meaningful}
	}
	return Result{Placeholder: false, MeaningfulLines: meaningful}
}

// isNoise reports lines that are images, bare heading markers, symbols, or
// counters.
func isNoise(line string) bool {
	return imageOnly.MatchString(line) ||
		headingMarker.MatchString(line) ||
		symbolsOnly.MatchString(line) ||
		numericOnly.MatchString(strings.ToLower(line))
}

func matchesIndicator(line string, indicators []string, exact bool) bool {
	for _, indicator := range indicators {
		if indicator == "" {
			continue
		}
		if exact && line == indicator {
			return true
		}
		if !exact && strings.Contains(line, indicator) {
			return true
		}
	}
	return false
}

func allShort(lines []string) bool {
	for _, l := range lines {
		if utf8.RuneCountInString(l) >= shortLineRunes {
			return false
		}
	}
	return true
}
