// Package rules holds per-domain extraction and placeholder-detection
// configuration.
package rules

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/gobwas/glob"
	"gopkg.in/yaml.v3"
)

// DefaultKey names the rule set used when no hostname matches exactly.
const DefaultKey = "_default"

// MatchMode controls how loading indicators are compared against lines.
type MatchMode string

const (
	MatchSubstring MatchMode = "substring"
	MatchExact     MatchMode = "exact"
)

var ErrInvalidMatchMode = errors.New("loading_indicator_match must be substring or exact")

// DefaultExclusionSelectors are removed from every page whose rule set names
// no exclusions of its own.
var DefaultExclusionSelectors = []string{
	"script",
	"style",
	"noscript",
	"iframe",
	"link",
	"header nav",
	"footer",
	".advertisement",
	".cookie-banner",
}

//go:embed defaults.yaml
var defaultsYAML []byte

// RuleSet is the extraction configuration for one hostname.
type RuleSet struct {
	ExclusionSelectors    []string  `yaml:"exclusion_selectors,omitempty" json:"exclusion_selectors,omitempty"`
	InclusionSelectors    []string  `yaml:"inclusion_selectors,omitempty" json:"inclusion_selectors,omitempty"`
	LoadingIndicators     []string  `yaml:"loading_indicators,omitempty" json:"loading_indicators,omitempty"`
	LoadingIndicatorMatch MatchMode `yaml:"loading_indicator_match,omitempty" json:"loading_indicator_match,omitempty"`
}

// Config maps hostnames, plus DefaultKey, to rule sets. A key holding glob
// metacharacters, such as "*.substack.com", is a host pattern where "*"
// stops at dots and "**" does not. Exact keys win over patterns, and longer
// patterns win over shorter ones. A Config is loaded once and treated as
// read-only afterwards.
type Config struct {
	domains  map[string]RuleSet
	patterns []hostPattern
}

type hostPattern struct {
	key  string
	glob glob.Glob
}

type fileFormat struct {
	Domains map[string]RuleSet `yaml:"domains"`
}

// Parse reads a YAML rule document.
func Parse(data []byte) (*Config, error) {
	var doc fileFormat
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse rules: %w", err)
	}

	cfg := &Config{domains: make(map[string]RuleSet, len(doc.Domains))}
	for host, rs := range doc.Domains {
		switch rs.LoadingIndicatorMatch {
		case "", MatchSubstring, MatchExact:
		default:
			return nil, fmt.Errorf("rules for %s: %w", host, ErrInvalidMatchMode)
		}
		for i, indicator := range rs.LoadingIndicators {
			rs.LoadingIndicators[i] = strings.ToLower(indicator)
		}
		key := strings.ToLower(host)
		cfg.domains[key] = rs

		if strings.ContainsAny(key, "*?[{") {
			g, err := glob.Compile(key, '.')
			if err != nil {
				return nil, fmt.Errorf("invalid host pattern %s: %w", host, err)
			}
			cfg.patterns = append(cfg.patterns, hostPattern{key: key, glob: g})
		}
	}

	slices.SortFunc(cfg.patterns, func(a, b hostPattern) int {
		if len(a.key) != len(b.key) {
			return len(b.key) - len(a.key)
		}
		return strings.Compare(a.key, b.key)
	})

	return cfg, nil
}

// LoadFile reads a YAML rule document from disk.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}
	return Parse(data)
}

// Default returns the compiled-in rule document.
func Default() *Config {
	cfg, err := Parse(defaultsYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded rules are invalid: %v", err))
	}
	return cfg
}

// Load returns the rules at path, or the compiled-in rules when path is empty.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	return LoadFile(path)
}

// IsConfigured reports whether host has its own rule set, either by name or
// through a host pattern.
func (c *Config) IsConfigured(host string) bool {
	_, ok := c.lookup(host)
	return ok
}

func (c *Config) lookup(host string) (RuleSet, bool) {
	host = strings.ToLower(host)
	if rs, ok := c.domains[host]; ok {
		return rs, true
	}
	for _, p := range c.patterns {
		if p.glob.Match(host) {
			return c.domains[p.key], true
		}
	}
	return RuleSet{}, false
}

// Hosts returns the configured hostnames in sorted order, DefaultKey
// included.
func (c *Config) Hosts() []string {
	hosts := make([]string, 0, len(c.domains))
	for h := range c.domains {
		hosts = append(hosts, h)
	}
	slices.Sort(hosts)
	return hosts
}

// For resolves the rule set for host. Fields the host leaves unset are taken
// from DefaultKey, and exclusions finally fall back to
// DefaultExclusionSelectors. The returned value shares nothing with c.
func (c *Config) For(host string) RuleSet {
	def := c.domains[DefaultKey]
	rs, ok := c.lookup(host)
	if !ok {
		rs = def
	}

	if rs.ExclusionSelectors == nil {
		rs.ExclusionSelectors = def.ExclusionSelectors
	}
	if rs.ExclusionSelectors == nil {
		rs.ExclusionSelectors = DefaultExclusionSelectors
	}
	if rs.LoadingIndicators == nil {
		rs.LoadingIndicators = def.LoadingIndicators
	}
	if rs.LoadingIndicatorMatch == "" {
		rs.LoadingIndicatorMatch = def.LoadingIndicatorMatch
	}
	if rs.LoadingIndicatorMatch == "" {
		rs.LoadingIndicatorMatch = MatchSubstring
	}

	return RuleSet{
		ExclusionSelectors:    slices.Clone(rs.ExclusionSelectors),
		InclusionSelectors:    slices.Clone(rs.InclusionSelectors),
		LoadingIndicators:     slices.Clone(rs.LoadingIndicators),
		LoadingIndicatorMatch: rs.LoadingIndicatorMatch,
	}
}
