package ntfsmft

import (
	"encoding/json"
	"path/filepath"
	"strings"

	"github.com/dsoprea/go-logging"
)

// Rule is a node in the configurable rule-matching DSL used to flag
// interesting paths; `--rules <path>` loads a JSON document shaped like it.
type Rule struct {
	Glob     string `json:"Glob,omitempty"`
	Prefix   string `json:"Prefix,omitempty"`
	Suffix   string `json:"Suffix,omitempty"`
	Contains string `json:"Contains,omitempty"`

	And []Rule `json:"And,omitempty"`
	Not *Rule  `json:"Not,omitempty"`
}

// Match evaluates the rule against a full path (backslash-separated, as
// produced by the path builder).
func (r Rule) Match(fullPath string) bool {
	if r.Glob != "" {
		ok, err := filepath.Match(r.Glob, fullPath)
		if err != nil {
			return false
		}

		return ok
	}

	if r.Prefix != "" {
		return strings.HasPrefix(fullPath, r.Prefix)
	}

	if r.Suffix != "" {
		return strings.HasSuffix(fullPath, r.Suffix)
	}

	if r.Contains != "" {
		return strings.Contains(fullPath, r.Contains)
	}

	if r.Not != nil {
		return !r.Not.Match(fullPath)
	}

	if len(r.And) > 0 {
		for _, sub := range r.And {
			if !sub.Match(fullPath) {
				return false
			}
		}

		return true
	}

	return false
}

// DefaultRules is the built-in rule set applied when no --rules file is
// given: it flags paths under common staging/exfiltration-adjacent
// directories and well-known persistence locations.
func DefaultRules() []Rule {
	return []Rule{
		{Contains: `\Temp\`},
		{Contains: `\AppData\Roaming\`},
		{Suffix: ".ps1"},
		{Suffix: ".exe"},
		{And: []Rule{{Contains: `\Startup\`}, {Suffix: ".lnk"}}},
	}
}

// MatchAny reports whether fullPath satisfies at least one rule.
func MatchAny(rules []Rule, fullPath string) bool {
	for _, r := range rules {
		if r.Match(fullPath) {
			return true
		}
	}

	return false
}

// LoadRules parses a JSON array of Rule from raw (the `--rules <path>`
// file format).
func LoadRules(raw []byte) ([]Rule, error) {
	var rules []Rule
	if err := json.Unmarshal(raw, &rules); err != nil {
		return nil, log.Wrap(err)
	}

	return rules, nil
}
