// Package classify derives human-facing labels from free text using ordered
// keyword rules. The first rule with a matching keyword wins.
package classify

import (
	"regexp"
	"strings"
	"sync"
)

// Rule maps a set of keywords to a label.
type Rule struct {
	Label    string   `yaml:"label" json:"label"`
	Keywords []string `yaml:"keywords" json:"keywords"`
}

// Ruleset is an ordered list of rules with a label used when nothing matches.
type Ruleset struct {
	Rules    []Rule `yaml:"rules" json:"rules"`
	Fallback string `yaml:"fallback" json:"fallback"`
}

// Match returns the label of the first rule that matches text, or the fallback.
func (rs Ruleset) Match(text string) string {
	text = strings.ToLower(text)
	for _, r := range rs.Rules {
		if containsLower(text, r.Keywords) {
			return r.Label
		}
	}
	return rs.Fallback
}

// Labeler groups the label families shown on feed items and posts.
type Labeler struct {
	Unions           Ruleset `yaml:"unions"`
	Companies        Ruleset `yaml:"companies"`
	Categories       Ruleset `yaml:"categories"`
	MarketCategories Ruleset `yaml:"market_categories"`
	Urgency          Ruleset `yaml:"urgency"`
}

func (l Labeler) UnionFor(text string) string          { return l.Unions.Match(text) }
func (l Labeler) CompanyFor(text string) string        { return l.Companies.Match(text) }
func (l Labeler) CategoryFor(text string) string       { return l.Categories.Match(text) }
func (l Labeler) MarketCategoryFor(text string) string { return l.MarketCategories.Match(text) }
func (l Labeler) UrgencyFor(text string) string        { return l.Urgency.Match(text) }

// ContainsAny reports whether text contains any keyword, ignoring case.
// Phrases and words longer than three characters match as substrings, shorter
// tokens only at the start of a word so "etu" does not fire on "return" while
// "law" still covers "laws" and "lawmakers".
func ContainsAny(text string, keywords []string) bool {
	return containsLower(strings.ToLower(text), keywords)
}

func containsLower(text string, keywords []string) bool {
	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" {
			continue
		}

		if strings.Contains(k, " ") || len(k) > 3 {
			if strings.Contains(text, k) {
				return true
			}
			continue
		}

		if wordPattern(k).MatchString(text) {
			return true
		}
	}
	return false
}

var patterns sync.Map // keyword -> *regexp.Regexp

func wordPattern(k string) *regexp.Regexp {
	if re, ok := patterns.Load(k); ok {
		return re.(*regexp.Regexp)
	}
	re := regexp.MustCompile(`\b` + regexp.QuoteMeta(k))
	patterns.Store(k, re)
	return re
}
