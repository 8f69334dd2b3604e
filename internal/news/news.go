package news

import (
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/deusflow/pilbarawatch/internal/classify"
)

// Topic selects the query variants, term lists and result limit of a feed.
type Topic string

const (
	TopicUnion  Topic = "union"
	TopicMarket Topic = "market"
)

// Topics lists every supported topic in display order.
var Topics = []Topic{TopicUnion, TopicMarket}

func ParseTopic(s string) (Topic, error) {
	for _, t := range Topics {
		if strings.EqualFold(s, string(t)) {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown topic %q", s)
}

type Category string

const (
	CategoryUnionActivity Category = "Union Activity"
	CategoryMarketNews    Category = "Market News"
)

type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

const (
	MinTitleLength       = 10
	MinDescriptionLength = 20
)

// Source is the publisher block of a search result.
type Source struct {
	Name string `json:"name"`
}

// Article is a search result as received from the news API.
type Article struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	URLToImage  string `json:"urlToImage,omitempty"`
	PublishedAt string `json:"publishedAt"`
	Source      Source `json:"source"`
}

// Text returns the title and description joined for keyword matching.
func (a Article) Text() string {
	return a.Title + " " + a.Description
}

// ScoredArticle is an admissible article annotated by the scoring stage.
type ScoredArticle struct {
	Article
	Category       Category `json:"category"`
	Priority       Priority `json:"priority"`
	RelevanceScore int      `json:"relevanceScore"`
	SearchQuery    string   `json:"searchQuery"`
}

// Profile holds the tuning data for one topic.
type Profile struct {
	Category         Category         `yaml:"category"`
	Queries          []string         `yaml:"queries"`
	WindowDays       int              `yaml:"window_days"`
	PageSize         int              `yaml:"page_size"`
	SortBy           string           `yaml:"sort_by"`
	Limit            int              `yaml:"limit"`
	RegionalSuffix   string           `yaml:"regional_suffix"`
	RequiredTerms    []string         `yaml:"required_terms"`
	OffTopicTerms    []string         `yaml:"off_topic_terms"`
	BlockedDomains   []string         `yaml:"blocked_domains"`
	HighValueTerms   []string         `yaml:"high_value_terms"`
	MediumValueTerms []string         `yaml:"medium_value_terms"`
	Priority         classify.Ruleset `yaml:"priority"`
}

// Hostname returns the lowercase host of rawURL, or "" when it does not parse.
func Hostname(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// IsAdmissible reports whether an article passes the quality gate for a topic.
func IsAdmissible(a Article, p *Profile) bool {
	if utf8.RuneCountInString(a.Title) < MinTitleLength {
		return false
	}
	if utf8.RuneCountInString(a.Description) < MinDescriptionLength {
		return false
	}

	host := Hostname(a.URL)
	if host != "" && containsAnySubstring(host, p.BlockedDomains) {
		return false
	}

	text := strings.ToLower(a.Text())
	if containsAnySubstring(text, p.OffTopicTerms) {
		return false
	}
	return containsAnySubstring(text, p.RequiredTerms)
}

// Score ranks an article by term hits and recency. now is injected so the
// result is deterministic.
func Score(a Article, p *Profile, now time.Time) int {
	title := strings.ToLower(a.Title)
	desc := strings.ToLower(a.Description)
	score := 0

	for _, term := range p.HighValueTerms {
		term = strings.ToLower(term)
		if strings.Contains(title, term) {
			score += 20
		}
		if strings.Contains(desc, term) {
			score += 8
		}
	}
	for _, term := range p.MediumValueTerms {
		term = strings.ToLower(term)
		if strings.Contains(title, term) {
			score += 10
		}
		if strings.Contains(desc, term) {
			score += 4
		}
	}

	score += recencyBonus(a.PublishedAt, now)

	if p.RegionalSuffix != "" && strings.HasSuffix(Hostname(a.URL), strings.ToLower(p.RegionalSuffix)) {
		score += 25
	}
	return score
}

func recencyBonus(publishedAt string, now time.Time) int {
	published, err := time.Parse(time.RFC3339, publishedAt)
	if err != nil {
		return 0
	}
	days := now.Sub(published).Hours() / 24
	switch {
	case days <= 1:
		return 15
	case days <= 3:
		return 10
	case days <= 7:
		return 5
	default:
		return 0
	}
}

// PriorityFor applies the topic's ordered priority rules.
func PriorityFor(a Article, p *Profile) Priority {
	label := p.Priority.Match(a.Text())
	if label == "" {
		return PriorityLow
	}
	return Priority(label)
}

// Annotate builds the scored form of an admissible article.
func Annotate(a Article, p *Profile, query string, now time.Time) ScoredArticle {
	return ScoredArticle{
		Article:        a,
		Category:       p.Category,
		Priority:       PriorityFor(a, p),
		RelevanceScore: Score(a, p, now),
		SearchQuery:    query,
	}
}

var (
	nonWord    = regexp.MustCompile(`[^\w\s]`)
	whitespace = regexp.MustCompile(`\s+`)
)

// NormalizeTitle lowercases, strips punctuation and collapses whitespace.
func NormalizeTitle(title string) string {
	t := strings.ToLower(title)
	t = nonWord.ReplaceAllString(t, "")
	t = whitespace.ReplaceAllString(t, " ")
	return strings.TrimSpace(t)
}

// Dedupe drops repeated URLs and repeated normalized titles, keeping the
// first occurrence of each story.
func Dedupe(articles []ScoredArticle) []ScoredArticle {
	seenURLs := make(map[string]struct{}, len(articles))
	seenTitles := make(map[string]struct{}, len(articles))
	out := make([]ScoredArticle, 0, len(articles))

	for _, a := range articles {
		if _, dup := seenURLs[a.URL]; dup {
			continue
		}
		seenURLs[a.URL] = struct{}{}

		key := NormalizeTitle(a.Title)
		if _, dup := seenTitles[key]; dup {
			continue
		}
		seenTitles[key] = struct{}{}

		out = append(out, a)
	}
	return out
}

// SortByScore orders articles by descending score; ties keep fetch order.
func SortByScore(articles []ScoredArticle) {
	sort.SliceStable(articles, func(i, j int) bool {
		return articles[i].RelevanceScore > articles[j].RelevanceScore
	})
}

func containsAnySubstring(text string, terms []string) bool {
	for _, term := range terms {
		term = strings.ToLower(strings.TrimSpace(term))
		if term != "" && strings.Contains(text, term) {
			return true
		}
	}
	return false
}
