// Package feed turns scored articles into the items shown on the dashboard.
package feed

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/deusflow/pilbarawatch/internal/classify"
	"github.com/deusflow/pilbarawatch/internal/news"
)

const (
	NoSummary     = "No summary available."
	UnknownSource = "Unknown"
	UnknownTime   = "Date unavailable"
	DefaultRegion = "WA"
)

var placeholderThumbnails = map[news.Topic]string{
	news.TopicUnion:  "https://images.unsplash.com/photo-1558618666-fcd25c85cd64?w=300&h=200&fit=crop",
	news.TopicMarket: "https://images.unsplash.com/photo-1578662996442-48f60103fc96?w=300&h=200&fit=crop",
}

// Thumbnail returns the fallback image for topic.
func Thumbnail(topic news.Topic) string {
	return placeholderThumbnails[topic]
}

// Item is a presentation-ready article.
type Item struct {
	ID             string        `json:"id"`
	Title          string        `json:"title"`
	Summary        string        `json:"summary"`
	URL            string        `json:"url,omitempty"`
	Source         string        `json:"source"`
	Union          string        `json:"union,omitempty"`
	Company        string        `json:"company,omitempty"`
	Category       string        `json:"category"`
	Urgency        string        `json:"urgency"`
	Priority       news.Priority `json:"priority,omitempty"`
	Timestamp      string        `json:"timestamp"`
	PublishedAt    string        `json:"publishedAt,omitempty"`
	Location       string        `json:"location,omitempty"`
	Thumbnail      string        `json:"thumbnail"`
	RelevanceScore int           `json:"relevanceScore"`
	Placeholder    bool          `json:"placeholder,omitempty"`
}

// ImageResolver finds lead images for article URLs.
type ImageResolver interface {
	ResolveImages(ctx context.Context, urls []string) map[string]string
}

type Builder struct {
	labels classify.Labeler
	images ImageResolver
	now    func() time.Time
}

type Option func(*Builder)

func WithImageResolver(r ImageResolver) Option {
	return func(b *Builder) { b.images = r }
}

func WithClock(now func() time.Time) Option {
	return func(b *Builder) { b.now = now }
}

func NewBuilder(labels classify.Labeler, opts ...Option) *Builder {
	b := &Builder{labels: labels, now: time.Now}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build labels every article for topic. An empty input yields the single
// placeholder item.
func (b *Builder) Build(ctx context.Context, topic news.Topic, articles []news.ScoredArticle) []Item {
	if len(articles) == 0 {
		return []Item{b.Placeholder(topic)}
	}

	resolved := b.resolveMissingImages(ctx, articles)
	now := b.now()

	items := make([]Item, 0, len(articles))
	for i, a := range articles {
		text := a.Text()
		item := Item{
			ID:             fmt.Sprintf("%s_%d", topic, i),
			Title:          a.Title,
			Summary:        a.Description,
			URL:            a.URL,
			Source:         a.Source.Name,
			Urgency:        b.labels.UrgencyFor(text),
			Priority:       a.Priority,
			Timestamp:      RelativeTime(a.PublishedAt, now),
			PublishedAt:    a.PublishedAt,
			Thumbnail:      a.URLToImage,
			RelevanceScore: a.RelevanceScore,
		}
		if item.Summary == "" {
			item.Summary = NoSummary
		}
		if item.Source == "" {
			item.Source = UnknownSource
		}
		if item.Thumbnail == "" {
			item.Thumbnail = resolved[a.URL]
		}
		if item.Thumbnail == "" {
			item.Thumbnail = Thumbnail(topic)
		}

		switch topic {
		case news.TopicUnion:
			item.Union = b.labels.UnionFor(text)
			item.Category = b.labels.CategoryFor(text)
			item.Location = DefaultRegion
		case news.TopicMarket:
			item.Company = b.labels.CompanyFor(text)
			item.Category = b.labels.MarketCategoryFor(text)
		}
		items = append(items, item)
	}
	return items
}

func (b *Builder) resolveMissingImages(ctx context.Context, articles []news.ScoredArticle) map[string]string {
	if b.images == nil {
		return nil
	}
	var missing []string
	for _, a := range articles {
		if a.URLToImage == "" && a.URL != "" {
			missing = append(missing, a.URL)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return b.images.ResolveImages(ctx, missing)
}

// Placeholder is shown when a topic has no live articles.
func (b *Builder) Placeholder(topic news.Topic) Item {
	item := Item{
		ID:          fmt.Sprintf("%s_placeholder", topic),
		Title:       "No live updates available",
		Summary:     "Live news could not be loaded right now. Check back after the next refresh.",
		Source:      "Pilbara Watch",
		Category:    "General",
		Urgency:     "low",
		Timestamp:   RelativeTime(b.now().Format(time.RFC3339), b.now()),
		Thumbnail:   Thumbnail(topic),
		Placeholder: true,
	}
	if topic == news.TopicUnion {
		item.Union = b.labels.Unions.Fallback
		item.Location = DefaultRegion
	} else {
		item.Company = b.labels.Companies.Fallback
	}
	return item
}

// RelativeTime renders publishedAt as "N hours ago" style text.
func RelativeTime(publishedAt string, now time.Time) string {
	published, err := time.Parse(time.RFC3339, publishedAt)
	if err != nil {
		return UnknownTime
	}

	hours := int(math.Floor(now.Sub(published).Hours()))
	switch {
	case hours < 1:
		return "Less than 1 hour ago"
	case hours == 1:
		return "1 hour ago"
	case hours < 24:
		return fmt.Sprintf("%d hours ago", hours)
	}

	days := hours / 24
	if days == 1 {
		return "1 day ago"
	}
	return fmt.Sprintf("%d days ago", days)
}
