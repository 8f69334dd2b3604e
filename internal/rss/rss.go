package rss

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/mmcdole/gofeed"
	"gopkg.in/yaml.v3"

	"github.com/deusflow/pilbarawatch/internal/logger"
	"github.com/deusflow/pilbarawatch/internal/news"
)

// FeedsConfig is YAML config structure
// feeds:
//   - https://...
type FeedsConfig struct {
	Feeds []string `yaml:"feeds"`
}

// LoadFeeds reads RSS feeds list from YAML file
func LoadFeeds(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg FeedsConfig
	dec := yaml.NewDecoder(f)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parsing feeds config %s: %w", path, err)
	}
	return cfg.Feeds, nil
}

var ErrAllFeedsFailed = errors.New("no feed could be fetched")

// Source pulls articles from a fixed list of RSS/Atom feeds.
type Source struct {
	urls   []string
	parser *gofeed.Parser
	logger *slog.Logger
}

func NewSource(urls []string, client *http.Client) *Source {
	parser := gofeed.NewParser()
	parser.Client = client
	parser.UserAgent = "pilbarawatch/1.0"
	return &Source{
		urls:   urls,
		parser: parser,
		logger: logger.With("rss"),
	}
}

// Fetch downloads every feed. A broken feed is logged and skipped; an error
// is returned only when every feed failed.
func (s *Source) Fetch(ctx context.Context) ([]news.Article, error) {
	var articles []news.Article
	successCount := 0

	for _, url := range s.urls {
		feed, err := s.parser.ParseURLWithContext(url, ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.logger.Warn("feed fetch failed", "url", url, "error", err)
			continue
		}
		for _, item := range feed.Items {
			articles = append(articles, ToArticle(feed.Title, item))
		}
		successCount++
		s.logger.Debug("feed loaded", "url", url, "items", len(feed.Items))
	}

	if successCount == 0 && len(s.urls) > 0 {
		return nil, ErrAllFeedsFailed
	}
	return articles, nil
}

// ToArticle maps a feed item onto the search-result shape.
func ToArticle(feedTitle string, item *gofeed.Item) news.Article {
	a := news.Article{
		Title:       item.Title,
		Description: item.Description,
		URL:         item.Link,
		Source:      news.Source{Name: feedTitle},
	}
	if item.Image != nil {
		a.URLToImage = item.Image.URL
	} else {
		for _, enc := range item.Enclosures {
			if enc != nil && enc.URL != "" {
				a.URLToImage = enc.URL
				break
			}
		}
	}

	switch {
	case item.PublishedParsed != nil:
		a.PublishedAt = item.PublishedParsed.UTC().Format(time.RFC3339)
	case item.UpdatedParsed != nil:
		a.PublishedAt = item.UpdatedParsed.UTC().Format(time.RFC3339)
	}
	return a
}
