// Package aggregator runs the per-topic search, filter, score and dedupe
// pipeline and keeps the results in a time-boxed cache.
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/deusflow/pilbarawatch/internal/cache"
	"github.com/deusflow/pilbarawatch/internal/logger"
	"github.com/deusflow/pilbarawatch/internal/metrics"
	"github.com/deusflow/pilbarawatch/internal/news"
	"github.com/deusflow/pilbarawatch/internal/newsapi"
	"github.com/deusflow/pilbarawatch/internal/ratelimit"
)

var ErrUnknownTopic = errors.New("unknown topic")

// DefaultQueryDelay is the spacing between successive search requests.
const DefaultQueryDelay = 300 * time.Millisecond

const feedKey = "feeds"

// Searcher runs one keyword search.
type Searcher interface {
	Search(ctx context.Context, q newsapi.Query) ([]news.Article, error)
}

// ArticleSource supplies extra articles, such as RSS feeds, that go through
// the same filter and scoring as search results.
type ArticleSource interface {
	Fetch(ctx context.Context) ([]news.Article, error)
}

type Aggregator struct {
	searcher Searcher
	profiles map[news.Topic]*news.Profile
	cache    *cache.Cache[[]news.ScoredArticle]
	limiter  *ratelimit.Limiter
	extra    ArticleSource
	metrics  *metrics.Metrics

	// Feed articles are shared by every topic, so one download serves a
	// whole refresh cycle.
	feedCache *cache.Cache[[]news.Article]
	feedGroup singleflight.Group

	logger   *slog.Logger
	tracer   trace.Tracer
	now      func() time.Time
}

type Option func(*Aggregator)

func WithCache(c *cache.Cache[[]news.ScoredArticle]) Option {
	return func(a *Aggregator) { a.cache = c }
}

func WithLimiter(l *ratelimit.Limiter) Option {
	return func(a *Aggregator) { a.limiter = l }
}

func WithArticleSource(s ArticleSource) Option {
	return func(a *Aggregator) { a.extra = s }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Aggregator) { a.metrics = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(a *Aggregator) { a.logger = l }
}

// WithClock sets the time used for search windows and scoring.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}

func New(s Searcher, profiles map[news.Topic]*news.Profile, opts ...Option) *Aggregator {
	a := &Aggregator{
		searcher: s,
		profiles: profiles,
		metrics:  metrics.Global,
		logger:   logger.With("aggregator"),
		tracer:   otel.Tracer("aggregator"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.cache == nil {
		a.cache = cache.New[[]news.ScoredArticle](cache.DefaultTTL)
	}
	if a.limiter == nil {
		a.limiter = ratelimit.New(DefaultQueryDelay, 0)
	}
	a.feedCache = cache.New[[]news.Article](a.cache.TTL())
	return a
}

// Topics returns the topics this aggregator has profiles for, in display order.
func (a *Aggregator) Topics() []news.Topic {
	var topics []news.Topic
	for _, t := range news.Topics {
		if _, ok := a.profiles[t]; ok {
			topics = append(topics, t)
		}
	}
	return topics
}

// FetchTopic returns at most the profile limit of scored articles for topic,
// best first. A fresh cached result is returned without any network call.
// Failed query variants are logged and skipped; when every source fails the
// result is empty and nothing is cached. Only context cancellation and an
// unknown topic produce an error.
func (a *Aggregator) FetchTopic(ctx context.Context, topic news.Topic) ([]news.ScoredArticle, error) {
	profile, ok := a.profiles[topic]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTopic, topic)
	}

	key := string(topic)
	if cached, ok := a.cache.Get(key); ok {
		a.metrics.IncrementCacheHits()
		a.logger.Debug("cache hit", "topic", topic, "articles", len(cached))
		return cached, nil
	}
	a.metrics.IncrementCacheMisses()

	ctx, span := a.tracer.Start(ctx, "aggregator.fetch_topic",
		trace.WithAttributes(attribute.String("topic", key)))
	defer span.End()

	start := time.Now()
	now := a.now()
	from := newsapi.WindowStart(now, profile.WindowDays)

	var collected []news.ScoredArticle
	succeeded := 0

	for _, q := range profile.Queries {
		if err := a.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			a.metrics.IncrementQueriesFailed()
			a.logger.Warn("query skipped", "topic", topic, "query", q, "error", err)
			continue
		}

		a.metrics.IncrementQueriesIssued()
		articles, err := a.searcher.Search(ctx, newsapi.Query{
			Q:        q,
			From:     from,
			SortBy:   profile.SortBy,
			PageSize: profile.PageSize,
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			a.metrics.IncrementQueriesFailed()
			a.logger.Warn("query failed", "topic", topic, "query", q, "error", err)
			continue
		}
		succeeded++
		collected = append(collected, a.admit(articles, profile, q, now)...)
	}

	if a.extra != nil {
		articles, err := a.fetchFeeds(ctx)
		switch {
		case ctx.Err() != nil:
			return nil, ctx.Err()
		case err != nil:
			a.logger.Warn("feed source failed", "topic", topic, "error", err)
		default:
			succeeded++
			collected = append(collected, a.admit(articles, profile, "rss", now)...)
		}
	}

	result := news.Dedupe(collected)
	a.metrics.AddDuplicatesFiltered(len(collected) - len(result))
	news.SortByScore(result)
	if len(result) > profile.Limit {
		result = result[:profile.Limit]
	}

	a.metrics.RecordProcessingTime(time.Since(start))
	span.SetAttributes(
		attribute.Int("queries", len(profile.Queries)),
		attribute.Int("sources_ok", succeeded),
		attribute.Int("articles", len(result)),
	)

	if succeeded == 0 {
		msg := fmt.Sprintf("all sources failed for topic %s", topic)
		a.metrics.SetSourceError(key, msg)
		span.SetStatus(codes.Error, msg)
		a.logger.Error("no live articles", "topic", topic)
		return result, nil
	}

	a.cache.Set(key, result)
	a.metrics.SetSourceOK(key)
	a.logger.Info("topic fetched", "topic", topic, "articles", len(result), "sources_ok", succeeded)
	return result, nil
}

// fetchFeeds returns the extra source's articles, downloading them at most
// once per cache lifetime even when topics ask concurrently.
func (a *Aggregator) fetchFeeds(ctx context.Context) ([]news.Article, error) {
	if cached, ok := a.feedCache.Get(feedKey); ok {
		return cached, nil
	}
	v, err, _ := a.feedGroup.Do(feedKey, func() (any, error) {
		if cached, ok := a.feedCache.Get(feedKey); ok {
			return cached, nil
		}
		articles, err := a.extra.Fetch(ctx)
		if err != nil {
			return nil, err
		}
		a.feedCache.Set(feedKey, articles)
		return articles, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]news.Article), nil
}

func (a *Aggregator) admit(articles []news.Article, p *news.Profile, query string, now time.Time) []news.ScoredArticle {
	var out []news.ScoredArticle
	for _, art := range articles {
		if !news.IsAdmissible(art, p) {
			continue
		}
		out = append(out, news.Annotate(art, p, query, now))
	}
	a.metrics.RecordFiltered(len(out), len(articles)-len(out))
	return out
}

// FetchAll fetches every configured topic concurrently.
func (a *Aggregator) FetchAll(ctx context.Context) (map[news.Topic][]news.ScoredArticle, error) {
	topics := a.Topics()
	results := make([][]news.ScoredArticle, len(topics))

	g, gctx := errgroup.WithContext(ctx)
	for i, topic := range topics {
		g.Go(func() error {
			articles, err := a.FetchTopic(gctx, topic)
			if err != nil {
				return fmt.Errorf("fetching %s: %w", topic, err)
			}
			results[i] = articles
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[news.Topic][]news.ScoredArticle, len(topics))
	for i, topic := range topics {
		out[topic] = results[i]
	}
	return out, nil
}

// CacheAge reports how long ago topic was last fetched successfully.
func (a *Aggregator) CacheAge(topic news.Topic) (time.Duration, bool) {
	return a.cache.Age(string(topic))
}
