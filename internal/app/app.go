// Package app wires configuration, vocabulary and the pipeline components
// into a running service.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/deusflow/pilbarawatch/internal/aggregator"
	"github.com/deusflow/pilbarawatch/internal/api"
	"github.com/deusflow/pilbarawatch/internal/cache"
	"github.com/deusflow/pilbarawatch/internal/config"
	"github.com/deusflow/pilbarawatch/internal/feed"
	"github.com/deusflow/pilbarawatch/internal/gemini"
	"github.com/deusflow/pilbarawatch/internal/logger"
	"github.com/deusflow/pilbarawatch/internal/market"
	"github.com/deusflow/pilbarawatch/internal/metrics"
	"github.com/deusflow/pilbarawatch/internal/news"
	"github.com/deusflow/pilbarawatch/internal/newsapi"
	"github.com/deusflow/pilbarawatch/internal/posts"
	"github.com/deusflow/pilbarawatch/internal/ratelimit"
	"github.com/deusflow/pilbarawatch/internal/retry"
	"github.com/deusflow/pilbarawatch/internal/rss"
	"github.com/deusflow/pilbarawatch/internal/scraper"
	"github.com/deusflow/pilbarawatch/internal/transport"
	"github.com/deusflow/pilbarawatch/internal/vocab"
)

const shutdownTimeout = 10 * time.Second

type Service struct {
	cfg        *config.Config
	vocab      *vocab.Vocabulary
	aggregator *aggregator.Aggregator
	feed       *feed.Builder
	market     *market.Fetcher
	limiter    *ratelimit.Limiter
	briefer    *gemini.Client
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// New builds every component from cfg. Optional parts (RSS feeds, thumbnail
// lookup, briefings) are enabled only when configured.
func New(ctx context.Context, cfg *config.Config) (*Service, error) {
	v, err := vocab.Load(cfg.VocabularyPath)
	if err != nil {
		return nil, err
	}

	m := metrics.Global
	log := logger.With("app")
	client := &http.Client{Timeout: cfg.RequestTimeout}

	t, err := transport.New(cfg.Transport, cfg.ProxyURL, client, retry.Policy{
		MaxAttempts: cfg.RetryAttempts,
		Delay:       cfg.RetryDelay,
		Backoff:     true,
	})
	if err != nil {
		return nil, err
	}

	limiter := ratelimit.New(cfg.QueryDelay, cfg.DailyRequestBudget)
	opts := []aggregator.Option{
		aggregator.WithCache(cache.New[[]news.ScoredArticle](cfg.CacheTTL)),
		aggregator.WithLimiter(limiter),
		aggregator.WithMetrics(m),
	}
	if cfg.FeedsPath != "" {
		urls, err := rss.LoadFeeds(cfg.FeedsPath)
		if err != nil {
			return nil, fmt.Errorf("loading feeds: %w", err)
		}
		opts = append(opts, aggregator.WithArticleSource(rss.NewSource(urls, client)))
		log.Info("RSS feeds enabled", "feeds", len(urls))
	}

	var feedOpts []feed.Option
	if cfg.EnrichThumbnails {
		feedOpts = append(feedOpts, feed.WithImageResolver(scraper.New(client)))
	}

	s := &Service{
		cfg:        cfg,
		vocab:      v,
		aggregator: aggregator.New(newsapi.New(t, cfg.NewsAPIURL, cfg.NewsAPIKey), v.Topics, opts...),
		feed:       feed.NewBuilder(v.Labels, feedOpts...),
		market:     market.NewFetcher(t, cfg.QuotesAPIURL, market.WithMetrics(m)),
		limiter:    limiter,
		metrics:    m,
		logger:     log,
	}

	if cfg.BriefingEnabled() {
		s.briefer, err = gemini.NewClient(ctx, cfg.GeminiAPIKey)
		if err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Service) Close() {
	if s.briefer != nil {
		s.briefer.Close()
	}
}

// Items returns the presentation items for topic.
func (s *Service) Items(ctx context.Context, topic news.Topic) ([]feed.Item, error) {
	articles, err := s.aggregator.FetchTopic(ctx, topic)
	if err != nil {
		return nil, err
	}
	return s.feed.Build(ctx, topic, articles), nil
}

// Snapshot returns the iron ore price and live watchlist quotes.
func (s *Service) Snapshot(ctx context.Context) market.Snapshot {
	return s.market.Snapshot(ctx, s.vocab.Watchlist, s.cfg.IronOrePath)
}

// Posts reads and labels the curated union posts file.
func (s *Service) Posts() ([]posts.Post, error) {
	return posts.Load(s.cfg.PostsPath, s.vocab.Labels)
}

// Refresh fetches every topic, filling the cache.
func (s *Service) Refresh(ctx context.Context) error {
	results, err := s.aggregator.FetchAll(ctx)
	if err != nil {
		return err
	}
	for topic, articles := range results {
		s.logger.Info("refreshed", "topic", topic, "articles", len(articles))
	}
	s.logger.Debug("request budget", "stats", s.limiter.GetStats())
	return nil
}

func (s *Service) Router() *gin.Engine {
	h := &api.Handler{
		Articles: s.aggregator,
		Feed:     s.feed,
		Market:   s,
		Posts:    s,
		Metrics:  s.metrics,
		Logger:   logger.With("api"),
	}
	if s.briefer != nil {
		h.Briefer = s.briefer
	}
	return api.SetupRouter(h)
}

// Run serves the API and refreshes the cache on a timer until ctx is done,
// then shuts the server down.
func (s *Service) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", s.cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	go s.refreshLoop(ctx)

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (s *Service) refreshLoop(ctx context.Context) {
	if err := s.Refresh(ctx); err != nil && ctx.Err() == nil {
		s.logger.Error("initial refresh failed", "error", err)
	}
	if s.cfg.RefreshInterval <= 0 {
		return
	}

	ticker := time.NewTicker(s.cfg.RefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Refresh(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error("refresh failed", "error", err)
			}
		}
	}
}
