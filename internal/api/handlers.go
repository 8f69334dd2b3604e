package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/deusflow/pilbarawatch/internal/aggregator"
	"github.com/deusflow/pilbarawatch/internal/feed"
	"github.com/deusflow/pilbarawatch/internal/market"
	"github.com/deusflow/pilbarawatch/internal/metrics"
	"github.com/deusflow/pilbarawatch/internal/news"
	"github.com/deusflow/pilbarawatch/internal/posts"
)

// NewsSource returns the ranked articles for a topic.
type NewsSource interface {
	FetchTopic(ctx context.Context, topic news.Topic) ([]news.ScoredArticle, error)
}

// MarketSource returns a live market snapshot.
type MarketSource interface {
	Snapshot(ctx context.Context) market.Snapshot
}

// PostSource returns the curated union posts.
type PostSource interface {
	Posts() ([]posts.Post, error)
}

// Briefer summarises a list of headlines.
type Briefer interface {
	Brief(ctx context.Context, topic string, headlines []string) (string, error)
}

// Handler serves the dashboard API. Briefer may be nil.
type Handler struct {
	Articles NewsSource
	Feed     *feed.Builder
	Market   MarketSource
	Posts    PostSource
	Briefer  Briefer
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
}

type HealthResponse struct {
	Status    string `json:"status"`
	LastRun   string `json:"last_run,omitempty"`
	LastError string `json:"last_error,omitempty"`
}

// Health reports 503 while the latest fetch of any topic failed completely.
func (h *Handler) Health(c *gin.Context) {
	stats := h.Metrics.GetStats()
	resp := HealthResponse{
		Status:    "healthy",
		LastRun:   stats["last_run_time"].(string),
		LastError: stats["last_error"].(string),
	}

	statusCode := http.StatusOK
	if !h.Metrics.Healthy() {
		resp.Status = "unhealthy"
		statusCode = http.StatusServiceUnavailable
	}
	c.JSON(statusCode, resp)
}

func (h *Handler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.Metrics.GetStats())
}

func (h *Handler) News(c *gin.Context) {
	topic, ok := h.topic(c)
	if !ok {
		return
	}

	var filter feed.Filter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	articles, err := h.Articles.FetchTopic(c.Request.Context(), topic)
	if err != nil {
		h.fail(c, err)
		return
	}

	items := h.Feed.Build(c.Request.Context(), topic, articles)
	c.JSON(http.StatusOK, gin.H{
		"topic": topic,
		"items": h.Feed.Apply(topic, items, filter),
	})
}

func (h *Handler) MarketSnapshot(c *gin.Context) {
	c.JSON(http.StatusOK, h.Market.Snapshot(c.Request.Context()))
}

func (h *Handler) UnionPosts(c *gin.Context) {
	list, err := h.Posts.Posts()
	if err != nil {
		h.Logger.Warn("union posts unavailable", "error", err)
		list = nil
	}
	if list == nil {
		list = []posts.Post{}
	}
	c.JSON(http.StatusOK, gin.H{"posts": list})
}

func (h *Handler) Briefing(c *gin.Context) {
	if h.Briefer == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "briefings are not configured"})
		return
	}
	topic, ok := h.topic(c)
	if !ok {
		return
	}

	articles, err := h.Articles.FetchTopic(c.Request.Context(), topic)
	if err != nil {
		h.fail(c, err)
		return
	}
	if len(articles) == 0 {
		c.JSON(http.StatusOK, gin.H{"topic": topic, "briefing": ""})
		return
	}

	headlines := make([]string, 0, len(articles))
	for _, a := range articles {
		headlines = append(headlines, a.Title)
	}
	briefing, err := h.Briefer.Brief(c.Request.Context(), string(topic), headlines)
	if err != nil {
		h.Logger.Error("briefing failed", "topic", topic, "error", err)
		_ = c.Error(err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "briefing could not be generated"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"topic": topic, "briefing": briefing})
}

func (h *Handler) topic(c *gin.Context) (news.Topic, bool) {
	topic, err := news.ParseTopic(c.Param("topic"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return "", false
	}
	return topic, true
}

func (h *Handler) fail(c *gin.Context, err error) {
	_ = c.Error(err)
	switch {
	case errors.Is(err, aggregator.ErrUnknownTopic):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "request cancelled"})
	default:
		h.Logger.Error("request failed", "path", c.Request.URL.Path, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
