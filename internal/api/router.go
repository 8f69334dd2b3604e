// Package api exposes the aggregated feeds to the dashboard over HTTP.
package api

import (
	"github.com/gin-gonic/gin"

	"github.com/deusflow/pilbarawatch/internal/logger"
	"github.com/deusflow/pilbarawatch/internal/metrics"
)

func SetupRouter(h *Handler) *gin.Engine {
	if h.Metrics == nil {
		h.Metrics = metrics.Global
	}
	if h.Logger == nil {
		h.Logger = logger.With("api")
	}

	r := gin.New()
	r.Use(gin.Recovery(), RequestID(), RequestTiming(), corsMiddleware())

	r.GET("/health", h.Health)
	r.GET("/metrics", h.Stats)

	api := r.Group("/api")
	{
		api.GET("/news/:topic", h.News)
		api.GET("/market", h.MarketSnapshot)
		api.GET("/posts", h.UnionPosts)
		api.GET("/briefing/:topic", h.Briefing)
	}

	return r
}
