package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/deusflow/pilbarawatch/internal/aggregator"
	"github.com/deusflow/pilbarawatch/internal/classify"
	"github.com/deusflow/pilbarawatch/internal/feed"
	"github.com/deusflow/pilbarawatch/internal/market"
	"github.com/deusflow/pilbarawatch/internal/metrics"
	"github.com/deusflow/pilbarawatch/internal/news"
	"github.com/deusflow/pilbarawatch/internal/posts"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubNews struct {
	articles map[news.Topic][]news.ScoredArticle
	err      error
}

func (s *stubNews) FetchTopic(_ context.Context, topic news.Topic) ([]news.ScoredArticle, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.articles[topic], nil
}

type stubMarket struct{ snap market.Snapshot }

func (s stubMarket) Snapshot(context.Context) market.Snapshot { return s.snap }

type stubPosts struct {
	posts []posts.Post
	err   error
}

func (s stubPosts) Posts() ([]posts.Post, error) { return s.posts, s.err }

type stubBriefer struct {
	headlines []string
	err       error
}

func (s *stubBriefer) Brief(_ context.Context, _ string, headlines []string) (string, error) {
	s.headlines = headlines
	if s.err != nil {
		return "", s.err
	}
	return "Crews are voting on a new roster.", nil
}

func newHandler() *Handler {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	return &Handler{
		Articles: &stubNews{articles: map[news.Topic][]news.ScoredArticle{
			news.TopicUnion: {{
				Article:        news.Article{Title: "Pilbara union votes on roster", URL: "https://a.example/1", PublishedAt: "2024-03-10T09:00:00Z"},
				RelevanceScore: 40,
			}},
		}},
		Feed: feed.NewBuilder(classify.Labeler{}, feed.WithClock(func() time.Time { return now })),
		Market: stubMarket{market.Snapshot{
			IronOre:   market.Quote{Symbol: "IRONORE", Price: "104.50", ChangePercent: "1.25"},
			Companies: []market.Quote{{Symbol: "BHP.AX", Price: "45.10", ChangePercent: "-0.40"}},
		}},
		Posts:   stubPosts{posts: []posts.Post{{ID: "post_0", Union: "AWU", Content: "Meeting Friday"}}},
		Metrics: metrics.New(),
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func serve(t *testing.T, h *Handler, method, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	r := SetupRouter(h)
	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var body map[string]any
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("decoding %s: %v (%s)", path, err, w.Body.String())
		}
	}
	return w, body
}

func TestHealth(t *testing.T) {
	h := newHandler()

	w, body := serve(t, h, http.MethodGet, "/health")
	if w.Code != http.StatusOK || body["status"] != "healthy" {
		t.Errorf("healthy: %d %v", w.Code, body)
	}

	h.Metrics.SetError("all sources failed for topic union")
	w, body = serve(t, h, http.MethodGet, "/health")
	if w.Code != http.StatusServiceUnavailable || body["status"] != "unhealthy" || body["last_error"] == "" {
		t.Errorf("unhealthy: %d %v", w.Code, body)
	}
}

func TestMetrics(t *testing.T) {
	h := newHandler()
	h.Metrics.IncrementCacheHits()

	w, body := serve(t, h, http.MethodGet, "/metrics")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if body["cache_hits"].(float64) != 1 {
		t.Errorf("cache_hits = %v", body["cache_hits"])
	}
}

func TestNews(t *testing.T) {
	w, body := serve(t, newHandler(), http.MethodGet, "/api/news/union")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	if body["topic"] != "union" {
		t.Errorf("topic = %v", body["topic"])
	}
	items := body["items"].([]any)
	if len(items) != 1 {
		t.Fatalf("items = %v", items)
	}
	item := items[0].(map[string]any)
	if item["id"] != "union_0" || item["timestamp"] != "3 hours ago" || item["location"] != "WA" {
		t.Errorf("item = %v", item)
	}
}

func TestNewsEmptyTopicGivesPlaceholder(t *testing.T) {
	w, body := serve(t, newHandler(), http.MethodGet, "/api/news/market")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	items := body["items"].([]any)
	if len(items) != 1 || items[0].(map[string]any)["placeholder"] != true {
		t.Errorf("items = %v", items)
	}
}

func TestNewsFilters(t *testing.T) {
	h := newHandler()
	h.Feed = feed.NewBuilder(classify.Labeler{
		Unions:     classify.Ruleset{Rules: []classify.Rule{{Label: "Australian Workers Union", Keywords: []string{"awu"}}}, Fallback: "Mining Unions"},
		Categories: classify.Ruleset{Rules: []classify.Rule{{Label: "Strike Action", Keywords: []string{"strike"}}}, Fallback: "General"},
		Urgency:    classify.Ruleset{Rules: []classify.Rule{{Label: "high", Keywords: []string{"strike"}}}, Fallback: "low"},
	})
	h.Articles = &stubNews{articles: map[news.Topic][]news.ScoredArticle{
		news.TopicUnion: {
			{Article: news.Article{Title: "AWU members strike at port", URL: "https://a.example/1"}, RelevanceScore: 50},
			{Article: news.Article{Title: "Pilbara roster talks continue", URL: "https://a.example/2"}, RelevanceScore: 30},
		},
	}}

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"none", "", []string{"union_0", "union_1"}},
		{"all", "?union=all&category=all", []string{"union_0", "union_1"}},
		{"union", "?union=Australian+Workers+Union", []string{"union_0"}},
		{"category", "?category=General", []string{"union_1"}},
		{"urgency", "?urgency=high", []string{"union_0"}},
		{"combined", "?union=Mining+Unions&urgency=low", []string{"union_1"}},
		{"no match keeps placeholder", "?company=Rio+Tinto", []string{"union_placeholder"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, body := serve(t, h, http.MethodGet, "/api/news/union"+tt.query)
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d: %s", w.Code, w.Body.String())
			}
			items := body["items"].([]any)
			if len(items) != len(tt.want) {
				t.Fatalf("items = %v, want %v", items, tt.want)
			}
			for i, it := range items {
				if id := it.(map[string]any)["id"]; id != tt.want[i] {
					t.Errorf("item %d = %v, want %s", i, id, tt.want[i])
				}
			}
		})
	}
}

func TestNewsErrors(t *testing.T) {
	tests := []struct {
		name string
		path string
		err  error
		want int
	}{
		{"unknown topic in path", "/api/news/weather", nil, http.StatusNotFound},
		{"unconfigured topic", "/api/news/union", aggregator.ErrUnknownTopic, http.StatusNotFound},
		{"cancelled", "/api/news/union", context.Canceled, http.StatusServiceUnavailable},
		{"other", "/api/news/union", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHandler()
			h.Articles = &stubNews{err: tt.err}
			w, _ := serve(t, h, http.MethodGet, tt.path)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestMarket(t *testing.T) {
	w, body := serve(t, newHandler(), http.MethodGet, "/api/market")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	iron := body["iron_ore"].(map[string]any)
	if iron["price"] != "104.50" {
		t.Errorf("iron_ore = %v", iron)
	}
	if len(body["companies"].([]any)) != 1 {
		t.Errorf("companies = %v", body["companies"])
	}
}

func TestPosts(t *testing.T) {
	w, body := serve(t, newHandler(), http.MethodGet, "/api/posts")
	if w.Code != http.StatusOK || len(body["posts"].([]any)) != 1 {
		t.Errorf("posts: %d %v", w.Code, body)
	}

	h := newHandler()
	h.Posts = stubPosts{err: errors.New("missing file")}
	w, body = serve(t, h, http.MethodGet, "/api/posts")
	if w.Code != http.StatusOK || len(body["posts"].([]any)) != 0 {
		t.Errorf("missing posts file: %d %v", w.Code, body)
	}
}

func TestBriefing(t *testing.T) {
	h := newHandler()
	w, _ := serve(t, h, http.MethodGet, "/api/briefing/union")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("disabled briefing status = %d", w.Code)
	}

	b := &stubBriefer{}
	h.Briefer = b
	w, body := serve(t, h, http.MethodGet, "/api/briefing/union")
	if w.Code != http.StatusOK || body["briefing"] != "Crews are voting on a new roster." {
		t.Errorf("briefing: %d %v", w.Code, body)
	}
	if len(b.headlines) != 1 || b.headlines[0] != "Pilbara union votes on roster" {
		t.Errorf("headlines = %v", b.headlines)
	}

	h.Briefer = &stubBriefer{err: errors.New("quota")}
	w, _ = serve(t, h, http.MethodGet, "/api/briefing/union")
	if w.Code != http.StatusBadGateway {
		t.Errorf("failed briefing status = %d", w.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	w, _ := serve(t, newHandler(), http.MethodOptions, "/api/market")
	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("missing CORS header")
	}
}

func TestRequestID(t *testing.T) {
	r := SetupRouter(newHandler())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if len(w.Header().Get(RequestIDHeader)) != 36 {
		t.Errorf("generated id = %q", w.Header().Get(RequestIDHeader))
	}

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got := w.Header().Get(RequestIDHeader); got != "abc-123" {
		t.Errorf("echoed id = %q", got)
	}
}
