// Package newsapi builds and runs keyword searches against the news
// search endpoint.
package newsapi

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/deusflow/pilbarawatch/internal/news"
	"github.com/deusflow/pilbarawatch/internal/transport"
)

const (
	DefaultBaseURL  = "https://newsapi.org/v2/everything"
	DefaultLanguage = "en"
	DefaultSortBy   = "relevancy"
	DefaultPageSize = 8
)

var ErrAPIStatus = errors.New("news API error")

// Query is one search request.
type Query struct {
	Q        string
	From     time.Time
	SortBy   string
	PageSize int
}

// Response is the search payload.
type Response struct {
	Status       string         `json:"status"`
	TotalResults int            `json:"totalResults"`
	Articles     []news.Article `json:"articles"`
	Code         string         `json:"code,omitempty"`
	Message      string         `json:"message,omitempty"`
}

type Client struct {
	transport transport.Transport
	baseURL   string
	apiKey    string
	language  string
}

func New(t transport.Transport, baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		transport: t,
		baseURL:   baseURL,
		apiKey:    apiKey,
		language:  DefaultLanguage,
	}
}

// URL renders the request URL for q.
func (c *Client) URL(q Query) string {
	sortBy := q.SortBy
	if sortBy == "" {
		sortBy = DefaultSortBy
	}
	pageSize := q.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	params := url.Values{}
	params.Set("q", q.Q)
	params.Set("language", c.language)
	params.Set("sortBy", sortBy)
	params.Set("pageSize", strconv.Itoa(pageSize))
	if !q.From.IsZero() {
		params.Set("from", q.From.Format("2006-01-02"))
	}
	params.Set("apiKey", c.apiKey)

	return c.baseURL + "?" + params.Encode()
}

// Search runs q and returns the raw articles.
func (c *Client) Search(ctx context.Context, q Query) ([]news.Article, error) {
	var resp Response
	if err := c.transport.Fetch(ctx, c.URL(q), &resp); err != nil {
		return nil, err
	}
	if resp.Status != "ok" {
		return nil, fmt.Errorf("%w: status=%q code=%q %s", ErrAPIStatus, resp.Status, resp.Code, resp.Message)
	}
	return resp.Articles, nil
}

// WindowStart returns the "from" date for a search covering the last days.
func WindowStart(now time.Time, days int) time.Time {
	return now.AddDate(0, 0, -days)
}
