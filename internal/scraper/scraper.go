package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/errgroup"
)

const (
	defaultTimeout     = 15 * time.Second
	defaultConcurrency = 4
	defaultMaxPages    = 10
)

// Scraper looks up lead images for articles that arrive without one.
type Scraper struct {
	client      *http.Client
	concurrency int
	maxPages    int
}

func New(client *http.Client) *Scraper {
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	return &Scraper{
		client:      client,
		concurrency: defaultConcurrency,
		maxPages:    defaultMaxPages,
	}
}

// ExtractImage loads pageURL and returns the absolute URL of its lead image.
func (s *Scraper) ExtractImage(ctx context.Context, pageURL string) (string, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("invalid page url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "pilbarawatch/1.0")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("error loading page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP error: %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("error parsing HTML: %w", err)
	}

	img := extractImage(doc, base)
	if img == "" {
		return "", fmt.Errorf("no image found on %s", pageURL)
	}
	return img, nil
}

// extractImage tries social-card metadata first, then the first article image.
func extractImage(doc *goquery.Document, base *url.URL) string {
	metaSelectors := []string{
		`meta[property="og:image"]`,
		`meta[property="og:image:url"]`,
		`meta[name="twitter:image"]`,
		`meta[name="twitter:image:src"]`,
	}
	for _, selector := range metaSelectors {
		if content, ok := doc.Find(selector).First().Attr("content"); ok {
			if abs := absolute(base, content); abs != "" {
				return abs
			}
		}
	}

	imgSelectors := []string{
		"article img",
		"main img",
		".article-body img",
	}
	for _, selector := range imgSelectors {
		if src, ok := doc.Find(selector).First().Attr("src"); ok {
			if abs := absolute(base, src); abs != "" {
				return abs
			}
		}
	}
	return ""
}

func absolute(base *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "data:") {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	return base.ResolveReference(u).String()
}

// ResolveImages looks up images for up to maxPages URLs with bounded
// concurrency. Pages that fail are left out of the result.
func (s *Scraper) ResolveImages(ctx context.Context, urls []string) map[string]string {
	if len(urls) > s.maxPages {
		urls = urls[:s.maxPages]
	}

	results := make([]string, len(urls))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for i, u := range urls {
		g.Go(func() error {
			img, err := s.ExtractImage(gctx, u)
			if err != nil {
				slog.Debug("image lookup failed", "url", u, "error", err)
				return nil
			}
			results[i] = img
			return nil
		})
	}
	_ = g.Wait()

	found := make(map[string]string, len(urls))
	for i, img := range results {
		if img != "" {
			found[urls[i]] = img
		}
	}
	return found
}
