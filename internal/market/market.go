package market

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/deusflow/pilbarawatch/internal/metrics"
	"github.com/deusflow/pilbarawatch/internal/transport"
)

const (
	DefaultQuotesURL = "https://query1.finance.yahoo.com/v8/finance/chart/"

	PriceError      = "Error"
	ZeroChange      = "0.00"
	SourceLive      = "Yahoo Finance (Live)"
	SourceAPIError  = "API Error"
	SourceFileError = "File Error"
)

// Symbol is a ticker on the watchlist.
type Symbol struct {
	Symbol string `yaml:"symbol" json:"symbol"`
	Name   string `yaml:"name" json:"name"`
}

// Quote is a point-in-time price. Price is a two-decimal string or the
// "Error" sentinel.
type Quote struct {
	Symbol        string `json:"symbol"`
	Name          string `json:"name"`
	Price         string `json:"price"`
	ChangePercent string `json:"changePercent"`
	Source        string `json:"source"`
}

// Failed reports whether q carries the error sentinel.
func (q Quote) Failed() bool {
	return q.Price == PriceError
}

func errorQuote(s Symbol, source string) Quote {
	return Quote{
		Symbol:        s.Symbol,
		Name:          s.Name,
		Price:         PriceError,
		ChangePercent: ZeroChange,
		Source:        source,
	}
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				RegularMarketPrice *decimal.Decimal `json:"regularMarketPrice"`
				PreviousClose      *decimal.Decimal `json:"previousClose"`
			} `json:"meta"`
		} `json:"result"`
	} `json:"chart"`
}

var (
	errNoResult     = errors.New("chart response has no result")
	errMissingPrice = errors.New("chart response is missing price data")
	errZeroBase     = errors.New("previous price is zero")
)

// ChangePercent returns (current - previous) / previous * 100 to two places.
func ChangePercent(current, previous decimal.Decimal) (string, error) {
	if previous.IsZero() {
		return "", errZeroBase
	}
	change := current.Sub(previous).Div(previous).Mul(decimal.NewFromInt(100))
	return change.StringFixed(2), nil
}

// Fetcher retrieves live quotes. It never caches.
type Fetcher struct {
	transport transport.Transport
	baseURL   string
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

type Option func(*Fetcher)

func WithLogger(l *slog.Logger) Option {
	return func(f *Fetcher) { f.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(f *Fetcher) { f.metrics = m }
}

func NewFetcher(t transport.Transport, baseURL string, opts ...Option) *Fetcher {
	if baseURL == "" {
		baseURL = DefaultQuotesURL
	}
	f := &Fetcher{
		transport: t,
		baseURL:   baseURL,
		logger:    slog.Default(),
		metrics:   metrics.Global,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FetchQuotes requests every symbol in parallel. The result has the same
// length and order as symbols; a failed symbol gets the error sentinel.
func (f *Fetcher) FetchQuotes(ctx context.Context, symbols []Symbol) []Quote {
	quotes := make([]Quote, len(symbols))

	var g errgroup.Group
	for i, s := range symbols {
		g.Go(func() error {
			q, err := f.fetchQuote(ctx, s)
			if err != nil {
				f.logger.Warn("quote fetch failed", "symbol", s.Symbol, "error", err)
				q = errorQuote(s, SourceAPIError)
			}
			f.metrics.RecordQuote(err == nil)
			quotes[i] = q
			return nil
		})
	}
	_ = g.Wait()

	return quotes
}

func (f *Fetcher) fetchQuote(ctx context.Context, s Symbol) (Quote, error) {
	ctx, span := otel.Tracer("market").Start(ctx, "market.quote")
	defer span.End()
	span.SetAttributes(attribute.String("market.symbol", s.Symbol))

	var resp chartResponse
	if err := f.transport.Fetch(ctx, f.quoteURL(s.Symbol), &resp); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return Quote{}, err
	}

	if len(resp.Chart.Result) == 0 {
		return Quote{}, errNoResult
	}
	meta := resp.Chart.Result[0].Meta
	if meta.RegularMarketPrice == nil || meta.PreviousClose == nil {
		return Quote{}, errMissingPrice
	}

	change, err := ChangePercent(*meta.RegularMarketPrice, *meta.PreviousClose)
	if err != nil {
		return Quote{}, fmt.Errorf("%s: %w", s.Symbol, err)
	}

	return Quote{
		Symbol:        s.Symbol,
		Name:          s.Name,
		Price:         meta.RegularMarketPrice.StringFixed(2),
		ChangePercent: change,
		Source:        SourceLive,
	}, nil
}

func (f *Fetcher) quoteURL(symbol string) string {
	return strings.TrimRight(f.baseURL, "/") + "/" + url.PathEscape(symbol)
}

// Snapshot is the market panel: the manual iron ore price plus live quotes.
type Snapshot struct {
	IronOre   Quote   `json:"iron_ore"`
	Companies []Quote `json:"companies"`
}

// Snapshot reads the iron ore file and fetches quotes concurrently.
func (f *Fetcher) Snapshot(ctx context.Context, symbols []Symbol, ironOrePath string) Snapshot {
	var snap Snapshot

	var g errgroup.Group
	g.Go(func() error {
		snap.IronOre = LoadIronOre(ironOrePath)
		return nil
	})
	g.Go(func() error {
		snap.Companies = f.FetchQuotes(ctx, symbols)
		return nil
	})
	_ = g.Wait()

	return snap
}
