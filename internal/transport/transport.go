// Package transport fetches JSON documents either directly or through a
// CORS-style proxy that wraps the upstream body in a "contents" string.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/deusflow/pilbarawatch/internal/retry"
)

type Mode string

const (
	ModeDirect Mode = "direct"
	ModeProxy  Mode = "proxy"
)

const (
	DefaultTimeout = 15 * time.Second
	maxBodyBytes   = 8 << 20
	userAgent      = "pilbarawatch/1.0"
)

var (
	ErrStatus             = errors.New("unexpected HTTP status")
	ErrEmptyProxyContents = errors.New("proxy response has no contents")
)

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: HTTP %d", e.URL, e.Code)
}

func (e *StatusError) Is(target error) bool {
	return target == ErrStatus
}

// Transport decodes the JSON document at rawURL into v.
type Transport interface {
	Fetch(ctx context.Context, rawURL string, v any) error
}

// Direct fetches the upstream URL itself.
type Direct struct {
	Client *http.Client
}

func (d *Direct) Fetch(ctx context.Context, rawURL string, v any) error {
	body, err := get(ctx, d.Client, rawURL)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decoding %s: %w", rawURL, err)
	}
	return nil
}

// Proxy fetches Endpoint?url=<upstream> and parses the embedded contents.
type Proxy struct {
	Endpoint string
	Client   *http.Client
}

type proxyEnvelope struct {
	Contents string `json:"contents"`
}

func (p *Proxy) Fetch(ctx context.Context, rawURL string, v any) error {
	wrapped, err := p.wrap(rawURL)
	if err != nil {
		return err
	}

	body, err := get(ctx, p.Client, wrapped)
	if err != nil {
		return err
	}

	var env proxyEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("decoding proxy envelope: %w", err)
	}
	if env.Contents == "" {
		return fmt.Errorf("%s: %w", rawURL, ErrEmptyProxyContents)
	}
	if err := json.Unmarshal([]byte(env.Contents), v); err != nil {
		return fmt.Errorf("decoding proxied %s: %w", rawURL, err)
	}
	return nil
}

func (p *Proxy) wrap(rawURL string) (string, error) {
	u, err := url.Parse(p.Endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid proxy endpoint: %w", err)
	}
	q := u.Query()
	q.Set("url", rawURL)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Retrying retries the wrapped transport on network errors and 5xx/429.
type Retrying struct {
	Next   Transport
	Policy retry.Policy
}

func (r *Retrying) Fetch(ctx context.Context, rawURL string, v any) error {
	p := r.Policy
	if p.Retryable == nil {
		p.Retryable = Temporary
	}
	return retry.Do(ctx, p, func(ctx context.Context) error {
		return r.Next.Fetch(ctx, rawURL, v)
	})
}

// Temporary reports whether err might succeed on another attempt.
func Temporary(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code >= 500 || se.Code == http.StatusTooManyRequests
	}
	var syntaxErr *json.SyntaxError
	return !errors.As(err, &syntaxErr) && !errors.Is(err, ErrEmptyProxyContents)
}

// New builds the transport for mode. Attempts above one add retries.
func New(mode Mode, proxyEndpoint string, client *http.Client, policy retry.Policy) (Transport, error) {
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}

	var t Transport
	switch mode {
	case ModeDirect, "":
		t = &Direct{Client: client}
	case ModeProxy:
		if proxyEndpoint == "" {
			return nil, errors.New("proxy transport needs an endpoint")
		}
		t = &Proxy{Endpoint: proxyEndpoint, Client: client}
	default:
		return nil, fmt.Errorf("unknown transport mode %q", mode)
	}

	if policy.MaxAttempts > 1 {
		t = &Retrying{Next: t, Policy: policy}
	}
	return t, nil
}

func get(ctx context.Context, client *http.Client, rawURL string) ([]byte, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		var ue *url.Error
		if errors.As(err, &ue) {
			ue.URL = redact(ue.URL)
		}
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Code: resp.StatusCode, URL: redact(rawURL)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", redact(rawURL), err)
	}
	return body, nil
}

// redact hides API keys in URLs that end up in logs.
func redact(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := u.Query()
	if q.Has("apiKey") {
		q.Set("apiKey", "REDACTED")
		u.RawQuery = q.Encode()
	}
	return u.String()
}
