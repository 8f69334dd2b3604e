package ratelimit

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

var ErrBudgetExhausted = errors.New("daily request budget exhausted")

// Limiter spaces outbound news API requests and caps how many are made per
// day. Free API tiers reject callers that exceed either.
type Limiter struct {
	spacing *rate.Limiter

	mu        sync.Mutex
	maxDaily  int
	used      int
	denied    int
	resetTime time.Time
	now       func() time.Time
}

type Option func(*Limiter)

// WithClock replaces the wall clock used for the daily reset.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// New returns a limiter allowing one request per delay and maxDaily requests
// per 24 hours. Zero disables either limit.
func New(delay time.Duration, maxDaily int, opts ...Option) *Limiter {
	limit := rate.Inf
	if delay > 0 {
		limit = rate.Every(delay)
	}
	l := &Limiter{
		spacing:  rate.NewLimiter(limit, 1),
		maxDaily: maxDaily,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.resetTime = l.now().Add(24 * time.Hour)
	return l
}

// Wait blocks until the next request may be sent. It fails fast when the
// daily budget is used up.
func (l *Limiter) Wait(ctx context.Context) error {
	if err := l.take(); err != nil {
		return err
	}
	if err := l.spacing.Wait(ctx); err != nil {
		l.refund()
		return err
	}
	return nil
}

func (l *Limiter) take() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.checkReset()

	if l.maxDaily > 0 && l.used >= l.maxDaily {
		l.denied++
		slog.Warn("news API budget reached", "used", l.used, "limit", l.maxDaily)
		return ErrBudgetExhausted
	}
	l.used++
	return nil
}

func (l *Limiter) refund() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.used > 0 {
		l.used--
	}
}

// Remaining returns the requests left today, or -1 when unlimited.
func (l *Limiter) Remaining() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.checkReset()
	if l.maxDaily <= 0 {
		return -1
	}
	return l.maxDaily - l.used
}

func (l *Limiter) GetStats() map[string]interface{} {
	l.mu.Lock()
	defer l.mu.Unlock()

	return map[string]interface{}{
		"requests_used":   l.used,
		"requests_limit":  l.maxDaily,
		"requests_denied": l.denied,
		"reset_time":      l.resetTime.Format(time.RFC3339),
	}
}

// checkReset clears the counters once the reset time has passed.
func (l *Limiter) checkReset() {
	now := l.now()
	if now.After(l.resetTime) {
		slog.Info("resetting news API budget", "used", l.used, "denied", l.denied)
		l.used = 0
		l.denied = 0
		l.resetTime = now.Add(24 * time.Hour)
	}
}
