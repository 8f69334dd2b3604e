package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestWaitSpacesRequests(t *testing.T) {
	l := New(50*time.Millisecond, 0)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := l.Wait(ctx); err != nil {
			t.Fatalf("Wait() error = %v", err)
		}
	}
	// first request is immediate, the next two wait one interval each
	if elapsed := time.Since(start); elapsed < 90*time.Millisecond {
		t.Errorf("three requests took %v, want at least ~100ms", elapsed)
	}
}

func TestWaitUnlimited(t *testing.T) {
	l := New(0, 0)
	start := time.Now()
	for i := 0; i < 100; i++ {
		if err := l.Wait(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("unlimited limiter blocked for %v", elapsed)
	}
	if l.Remaining() != -1 {
		t.Errorf("Remaining() = %d, want -1", l.Remaining())
	}
}

func TestDailyBudget(t *testing.T) {
	now := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	l := New(0, 2, WithClock(func() time.Time { return now }))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := l.Wait(ctx); err != nil {
			t.Fatalf("request %d: %v", i, err)
		}
	}
	if err := l.Wait(ctx); !errors.Is(err, ErrBudgetExhausted) {
		t.Fatalf("Wait() error = %v, want ErrBudgetExhausted", err)
	}
	if got := l.GetStats()["requests_denied"]; got != 1 {
		t.Errorf("requests_denied = %v", got)
	}

	now = now.Add(25 * time.Hour)
	if err := l.Wait(ctx); err != nil {
		t.Errorf("Wait() after reset error = %v", err)
	}
	if l.Remaining() != 1 {
		t.Errorf("Remaining() = %d, want 1", l.Remaining())
	}
}

func TestWaitCancelledRefunds(t *testing.T) {
	l := New(time.Hour, 5)
	if err := l.Wait(context.Background()); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := l.Wait(ctx); err == nil {
		t.Fatal("expected error from cancelled context")
	}
	if l.Remaining() != 4 {
		t.Errorf("Remaining() = %d, want 4", l.Remaining())
	}
}
