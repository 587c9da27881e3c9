package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestLimiter_WindowBlocksExtraCall(t *testing.T) {
	l := New(Options{
		RequestsPerMinute: 5,
		MinDelay:          time.Millisecond,
		MaxDelay:          time.Millisecond,
	})

	ctx := context.Background()

	// The first 5 calls fit in the window burst.
	start := time.Now()
	for i := 0; i < 5; i++ {
		if err := l.WaitIfNeeded(ctx); err != nil {
			t.Fatalf("call %d: %v", i+1, err)
		}
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("first 5 calls took %v, expected near-immediate", elapsed)
	}

	// The 6th must block for a measurable positive duration.
	start = time.Now()
	if err := l.WaitIfNeeded(ctx); err != nil {
		t.Fatalf("6th call: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 500*time.Millisecond {
		t.Errorf("6th call blocked for %v, expected a measurable wait", elapsed)
	}
}

func TestLimiter_ContextCancellation(t *testing.T) {
	l := New(Options{
		RequestsPerMinute: 1,
		MinDelay:          time.Millisecond,
		MaxDelay:          time.Millisecond,
	})

	if err := l.WaitIfNeeded(context.Background()); err != nil {
		t.Fatalf("first call: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := l.WaitIfNeeded(ctx)
	if err == nil {
		t.Fatal("expected context error while window is exhausted")
	}
}

func TestLimiter_BackoffDoublesAndResets(t *testing.T) {
	l := New(Options{
		RequestsPerMinute: 100,
		MinDelay:          10 * time.Millisecond,
		MaxDelay:          10 * time.Millisecond,
		MaxBackoff:        8,
	})

	for i := 0; i < 10; i++ {
		l.OnError()
	}
	l.mu.Lock()
	got := l.backoff
	l.mu.Unlock()
	if got != 8 {
		t.Errorf("backoff after repeated errors = %v, want ceiling 8", got)
	}

	l.OnSuccess()
	l.mu.Lock()
	got = l.backoff
	l.mu.Unlock()
	if got != 1 {
		t.Errorf("backoff after success = %v, want 1", got)
	}
}

func TestLimiter_BackoffStretchesDelay(t *testing.T) {
	l := New(Options{
		RequestsPerMinute: 1000,
		MinDelay:          40 * time.Millisecond,
		MaxDelay:          40 * time.Millisecond,
		MaxBackoff:        4,
	})
	ctx := context.Background()

	if err := l.WaitIfNeeded(ctx); err != nil {
		t.Fatal(err)
	}
	l.OnError()
	l.OnError() // 4x multiplier -> 160ms enforced gap

	start := time.Now()
	if err := l.WaitIfNeeded(ctx); err != nil {
		t.Fatal(err)
	}
	if elapsed := time.Since(start); elapsed < 100*time.Millisecond {
		t.Errorf("backed-off call waited %v, expected at least ~160ms gap", elapsed)
	}
}
