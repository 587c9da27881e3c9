// internal/ratelimit/limiter.go
package ratelimit

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// Pacer defines the pacing contract used before every portal interaction.
//
// One Pacer guards one session's traffic only; sessions never share pacing
// state so that backoff on one identity cannot slow another.
type Pacer interface {
	// WaitIfNeeded blocks until it is safe to issue the next interaction.
	// It returns an error only when the context is cancelled first.
	WaitIfNeeded(ctx context.Context) error

	// OnSuccess resets the error backoff to its base delay.
	OnSuccess()

	// OnError doubles the backoff multiplier up to the ceiling.
	OnError()
}

// Options configures a Limiter.
type Options struct {
	RequestsPerMinute int
	MinDelay          time.Duration
	MaxDelay          time.Duration
	// MaxBackoff caps the error multiplier applied to the randomized delay.
	MaxBackoff float64
}

// Limiter paces requests with two independent constraints and applies the
// larger required wait:
//
//  1. a per-minute request cap, enforced with a token bucket refilled at
//     RequestsPerMinute per minute with burst RequestsPerMinute, so the
//     (N+1)th call inside the window blocks until the oldest slot frees;
//  2. a randomized delay in [MinDelay, MaxDelay] between consecutive calls,
//     multiplied by a backoff factor that doubles on each OnError up to
//     MaxBackoff and resets to 1 on OnSuccess.
type Limiter struct {
	window *rate.Limiter

	mu        sync.Mutex
	minDelay  time.Duration
	maxDelay  time.Duration
	backoff   float64
	maxBack   float64
	last      time.Time
	rng       *rand.Rand
}

// New creates a Limiter, applying defaults for unset options.
func New(opts Options) *Limiter {
	if opts.RequestsPerMinute <= 0 {
		opts.RequestsPerMinute = 10
	}
	if opts.MinDelay <= 0 {
		opts.MinDelay = 2 * time.Second
	}
	if opts.MaxDelay < opts.MinDelay {
		opts.MaxDelay = opts.MinDelay
	}
	if opts.MaxBackoff < 1 {
		opts.MaxBackoff = 8
	}

	return &Limiter{
		window: rate.NewLimiter(
			rate.Every(time.Minute/time.Duration(opts.RequestsPerMinute)),
			opts.RequestsPerMinute,
		),
		minDelay: opts.MinDelay,
		maxDelay: opts.MaxDelay,
		backoff:  1,
		maxBack:  opts.MaxBackoff,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// WaitIfNeeded blocks until both the minute window and the inter-request
// delay allow the next interaction.
func (l *Limiter) WaitIfNeeded(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	reservation := l.window.Reserve()
	windowWait := reservation.Delay()

	l.mu.Lock()
	span := l.maxDelay - l.minDelay
	jitter := l.minDelay
	if span > 0 {
		jitter += time.Duration(l.rng.Int63n(int64(span)))
	}
	delay := time.Duration(float64(jitter) * l.backoff)

	var delayWait time.Duration
	if !l.last.IsZero() {
		if elapsed := time.Since(l.last); elapsed < delay {
			delayWait = delay - elapsed
		}
	}
	l.mu.Unlock()

	wait := windowWait
	if delayWait > wait {
		wait = delayWait
	}

	if wait > 0 {
		log.Debug().
			Dur("wait", wait).
			Dur("window_wait", windowWait).
			Dur("delay_wait", delayWait).
			Msg("Rate limit pacing")

		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			reservation.Cancel()
			return ctx.Err()
		case <-timer.C:
		}
	}

	l.mu.Lock()
	l.last = time.Now()
	l.mu.Unlock()
	return nil
}

// OnSuccess resets the backoff multiplier.
func (l *Limiter) OnSuccess() {
	l.mu.Lock()
	l.backoff = 1
	l.mu.Unlock()
}

// OnError doubles the backoff multiplier up to the ceiling.
func (l *Limiter) OnError() {
	l.mu.Lock()
	l.backoff *= 2
	if l.backoff > l.maxBack {
		l.backoff = l.maxBack
	}
	l.mu.Unlock()
	log.Debug().Float64("backoff", l.backoff).Msg("Backoff multiplier increased")
}
