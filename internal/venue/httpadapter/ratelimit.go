// ratelimit.go implements a smooth, continuously-refilling token-bucket
// limiter per request category, with capacity and refill rate configurable
// per category since this adapter talks to an arbitrary venue rather than
// one fixed API.
package httpadapter

import (
	"context"
	"sync"
	"time"
)

// tokenBucket is a token-bucket rate limiter with continuous refill.
// Wait blocks until a token is available or ctx is cancelled.
type tokenBucket struct {
	mu       sync.Mutex
	tokens   float64
	capacity float64
	rate     float64 // tokens refilled per second
	lastTime time.Time
}

func newTokenBucket(capacity, ratePerSecond float64) *tokenBucket {
	return &tokenBucket{
		tokens:   capacity,
		capacity: capacity,
		rate:     ratePerSecond,
		lastTime: time.Now(),
	}
}

func (tb *tokenBucket) Wait(ctx context.Context) error {
	for {
		tb.mu.Lock()
		now := time.Now()
		elapsed := now.Sub(tb.lastTime).Seconds()
		tb.tokens += elapsed * tb.rate
		if tb.tokens > tb.capacity {
			tb.tokens = tb.capacity
		}
		tb.lastTime = now

		if tb.tokens >= 1 {
			tb.tokens--
			tb.mu.Unlock()
			return nil
		}

		wait := time.Duration((1 - tb.tokens) / tb.rate * float64(time.Second))
		tb.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// rateLimiter groups token buckets by request category.
type rateLimiter struct {
	create *tokenBucket
	cancel *tokenBucket
	book   *tokenBucket
}

// RateLimits configures the burst capacity and steady-state rate for each
// category. Zero values fall back to conservative defaults.
type RateLimits struct {
	CreateCapacity, CreateRatePerSec float64
	CancelCapacity, CancelRatePerSec float64
	BookCapacity, BookRatePerSec     float64
}

func newRateLimiter(cfg RateLimits) *rateLimiter {
	def := func(capacity, rate, defCapacity, defRate float64) (float64, float64) {
		if capacity <= 0 {
			capacity = defCapacity
		}
		if rate <= 0 {
			rate = defRate
		}
		return capacity, rate
	}

	cc, cr := def(cfg.CreateCapacity, cfg.CreateRatePerSec, 350, 50)
	xc, xr := def(cfg.CancelCapacity, cfg.CancelRatePerSec, 300, 30)
	bc, br := def(cfg.BookCapacity, cfg.BookRatePerSec, 150, 15)

	return &rateLimiter{
		create: newTokenBucket(cc, cr),
		cancel: newTokenBucket(xc, xr),
		book:   newTokenBucket(bc, br),
	}
}
