package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Limiter defines the interface for rate limiting
type Limiter interface {
	// Allow checks if a request is allowed under the current rate limit
	Allow() bool
	// Wait blocks until the rate limit allows another request or ctx ends
	Wait(ctx context.Context) error
}

// TokenBucket is a token bucket limiter refilled at a steady rate
type TokenBucket struct {
	limiter *rate.Limiter
}

// PerMinute returns a limiter allowing requestsPerMinute on average with
// bursts of up to burst requests.
func PerMinute(requestsPerMinute, burst int) *TokenBucket {
	if burst < 1 {
		burst = 1
	}
	if requestsPerMinute <= 0 {
		return &TokenBucket{limiter: rate.NewLimiter(rate.Inf, burst)}
	}
	return &TokenBucket{limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(requestsPerMinute)), burst)}
}

// Allow checks if a request can proceed
func (tb *TokenBucket) Allow() bool {
	return tb.limiter.Allow()
}

// Wait blocks until a token is available
func (tb *TokenBucket) Wait(ctx context.Context) error {
	return tb.limiter.Wait(ctx)
}

// Unlimited never blocks
type Unlimited struct{}

func (Unlimited) Allow() bool                     { return true }
func (Unlimited) Wait(ctx context.Context) error { return ctx.Err() }
