// Package ratelimiter wraps golang.org/x/time/rate with the small surface
// squawk needs to pace calls against rate-limited remote stores.
package ratelimiter

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimiter paces requests using the token bucket algorithm.
//
// Tokens accumulate at a constant rate up to the burst capacity; each
// request consumes one token. Callers either check Allow for an immediate
// decision or Wait to be throttled until a token is available.
//
// All methods are safe for concurrent use.
type RateLimiter struct {
	limiter *rate.Limiter
}

// New creates a RateLimiter allowing requestsPerSecond sustained with the
// given burst capacity. requestsPerSecond of 0 disables limiting.
func New(requestsPerSecond, burst uint) *RateLimiter {
	if requestsPerSecond == 0 {
		return &RateLimiter{limiter: rate.NewLimiter(rate.Inf, 0)}
	}
	if burst == 0 {
		burst = requestsPerSecond
	}

	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), int(burst)),
	}
}

// Allow reports whether a request may proceed right now, consuming a token
// if so. Use this on paths that should reject rather than queue.
func (r *RateLimiter) Allow() bool {
	return r.limiter.Allow()
}

// Wait blocks until a token is available or the context is cancelled.
// Returns the context error on cancellation.
func (r *RateLimiter) Wait(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}

// Tokens returns the number of tokens currently available. Monitoring only;
// the value may be stale by the time it is observed.
func (r *RateLimiter) Tokens() float64 {
	return r.limiter.Tokens()
}
