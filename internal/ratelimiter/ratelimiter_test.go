package ratelimiter

import (
	"context"
	"testing"
	"time"
)

// TestNew verifies rate limiter creation with different parameters.
func TestNew(t *testing.T) {
	tests := []struct {
		name              string
		requestsPerSecond uint
		burst             uint
	}{
		{
			name:              "standard rate",
			requestsPerSecond: 100,
			burst:             200,
		},
		{
			name:              "low rate",
			requestsPerSecond: 1,
			burst:             2,
		},
		{
			name:              "burst defaults to rate",
			requestsPerSecond: 10,
			burst:             0,
		},
		{
			name:              "unlimited (zero rate)",
			requestsPerSecond: 0,
			burst:             0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limiter := New(tt.requestsPerSecond, tt.burst)
			if limiter == nil {
				t.Fatal("New() returned nil")
			}
			if limiter.limiter == nil {
				t.Fatal("internal limiter is nil")
			}
		})
	}
}

// TestAllow verifies that Allow() correctly enforces rate limits.
func TestAllow(t *testing.T) {
	// 10 req/s with a burst of 10
	limiter := New(10, 10)

	// First burst should be allowed (up to burst capacity)
	for i := 0; i < 10; i++ {
		if !limiter.Allow() {
			t.Fatalf("request %d should be allowed (within burst)", i)
		}
	}

	// Next request should be rate-limited (bucket empty)
	if limiter.Allow() {
		t.Fatal("request should be rate-limited after burst exhausted")
	}

	// Wait for token replenishment (100ms for 10 req/s = 1 token)
	time.Sleep(110 * time.Millisecond)

	if !limiter.Allow() {
		t.Fatal("request should be allowed after token replenishment")
	}
}

// TestWait verifies that Wait() blocks until a token is available.
func TestWait(t *testing.T) {
	// 10 req/s with a burst of 1
	limiter := New(10, 1)

	ctx := context.Background()

	// First request should be immediate (within burst)
	if err := limiter.Wait(ctx); err != nil {
		t.Fatalf("first request should succeed: %v", err)
	}

	// Second request should wait (bucket empty)
	start := time.Now()
	if err := limiter.Wait(ctx); err != nil {
		t.Fatalf("second request should succeed after waiting: %v", err)
	}
	elapsed := time.Since(start)

	// Should have waited approximately 100ms (1/10 second for 10 req/s).
	// Allow some margin for timing jitter.
	if elapsed < 50*time.Millisecond || elapsed > 200*time.Millisecond {
		t.Fatalf("wait time %v outside expected range 50ms-200ms", elapsed)
	}
}

// TestWaitContextCancellation verifies that Wait() respects context cancellation.
func TestWaitContextCancellation(t *testing.T) {
	// Very low rate to force waiting
	limiter := New(1, 1)

	// Exhaust the burst
	if !limiter.Allow() {
		t.Fatal("first request should be allowed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := limiter.Wait(ctx)
	if err == nil {
		t.Fatal("Wait() should return error when context is cancelled")
	}
	<-ctx.Done()
	if ctx.Err() != context.DeadlineExceeded {
		t.Fatalf("context should be DeadlineExceeded, got %v", ctx.Err())
	}
}

// TestTokens verifies that Tokens() returns reasonable values.
func TestTokens(t *testing.T) {
	limiter := New(10, 10)

	// Initially should have close to burst capacity
	initial := limiter.Tokens()
	if initial < 9 || initial > 10 {
		t.Fatalf("initial tokens %f outside expected range 9-10", initial)
	}

	// Consume 5 tokens
	for i := 0; i < 5; i++ {
		limiter.Allow()
	}

	remaining := limiter.Tokens()
	if remaining < 4 || remaining > 6 {
		t.Fatalf("remaining tokens %f outside expected range 4-6", remaining)
	}
}

// TestUnlimitedRate verifies that zero rate creates effectively unlimited limiter.
func TestUnlimitedRate(t *testing.T) {
	limiter := New(0, 0)

	for i := 0; i < 1000; i++ {
		if !limiter.Allow() {
			t.Fatalf("unlimited limiter should allow request %d", i)
		}
	}
}

// BenchmarkAllow measures the performance of the Allow() fast path.
func BenchmarkAllow(b *testing.B) {
	limiter := New(1_000_000, 1_000_000)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		limiter.Allow()
	}
}
