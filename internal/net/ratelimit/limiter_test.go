package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestLimiter_Allow(t *testing.T) {
	limiter := NewLimiter(2.0, 2) // 2 RPS, burst of 2

	// Should allow first 2 requests immediately (burst)
	if !limiter.Allow("api.kraken.com") {
		t.Error("First request should be allowed")
	}
	if !limiter.Allow("api.kraken.com") {
		t.Error("Second request should be allowed")
	}

	// Third request should be blocked (no tokens available)
	if limiter.Allow("api.kraken.com") {
		t.Error("Third request should be blocked")
	}
}

func TestLimiter_MultipleHosts(t *testing.T) {
	limiter := NewLimiter(1.0, 1)

	// Each host should have independent rate limiting
	if !limiter.Allow("api.binance.com") {
		t.Error("First request to binance should be allowed")
	}
	if !limiter.Allow("api.gemini.com") {
		t.Error("First request to gemini should be allowed")
	}

	if limiter.Allow("api.binance.com") {
		t.Error("Second request to binance should be blocked")
	}
	if limiter.Allow("api.gemini.com") {
		t.Error("Second request to gemini should be blocked")
	}
}

func TestLimiter_Configure(t *testing.T) {
	limiter := NewLimiter(1.0, 1)
	limiter.Configure("api.coinbase.com", 3.0, 3)

	for i := 0; i < 3; i++ {
		if !limiter.Allow("api.coinbase.com") {
			t.Fatalf("Request %d should be allowed by configured burst", i+1)
		}
	}
	if limiter.Allow("api.coinbase.com") {
		t.Error("Fourth request should be blocked")
	}

	stats := limiter.Stats()["api.coinbase.com"]
	if stats.RPS != 3.0 || stats.Burst != 3 {
		t.Errorf("Unexpected stats %+v", stats)
	}
	if stats.TokensAvailable >= 1 {
		t.Errorf("Exhausted bucket should have no whole token, got %v", stats.TokensAvailable)
	}
}

func TestLimiter_WaitTimeout(t *testing.T) {
	limiter := NewLimiter(0.1, 1) // Very slow: 0.1 RPS (10 second delay)

	// Use up the burst
	limiter.Allow("poloniex.com")

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := limiter.Wait(ctx, "poloniex.com")
	elapsed := time.Since(start)

	if err == nil {
		t.Error("Wait should fail with short context")
	}
	if elapsed > 150*time.Millisecond {
		t.Errorf("Wait should return quickly, took %v", elapsed)
	}
}

func TestLimiter_ConcurrentAccess(t *testing.T) {
	limiter := NewLimiter(100.0, 10)
	host := "www.bitstamp.net"

	const numGoroutines = 50
	const requestsPerGoroutine = 5

	var allowed, blocked int64
	var wg sync.WaitGroup

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < requestsPerGoroutine; j++ {
				if limiter.Allow(host) {
					atomic.AddInt64(&allowed, 1)
				} else {
					atomic.AddInt64(&blocked, 1)
				}
			}
		}()
	}

	wg.Wait()

	if total := allowed + blocked; total != numGoroutines*requestsPerGoroutine {
		t.Errorf("Total requests %d != expected %d", total, numGoroutines*requestsPerGoroutine)
	}
	if allowed < 10 {
		t.Errorf("Should allow at least burst amount, allowed %d", allowed)
	}
	if blocked == 0 {
		t.Error("Should block some requests with this load")
	}
}
