package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// RateLimiter keeps one token bucket per key (client IP or probed host).
// Buckets idle for longer than idleTTL are forgotten.
type RateLimiter struct {
	mu       sync.Mutex
	limiters *gocache.Cache
	limit    rate.Limit
	burst    int
}

// NewRateLimiter allows maxRequests per windowSize for each key. A
// non-positive maxRequests or windowSize disables limiting.
func NewRateLimiter(windowSize time.Duration, maxRequests int) *RateLimiter {
	if maxRequests <= 0 || windowSize <= 0 {
		return newLimiter(rate.Inf, 1, time.Minute)
	}
	every := rate.Every(windowSize / time.Duration(maxRequests))
	return newLimiter(every, maxRequests, windowSize)
}

// NewPerSecond paces each key to rps requests per second with the given burst.
// A non-positive rps disables limiting.
func NewPerSecond(rps float64, burst int) *RateLimiter {
	if rps <= 0 {
		return newLimiter(rate.Inf, 1, time.Minute)
	}
	return newLimiter(rate.Limit(rps), burst, time.Minute)
}

func newLimiter(limit rate.Limit, burst int, idleTTL time.Duration) *RateLimiter {
	return &RateLimiter{
		limiters: gocache.New(idleTTL, time.Minute),
		limit:    limit,
		burst:    burst,
	}
}

func (rl *RateLimiter) get(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if v, found := rl.limiters.Get(key); found {
		lim := v.(*rate.Limiter)
		// Touch so active keys never expire.
		rl.limiters.SetDefault(key, lim)
		return lim
	}
	lim := rate.NewLimiter(rl.limit, rl.burst)
	rl.limiters.SetDefault(key, lim)
	return lim
}

// Allow reports an error when key has exhausted its budget.
func (rl *RateLimiter) Allow(key string) error {
	if !rl.get(key).Allow() {
		return fmt.Errorf("rate limit exceeded. Maximum %d requests in a burst", rl.burst)
	}
	return nil
}

// Wait blocks until key may issue another request or ctx is done.
func (rl *RateLimiter) Wait(ctx context.Context, key string) error {
	if rl.limit == rate.Inf {
		return nil
	}
	return rl.get(key).Wait(ctx)
}
