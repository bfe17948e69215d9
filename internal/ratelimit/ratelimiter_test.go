package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestAllowPerKey(t *testing.T) {
	rl := NewRateLimiter(time.Minute, 2)
	for i := 0; i < 2; i++ {
		if err := rl.Allow("192.0.2.1"); err != nil {
			t.Fatalf("request %d: %v", i, err)
		}
	}
	if err := rl.Allow("192.0.2.1"); err == nil {
		t.Fatal("expected the third request to be limited")
	}
	if err := rl.Allow("192.0.2.2"); err != nil {
		t.Fatal("keys must not share a budget")
	}
}

func TestNewRateLimiterZeroRequests(t *testing.T) {
	for _, rl := range []*RateLimiter{NewRateLimiter(time.Minute, 0), NewRateLimiter(0, 5)} {
		for i := 0; i < 20; i++ {
			if err := rl.Allow("192.0.2.1"); err != nil {
				t.Fatalf("request %d: %v", i, err)
			}
		}
	}
}

func TestWaitUnlimited(t *testing.T) {
	rl := NewPerSecond(0, 0)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	for i := 0; i < 100; i++ {
		if err := rl.Wait(ctx, "example.com"); err != nil {
			t.Fatal(err)
		}
	}
}

func TestWaitHonoursContext(t *testing.T) {
	rl := NewPerSecond(0.001, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := rl.Wait(ctx, "example.com"); err != nil {
		t.Fatal("first request fits in the burst:", err)
	}
	if err := rl.Wait(ctx, "example.com"); err == nil {
		t.Fatal("expected the second wait to fail before the deadline")
	}
}
