package http

import (
	"testing"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/spec-kit/ticket-intake/internal/config"
)

func TestRateLimiterConfigFrom(t *testing.T) {
	cfg := RateLimiterConfigFrom(config.RateLimitConfig{PerMinute: 120, Burst: 5})
	if cfg.Rate != rate.Limit(2) || cfg.Burst != 5 {
		t.Errorf("cfg = %+v, want 2/s burst 5", cfg)
	}

	defaults := RateLimiterConfigFrom(config.RateLimitConfig{})
	if defaults.Rate != rate.Limit(0.5) || defaults.Burst != 1 {
		t.Errorf("defaults = %+v", defaults)
	}
}

func TestRateLimiter_PerClientBuckets(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: rate.Limit(0.01), Burst: 1}, zap.NewNop())
	defer rl.Stop()

	if !rl.limiterFor("10.0.0.1").Allow() {
		t.Fatal("first request from client A rejected")
	}
	if rl.limiterFor("10.0.0.1").Allow() {
		t.Error("second request from client A allowed")
	}
	if !rl.limiterFor("10.0.0.2").Allow() {
		t.Error("client B shares client A's bucket")
	}
	if rl.LimiterCount() != 2 {
		t.Errorf("LimiterCount = %d, want 2", rl.LimiterCount())
	}
}

func TestRateLimiter_CleanupDropsIdleBuckets(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: rate.Limit(1), Burst: 1, CleanupInterval: time.Minute}, zap.NewNop())
	defer rl.Stop()

	rl.limiterFor("10.0.0.1")
	rl.cleanup(time.Now())
	if rl.LimiterCount() != 1 {
		t.Fatalf("fresh bucket dropped")
	}
	rl.cleanup(time.Now().Add(3 * time.Minute))
	if rl.LimiterCount() != 0 {
		t.Errorf("idle bucket kept")
	}
}
