package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/smallbiznis/planix/internal/config"
)

func TestTokenBucketNilClient(t *testing.T) {
	if NewTokenBucket(nil) != nil {
		t.Fatalf("expected nil bucket for nil client")
	}
	var bucket *TokenBucket
	if _, err := bucket.Allow(context.Background(), "k", 1, 1); err != errBucketNotConfigured {
		t.Fatalf("expected errBucketNotConfigured, got %v", err)
	}
}

func TestLockerNilClient(t *testing.T) {
	if NewLocker(nil) != nil {
		t.Fatalf("expected nil locker for nil client")
	}
	var locker *Locker
	if _, _, err := locker.TryLock(context.Background(), "k", time.Second); err != errLockNotConfigured {
		t.Fatalf("expected errLockNotConfigured, got %v", err)
	}
	if err := locker.Release(context.Background(), "k", "token"); err != nil {
		t.Fatalf("release on nil locker: %v", err)
	}
}

func TestGenerationLimiterDisabledWithoutRedis(t *testing.T) {
	cfg := config.Config{RateLimit: config.RateLimitConfig{Enabled: true, GenerateRate: 1, GenerateBurst: 1}}
	limiter := NewGenerationLimiter(cfg, nil)
	if limiter.Enabled() {
		t.Fatalf("limiter must be disabled without redis")
	}

	for i := 0; i < 5; i++ {
		res, err := limiter.AllowGenerate(context.Background(), "42")
		if err != nil {
			t.Fatalf("allow: %v", err)
		}
		if !res.Allowed {
			t.Fatalf("expected allowed on call %d", i)
		}
	}

	token, ok, err := limiter.LockUser(context.Background(), "42")
	if err != nil || !ok || token != "" {
		t.Fatalf("expected no-op lock, got token=%q ok=%v err=%v", token, ok, err)
	}
	if err := limiter.ReleaseUser(context.Background(), "42", token); err != nil {
		t.Fatalf("release: %v", err)
	}
}

func TestNilGenerationLimiter(t *testing.T) {
	var limiter *GenerationLimiter
	res, err := limiter.AllowGenerate(context.Background(), "1")
	if err != nil || !res.Allowed {
		t.Fatalf("nil limiter must admit, got %+v %v", res, err)
	}
}

func TestRetryAfter(t *testing.T) {
	if got := retryAfter(true, 0, 1); got != 0 {
		t.Fatalf("allowed requests have no retry-after, got %s", got)
	}
	if got := retryAfter(false, 0.5, 0.5); got != time.Second {
		t.Fatalf("expected 1s, got %s", got)
	}
}

func TestDefaultBucketTTL(t *testing.T) {
	if got := defaultBucketTTL(0.5, 3); got != 12*time.Second {
		t.Fatalf("expected 12s, got %s", got)
	}
	if got := defaultBucketTTL(100, 1); got != time.Second {
		t.Fatalf("expected 1s floor, got %s", got)
	}
}
