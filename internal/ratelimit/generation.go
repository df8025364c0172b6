package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/planix/internal/config"
)

const (
	generateBucketKeyPrefix = "planix:generate:user:"
	generateLockKeyPrefix   = "planix:generate:lock:"
)

// GenerationLimiter throttles plan generation per user and serializes the
// admission step across instances. A nil or disabled limiter admits everything.
type GenerationLimiter struct {
	enabled bool
	bucket  *TokenBucket
	locker  *Locker
	rate    float64
	burst   int
	lockTTL time.Duration
}

func NewGenerationLimiter(cfg config.Config, client *redis.Client) *GenerationLimiter {
	limiter := &GenerationLimiter{
		rate:    cfg.RateLimit.GenerateRate,
		burst:   cfg.RateLimit.GenerateBurst,
		lockTTL: cfg.RateLimit.LockTTL,
	}
	if client == nil {
		return limiter
	}
	limiter.locker = NewLocker(client)
	if cfg.RateLimit.Enabled && limiter.rate > 0 && limiter.burst > 0 {
		limiter.bucket = NewTokenBucket(client)
		limiter.enabled = true
	}
	return limiter
}

func (l *GenerationLimiter) Enabled() bool {
	return l != nil && l.enabled
}

// AllowGenerate takes one generation token for userID.
func (l *GenerationLimiter) AllowGenerate(ctx context.Context, userID string) (*RateLimitResult, error) {
	if !l.Enabled() {
		return &RateLimitResult{Allowed: true}, nil
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return &RateLimitResult{Allowed: true}, nil
	}
	return l.bucket.Allow(ctx, generateBucketKeyPrefix+userID, l.rate, l.burst)
}

// LockUser takes the cross-instance admission lock for userID. Without Redis
// it reports ok with an empty token so callers can rely on the in-process lock.
func (l *GenerationLimiter) LockUser(ctx context.Context, userID string) (string, bool, error) {
	if l == nil || l.locker == nil {
		return "", true, nil
	}
	ttl := l.lockTTL
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	token, ok, err := l.locker.TryLock(ctx, generateLockKeyPrefix+userID, ttl)
	if err != nil {
		return "", false, fmt.Errorf("lock generation for user %s: %w", userID, err)
	}
	return token, ok, nil
}

func (l *GenerationLimiter) ReleaseUser(ctx context.Context, userID, token string) error {
	if l == nil || l.locker == nil || token == "" {
		return nil
	}
	return l.locker.Release(ctx, generateLockKeyPrefix+userID, token)
}
