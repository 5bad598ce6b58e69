package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/beacon/internal/config"
)

const (
	keyAssistUser         = "assist:ingress:user:%s"
	keyAssistInflightLock = "assist:inflight:%s:%s"
)

// AssistLimiter shields the assist endpoints before any quota accounting
// runs. The token bucket absorbs request floods per user; the optional
// in-flight lock collapses concurrent identical generations for one
// (issue, feature) pair. Both are ingress concerns and never touch the
// durable usage ledger.
type AssistLimiter struct {
	enabled bool

	bucket *TokenBucket
	locker *Locker

	userRate        float64
	userBurst       int
	inflightGuard   bool
	inflightLockTTL time.Duration
}

func NewAssistLimiter(cfg config.Config) (*AssistLimiter, error) {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled {
		return nil, nil
	}

	addr := strings.TrimSpace(limitCfg.RedisAddr)
	if addr == "" {
		return nil, errors.New("rate limit redis addr is required")
	}
	if limitCfg.AssistRate <= 0 || limitCfg.AssistBurst <= 0 {
		return nil, errors.New("assist rate limit must be positive")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(limitCfg.RedisPassword),
		DB:       limitCfg.RedisDB,
	})

	return &AssistLimiter{
		enabled:         true,
		bucket:          NewTokenBucket(client),
		locker:          NewLocker(client),
		userRate:        limitCfg.AssistRate,
		userBurst:       limitCfg.AssistBurst,
		inflightGuard:   limitCfg.InflightGuardEnabled,
		inflightLockTTL: time.Duration(limitCfg.InflightLockTTLSeconds) * time.Second,
	}, nil
}

func (l *AssistLimiter) Enabled() bool {
	return l != nil && l.enabled
}

func (l *AssistLimiter) AllowUser(ctx context.Context, userID string) (Result, error) {
	if !l.Enabled() {
		return Result{Allowed: true}, nil
	}
	key := fmt.Sprintf(keyAssistUser, strings.TrimSpace(userID))
	return l.bucket.Allow(ctx, key, l.userRate, l.userBurst)
}

func (l *AssistLimiter) TryLockIssueFeature(ctx context.Context, issueID, feature string) (string, bool, error) {
	if !l.Enabled() || !l.inflightGuard {
		return "", true, nil
	}
	key := fmt.Sprintf(keyAssistInflightLock, strings.TrimSpace(issueID), strings.TrimSpace(feature))
	return l.locker.TryLock(ctx, key, l.inflightLockTTL)
}

func (l *AssistLimiter) ReleaseIssueFeature(ctx context.Context, issueID, feature, token string) error {
	if !l.Enabled() || !l.inflightGuard {
		return nil
	}
	key := fmt.Sprintf(keyAssistInflightLock, strings.TrimSpace(issueID), strings.TrimSpace(feature))
	return l.locker.Release(ctx, key, token)
}
