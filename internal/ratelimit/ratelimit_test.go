package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/smallbiznis/partnerhub/internal/config"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestBucketTTL(t *testing.T) {
	assert.Equal(t, 80*time.Second, bucketTTL(0.5, 20))
	assert.Equal(t, time.Second, bucketTTL(100, 1))
	assert.Equal(t, time.Second, bucketTTL(0, 0))
}

func TestRetryAfter(t *testing.T) {
	assert.Equal(t, 2*time.Second, retryAfter(0, 0.5))
	assert.Equal(t, time.Duration(0), retryAfter(1.5, 1))
}

func TestLeadLimiterDisabledWithoutRedis(t *testing.T) {
	limiter := NewLeadLimiter(config.Config{RateLimit: config.RateLimitConfig{Enabled: true}}, nil, nil, nil, zap.NewNop())
	assert.False(t, limiter.Enabled())

	ok, wait := limiter.Allow(context.Background(), "1")
	assert.True(t, ok)
	assert.Zero(t, wait)
}

func TestNilLockerRunsInline(t *testing.T) {
	var locker *Locker
	ran := false
	acquired, err := locker.WithLock(context.Background(), "k", time.Second, func(context.Context) error {
		ran = true
		return errors.New("inner")
	})
	assert.True(t, acquired)
	assert.True(t, ran)
	assert.EqualError(t, err, "inner")

	_, _, err = locker.TryLock(context.Background(), "k", time.Second)
	assert.ErrorIs(t, err, ErrLockNotConfigured)
}
