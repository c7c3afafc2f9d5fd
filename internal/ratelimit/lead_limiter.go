package ratelimit

import (
	"context"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/partnerhub/internal/config"
	"github.com/smallbiznis/partnerhub/internal/observability/metrics"
	"go.uber.org/zap"
)

const keyLeadCreate = "partnerhub:leads:create:%s"

// LeadLimiter throttles lead submissions per partner using the rate and
// burst from the hot-reloaded program config.
type LeadLimiter struct {
	bucket  *TokenBucket
	program *config.ProgramHolder
	metrics *metrics.Metrics
	log     *zap.Logger
}

func NewLeadLimiter(cfg config.Config, client *redis.Client, program *config.ProgramHolder, m *metrics.Metrics, log *zap.Logger) *LeadLimiter {
	if !cfg.RateLimit.Enabled || client == nil {
		return nil
	}
	return &LeadLimiter{
		bucket:  NewTokenBucket(client),
		program: program,
		metrics: m,
		log:     log.Named("ratelimit.leads"),
	}
}

func (l *LeadLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

// Allow fails open on Redis errors: lead intake must not depend on the cache.
func (l *LeadLimiter) Allow(ctx context.Context, partnerID string) (bool, time.Duration) {
	if !l.Enabled() {
		return true, 0
	}
	limit := l.program.Get().LeadRateLimit
	if limit.Rate <= 0 || limit.Burst <= 0 {
		return true, 0
	}

	res, err := l.bucket.Allow(ctx, fmt.Sprintf(keyLeadCreate, partnerID), limit.Rate, limit.Burst)
	if err != nil {
		l.log.Warn("lead rate limit check failed", zap.String("partner_id", partnerID), zap.Error(err))
		return true, 0
	}
	if !res.Allowed {
		l.metrics.RecordRateLimitDenied(ctx, "leads.create", "token_bucket_empty")
	}
	return res.Allowed, res.RetryAfter
}
