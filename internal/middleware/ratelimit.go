package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/supriyavikramsingh-sudo/sakhee-sub003/internal/api/response"
	"github.com/supriyavikramsingh-sudo/sakhee-sub003/internal/pkg/logger"
	"go.uber.org/zap"
)

// RateLimitConfig holds the per-window request limits.
type RateLimitConfig struct {
	IPRequestsPerMinute int64
	// GenerationPerMinute is the stricter limit on the plan-generation
	// endpoint; one LLM call per request makes it expensive.
	GenerationPerMinute int64
}

func DefaultRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		IPRequestsPerMinute: 60,
		GenerationPerMinute: 2,
	}
}

// RateLimiter implements fixed-window counting on redis.
type RateLimiter struct {
	client *redis.Client
	config *RateLimitConfig
}

func NewRateLimiter(client *redis.Client, config *RateLimitConfig) *RateLimiter {
	if config == nil {
		config = DefaultRateLimitConfig()
	}
	return &RateLimiter{client: client, config: config}
}

// RateLimitMiddleware limits requests per client IP.
func (rl *RateLimiter) RateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := fmt.Sprintf("ratelimit:ip:%s:minute", c.ClientIP())
		rl.enforce(c, key, rl.config.IPRequestsPerMinute, time.Minute)
	}
}

// GenerationRateLimitMiddleware applies the stricter per-user window on plan
// generation. The user id comes from the request body, so this keys on IP
// plus path.
func (rl *RateLimiter) GenerationRateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := fmt.Sprintf("ratelimit:generate:%s:minute", c.ClientIP())
		rl.enforce(c, key, rl.config.GenerationPerMinute, time.Minute)
	}
}

func (rl *RateLimiter) enforce(c *gin.Context, key string, limit int64, window time.Duration) {
	allowed, retryAfter, err := rl.check(c.Request.Context(), key, limit, window)
	if err != nil {
		// Redis trouble must not lock out legitimate traffic.
		logger.Error("rate limit check failed", zap.Error(err), zap.String("key", key))
		c.Next()
		return
	}
	if !allowed {
		c.Header("Retry-After", strconv.FormatInt(retryAfter, 10))
		c.AbortWithStatusJSON(http.StatusTooManyRequests,
			response.Error(4290, "too many requests, please slow down"))
		return
	}
	c.Next()
}

// check counts requests in a fixed window via INCR + EXPIRE.
func (rl *RateLimiter) check(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error) {
	pipe := rl.client.Pipeline()
	incrCmd := pipe.Incr(ctx, key)
	ttlCmd := pipe.TTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, fmt.Errorf("failed to execute rate limit pipeline: %w", err)
	}

	count := incrCmd.Val()
	ttl := ttlCmd.Val()

	if ttl < 0 {
		if err := rl.client.Expire(ctx, key, window).Err(); err != nil {
			logger.Warn("failed to set rate limit expiry", zap.Error(err), zap.String("key", key))
		}
		ttl = window
	}

	if count > limit {
		retryAfter := int64(ttl.Seconds())
		if retryAfter < 1 {
			retryAfter = 1
		}
		return false, retryAfter, nil
	}
	return true, 0, nil
}
