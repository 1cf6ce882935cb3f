package middlewares

import (
	"context"
	"net/http"
	"time"

	"civicsync/metrics"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Counter is the subset of *redis.Client the limiter needs.
type Counter interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	TTL(ctx context.Context, key string) *redis.DurationCmd
}

// IssueRateLimiter caps how many issues each user may report per window.
// Must run after AuthMiddleware.
func IssueRateLimiter(counter Counter, queuePrefix string, limit int, window time.Duration, log *zap.Logger) gin.HandlerFunc {
	if window <= 0 {
		window = 24 * time.Hour
	}
	return func(c *gin.Context) {
		userID := c.GetString(ContextUserID)
		if userID == "" {
			abortUnauthorized(c, "Authentication required")
			return
		}

		ctx := c.Request.Context()
		userKey := queuePrefix + ":" + userID

		count, err := counter.Incr(ctx, userKey).Result()
		if err != nil {
			log.Error("rate limiter incr failed", zap.String("key", userKey), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "Something went wrong"})
			return
		}

		// first hit in the window starts the clock
		if count == 1 {
			if err := counter.Expire(ctx, userKey, window).Err(); err != nil {
				log.Error("rate limiter expire failed", zap.String("key", userKey), zap.Error(err))
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "Something went wrong"})
				return
			}
		}

		if count > int64(limit) {
			retryAfter, _ := counter.TTL(ctx, userKey).Result()
			metrics.IncRateLimited()
			log.Info("issue rate limit exceeded", zap.String("user_id", userID), zap.Int64("count", count))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"ok":          false,
				"error":       "Daily issue limit reached",
				"retry_after": retryAfter.Seconds(),
			})
			return
		}

		c.Next()
	}
}
