package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/notekeeper/notekeeper/pkg/logger"
	"github.com/notekeeper/notekeeper/pkg/metrics"
)

// RedisRateLimitMiddleware counts requests per key (see rateKey) in fixed
// windows shared by all replicas. Each window admits rps*window+burst
// requests. A nil client falls back to the in-process limiter; a Redis
// failure lets the request through.
func RedisRateLimitMiddleware(client *redis.Client, rps float64, burst int, window time.Duration) gin.HandlerFunc {
	if client == nil {
		return RateLimitMiddleware(rps, burst)
	}
	if window < time.Second {
		window = time.Second
	}
	secs := int64(window / time.Second)
	limit := int64(rps*float64(secs)) + int64(burst)

	return func(c *gin.Context) {
		now := time.Now().Unix()
		slot := now / secs
		key := "notekeeper:rl:" + rateKey(c) + ":" + strconv.FormatInt(slot, 10)

		var incr *redis.IntCmd
		_, err := client.TxPipelined(c.Request.Context(), func(p redis.Pipeliner) error {
			incr = p.Incr(c.Request.Context(), key)
			p.Expire(c.Request.Context(), key, window+time.Second)
			return nil
		})
		if err != nil {
			logger.Warnf("rate limit: redis unavailable, allowing request: %v", err)
			c.Next()
			return
		}
		if incr.Val() > limit {
			c.Header("Retry-After", strconv.FormatInt((slot+1)*secs-now, 10))
			metrics.RateLimitRejected.WithLabelValues("redis").Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		metrics.RateLimitAllowed.WithLabelValues("redis").Inc()
		c.Next()
	}
}
