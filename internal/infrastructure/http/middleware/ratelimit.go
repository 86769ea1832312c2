package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/apascualco/microscope/internal/infrastructure/ratelimit"
	"github.com/gin-gonic/gin"
)

// RateLimit limits requests per minute. Authenticated services are keyed by their
// token subject, everyone else by client IP. A limiter failure lets the request through.
func RateLimit(limiter ratelimit.RateLimiter, limit int) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := rateLimitKey(c)

		result, err := limiter.Allow(c.Request.Context(), key, limit)
		if err != nil {
			slog.Warn("rate limiter unavailable", "key", key, "error", err)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))

		if !result.Allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":   "rate_limit_exceeded",
				"message": "too many requests, please try again later",
			})
			return
		}

		c.Next()
	}
}

func rateLimitKey(c *gin.Context) string {
	if service := c.GetString(ContextKeyServiceName); service != "" {
		return fmt.Sprintf("service:%s", service)
	}
	return fmt.Sprintf("ip:%s", c.ClientIP())
}
