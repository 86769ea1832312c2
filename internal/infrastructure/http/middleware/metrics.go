package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// RequestMetrics is the part of the metrics backend the HTTP layer records into.
type RequestMetrics interface {
	Incr(name string, tags map[string]string)
	Observe(name string, value float64, tags map[string]string)
}

// Metrics counts requests and records their latency by route template, so path
// parameters do not explode the label space. Unmatched routes share one label.
func Metrics(m RequestMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		tags := map[string]string{
			"method": c.Request.Method,
			"route":  route,
			"status": strconv.Itoa(c.Writer.Status()),
		}
		m.Incr("http.requests", tags)
		m.Observe("http.request.duration.seconds", time.Since(start).Seconds(), tags)
	}
}
