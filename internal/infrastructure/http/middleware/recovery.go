package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
)

// ErrorResponse is the error envelope every dashboard API route answers with.
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// Recovery answers a panicking handler with a 500 envelope carrying the request
// id, and logs the route and application the request was for.
func Recovery() gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(io.Discard, func(c *gin.Context, recovered any) {
		requestID := c.GetString(ContextKeyRequestID)

		attrs := []any{
			"panic", recovered,
			"request_id", requestID,
			"method", c.Request.Method,
			"route", routeOf(c),
		}
		if id := c.Param("id"); id != "" {
			attrs = append(attrs, "application_id", id)
		}
		if service := c.GetString(ContextKeyServiceName); service != "" {
			attrs = append(attrs, "service", service)
		}
		attrs = append(attrs, "stack", string(debug.Stack()))
		slog.Error("handler panicked", attrs...)

		c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{
			Error:     "internal_error",
			Message:   "unexpected failure while handling the request",
			RequestID: requestID,
		})
	})
}

// routeOf returns the route template, or the raw path for unmatched requests.
func routeOf(c *gin.Context) string {
	if route := c.FullPath(); route != "" {
		return route
	}
	return c.Request.URL.Path
}
