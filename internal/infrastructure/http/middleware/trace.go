package middleware

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/apascualco/microscope/internal/infrastructure/tracing"
	"github.com/gin-gonic/gin"
)

const (
	ContextKeyTraceID = "trace_id"
	ContextKeySpanID  = "span_id"
)

type TraceContext struct {
	TraceID  string
	SpanID   string
	ParentID string
	Flags    string
	State    string
}

type TraceProvider interface {
	Extract(c *gin.Context) *TraceContext
	Inject(c *gin.Context, tc *TraceContext)
}

// TraceMiddleware opens a server span per request and stores it in the request
// context so outgoing calls can continue the trace.
func TraceMiddleware(provider TraceProvider, exporter tracing.SpanExporter) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		tc := provider.Extract(c)
		if tc.TraceID == "" {
			tc.TraceID = tracing.NewTraceID()
		}
		tc.ParentID = tc.SpanID
		tc.SpanID = tracing.NewSpanID()
		if tc.Flags == "" {
			tc.Flags = "01"
		}

		c.Set(ContextKeyTraceID, tc.TraceID)
		c.Set(ContextKeySpanID, tc.SpanID)
		c.Request = c.Request.WithContext(tracing.ContextWithSpan(c.Request.Context(), tracing.SpanContext{
			TraceID: tc.TraceID,
			SpanID:  tc.SpanID,
			Flags:   tc.Flags,
		}))

		provider.Inject(c, tc)

		c.Next()

		route := c.FullPath()
		status := c.Writer.Status()
		exporter.Export(context.Background(), tracing.SpanData{
			TraceID:      tc.TraceID,
			SpanID:       tc.SpanID,
			ParentSpanID: tc.ParentID,
			Name:         fmt.Sprintf("%s %s", c.Request.Method, route),
			Kind:         tracing.SpanKindServer,
			StartTime:    start,
			EndTime:      time.Now(),
			StatusCode:   status,
			Attributes: map[string]string{
				"http.method":      c.Request.Method,
				"http.url":         c.Request.URL.String(),
				"http.status_code": strconv.Itoa(status),
				"http.route":       route,
				"net.peer.ip":      c.ClientIP(),
			},
		})
	}
}
