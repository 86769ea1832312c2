package middleware

import (
	"github.com/apascualco/microscope/internal/infrastructure/tracing"
	"github.com/gin-gonic/gin"
)

const (
	HeaderTraceparent = "Traceparent"
	HeaderTracestate  = "Tracestate"
)

// W3CTraceProvider continues traces started by the dashboard UI or a monitored
// application. An invalid traceparent starts a new trace; tracestate is kept.
type W3CTraceProvider struct{}

func NewW3CTraceProvider() *W3CTraceProvider {
	return &W3CTraceProvider{}
}

func (w *W3CTraceProvider) Extract(c *gin.Context) *TraceContext {
	tc := &TraceContext{State: c.GetHeader(HeaderTracestate)}
	if sc, ok := tracing.ParseTraceparent(c.GetHeader(HeaderTraceparent)); ok {
		tc.TraceID, tc.SpanID, tc.Flags = sc.TraceID, sc.SpanID, sc.Flags
	}
	return tc
}

func (w *W3CTraceProvider) Inject(c *gin.Context, tc *TraceContext) {
	sc := tracing.SpanContext{TraceID: tc.TraceID, SpanID: tc.SpanID, Flags: tc.Flags}
	c.Header(HeaderTraceparent, sc.Traceparent())
	if tc.State != "" {
		c.Header(HeaderTracestate, tc.State)
	}
}
