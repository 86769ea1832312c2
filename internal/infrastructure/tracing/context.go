package tracing

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
)

// SpanContext identifies the active span of a request.
type SpanContext struct {
	TraceID string
	SpanID  string
	Flags   string
}

// Traceparent renders the W3C traceparent header value.
func (sc SpanContext) Traceparent() string {
	return fmt.Sprintf("00-%s-%s-%s", sc.TraceID, sc.SpanID, sc.Flags)
}

// ParseTraceparent reads a version 00 traceparent header. All-zero trace or span
// ids are invalid and rejected like malformed values.
func ParseTraceparent(header string) (SpanContext, bool) {
	parts := strings.Split(strings.TrimSpace(header), "-")
	if len(parts) != 4 || parts[0] != "00" {
		return SpanContext{}, false
	}
	sc := SpanContext{TraceID: parts[1], SpanID: parts[2], Flags: parts[3]}
	if !lowerHex(sc.TraceID, 32) || !lowerHex(sc.SpanID, 16) || !lowerHex(sc.Flags, 2) {
		return SpanContext{}, false
	}
	if strings.Trim(sc.TraceID, "0") == "" || strings.Trim(sc.SpanID, "0") == "" {
		return SpanContext{}, false
	}
	return sc, true
}

func lowerHex(s string, n int) bool {
	if len(s) != n {
		return false
	}
	for _, r := range s {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return false
		}
	}
	return true
}

type spanContextKey struct{}

func ContextWithSpan(ctx context.Context, sc SpanContext) context.Context {
	return context.WithValue(ctx, spanContextKey{}, sc)
}

func SpanFromContext(ctx context.Context) (SpanContext, bool) {
	sc, ok := ctx.Value(spanContextKey{}).(SpanContext)
	return sc, ok
}

func NewTraceID() string {
	return randomHex(16)
}

func NewSpanID() string {
	return randomHex(8)
}

func randomHex(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
