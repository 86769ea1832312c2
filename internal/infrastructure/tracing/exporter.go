// Package tracing exports request spans to an OTLP/HTTP collector.
package tracing

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

const (
	ExporterNone = "none"
	ExporterOTLP = "otlp"
)

type SpanKind int

const (
	SpanKindServer SpanKind = iota
	SpanKindClient
)

func (k SpanKind) String() string {
	switch k {
	case SpanKindServer:
		return "SERVER"
	case SpanKindClient:
		return "CLIENT"
	default:
		return "UNSPECIFIED"
	}
}

type SpanData struct {
	TraceID      string
	SpanID       string
	ParentSpanID string
	Name         string
	Kind         SpanKind
	StartTime    time.Time
	EndTime      time.Time
	StatusCode   int
	Attributes   map[string]string
}

type SpanExporter interface {
	Export(ctx context.Context, span SpanData)
	Shutdown(ctx context.Context) error
}

type Settings struct {
	Exporter       string
	Endpoint       string
	ServiceName    string
	ServiceVersion string
}

// NewExporter falls back to the noop exporter when OTLP is not fully configured.
func NewExporter(s Settings, client *http.Client) SpanExporter {
	if s.Exporter != ExporterOTLP {
		slog.Debug("trace exporter disabled (noop)")
		return NoopExporter{}
	}
	if s.Endpoint == "" {
		slog.Warn("TRACE_EXPORTER=otlp but TRACE_OTLP_ENDPOINT is empty, falling back to noop")
		return NoopExporter{}
	}

	slog.Info("trace exporter enabled",
		slog.String("exporter", s.Exporter),
		slog.String("endpoint", s.Endpoint),
		slog.String("service_name", s.ServiceName),
	)
	return NewOTLPExporter(s, client)
}
