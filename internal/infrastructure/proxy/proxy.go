// Package proxy forwards dashboard requests to the management endpoints of
// registered applications.
package proxy

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/apascualco/microscope/internal/domain"
	"github.com/apascualco/microscope/internal/infrastructure/http/middleware"
	"github.com/apascualco/microscope/internal/infrastructure/tracing"
	"github.com/gin-gonic/gin"
)

var hopByHopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailers",
	"Transfer-Encoding",
	"Upgrade",
}

// ApplicationLookup resolves a registered application by id.
type ApplicationLookup interface {
	GetApplication(id string) *domain.Application
}

type ProxyHandler struct {
	applications ApplicationLookup
	transport    http.RoundTripper
	exporter     tracing.SpanExporter
}

// NewProxyHandler forwards through transport, which decides how upstream
// certificates are verified.
func NewProxyHandler(applications ApplicationLookup, transport http.RoundTripper, exporter tracing.SpanExporter) *ProxyHandler {
	if exporter == nil {
		exporter = tracing.NoopExporter{}
	}
	return &ProxyHandler{
		applications: applications,
		transport:    transport,
		exporter:     exporter,
	}
}

// Handle serves /api/applications/:id/proxy/*path.
func (p *ProxyHandler) Handle(c *gin.Context) {
	app := p.applications.GetApplication(c.Param("id"))
	if app == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "application_not_found",
			"message": "the specified application does not exist",
		})
		return
	}

	target, err := url.Parse(app.ManagementURL)
	if err != nil || target.Host == "" {
		c.JSON(http.StatusBadGateway, gin.H{
			"error":   "invalid_management_url",
			"message": fmt.Sprintf("application %s has no usable management url", app.ID),
		})
		return
	}

	start := time.Now()
	span := tracing.SpanContext{Flags: "01"}
	parent, traced := tracing.SpanFromContext(c.Request.Context())
	if traced {
		span.TraceID, span.Flags = parent.TraceID, parent.Flags
	} else {
		span.TraceID = tracing.NewTraceID()
	}
	span.SpanID = tracing.NewSpanID()

	upstreamPath := singleJoiningSlash(target.Path, c.Param("path"))
	status := http.StatusBadGateway

	proxy := &httputil.ReverseProxy{
		Transport: p.transport,
		Director: func(req *http.Request) {
			req.URL.Scheme = target.Scheme
			req.URL.Host = target.Host
			req.Host = target.Host
			req.URL.Path = upstreamPath
			req.URL.RawPath = ""
			req.URL.RawQuery = c.Request.URL.RawQuery

			for _, h := range hopByHopHeaders {
				req.Header.Del(h)
			}
			// Credentials for the dashboard are not meant for the application.
			req.Header.Del("Authorization")
			req.Header.Del(middleware.HeaderServiceToken)

			clientIP := c.ClientIP()
			if prior := req.Header.Get("X-Forwarded-For"); prior != "" {
				clientIP = prior + ", " + clientIP
			}
			req.Header.Set("X-Forwarded-For", clientIP)
			if c.Request.Host != "" {
				req.Header.Set("X-Forwarded-Host", c.Request.Host)
			}
			proto := "http"
			if c.Request.TLS != nil {
				proto = "https"
			}
			req.Header.Set("X-Forwarded-Proto", proto)
			req.Header.Set("X-Forwarded-Prefix", strings.TrimSuffix(c.Request.URL.Path, c.Param("path")))

			if requestID := c.GetString(middleware.ContextKeyRequestID); requestID != "" {
				req.Header.Set(middleware.HeaderRequestID, requestID)
			}
			req.Header.Set(middleware.HeaderTraceparent, span.Traceparent())
		},
		ModifyResponse: func(resp *http.Response) error {
			status = resp.StatusCode
			return nil
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			slog.Warn("management request failed",
				"application", app.ID,
				"name", app.Name,
				"path", upstreamPath,
				"error", err,
			)
			c.JSON(http.StatusBadGateway, gin.H{
				"error":   "upstream_error",
				"message": fmt.Sprintf("failed to reach application: %v", err),
			})
		},
	}

	proxy.ServeHTTP(c.Writer, c.Request)

	p.exporter.Export(context.Background(), tracing.SpanData{
		TraceID:      span.TraceID,
		SpanID:       span.SpanID,
		ParentSpanID: parent.SpanID,
		Name:         fmt.Sprintf("%s %s", c.Request.Method, upstreamPath),
		Kind:         tracing.SpanKindClient,
		StartTime:    start,
		EndTime:      time.Now(),
		StatusCode:   status,
		Attributes: map[string]string{
			"http.method":      c.Request.Method,
			"http.url":         target.Scheme + "://" + target.Host + upstreamPath,
			"http.status_code": strconv.Itoa(status),
			"application.id":   app.ID,
			"application.name": app.Name,
		},
	})
}

func singleJoiningSlash(a, b string) string {
	aslash := strings.HasSuffix(a, "/")
	bslash := strings.HasPrefix(b, "/")
	switch {
	case aslash && bslash:
		return a + b[1:]
	case !aslash && !bslash:
		return a + "/" + b
	}
	return a + b
}
