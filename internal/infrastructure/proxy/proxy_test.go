package proxy

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/apascualco/microscope/internal/domain"
	"github.com/apascualco/microscope/internal/infrastructure/http/middleware"
	"github.com/apascualco/microscope/internal/infrastructure/tracing"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type staticApplications map[string]*domain.Application

func (s staticApplications) GetApplication(id string) *domain.Application {
	return s[id]
}

type recordingExporter struct {
	mu    sync.Mutex
	spans []tracing.SpanData
}

func (e *recordingExporter) Export(_ context.Context, span tracing.SpanData) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.spans = append(e.spans, span)
}

func (e *recordingExporter) Shutdown(context.Context) error { return nil }

// recorded waits for the span, which is exported after the response is written.
func (e *recordingExporter) recorded(t *testing.T) tracing.SpanData {
	t.Helper()
	require.Eventually(t, func() bool {
		e.mu.Lock()
		defer e.mu.Unlock()
		return len(e.spans) == 1
	}, time.Second, 10*time.Millisecond)

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.spans[0]
}

func setupProxyTestServer(apps staticApplications, exporter tracing.SpanExporter) *httptest.Server {
	handler := NewProxyHandler(apps, http.DefaultTransport, exporter)

	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.TraceMiddleware(middleware.NewW3CTraceProvider(), tracing.NoopExporter{}))
	router.Any("/api/applications/:id/proxy/*path", handler.Handle)
	return httptest.NewServer(router)
}

func TestProxy_ForwardsToManagementURL(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"method":        r.Method,
			"path":          r.URL.Path,
			"query":         r.URL.RawQuery,
			"request_id":    r.Header.Get("X-Request-ID"),
			"traceparent":   r.Header.Get("Traceparent"),
			"forwarded_for": r.Header.Get("X-Forwarded-For"),
			"prefix":        r.Header.Get("X-Forwarded-Prefix"),
			"token":         r.Header.Get("X-Service-Token"),
		})
	}))
	defer backend.Close()

	exporter := &recordingExporter{}
	apps := staticApplications{"app-1": {ID: "app-1", Name: "billing", ManagementURL: backend.URL + "/actuator"}}
	server := setupProxyTestServer(apps, exporter)
	defer server.Close()

	req, _ := http.NewRequest("GET", server.URL+"/api/applications/app-1/proxy/metrics/jvm?tag=area", nil)
	req.Header.Set("X-Request-ID", "req-1")
	req.Header.Set("X-Service-Token", "secret")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))

	assert.Equal(t, "GET", body["method"])
	assert.Equal(t, "/actuator/metrics/jvm", body["path"])
	assert.Equal(t, "tag=area", body["query"])
	assert.Equal(t, "req-1", body["request_id"])
	assert.NotEmpty(t, body["forwarded_for"])
	assert.Equal(t, "/api/applications/app-1/proxy", body["prefix"])
	assert.Empty(t, body["token"])

	span := exporter.recorded(t)
	assert.Equal(t, tracing.SpanKindClient, span.Kind)
	assert.Equal(t, http.StatusOK, span.StatusCode)
	assert.NotEmpty(t, span.ParentSpanID)
	assert.Equal(t, "billing", span.Attributes["application.name"])
	assert.True(t, strings.Contains(body["traceparent"], span.TraceID+"-"+span.SpanID))
}

func TestProxy_ForwardsMethodAndBody(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(r.Method + " " + string(data)))
	}))
	defer backend.Close()

	apps := staticApplications{"app-1": {ID: "app-1", ManagementURL: backend.URL}}
	server := setupProxyTestServer(apps, nil)
	defer server.Close()

	resp, err := http.Post(server.URL+"/api/applications/app-1/proxy/loggers/root", "application/json", strings.NewReader(`{"level":"DEBUG"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, `POST {"level":"DEBUG"}`, string(data))
}

func TestProxy_UnknownApplication(t *testing.T) {
	server := setupProxyTestServer(staticApplications{}, nil)
	defer server.Close()

	resp, err := http.Get(server.URL + "/api/applications/missing/proxy/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestProxy_UpstreamUnavailable(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	backendURL := backend.URL
	backend.Close()

	exporter := &recordingExporter{}
	apps := staticApplications{"app-1": {ID: "app-1", ManagementURL: backendURL}}
	server := setupProxyTestServer(apps, exporter)
	defer server.Close()

	resp, err := http.Get(server.URL + "/api/applications/app-1/proxy/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, http.StatusBadGateway, exporter.recorded(t).StatusCode)
}

func TestSingleJoiningSlash(t *testing.T) {
	cases := []struct{ a, b, want string }{
		{"", "/health", "/health"},
		{"/actuator", "/health", "/actuator/health"},
		{"/actuator/", "/health", "/actuator/health"},
		{"/actuator", "health", "/actuator/health"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, singleJoiningSlash(tc.a, tc.b))
	}
}
