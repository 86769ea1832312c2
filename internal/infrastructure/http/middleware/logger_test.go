package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	previous := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(previous) })
	return &buf
}

func TestLogger_RecordsApplicationAndService(t *testing.T) {
	logs := captureLogs(t)

	router := gin.New()
	router.Use(RequestID(), Logger("/health"))
	router.POST("/api/applications/:id/heartbeat", func(c *gin.Context) {
		c.Set(ContextKeyServiceName, "billing")
		c.Status(http.StatusNotFound)
	})

	req, _ := http.NewRequest("POST", "/api/applications/app-1/heartbeat", nil)
	router.ServeHTTP(httptest.NewRecorder(), req)

	var line map[string]any
	require.NoError(t, json.Unmarshal(logs.Bytes(), &line))
	assert.Equal(t, "WARN", line["level"])
	assert.Equal(t, "/api/applications/:id/heartbeat", line["route"])
	assert.Equal(t, "app-1", line["application_id"])
	assert.Equal(t, "billing", line["service"])
	assert.NotEmpty(t, line["request_id"])
}

func TestLogger_SkipsPaths(t *testing.T) {
	logs := captureLogs(t)

	router := gin.New()
	router.Use(Logger("/health", "/metrics"))
	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	req, _ := http.NewRequest("GET", "/health", nil)
	router.ServeHTTP(httptest.NewRecorder(), req)

	assert.Empty(t, logs.String())
}
