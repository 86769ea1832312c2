package notifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhook_Notify(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sink, err := NewWebhook(WebhookConfig{URL: srv.URL}, srv.Client())
	require.NoError(t, err)

	require.NoError(t, sink.Notify(context.Background(), downEvent()))
	assert.Equal(t, "*billing* (a1) is *DOWN*", got["text"])
}

func TestWebhook_CustomTemplate(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
	}))
	defer srv.Close()

	sink, err := NewWebhook(WebhookConfig{
		URL:      srv.URL,
		Template: "{{.Application.Name}}: {{.From.Status}} -> {{.To.Status}}",
	}, srv.Client())
	require.NoError(t, err)

	require.NoError(t, sink.Notify(context.Background(), downEvent()))
	assert.Equal(t, "billing: UP -> DOWN", got["text"])
}

func TestWebhook_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	sink, err := NewWebhook(WebhookConfig{URL: srv.URL, Retries: 2}, srv.Client())
	require.NoError(t, err)

	require.NoError(t, sink.Notify(context.Background(), downEvent()))
	assert.Equal(t, int32(2), calls.Load())
}

func TestWebhook_TimeoutBoundsRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	sink, err := NewWebhook(WebhookConfig{URL: srv.URL, Retries: 50, Timeout: 300 * time.Millisecond}, srv.Client())
	require.NoError(t, err)

	start := time.Now()
	assert.Error(t, sink.Notify(context.Background(), downEvent()))
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestWebhook_GivesUp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	sink, err := NewWebhook(WebhookConfig{URL: srv.URL, Retries: 1}, srv.Client())
	require.NoError(t, err)

	assert.Error(t, sink.Notify(context.Background(), downEvent()))
}

func TestWebhook_ClientError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	sink, err := NewWebhook(WebhookConfig{URL: srv.URL}, srv.Client())
	require.NoError(t, err)

	assert.ErrorContains(t, sink.Notify(context.Background(), downEvent()), "status 400")
}

func TestNewWebhook_Validation(t *testing.T) {
	_, err := NewWebhook(WebhookConfig{}, nil)
	assert.ErrorContains(t, err, "URL is required")

	_, err = NewWebhook(WebhookConfig{URL: "http://x", Template: "{{.Application"}, nil)
	assert.ErrorContains(t, err, "template")
}
