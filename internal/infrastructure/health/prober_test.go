package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/apascualco/microscope/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProber_Probe(t *testing.T) {
	tests := []struct {
		name     string
		code     int
		body     string
		expected domain.Status
	}{
		{"ok without body", http.StatusOK, "", domain.StatusUp},
		{"ok with status", http.StatusOK, `{"status":"UP"}`, domain.StatusUp},
		{"ok reporting down", http.StatusOK, `{"status":"DOWN"}`, domain.StatusDown},
		{"ok with unknown status", http.StatusOK, `{"status":"DEGRADED"}`, domain.StatusUnknown},
		{"ok with plain text", http.StatusOK, "healthy", domain.StatusUp},
		{"unavailable", http.StatusServiceUnavailable, `{"status":"DOWN"}`, domain.StatusDown},
		{"out of service", http.StatusServiceUnavailable, `{"status":"OUT_OF_SERVICE"}`, domain.StatusOutOfService},
		{"server error", http.StatusInternalServerError, "", domain.StatusDown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.code)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			status, err := NewProber(srv.Client()).Probe(context.Background(), &domain.Application{HealthURL: srv.URL + "/health"})

			require.NoError(t, err)
			assert.Equal(t, tt.expected, status)
		})
	}
}

func TestProber_ConnectionError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewProber(http.DefaultClient).Probe(context.Background(), &domain.Application{HealthURL: url})

	assert.Error(t, err)
}
