package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/apascualco/microscope/internal/application/notify"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupFiltersRouter(t *testing.T) (*gin.Engine, *notify.Relay, time.Time) {
	t.Helper()

	relay, err := notify.NewRelay(nil, notify.RelayConfig{FixedRate: time.Second})
	require.NoError(t, err)

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	handler := NewFiltersHandler(relay)
	handler.now = func() time.Time { return now }

	router := gin.New()
	router.GET("/api/notifications/filters", handler.List)
	router.POST("/api/notifications/filters", handler.Add)
	router.DELETE("/api/notifications/filters/:id", handler.Remove)
	return router, relay, now
}

func TestFilters_AddByName(t *testing.T) {
	router, relay, now := setupFiltersRouter(t)

	req, _ := http.NewRequest("POST", "/api/notifications/filters?name=billing&ttl=5m", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	var info notify.FilterInfo
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &info))
	assert.NotEmpty(t, info.ID)
	assert.Equal(t, "billing", info.Name)
	require.NotNil(t, info.Expiry)
	assert.True(t, info.Expiry.Equal(now.Add(5*time.Minute)))

	filters := relay.Filters()
	require.Len(t, filters, 1)
	assert.Equal(t, info.ID, filters[0].ID)
}

func TestFilters_AddByIDWithoutExpiry(t *testing.T) {
	router, _, _ := setupFiltersRouter(t)

	req, _ := http.NewRequest("POST", "/api/notifications/filters?id=abc", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	require.Equal(t, http.StatusCreated, resp.Code)
	var info notify.FilterInfo
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &info))
	assert.Equal(t, "abc", info.ApplicationID)
	assert.Nil(t, info.Expiry)
}

func TestFilters_AddInvalid(t *testing.T) {
	router, relay, _ := setupFiltersRouter(t)

	cases := []string{
		"/api/notifications/filters",
		"/api/notifications/filters?id=abc&name=billing",
		"/api/notifications/filters?name=billing&ttl=soon",
		"/api/notifications/filters?name=billing&ttl=-1m",
	}

	for _, url := range cases {
		req, _ := http.NewRequest("POST", url, nil)
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)

		assert.Equal(t, http.StatusBadRequest, resp.Code, url)
	}
	assert.Empty(t, relay.Filters())
}

func TestFilters_ListAndRemove(t *testing.T) {
	router, relay, _ := setupFiltersRouter(t)
	id := relay.AddFilter(notify.NewApplicationNameFilter("billing", time.Time{}))

	req, _ := http.NewRequest("GET", "/api/notifications/filters", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), id)

	req, _ = http.NewRequest("DELETE", "/api/notifications/filters/"+id, nil)
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusNoContent, resp.Code)
	assert.Empty(t, relay.Filters())

	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}
