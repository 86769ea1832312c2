package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/apascualco/microscope/internal/infrastructure/ratelimit"
	"github.com/gin-gonic/gin"
)

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string, int) (*ratelimit.Result, error) {
	return nil, errors.New("redis down")
}

func newRateLimitRouter(limiter ratelimit.RateLimiter, limit int, service string) *gin.Engine {
	router := gin.New()
	if service != "" {
		router.Use(func(c *gin.Context) {
			c.Set(ContextKeyServiceName, service)
			c.Next()
		})
	}
	router.Use(RateLimit(limiter, limit))
	router.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return router
}

func doRequest(router *gin.Engine, remoteAddr string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/test", nil)
	req.RemoteAddr = remoteAddr
	router.ServeHTTP(w, req)
	return w
}

func TestRateLimit_AllowsUnderLimit(t *testing.T) {
	router := newRateLimitRouter(ratelimit.NewInMemoryLimiter(), 10, "")

	for i := 0; i < 5; i++ {
		w := doRequest(router, "192.168.1.1:12345")

		if w.Code != http.StatusOK {
			t.Errorf("request %d: expected status 200, got %d", i, w.Code)
		}
		if w.Header().Get("X-RateLimit-Limit") != "10" {
			t.Errorf("unexpected X-RateLimit-Limit %q", w.Header().Get("X-RateLimit-Limit"))
		}
		if w.Header().Get("X-RateLimit-Remaining") == "" {
			t.Error("missing X-RateLimit-Remaining header")
		}
		if w.Header().Get("X-RateLimit-Reset") == "" {
			t.Error("missing X-RateLimit-Reset header")
		}
	}
}

func TestRateLimit_BlocksOverLimit(t *testing.T) {
	router := newRateLimitRouter(ratelimit.NewInMemoryLimiter(), 3, "")

	for i := 0; i < 3; i++ {
		if w := doRequest(router, "192.168.1.1:12345"); w.Code != http.StatusOK {
			t.Errorf("request %d: expected status 200, got %d", i, w.Code)
		}
	}

	w := doRequest(router, "192.168.1.1:12345")
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("expected status 429, got %d", w.Code)
	}
	if w.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Errorf("X-RateLimit-Remaining should be 0, got %s", w.Header().Get("X-RateLimit-Remaining"))
	}
}

func TestRateLimit_DifferentIPsHaveDifferentLimits(t *testing.T) {
	router := newRateLimitRouter(ratelimit.NewInMemoryLimiter(), 2, "")

	doRequest(router, "192.168.1.1:12345")
	doRequest(router, "192.168.1.1:12345")

	if w := doRequest(router, "192.168.1.1:12345"); w.Code != http.StatusTooManyRequests {
		t.Errorf("IP 1 should be rate limited, got status %d", w.Code)
	}
	if w := doRequest(router, "192.168.1.2:12345"); w.Code != http.StatusOK {
		t.Errorf("IP 2 should be allowed, got status %d", w.Code)
	}
}

func TestRateLimit_KeysByServiceName(t *testing.T) {
	limiter := ratelimit.NewInMemoryLimiter()
	billing := newRateLimitRouter(limiter, 1, "billing")
	orders := newRateLimitRouter(limiter, 1, "orders")

	if w := doRequest(billing, "10.0.0.1:1000"); w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}
	if w := doRequest(billing, "10.0.0.2:1000"); w.Code != http.StatusTooManyRequests {
		t.Errorf("same service from another IP should be limited, got %d", w.Code)
	}
	if w := doRequest(orders, "10.0.0.1:1000"); w.Code != http.StatusOK {
		t.Errorf("another service should be allowed, got %d", w.Code)
	}
}

func TestRateLimit_FailsOpen(t *testing.T) {
	router := newRateLimitRouter(failingLimiter{}, 1, "")

	for i := 0; i < 3; i++ {
		if w := doRequest(router, "192.168.1.1:12345"); w.Code != http.StatusOK {
			t.Errorf("request %d: expected status 200, got %d", i, w.Code)
		}
	}
}
