package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/apascualco/microscope/internal/domain"
	"github.com/gin-gonic/gin"
)

const readinessTimeout = 2 * time.Second

// StatusCounter reports how many monitored applications are in each status.
type StatusCounter interface {
	StatusCounts() map[domain.Status]int
}

type ApplicationSummary struct {
	Total    int                   `json:"total"`
	ByStatus map[domain.Status]int `json:"by_status"`
}

type HealthResponse struct {
	Status       string             `json:"status"`
	Version      string             `json:"version"`
	Uptime       string             `json:"uptime"`
	Applications ApplicationSummary `json:"applications"`
}

// HealthHandler always reports UP. Monitored applications being down says
// nothing about the dashboard itself, so they are only summarised.
func HealthHandler(startTime time.Time, version string, apps StatusCounter) gin.HandlerFunc {
	return func(c *gin.Context) {
		counts := apps.StatusCounts()
		total := 0
		for _, n := range counts {
			total += n
		}
		c.JSON(http.StatusOK, HealthResponse{
			Status:       string(domain.StatusUp),
			Version:      version,
			Uptime:       time.Since(startTime).Truncate(time.Second).String(),
			Applications: ApplicationSummary{Total: total, ByStatus: counts},
		})
	}
}

// ReadinessCheck probes a backing service the dashboard needs to serve traffic.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type ReadyResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// ReadyHandler runs every check and answers 503 when any of them fails.
func ReadyHandler(checks ...ReadinessCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
		defer cancel()

		resp := ReadyResponse{Status: "ready"}
		code := http.StatusOK
		for _, check := range checks {
			if resp.Checks == nil {
				resp.Checks = make(map[string]string, len(checks))
			}
			if err := check.Check(ctx); err != nil {
				resp.Checks[check.Name] = err.Error()
				resp.Status = "unavailable"
				code = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[check.Name] = "ok"
		}
		c.JSON(code, resp)
	}
}
