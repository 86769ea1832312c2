// Package health probes the health endpoint of monitored applications.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/apascualco/microscope/internal/domain"
)

const maxBodySize = 64 << 10

// Prober reads the status of an application from its health URL. A 2xx response
// is UP unless the JSON body reports another status. 503 is DOWN. Transport
// failures are returned as errors and the registry treats them as OFFLINE.
type Prober struct {
	client *http.Client
}

func NewProber(client *http.Client) *Prober {
	return &Prober{client: client}
}

func (p *Prober) Probe(ctx context.Context, app *domain.Application) (domain.Status, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, app.HealthURL, nil)
	if err != nil {
		return domain.StatusUnknown, fmt.Errorf("failed to create health request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return domain.StatusUnknown, fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	reported := parseStatus(body)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if reported == "" {
			return domain.StatusUp, nil
		}
		return domain.ParseStatus(reported), nil
	case resp.StatusCode == http.StatusServiceUnavailable:
		if reported == string(domain.StatusOutOfService) {
			return domain.StatusOutOfService, nil
		}
		return domain.StatusDown, nil
	default:
		return domain.StatusDown, nil
	}
}

func parseStatus(body []byte) string {
	var payload struct {
		Status string `json:"status"`
	}
	if len(body) == 0 || json.Unmarshal(body, &payload) != nil {
		return ""
	}
	return payload.Status
}
