package client

import (
	"errors"
	"fmt"
)

var ErrApplicationNotFound = errors.New("application not found")

// RegisterRequest describes the application to the dashboard. HealthURL must be
// absolute; ManagementURL defaults to the health URL without its last segment.
type RegisterRequest struct {
	Name          string            `json:"name"`
	ManagementURL string            `json:"management_url,omitempty"`
	HealthURL     string            `json:"health_url"`
	ServiceURL    string            `json:"service_url,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

type RegisterResponse struct {
	ID                string `json:"id"`
	HeartbeatInterval int    `json:"heartbeat_interval"`
	HeartbeatURL      string `json:"heartbeat_url"`
}

// StatusError is returned when the dashboard answers with an unexpected status.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s failed with status %d: %s", e.Op, e.StatusCode, e.Body)
}
