package domain

import (
	"slices"
	"time"
)

type Status string

const (
	StatusUnknown      Status = "UNKNOWN"
	StatusUp           Status = "UP"
	StatusDown         Status = "DOWN"
	StatusOutOfService Status = "OUT_OF_SERVICE"
	StatusOffline      Status = "OFFLINE"
)

var knownStatuses = []Status{StatusUnknown, StatusUp, StatusDown, StatusOutOfService, StatusOffline}

// ParseStatus maps a reported status onto a known one, falling back to UNKNOWN.
func ParseStatus(s string) Status {
	st := Status(s)
	if slices.Contains(knownStatuses, st) {
		return st
	}
	return StatusUnknown
}

type StatusInfo struct {
	Status    Status    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

func (s StatusInfo) IsUp() bool {
	return s.Status == StatusUp
}

// Application is a monitored application registered with the dashboard.
type Application struct {
	ID            string            `json:"id"`
	Name          string            `json:"name"`
	ManagementURL string            `json:"management_url"`
	HealthURL     string            `json:"health_url"`
	ServiceURL    string            `json:"service_url"`
	Metadata      map[string]string `json:"metadata"`
	StatusInfo    StatusInfo        `json:"status_info"`
	RegisteredAt  time.Time         `json:"registered_at"`
	LastHeartbeat time.Time         `json:"last_heartbeat"`
}

func (a *Application) IsUp() bool {
	return a.StatusInfo.IsUp()
}

// Ref returns the identifying part of the application carried by events.
func (a *Application) Ref() ApplicationRef {
	return ApplicationRef{
		ID:            a.ID,
		Name:          a.Name,
		ManagementURL: a.ManagementURL,
		HealthURL:     a.HealthURL,
		ServiceURL:    a.ServiceURL,
	}
}

type ApplicationRef struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	ManagementURL string `json:"management_url,omitempty"`
	HealthURL     string `json:"health_url"`
	ServiceURL    string `json:"service_url,omitempty"`
}
