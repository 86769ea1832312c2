package domain

import (
	"errors"
	"net/url"
	"path"
	"strings"
)

type RegisterRequest struct {
	Name          string            `json:"name" binding:"required"`
	ManagementURL string            `json:"management_url"`
	HealthURL     string            `json:"health_url" binding:"required"`
	ServiceURL    string            `json:"service_url"`
	Metadata      map[string]string `json:"metadata"`
}

func (r *RegisterRequest) Validate() error {
	if r.Name == "" {
		return errors.New("name is required")
	}
	if r.HealthURL == "" {
		return errors.New("health_url is required")
	}
	if !isAbsoluteURL(r.HealthURL) {
		return errors.New("health_url must be an absolute URL")
	}
	if r.ManagementURL != "" && !isAbsoluteURL(r.ManagementURL) {
		return errors.New("management_url must be an absolute URL")
	}
	if r.ServiceURL != "" && !isAbsoluteURL(r.ServiceURL) {
		return errors.New("service_url must be an absolute URL")
	}
	if r.ManagementURL == "" {
		r.ManagementURL = managementFromHealth(r.HealthURL)
	}
	return nil
}

func isAbsoluteURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && u.IsAbs() && u.Host != ""
}

// managementFromHealth strips the last path segment of the health URL.
func managementFromHealth(health string) string {
	u, err := url.Parse(health)
	if err != nil {
		return health
	}
	dir := path.Dir(strings.TrimSuffix(u.Path, "/"))
	if dir == "." || dir == "/" {
		dir = ""
	}
	u.Path = dir
	u.RawQuery = ""
	return u.String()
}

type RegisterResponse struct {
	ID                string `json:"id"`
	HeartbeatInterval int    `json:"heartbeat_interval"`
	HeartbeatURL      string `json:"heartbeat_url"`
}

type HeartbeatResponse struct {
	Status string `json:"status"`
}
