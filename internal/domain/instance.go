package domain

import (
	"fmt"
	"strings"
)

// InstanceDescriptor is the identity this process publishes to the discovery registry.
// It is fixed up once during startup and treated as read-only afterwards.
type InstanceDescriptor struct {
	AppName              string            `json:"app"`
	InstanceID           string            `json:"instance_id"`
	Hostname             string            `json:"hostname"`
	IPAddress            string            `json:"ip_address"`
	Port                 int               `json:"port"`
	NonSecurePortEnabled bool              `json:"non_secure_port_enabled"`
	SecurePort           *int              `json:"secure_port,omitempty"`
	SecurePortEnabled    *bool             `json:"secure_port_enabled,omitempty"`
	ManagementPort       int               `json:"management_port"`
	StatusPageURL        string            `json:"status_page_url,omitempty"`
	HealthCheckURL       string            `json:"health_check_url,omitempty"`
	SecureHealthCheckURL string            `json:"secure_health_check_url,omitempty"`
	HomePageURL          string            `json:"home_page_url,omitempty"`
	PreferIPAddress      bool              `json:"prefer_ip_address"`
	DataCenterInfo       *CloudMetadata    `json:"data_center_info,omitempty"`
	Metadata             map[string]string `json:"metadata"`
}

func NewInstanceDescriptor(appName, hostname, ipAddress string) *InstanceDescriptor {
	return &InstanceDescriptor{
		AppName:              appName,
		Hostname:             hostname,
		IPAddress:            ipAddress,
		NonSecurePortEnabled: true,
		Metadata:             make(map[string]string),
	}
}

// Host returns the address other instances should use to reach this one.
func (i *InstanceDescriptor) Host() string {
	if i.PreferIPAddress && i.IPAddress != "" {
		return i.IPAddress
	}
	return i.Hostname
}

func (i *InstanceDescriptor) IsSecurePortEnabled() bool {
	return i.SecurePortEnabled != nil && *i.SecurePortEnabled
}

// ID returns the explicit instance id or the conventional host:app:port form.
func (i *InstanceDescriptor) ID() string {
	if i.InstanceID != "" {
		return i.InstanceID
	}
	return fmt.Sprintf("%s:%s:%d", i.Hostname, strings.ToLower(i.AppName), i.Port)
}

// Validate checks the descriptor is safe to publish.
func (i *InstanceDescriptor) Validate() error {
	if i.AppName == "" {
		return fmt.Errorf("%w: app name is required", ErrInvalidInstance)
	}
	if i.Port <= 0 || i.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidInstance, i.Port)
	}
	if i.ManagementPort < 0 || i.ManagementPort > 65535 {
		return fmt.Errorf("%w: management port %d out of range", ErrInvalidInstance, i.ManagementPort)
	}
	if i.IsSecurePortEnabled() && i.SecurePort == nil {
		return fmt.Errorf("%w: secure port enabled without a secure port", ErrInvalidInstance)
	}
	if i.Host() == "" {
		return fmt.Errorf("%w: hostname or ip address is required", ErrInvalidInstance)
	}
	return nil
}
