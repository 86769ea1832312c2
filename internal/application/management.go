package application

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/apascualco/microscope/internal/domain"
)

// ManagementMetadata holds the URLs computed for the management endpoints.
type ManagementMetadata struct {
	StatusPageURL        string
	HealthCheckURL       string
	SecureHealthCheckURL string
	ManagementPort       int
}

type ManagementMetadataProvider interface {
	// Get returns nil metadata when the URLs cannot be known yet, e.g. for a random port.
	Get(instance *domain.InstanceDescriptor, serverPort int, serverContextPath string, managementContextPath *string, managementPort int) (*ManagementMetadata, error)
}

type DefaultManagementMetadataProvider struct {
	statusPagePath  string
	healthCheckPath string
}

func NewDefaultManagementMetadataProvider(statusPagePath, healthCheckPath string) *DefaultManagementMetadataProvider {
	return &DefaultManagementMetadataProvider{
		statusPagePath:  statusPagePath,
		healthCheckPath: healthCheckPath,
	}
}

func (p *DefaultManagementMetadataProvider) Get(instance *domain.InstanceDescriptor, serverPort int, serverContextPath string, managementContextPath *string, managementPort int) (*ManagementMetadata, error) {
	if managementPort == 0 || serverPort == 0 {
		return nil, nil
	}
	if managementPort < 0 || managementPort > 65535 {
		return nil, fmt.Errorf("%w: management port %d", domain.ErrInvalidInstance, managementPort)
	}

	host := instance.Host()
	if host == "" {
		return nil, fmt.Errorf("%w: cannot build management urls without a host", domain.ErrInvalidInstance)
	}

	contextPath := serverContextPath
	if managementContextPath != nil {
		contextPath = *managementContextPath
	}

	metadata := &ManagementMetadata{
		StatusPageURL:  managementURL("http", host, managementPort, contextPath, p.statusPagePath),
		HealthCheckURL: managementURL("http", host, managementPort, contextPath, p.healthCheckPath),
		ManagementPort: managementPort,
	}
	if instance.IsSecurePortEnabled() {
		metadata.SecureHealthCheckURL = managementURL("https", host, managementPort, contextPath, p.healthCheckPath)
	}
	return metadata, nil
}

func managementURL(scheme, host string, port int, contextPath, endpoint string) string {
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return endpoint
	}
	u := url.URL{
		Scheme: scheme,
		Host:   net.JoinHostPort(host, strconv.Itoa(port)),
		Path:   joinPath(contextPath, endpoint),
	}
	return u.String()
}

func joinPath(contextPath, endpoint string) string {
	contextPath = strings.TrimSuffix(contextPath, "/")
	if contextPath != "" && !strings.HasPrefix(contextPath, "/") {
		contextPath = "/" + contextPath
	}
	if endpoint != "" && !strings.HasPrefix(endpoint, "/") {
		endpoint = "/" + endpoint
	}
	return contextPath + endpoint
}
