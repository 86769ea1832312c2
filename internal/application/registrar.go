package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/apascualco/microscope/internal/domain"
)

const (
	defaultServerPort  = 8080
	defaultContextPath = "/"

	MetadataProfilesActive = "profiles.active"
	MetadataGoVersion      = "go.version"
	MetadataManagementPort = "management.port"
	MetadataManagementPath = "management.contextPath"
	// The admin dashboard reads this exact key and does not relax property names.
	MetadataManagementPathLiteral = "management.context-path"
)

var ErrAlreadyFixed = errors.New("instance descriptor already fixed")

// CloudInfoProvider returns the cloud snapshot of the current machine. An empty
// snapshot means the process is not running in a cloud.
type CloudInfoProvider interface {
	Fetch(ctx context.Context) (*domain.CloudMetadata, error)
}

// RegistrarConfig carries explicit settings. A nil field means "not configured".
type RegistrarConfig struct {
	SSLEnabled            bool
	ServerPort            *int
	Port                  *int
	ServerContextPath     *string
	ManagementPort        *int
	ManagementContextPath *string

	Hostname             *string
	IPAddress            *string
	PreferIPAddress      *bool
	SecurePortEnabled    *bool
	NonSecurePortEnabled *bool
	SecurePort           *int

	StatusPageURL        *string
	HealthCheckURL       *string
	SecureHealthCheckURL *string
	HomePageURL          *string

	BuildAttributes []string
	GitAttributes   []string
	ActiveProfiles  []string
	RuntimeVersion  string
}

type RegistrarOption func(*Registrar)

// WithCloudInfo installs the provider used for the cloud override step.
func WithCloudInfo(provider CloudInfoProvider) RegistrarOption {
	return func(r *Registrar) {
		r.cloud = provider
	}
}

func WithRegistrarLogger(logger *slog.Logger) RegistrarOption {
	return func(r *Registrar) {
		r.logger = logger
	}
}

// Registrar fixes up the instance descriptor before it is published to the
// discovery registry.
type Registrar struct {
	config   RegistrarConfig
	metadata ManagementMetadataProvider
	cloud    CloudInfoProvider
	build    domain.InfoProperties
	git      domain.InfoProperties
	logger   *slog.Logger

	mu    sync.Mutex
	fixed bool
}

func NewRegistrar(cfg RegistrarConfig, metadata ManagementMetadataProvider, build, git domain.InfoProperties, opts ...RegistrarOption) *Registrar {
	r := &Registrar{
		config:   cfg,
		metadata: metadata,
		build:    build,
		git:      git,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Fix mutates instance in place. The steps run in a fixed order because later steps
// read fields written by earlier ones. Any collaborator failure is returned and must
// abort startup.
func (r *Registrar) Fix(ctx context.Context, instance *domain.InstanceDescriptor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.fixed {
		return ErrAlreadyFixed
	}

	if instance.Metadata == nil {
		instance.Metadata = make(map[string]string)
	}

	serverPort := r.ServerPort()

	if err := r.addCloudInfo(ctx, instance); err != nil {
		return fmt.Errorf("failed to add cloud info: %w", err)
	}
	r.populateMetadata(instance, serverPort)
	r.fixPorts(instance, serverPort)
	if err := r.fixURLs(instance, serverPort); err != nil {
		return fmt.Errorf("failed to fix instance urls: %w", err)
	}
	instance.PreferIPAddress = boolOr(r.config.PreferIPAddress, true)

	if err := instance.Validate(); err != nil {
		return err
	}

	r.fixed = true
	r.logger.Info("instance descriptor fixed",
		slog.String("app", instance.AppName),
		slog.String("hostname", instance.Hostname),
		slog.String("ip_address", instance.IPAddress),
		slog.Int("port", instance.Port),
		slog.Int("management_port", instance.ManagementPort),
		slog.Bool("secure", instance.IsSecurePortEnabled()),
		slog.String("status_page_url", instance.StatusPageURL),
	)
	return nil
}

// ServerPort resolves the server port, then the plain port, then 8080.
func (r *Registrar) ServerPort() int {
	return intOr(r.config.ServerPort, intOr(r.config.Port, defaultServerPort))
}

func (r *Registrar) managementPort(serverPort int) int {
	return intOr(r.config.ManagementPort, serverPort)
}

func (r *Registrar) addCloudInfo(ctx context.Context, instance *domain.InstanceDescriptor) error {
	if r.cloud == nil {
		return nil
	}

	snapshot, err := r.cloud.Fetch(ctx)
	if err != nil {
		return err
	}
	if snapshot.IsEmpty() {
		r.logger.Debug("cloud metadata is empty, keeping detected identity")
		return nil
	}

	instance.DataCenterInfo = snapshot
	if v := snapshot.Get(domain.CloudLocalHostname); v != "" || r.config.Hostname != nil {
		instance.Hostname = stringOr(r.config.Hostname, v)
	}
	if v := snapshot.Get(domain.CloudLocalIPv4); v != "" || r.config.IPAddress != nil {
		instance.IPAddress = stringOr(r.config.IPAddress, v)
	}
	return nil
}

func (r *Registrar) populateMetadata(instance *domain.InstanceDescriptor, serverPort int) {
	for k, v := range r.git.Select("git", r.config.GitAttributes) {
		instance.Metadata[k] = v
	}
	for k, v := range r.build.Select("build", r.config.BuildAttributes) {
		instance.Metadata[k] = v
	}
	instance.Metadata[MetadataProfilesActive] = strings.Join(r.config.ActiveProfiles, ",")
	instance.Metadata[MetadataGoVersion] = r.config.RuntimeVersion
	instance.Metadata[MetadataManagementPort] = strconv.Itoa(r.managementPort(serverPort))

	if r.config.ManagementContextPath != nil {
		instance.Metadata[MetadataManagementPath] = *r.config.ManagementContextPath
		instance.Metadata[MetadataManagementPathLiteral] = *r.config.ManagementContextPath
	}
}

func (r *Registrar) fixPorts(instance *domain.InstanceDescriptor, serverPort int) {
	instance.Port = serverPort

	if !r.config.SSLEnabled {
		instance.SecurePort = nil
		instance.SecurePortEnabled = nil
		instance.SecureHealthCheckURL = ""
		return
	}

	securePortEnabled := boolOr(r.config.SecurePortEnabled, true)
	securePort := intOr(r.config.SecurePort, serverPort)
	instance.SecurePortEnabled = &securePortEnabled
	instance.NonSecurePortEnabled = boolOr(r.config.NonSecurePortEnabled, false)
	instance.SecurePort = &securePort
}

func (r *Registrar) fixURLs(instance *domain.InstanceDescriptor, serverPort int) error {
	serverContextPath := stringOr(r.config.ServerContextPath, defaultContextPath)
	managementPort := r.managementPort(serverPort)
	instance.ManagementPort = managementPort

	metadata, err := r.metadata.Get(instance, serverPort, serverContextPath, r.config.ManagementContextPath, managementPort)
	if err != nil {
		return err
	}
	if metadata == nil {
		return nil
	}

	instance.StatusPageURL = stringOr(r.config.StatusPageURL, metadata.StatusPageURL)
	instance.HealthCheckURL = stringOr(r.config.HealthCheckURL, metadata.HealthCheckURL)
	// The home page falls back to the status page, not to a separate home URL.
	instance.HomePageURL = stringOr(r.config.HomePageURL, metadata.StatusPageURL)
	if r.config.SSLEnabled {
		secure := metadata.SecureHealthCheckURL
		if secure == "" {
			secure = metadata.HealthCheckURL
		}
		instance.SecureHealthCheckURL = stringOr(r.config.SecureHealthCheckURL, secure)
	}
	return nil
}

func intOr(v *int, def int) int {
	if v != nil {
		return *v
	}
	return def
}

func boolOr(v *bool, def bool) bool {
	if v != nil {
		return *v
	}
	return def
}

func stringOr(v *string, def string) string {
	if v != nil {
		return *v
	}
	return def
}
