package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config is read from the environment. Pointer fields stay nil when the variable is
// not set, so callers can tell an explicit value from a fallback. Groups are embedded
// to keep their variable names unprefixed.
type Config struct {
	AppName            string   `envconfig:"APP_NAME" default:"microscope"`
	Env                string   `envconfig:"ENV" default:"development"`
	LogLevel           string   `envconfig:"LOG_LEVEL" default:"debug"`
	ProfilesActive     []string `envconfig:"PROFILES_ACTIVE"`
	CORSAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
	CORSAllowedMethods []string `envconfig:"CORS_ALLOWED_METHODS" default:"GET,POST,PUT,DELETE,OPTIONS"`
	CORSAllowedHeaders []string `envconfig:"CORS_ALLOWED_HEADERS" default:"Origin,Content-Type,Accept,Authorization,X-Request-ID,X-Service-Token"`

	ServerPort        *int    `envconfig:"SERVER_PORT"`
	Port              *int    `envconfig:"PORT"`
	ServerContextPath *string `envconfig:"SERVER_CONTEXT_PATH"`
	SSLEnabled        bool    `envconfig:"SERVER_SSL_ENABLED" default:"false"`
	SSLCertFile       string  `envconfig:"SERVER_SSL_CERT_FILE"`
	SSLKeyFile        string  `envconfig:"SERVER_SSL_KEY_FILE"`

	ManagementPort        *int    `envconfig:"MANAGEMENT_PORT"`
	ManagementContextPath *string `envconfig:"MANAGEMENT_CONTEXT_PATH"`

	EurekaConfig

	CloudProvider string        `envconfig:"CLOUD_PROVIDER"`
	CloudTimeout  time.Duration `envconfig:"CLOUD_TIMEOUT" default:"2s"`

	HeartbeatTTL        time.Duration `envconfig:"HEARTBEAT_TTL" default:"30s"`
	HealthCheckInterval time.Duration `envconfig:"HEALTH_CHECK_INTERVAL" default:"10s"`
	HealthCheckTimeout  time.Duration `envconfig:"HEALTH_CHECK_TIMEOUT" default:"5s"`
	ServiceTokenKey     string        `envconfig:"SERVICE_TOKEN_PUBLIC_KEY"`
	ServiceTokenIssuers []string      `envconfig:"SERVICE_TOKEN_ALLOWED_ISSUERS"`

	IgnoreSSLErrors bool `envconfig:"DISCOVERY_IGNORE_SSL_ERRORS" default:"false"`

	MetricsEnabled     bool   `envconfig:"METRICS_ENABLED" default:"true"`
	RedisURL           string `envconfig:"REDIS_URL"`
	RateLimitPerMinute int    `envconfig:"API_RATE_LIMIT_PER_MINUTE" default:"120"`

	TraceExporter     string `envconfig:"TRACE_EXPORTER" default:"none"`
	TraceOTLPEndpoint string `envconfig:"TRACE_OTLP_ENDPOINT"`
	TraceServiceName  string `envconfig:"TRACE_SERVICE_NAME" default:"microscope"`

	NotifyConfig

	Version, Commit, BuildDate string
}

type EurekaConfig struct {
	ServiceURL              string        `envconfig:"EUREKA_CLIENT_SERVICE_URL"`
	RenewalInterval         time.Duration `envconfig:"EUREKA_INSTANCE_LEASE_RENEWAL_INTERVAL" default:"30s"`
	Hostname                *string       `envconfig:"EUREKA_INSTANCE_HOSTNAME"`
	IPAddress               *string       `envconfig:"EUREKA_INSTANCE_IP_ADDRESS"`
	PreferIPAddress         *bool         `envconfig:"EUREKA_INSTANCE_PREFER_IP_ADDRESS"`
	SecurePortEnabled       *bool         `envconfig:"EUREKA_INSTANCE_SECURE_PORT_ENABLED"`
	NonSecurePortEnabled    *bool         `envconfig:"EUREKA_INSTANCE_NON_SECURE_PORT_ENABLED"`
	SecurePort              *int          `envconfig:"EUREKA_INSTANCE_SECURE_PORT"`
	StatusPageURL           *string       `envconfig:"EUREKA_INSTANCE_STATUS_PAGE_URL"`
	HealthCheckURL          *string       `envconfig:"EUREKA_INSTANCE_HEALTH_CHECK_URL"`
	SecureHealthCheckURL    *string       `envconfig:"EUREKA_INSTANCE_SECURE_HEALTH_CHECK_URL"`
	HomePageURL             *string       `envconfig:"EUREKA_INSTANCE_HOME_PAGE_URL"`
	StatusPageURLPath       string        `envconfig:"EUREKA_INSTANCE_STATUS_PAGE_URL_PATH" default:"/info"`
	HealthCheckURLPath      string        `envconfig:"EUREKA_INSTANCE_HEALTH_CHECK_URL_PATH" default:"/health"`
	MetadataBuildAttributes []string      `envconfig:"EUREKA_INSTANCE_METADATA_BUILD_ATTRIBUTES" default:"version"`
	MetadataGitAttributes   []string      `envconfig:"EUREKA_INSTANCE_METADATA_GIT_ATTRIBUTES" default:"commit.id"`
}

type NotifyConfig struct {
	SchedulerFixedRate time.Duration `envconfig:"NOTIFY_SCHEDULER_FIXED_RATE" required:"true"`
	ReminderPeriod     time.Duration `envconfig:"NOTIFY_REMINDER_PERIOD" default:"10m"`
	ReminderStatuses   []string      `envconfig:"NOTIFY_REMINDER_STATUSES" default:"DOWN,OFFLINE"`
	LogEnabled         bool          `envconfig:"NOTIFY_LOG_ENABLED" default:"false"`
	WebhookURL         string        `envconfig:"NOTIFY_WEBHOOK_URL"`
	WebhookTemplate    string        `envconfig:"NOTIFY_WEBHOOK_TEMPLATE"`
	WebhookRetries     int           `envconfig:"NOTIFY_WEBHOOK_RETRIES" default:"3"`
	WebhookTimeout     time.Duration `envconfig:"NOTIFY_WEBHOOK_TIMEOUT" default:"5s"`
	RedisEnabled       bool          `envconfig:"NOTIFY_REDIS_ENABLED" default:"false"`
	RedisChannel       string        `envconfig:"NOTIFY_REDIS_CHANNEL" default:"microscope:notifications"`
}

const defaultPort = 8080

// EffectiveServerPort resolves SERVER_PORT, then PORT, then 8080.
func (c *Config) EffectiveServerPort() int {
	if c.ServerPort != nil {
		return *c.ServerPort
	}
	if c.Port != nil {
		return *c.Port
	}
	return defaultPort
}

func Load(version, commit, buildDate string) (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	cfg.Version, cfg.Commit, cfg.BuildDate = version, commit, buildDate
	return &cfg, nil
}
