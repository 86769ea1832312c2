package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/apascualco/microscope/internal/application"
	"github.com/apascualco/microscope/internal/application/notify"
	"github.com/apascualco/microscope/internal/domain"
	"github.com/apascualco/microscope/internal/infrastructure/config"
	"github.com/apascualco/microscope/internal/infrastructure/eureka"
	"github.com/apascualco/microscope/internal/infrastructure/health"
	httpserver "github.com/apascualco/microscope/internal/infrastructure/http"
	"github.com/apascualco/microscope/internal/infrastructure/http/handler"
	"github.com/apascualco/microscope/internal/infrastructure/jwt"
	"github.com/apascualco/microscope/internal/infrastructure/notifier"
	"github.com/apascualco/microscope/internal/infrastructure/observability"
	"github.com/apascualco/microscope/internal/infrastructure/ratelimit"
	"github.com/apascualco/microscope/internal/infrastructure/redis"
	"github.com/apascualco/microscope/internal/infrastructure/tracing"
	"github.com/apascualco/microscope/internal/infrastructure/transport"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the dashboard server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}

	proxySettings := transport.NewProxySettings()
	factory, err := transport.Configure(cfg.IgnoreSSLErrors, proxySettings)
	if err != nil {
		return err
	}

	boot, err := bootstrapInstance(ctx, cfg, factory)
	if err != nil {
		return err
	}

	var discovery *eureka.Client
	if cfg.ServiceURL != "" {
		discovery, err = eureka.NewClient(cfg.ServiceURL, factory.Client(10*time.Second),
			eureka.WithRenewalInterval(cfg.RenewalInterval),
		)
		if err != nil {
			return fmt.Errorf("failed to create discovery client: %w", err)
		}
		if err := discovery.Register(ctx, boot.instance); err != nil {
			return fmt.Errorf("failed to register with discovery server: %w", err)
		}
	} else {
		slog.Warn("EUREKA_CLIENT_SERVICE_URL not set, skipping discovery registration")
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = redis.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer redisClient.Close()
	}

	var metrics *observability.Prometheus
	var recorder observability.Metrics = observability.Noop{}
	if cfg.MetricsEnabled {
		metrics = observability.NewPrometheus("microscope")
		recorder = metrics
	}

	sink, err := notificationSinks(cfg, factory, redisClient)
	if err != nil {
		return err
	}
	relay, err := notify.NewRelay(sink, notify.RelayConfig{
		FixedRate:        cfg.SchedulerFixedRate,
		ReminderPeriod:   cfg.ReminderPeriod,
		ReminderStatuses: parseStatuses(cfg.ReminderStatuses),
	}, notify.WithMetrics(recorder))
	if err != nil {
		return err
	}
	relay.Start()
	defer relay.Stop()

	registry := application.NewRegistry(application.RegistryConfig{
		HeartbeatTTL:        cfg.HeartbeatTTL,
		HealthCheckInterval: cfg.HealthCheckInterval,
	},
		application.WithEventSink(relay),
		application.WithGauge(recorder),
		application.WithStatusProber(health.NewProber(factory.Client(cfg.HealthCheckTimeout))),
	)
	registry.Start()
	defer registry.Stop()

	var tokens *jwt.Service
	if cfg.ServiceTokenKey != "" {
		tokens, err = jwt.NewService(cfg.ServiceTokenKey, cfg.ServiceTokenIssuers)
		if err != nil {
			return fmt.Errorf("failed to create token validator: %w", err)
		}
	} else {
		slog.Warn("SERVICE_TOKEN_PUBLIC_KEY not set, application writes are unauthenticated")
	}

	var limiter ratelimit.RateLimiter = ratelimit.NewInMemoryLimiter()
	if redisClient != nil {
		limiter = ratelimit.NewLimiter(redisClient.Client)
	}

	exporter := tracing.NewExporter(tracing.Settings{
		Exporter:       cfg.TraceExporter,
		Endpoint:       cfg.TraceOTLPEndpoint,
		ServiceName:    cfg.TraceServiceName,
		ServiceVersion: cfg.Version,
	}, factory.Client(10*time.Second))

	proxyTransport, err := factory.ProxyTransport(proxySettings)
	if err != nil {
		return err
	}

	deps := httpserver.Dependencies{
		Registry:  registry,
		Filters:   relay,
		Limiter:   limiter,
		Metrics:   metrics,
		Exporter:  exporter,
		Transport: proxyTransport,
		Build:     boot.info.Build(),
		Git:       boot.info.Git(),
		Cloud:     boot.instance.DataCenterInfo,
	}
	if tokens != nil {
		deps.Tokens = tokens
	}
	if redisClient != nil {
		deps.Readiness = append(deps.Readiness, handler.ReadinessCheck{Name: "redis", Check: redisClient.Healthy})
	}
	if boot.provider != nil {
		deps.CloudKey = boot.provider.Detail()
	}
	server := httpserver.NewServer(cfg, deps)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server",
			slog.Int("port", cfg.EffectiveServerPort()),
			slog.String("env", cfg.Env),
			slog.String("instance_id", boot.instance.ID()),
			slog.String("version", version),
			slog.String("commit", commit),
			slog.String("build_date", buildDate),
		)
		if err := server.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	q := make(chan os.Signal, 1)
	signal.Notify(q, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-q:
	case err := <-errCh:
		slog.Error("server error", slog.Any("error", err))
	}

	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if discovery != nil {
		if err := discovery.Shutdown(shutdownCtx); err != nil {
			slog.Warn("failed to deregister from discovery server", slog.Any("error", err))
		}
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	if err := exporter.Shutdown(shutdownCtx); err != nil {
		slog.Warn("failed to flush spans", slog.Any("error", err))
	}

	slog.Info("server exited")
	return nil
}

// notificationSinks builds the configured sinks. None configured yields a noop sink.
func notificationSinks(cfg *config.Config, factory *transport.ClientFactory, redisClient *redis.Client) (notify.Notifier, error) {
	var sinks notify.Composite
	if cfg.LogEnabled {
		sinks = append(sinks, notifier.NewLog(slog.Default()))
	}
	if cfg.WebhookURL != "" {
		webhook, err := notifier.NewWebhook(notifier.WebhookConfig{
			URL:      cfg.WebhookURL,
			Template: cfg.WebhookTemplate,
			Retries:  cfg.WebhookRetries,
			Timeout:  cfg.WebhookTimeout,
		}, factory.Client(cfg.WebhookTimeout))
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, webhook)
	}
	if cfg.RedisEnabled {
		if redisClient == nil {
			return nil, errors.New("NOTIFY_REDIS_ENABLED requires REDIS_URL")
		}
		sinks = append(sinks, notifier.NewRedis(redisClient, cfg.RedisChannel))
	}

	slog.Info("notification sinks configured", slog.Int("count", len(sinks)))
	if len(sinks) == 0 {
		return notify.Noop{}, nil
	}
	return sinks, nil
}

func parseStatuses(raw []string) []domain.Status {
	statuses := make([]domain.Status, 0, len(raw))
	for _, s := range raw {
		statuses = append(statuses, domain.Status(s))
	}
	return statuses
}
