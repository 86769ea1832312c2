package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime"

	"github.com/apascualco/microscope/internal/application"
	"github.com/apascualco/microscope/internal/domain"
	"github.com/apascualco/microscope/internal/infrastructure/buildinfo"
	"github.com/apascualco/microscope/internal/infrastructure/cloud"
	"github.com/apascualco/microscope/internal/infrastructure/config"
	"github.com/apascualco/microscope/internal/infrastructure/eureka"
	"github.com/apascualco/microscope/internal/infrastructure/transport"
	"github.com/spf13/cobra"
)

func instanceCmd() *cobra.Command {
	var eurekaFormat bool
	cmd := &cobra.Command{
		Use:   "instance",
		Short: "Print the instance descriptor this process would register",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			factory, err := transport.Configure(cfg.IgnoreSSLErrors, transport.NewProxySettings())
			if err != nil {
				return err
			}
			boot, err := bootstrapInstance(cmd.Context(), cfg, factory)
			if err != nil {
				return err
			}

			var out any = boot.instance
			if eurekaFormat {
				out = eureka.FromDescriptor(boot.instance, cfg.RenewalInterval)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
	cmd.Flags().BoolVar(&eurekaFormat, "eureka", false, "print the discovery server wire format")
	return cmd
}

type bootstrap struct {
	instance *domain.InstanceDescriptor
	provider cloud.Provider
	info     buildinfo.Info
}

// bootstrapInstance detects the local identity and fixes it up for publication.
func bootstrapInstance(ctx context.Context, cfg *config.Config, factory *transport.ClientFactory) (*bootstrap, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	provider, err := cloud.New(cfg.CloudProvider, factory.Client(0), cfg.CloudTimeout)
	if err != nil {
		return nil, err
	}

	instance, err := eureka.LocalInstance(cfg.AppName, cfg.Hostname, cfg.IPAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to detect local instance: %w", err)
	}

	info := buildinfo.Info{Version: cfg.Version, Commit: cfg.Commit, BuildDate: cfg.BuildDate, Name: cfg.AppName}

	var opts []application.RegistrarOption
	if provider != nil {
		opts = append(opts, application.WithCloudInfo(provider))
	}
	registrar := application.NewRegistrar(
		registrarConfig(cfg),
		application.NewDefaultManagementMetadataProvider(cfg.StatusPageURLPath, cfg.HealthCheckURLPath),
		info.Build(),
		info.Git(),
		opts...,
	)
	if err := registrar.Fix(ctx, instance); err != nil {
		return nil, err
	}

	slog.Debug("instance bootstrapped", slog.String("id", instance.ID()))
	return &bootstrap{instance: instance, provider: provider, info: info}, nil
}

func registrarConfig(cfg *config.Config) application.RegistrarConfig {
	return application.RegistrarConfig{
		SSLEnabled:            cfg.SSLEnabled,
		ServerPort:            cfg.ServerPort,
		Port:                  cfg.Port,
		ServerContextPath:     cfg.ServerContextPath,
		ManagementPort:        cfg.ManagementPort,
		ManagementContextPath: cfg.ManagementContextPath,
		Hostname:              cfg.Hostname,
		IPAddress:             cfg.IPAddress,
		PreferIPAddress:       cfg.PreferIPAddress,
		SecurePortEnabled:     cfg.SecurePortEnabled,
		NonSecurePortEnabled:  cfg.NonSecurePortEnabled,
		SecurePort:            cfg.SecurePort,
		StatusPageURL:         cfg.StatusPageURL,
		HealthCheckURL:        cfg.HealthCheckURL,
		SecureHealthCheckURL:  cfg.SecureHealthCheckURL,
		HomePageURL:           cfg.HomePageURL,
		BuildAttributes:       cfg.MetadataBuildAttributes,
		GitAttributes:         cfg.MetadataGitAttributes,
		ActiveProfiles:        cfg.ProfilesActive,
		RuntimeVersion:        runtime.Version(),
	}
}
