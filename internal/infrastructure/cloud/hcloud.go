package cloud

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"

	"github.com/apascualco/microscope/internal/domain"
	"github.com/hetznercloud/hcloud-go/v2/hcloud/metadata"
	"golang.org/x/sync/errgroup"
)

const hetznerDataCenter = "Hetzner"

type Hetzner struct {
	client *metadata.Client
}

func NewHetzner(httpClient *http.Client, opts ...metadata.ClientOption) *Hetzner {
	var all []metadata.ClientOption
	if httpClient != nil {
		all = append(all, metadata.WithHTTPClient(httpClient))
	}
	return &Hetzner{client: metadata.NewClient(append(all, opts...)...)}
}

func (h *Hetzner) Detail() string { return ProviderHetzner }

// Fetch reads the server metadata. The metadata client is not context aware, so
// the deadline comes from the http client timeout.
func (h *Hetzner) Fetch(_ context.Context) (*domain.CloudMetadata, error) {
	if !h.client.IsHcloudServer() {
		slog.Debug("hetzner cloud metadata unreachable")
		return domain.NewCloudMetadata(hetznerDataCenter, nil), nil
	}

	var mu sync.Mutex
	values := make(map[string]string)
	set := func(key, value string) {
		mu.Lock()
		defer mu.Unlock()
		if value != "" {
			values[key] = value
		}
	}

	var g errgroup.Group
	g.Go(func() error {
		hostname, err := h.client.Hostname()
		if err != nil {
			return fmt.Errorf("failed to read hcloud hostname: %w", err)
		}
		set(domain.CloudLocalHostname, hostname)
		set(domain.CloudPublicHostname, hostname)
		return nil
	})
	g.Go(func() error {
		id, err := h.client.InstanceID()
		if err != nil {
			return fmt.Errorf("failed to read hcloud instance id: %w", err)
		}
		set(domain.CloudInstanceID, strconv.FormatInt(id, 10))
		return nil
	})
	g.Go(func() error {
		ip, err := h.client.PublicIPv4()
		if err != nil {
			return fmt.Errorf("failed to read hcloud public ipv4: %w", err)
		}
		if ip != nil {
			set(domain.CloudPublicIPv4, ip.String())
			set(domain.CloudLocalIPv4, ip.String())
		}
		return nil
	})
	g.Go(func() error {
		region, err := h.client.Region()
		if err != nil {
			return fmt.Errorf("failed to read hcloud region: %w", err)
		}
		set(domain.CloudRegion, region)
		return nil
	})
	g.Go(func() error {
		zone, err := h.client.AvailabilityZone()
		if err != nil {
			return fmt.Errorf("failed to read hcloud availability zone: %w", err)
		}
		set(domain.CloudAvailabilityZone, zone)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return domain.NewCloudMetadata(hetznerDataCenter, values), nil
}
