// Package cloud reads the instance metadata service of the machine the process
// runs on.
package cloud

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/apascualco/microscope/internal/domain"
)

const (
	ProviderAWS     = "aws"
	ProviderHetzner = "hcloud"
)

// Provider fetches a snapshot of the machine metadata. A machine outside the
// provider's cloud yields an empty snapshot and no error.
type Provider interface {
	Fetch(ctx context.Context) (*domain.CloudMetadata, error)
	// Detail is the key the snapshot is published under on the info endpoint.
	Detail() string
}

// New returns the provider for name, or nil when name is empty.
func New(name string, client *http.Client, timeout time.Duration) (Provider, error) {
	switch name {
	case "":
		return nil, nil
	case ProviderAWS:
		return NewAWS(client, timeout), nil
	case ProviderHetzner:
		return NewHetzner(client), nil
	default:
		return nil, fmt.Errorf("unknown cloud provider %q", name)
	}
}

// unreachable reports whether err means there is no metadata service to talk to.
func unreachable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}
