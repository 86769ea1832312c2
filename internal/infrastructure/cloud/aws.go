package cloud

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/apascualco/microscope/internal/domain"
	"github.com/aws/aws-sdk-go-v2/feature/ec2/imds"
	"golang.org/x/sync/errgroup"
)

const awsDataCenter = "Amazon"

// awsPaths maps snapshot keys to instance metadata paths. instance-id is read
// first to detect whether the service is there at all.
var awsPaths = map[string]string{
	domain.CloudImageID:          "ami-id",
	domain.CloudInstanceType:     "instance-type",
	domain.CloudLocalHostname:    "local-hostname",
	domain.CloudLocalIPv4:        "local-ipv4",
	domain.CloudPublicHostname:   "public-hostname",
	domain.CloudPublicIPv4:       "public-ipv4",
	domain.CloudAvailabilityZone: "placement/availability-zone",
	domain.CloudRegion:           "placement/region",
}

type AWS struct {
	client  *imds.Client
	timeout time.Duration
}

func NewAWS(httpClient *http.Client, timeout time.Duration, optFns ...func(*imds.Options)) *AWS {
	opts := imds.Options{ClientEnableState: imds.ClientEnabled}
	if httpClient != nil {
		opts.HTTPClient = httpClient
	}
	return &AWS{
		client:  imds.New(opts, optFns...),
		timeout: timeout,
	}
}

func (a *AWS) Detail() string { return ProviderAWS }

func (a *AWS) Fetch(ctx context.Context) (*domain.CloudMetadata, error) {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	instanceID, err := a.get(ctx, "instance-id")
	if err != nil {
		if unreachable(err) {
			slog.Debug("ec2 instance metadata unreachable", slog.String("error", err.Error()))
			return domain.NewCloudMetadata(awsDataCenter, nil), nil
		}
		return nil, fmt.Errorf("failed to read ec2 instance id: %w", err)
	}

	var mu sync.Mutex
	values := map[string]string{domain.CloudInstanceID: instanceID}

	g, gctx := errgroup.WithContext(ctx)
	for key, path := range awsPaths {
		g.Go(func() error {
			v, err := a.get(gctx, path)
			if err != nil {
				if notFound(err) {
					return nil
				}
				return fmt.Errorf("failed to read ec2 metadata %s: %w", path, err)
			}
			mu.Lock()
			values[key] = v
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return domain.NewCloudMetadata(awsDataCenter, values), nil
}

func (a *AWS) get(ctx context.Context, path string) (string, error) {
	out, err := a.client.GetMetadata(ctx, &imds.GetMetadataInput{Path: path})
	if err != nil {
		return "", err
	}
	defer out.Content.Close()

	b, err := io.ReadAll(out.Content)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

// notFound matches metadata paths the instance does not have, such as
// public-ipv4 on a private subnet.
func notFound(err error) bool {
	var re interface{ HTTPStatusCode() int }
	return errors.As(err, &re) && re.HTTPStatusCode() == http.StatusNotFound
}
