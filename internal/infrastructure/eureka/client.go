// Package eureka publishes the dashboard's own instance descriptor to a Eureka
// compatible discovery server.
package eureka

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/apascualco/microscope/internal/domain"
	"github.com/cenkalti/backoff/v4"
)

const (
	defaultRenewalInterval = 30 * time.Second
	maxRegisterRetries     = 5
)

type Client struct {
	serviceURLs []string
	httpClient  *http.Client
	renewal     time.Duration
	newBackOff  func() backoff.BackOff

	mu         sync.RWMutex
	instance   Instance
	registered bool
	stopped    bool
	stopCh     chan struct{}
	wg         sync.WaitGroup

	logger *slog.Logger
}

type Option func(*Client)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func WithRenewalInterval(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.renewal = d
		}
	}
}

// WithBackOff replaces the exponential backoff used between registration attempts.
func WithBackOff(fn func() backoff.BackOff) Option {
	return func(c *Client) {
		c.newBackOff = fn
	}
}

// NewClient accepts a comma separated list of service URLs. Requests go to the
// first URL that answers.
func NewClient(serviceURL string, httpClient *http.Client, opts ...Option) (*Client, error) {
	var urls []string
	for _, u := range strings.Split(serviceURL, ",") {
		if u = strings.TrimRight(strings.TrimSpace(u), "/"); u != "" {
			urls = append(urls, u)
		}
	}
	if len(urls) == 0 {
		return nil, fmt.Errorf("eureka service URL is required")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}

	c := &Client{
		serviceURLs: urls,
		httpClient:  httpClient,
		renewal:     defaultRenewalInterval,
		newBackOff: func() backoff.BackOff {
			return backoff.NewExponentialBackOff()
		},
		stopCh: make(chan struct{}),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Register publishes descriptor and starts the lease renewal loop.
func (c *Client) Register(ctx context.Context, descriptor *domain.InstanceDescriptor) error {
	c.mu.Lock()
	if c.registered {
		c.mu.Unlock()
		return fmt.Errorf("already registered, call Shutdown first")
	}
	c.instance = FromDescriptor(descriptor, c.renewal)
	c.mu.Unlock()

	if err := c.registerWithRetry(ctx); err != nil {
		return err
	}

	c.mu.Lock()
	c.registered = true
	c.mu.Unlock()

	c.startHeartbeat()

	c.logger.Info("instance registered with eureka",
		slog.String("app", c.instance.App),
		slog.String("instance_id", c.instance.InstanceID),
		slog.Duration("renewal_interval", c.renewal),
	)
	return nil
}

func (c *Client) registerWithRetry(ctx context.Context) error {
	b := backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), maxRegisterRetries), ctx)

	err := backoff.RetryNotify(func() error {
		return c.doRegister(ctx)
	}, b, func(err error, wait time.Duration) {
		c.logger.Warn("eureka registration failed, retrying",
			slog.Duration("backoff", wait),
			slog.String("error", err.Error()),
		)
	})
	if err != nil {
		return fmt.Errorf("eureka registration failed: %w", err)
	}
	return nil
}

func (c *Client) doRegister(ctx context.Context) error {
	c.mu.RLock()
	instance := c.instance
	c.mu.RUnlock()

	body, err := json.Marshal(instanceEnvelope{Instance: instance})
	if err != nil {
		return backoff.Permanent(fmt.Errorf("failed to marshal instance: %w", err))
	}

	resp, err := c.do(ctx, http.MethodPost, "/apps/"+instance.App, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		err := fmt.Errorf("registration failed with status %d: %s", resp.StatusCode, string(respBody))
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return backoff.Permanent(err)
		}
		return err
	}
	return nil
}

// Deregister removes the instance from the discovery server. A missing instance
// is not an error.
func (c *Client) Deregister(ctx context.Context) error {
	c.mu.RLock()
	instance := c.instance
	registered := c.registered
	c.mu.RUnlock()

	if !registered {
		return nil
	}

	resp, err := c.do(ctx, http.MethodDelete, instancePath(instance), nil)
	if err != nil {
		return fmt.Errorf("failed to send deregister: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNotFound {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("deregister failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	c.logger.Info("instance deregistered from eureka", slog.String("instance_id", instance.InstanceID))
	return nil
}

// Shutdown stops the renewal loop and deregisters.
func (c *Client) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return nil
	}
	c.stopped = true
	c.mu.Unlock()

	close(c.stopCh)

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return fmt.Errorf("shutdown timed out waiting for heartbeat to stop")
	}

	return c.Deregister(ctx)
}

func (c *Client) InstanceID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.instance.InstanceID
}

// do sends the request to each service URL in turn and returns the first response.
func (c *Client) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var errs []error
	for _, base := range c.serviceURLs {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, base+path, reader)
		if err != nil {
			return nil, backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
		}
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		return resp, nil
	}
	return nil, errors.Join(errs...)
}

func instancePath(instance Instance) string {
	return "/apps/" + instance.App + "/" + instance.InstanceID
}
