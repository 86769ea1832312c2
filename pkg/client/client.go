// Package client registers an application with a microscope dashboard and keeps
// the registration alive with heartbeats.
package client

import (
	"bytes"
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/golang-jwt/jwt/v5"
	"github.com/hashicorp/go-cleanhttp"
)

const (
	tokenAudience   = "microscope"
	tokenTTL        = 5 * time.Minute
	defaultInterval = 10 * time.Second
	maxRetries      = 5
)

type RegistryClient struct {
	dashboardURL string
	privateKey   *rsa.PrivateKey
	serviceName  string
	id           string

	lastRegisterReq RegisterRequest

	httpClient        *http.Client
	newBackOff        func() backoff.BackOff
	heartbeatInterval time.Duration
	stopCh            chan struct{}
	stopCancel        context.CancelFunc
	wg                sync.WaitGroup
	mu                sync.RWMutex
	registered        bool
	stopped           bool

	logger *slog.Logger
}

type Option func(*RegistryClient)

func WithLogger(logger *slog.Logger) Option {
	return func(c *RegistryClient) {
		c.logger = logger
	}
}

func WithHTTPClient(client *http.Client) Option {
	return func(c *RegistryClient) {
		c.httpClient = client
	}
}

// WithBackOff replaces the retry policy used for registration.
func WithBackOff(newBackOff func() backoff.BackOff) Option {
	return func(c *RegistryClient) {
		c.newBackOff = newBackOff
	}
}

func NewRegistryClient(dashboardURL, privateKeyPEM, serviceName string, opts ...Option) (*RegistryClient, error) {
	privKey, err := parseRSAPrivateKey(privateKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	c := &RegistryClient{
		dashboardURL: dashboardURL,
		privateKey:   privKey,
		serviceName:  serviceName,
		httpClient:   cleanhttp.DefaultPooledClient(),
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = time.Second
			b.MaxInterval = 30 * time.Second
			return backoff.WithMaxRetries(b, maxRetries)
		},
		stopCh: make(chan struct{}),
		logger: slog.Default(),
	}
	c.httpClient.Timeout = 10 * time.Second

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

func (c *RegistryClient) Register(ctx context.Context, req RegisterRequest) (*RegisterResponse, error) {
	c.mu.Lock()
	if c.registered {
		c.mu.Unlock()
		return nil, fmt.Errorf("already registered, call Shutdown first")
	}
	c.lastRegisterReq = req
	c.mu.Unlock()

	resp, err := c.registerWithRetry(ctx, req)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.registered = true
	c.mu.Unlock()

	c.startHeartbeat()

	c.logger.Info("application registered",
		"id", resp.ID,
		"heartbeat_interval", resp.HeartbeatInterval,
	)

	return resp, nil
}

// registerWithRetry retries transport failures and 5xx answers. A 4xx is final.
func (c *RegistryClient) registerWithRetry(ctx context.Context, req RegisterRequest) (*RegisterResponse, error) {
	var resp *RegisterResponse
	operation := func() error {
		var err error
		resp, err = c.doRegister(ctx, req)
		var statusErr *StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode < http.StatusInternalServerError {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		c.logger.Warn("registration failed, retrying", "backoff", wait, "error", err)
	}

	if err := backoff.RetryNotify(operation, backoff.WithContext(c.newBackOff(), ctx), notify); err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.id = resp.ID
	c.heartbeatInterval = time.Duration(resp.HeartbeatInterval) * time.Second
	c.mu.Unlock()
	return resp, nil
}

func (c *RegistryClient) doRegister(ctx context.Context, req RegisterRequest) (*RegisterResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpResp, err := c.send(ctx, http.MethodPost, "/api/applications", body)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if httpResp.StatusCode != http.StatusCreated {
		return nil, &StatusError{Op: "registration", StatusCode: httpResp.StatusCode, Body: string(respBody)}
	}

	var resp RegisterResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return &resp, nil
}

func (c *RegistryClient) reregister(ctx context.Context) error {
	c.mu.RLock()
	req := c.lastRegisterReq
	c.mu.RUnlock()

	resp, err := c.registerWithRetry(ctx, req)
	if err != nil {
		return err
	}

	c.logger.Info("application re-registered",
		"id", resp.ID,
		"heartbeat_interval", resp.HeartbeatInterval,
	)

	return nil
}

func (c *RegistryClient) Deregister(ctx context.Context) error {
	c.mu.RLock()
	id := c.id
	c.mu.RUnlock()

	if id == "" {
		return nil
	}

	resp, err := c.send(ctx, http.MethodDelete, "/api/applications/"+id, nil)
	if err != nil {
		return fmt.Errorf("failed to send deregister: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusNotFound {
		respBody, _ := io.ReadAll(resp.Body)
		return &StatusError{Op: "deregister", StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	c.logger.Info("application deregistered", "id", id)
	return nil
}

func (c *RegistryClient) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return nil
	}
	c.stopped = true
	cancel := c.stopCancel
	c.mu.Unlock()

	close(c.stopCh)
	if cancel != nil {
		cancel()
	}

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

// ID returns the id the dashboard assigned, or "" before registration.
func (c *RegistryClient) ID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.id
}

func (c *RegistryClient) send(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.dashboardURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	token, err := c.serviceToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate service token: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Service-Token", token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	return resp, nil
}

func (c *RegistryClient) serviceToken() (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": c.serviceName,
		"aud": tokenAudience,
		"iss": c.serviceName,
		"iat": now.Unix(),
		"exp": now.Add(tokenTTL).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	return token.SignedString(c.privateKey)
}

func parseRSAPrivateKey(pemStr string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(pemStr))
	if block == nil {
		return nil, fmt.Errorf("failed to decode PEM block")
	}

	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err == nil {
		rsaKey, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("not an RSA private key")
		}
		return rsaKey, nil
	}

	return x509.ParsePKCS1PrivateKey(block.Bytes)
}
