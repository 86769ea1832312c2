package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"text/template"
	"time"

	"github.com/apascualco/microscope/internal/domain"
	"github.com/hashicorp/go-retryablehttp"
)

const (
	DefaultWebhookTemplate = "*{{.Application.Name}}* ({{.Application.ID}}) is *{{.To.Status}}*"
	DefaultWebhookTimeout  = 5 * time.Second
)

type WebhookConfig struct {
	URL      string
	Template string
	Retries  int
	// Timeout bounds one delivery including its retries. The relay delivers
	// under its lock, so a slow endpoint stalls the registry loops for at most
	// this long.
	Timeout time.Duration
}

// Webhook posts a Slack-compatible {"text": ...} message for every event.
type Webhook struct {
	url      string
	timeout  time.Duration
	client   *retryablehttp.Client
	template *template.Template
}

func NewWebhook(cfg WebhookConfig, httpClient *http.Client) (*Webhook, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("webhook URL is required")
	}

	text := cfg.Template
	if text == "" {
		text = DefaultWebhookTemplate
	}
	tmpl, err := template.New("webhook").Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("failed to parse webhook template: %w", err)
	}

	client := retryablehttp.NewClient()
	if httpClient != nil {
		client.HTTPClient = httpClient
	}
	client.RetryMax = cfg.Retries
	client.RetryWaitMin = 100 * time.Millisecond
	client.RetryWaitMax = 2 * time.Second
	client.Logger = slog.Default().With(slog.String("component", "webhook"))

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultWebhookTimeout
	}
	return &Webhook{url: cfg.URL, timeout: timeout, client: client, template: tmpl}, nil
}

func (w *Webhook) Notify(ctx context.Context, event domain.Event) error {
	var text bytes.Buffer
	if err := w.template.Execute(&text, event); err != nil {
		return fmt.Errorf("failed to render webhook message: %w", err)
	}

	body, err := json.Marshal(map[string]string{"text": text.String()})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, w.url, body)
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook delivery failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
