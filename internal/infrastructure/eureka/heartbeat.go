package eureka

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

func (c *Client) startHeartbeat() {
	ctx, cancel := context.WithCancel(context.Background())

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer cancel()

		ticker := time.NewTicker(c.renewal)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				c.renew(ctx)
			case <-c.stopCh:
				return
			}
		}
	}()
}

func (c *Client) renew(ctx context.Context) {
	err := c.sendHeartbeat(ctx)
	if err == nil {
		return
	}
	if !errors.Is(err, ErrInstanceNotFound) {
		c.logger.Warn("eureka heartbeat failed", slog.String("error", err.Error()))
		return
	}

	c.logger.Warn("instance unknown to eureka, attempting re-registration")
	if err := c.registerWithRetry(ctx); err != nil {
		c.logger.Error("eureka re-registration failed", slog.String("error", err.Error()))
	}
}

func (c *Client) sendHeartbeat(ctx context.Context) error {
	c.mu.RLock()
	instance := c.instance
	c.mu.RUnlock()

	resp, err := c.do(ctx, http.MethodPut, instancePath(instance)+"?status="+statusUp, nil)
	if err != nil {
		return fmt.Errorf("failed to send heartbeat: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrInstanceNotFound
	}
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("heartbeat failed with status %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}
