package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

func (c *RegistryClient) startHeartbeat() {
	c.mu.Lock()
	interval := c.heartbeatInterval
	if interval == 0 {
		interval = defaultInterval
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.stopCancel = cancel
	c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer cancel()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := c.sendHeartbeat(ctx); err != nil {
					if errors.Is(err, ErrApplicationNotFound) {
						c.logger.Warn("dashboard forgot this application, re-registering")
						if reErr := c.reregister(ctx); reErr != nil {
							c.logger.Error("re-registration failed", "error", reErr)
						}
					} else {
						c.logger.Warn("heartbeat failed", "error", err)
					}
				}
			case <-c.stopCh:
				return
			}
		}
	}()
}

func (c *RegistryClient) sendHeartbeat(ctx context.Context) error {
	c.mu.RLock()
	id := c.id
	c.mu.RUnlock()

	if id == "" {
		return fmt.Errorf("not registered")
	}

	resp, err := c.send(ctx, http.MethodPost, "/api/applications/"+id+"/heartbeat", nil)
	if err != nil {
		return fmt.Errorf("failed to send heartbeat: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrApplicationNotFound
	}

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return &StatusError{Op: "heartbeat", StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	return nil
}
