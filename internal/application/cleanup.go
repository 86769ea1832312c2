package application

import (
	"log/slog"
	"time"

	"github.com/apascualco/microscope/internal/domain"
)

const metricApplications = "registry.applications"

func (r *Registry) Start() {
	if r.config.HeartbeatTTL > 0 {
		go r.cleanupLoop()
	}
	if r.prober != nil && r.config.HealthCheckInterval > 0 {
		go r.statusLoop()
	}
}

func (r *Registry) Stop() {
	close(r.stopCh)
}

func (r *Registry) cleanupLoop() {
	interval := r.config.HeartbeatTTL / 2
	if interval < time.Second {
		interval = time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.cleanup()
		case <-r.stopCh:
			return
		}
	}
}

func (r *Registry) cleanup() {
	r.mu.Lock()

	now := r.now()
	var toRemove []string
	var events []domain.Event

	for id, app := range r.applications {
		elapsed := now.Sub(app.LastHeartbeat)

		if elapsed > r.config.HeartbeatTTL*2 {
			toRemove = append(toRemove, id)
			events = append(events, domain.NewDeregisteredEvent(app, now))
			slog.Info("removing expired application",
				"id", id,
				"name", app.Name,
				"last_heartbeat", app.LastHeartbeat,
			)
		} else if elapsed > r.config.HeartbeatTTL && app.StatusInfo.Status != domain.StatusOffline {
			from := app.StatusInfo
			app.StatusInfo = domain.StatusInfo{Status: domain.StatusOffline, Timestamp: now}
			events = append(events, domain.NewStatusChangedEvent(app, from, now))
			slog.Warn("marking application offline",
				"id", id,
				"name", app.Name,
				"elapsed", elapsed,
			)
		}
	}

	for _, id := range toRemove {
		r.removeApplicationLocked(id)
	}
	remaining := len(r.applications)
	r.mu.Unlock()

	r.gauge.Set(metricApplications, float64(remaining), nil)

	r.publish(events)
}

// heartbeatOverdue reports whether the application missed its heartbeat window.
func (r *Registry) heartbeatOverdue(app *domain.Application, now time.Time) bool {
	return r.config.HeartbeatTTL > 0 && now.Sub(app.LastHeartbeat) > r.config.HeartbeatTTL
}
