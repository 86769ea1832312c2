package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/apascualco/microscope/internal/domain"
	"golang.org/x/sync/errgroup"
)

const defaultProbeConcurrency = 8

func (r *Registry) statusLoop() {
	ticker := time.NewTicker(r.config.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), r.config.HealthCheckInterval)
			r.UpdateStatuses(ctx)
			cancel()
		case <-r.stopCh:
			return
		}
	}
}

// UpdateStatuses probes every application whose heartbeat is current and records
// status transitions. Applications already marked offline by missed heartbeats
// are left to the cleanup loop.
func (r *Registry) UpdateStatuses(ctx context.Context) {
	if r.prober == nil {
		return
	}

	r.mu.RLock()
	now := r.now()
	targets := make([]*domain.Application, 0, len(r.applications))
	for _, app := range r.applications {
		if !r.heartbeatOverdue(app, now) {
			targets = append(targets, cloneApplication(app))
		}
	}
	r.mu.RUnlock()

	results := make([]domain.Status, len(targets))

	limit := r.config.ProbeConcurrency
	if limit <= 0 {
		limit = defaultProbeConcurrency
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, app := range targets {
		g.Go(func() error {
			status, err := r.prober.Probe(gctx, app)
			if err != nil {
				slog.Debug("status probe failed",
					"id", app.ID,
					"name", app.Name,
					"error", err,
				)
				status = domain.StatusOffline
			}
			results[i] = status
			return nil
		})
	}
	_ = g.Wait()

	var events []domain.Event
	r.mu.Lock()
	at := r.now()
	for i, target := range targets {
		if r.staleProbeLocked(target, at) {
			continue
		}
		if e, changed := r.setStatusLocked(target.ID, results[i], at); changed {
			events = append(events, e)
		}
	}
	r.mu.Unlock()

	r.publish(events)
}

// staleProbeLocked reports whether the application changed while its probe was in
// flight. Heartbeat expiry and cleanup own the status from that point on.
func (r *Registry) staleProbeLocked(target *domain.Application, at time.Time) bool {
	app, exists := r.applications[target.ID]
	if !exists {
		return true
	}
	return r.heartbeatOverdue(app, at) || app.StatusInfo != target.StatusInfo
}

func (r *Registry) setStatusLocked(id string, status domain.Status, at time.Time) (domain.Event, bool) {
	app, exists := r.applications[id]
	if !exists || app.StatusInfo.Status == status {
		return domain.Event{}, false
	}

	from := app.StatusInfo
	app.StatusInfo = domain.StatusInfo{Status: status, Timestamp: at}
	slog.Info("application status changed",
		"id", id,
		"name", app.Name,
		"from", from.Status,
		"to", status,
	)
	return domain.NewStatusChangedEvent(app, from, at), true
}
