package application

import (
	"fmt"
	"log/slog"

	"github.com/apascualco/microscope/internal/domain"
	"github.com/google/uuid"
)

// ApplicationID is stable for a health URL, so a restarted application keeps its id.
func ApplicationID(healthURL string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(healthURL)).String()
}

func (r *Registry) Register(req *domain.RegisterRequest) (*domain.RegisterResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err)
	}

	id := ApplicationID(req.HealthURL)
	now := r.now()

	r.mu.Lock()
	app, exists := r.applications[id]
	if exists {
		if app.Name != req.Name {
			r.removeNameLocked(app.Name, id)
			r.names[req.Name] = append(r.names[req.Name], id)
		}
		app.Name = req.Name
		app.ManagementURL = req.ManagementURL
		app.ServiceURL = req.ServiceURL
		app.Metadata = req.Metadata
		app.LastHeartbeat = now
	} else {
		app = &domain.Application{
			ID:            id,
			Name:          req.Name,
			ManagementURL: req.ManagementURL,
			HealthURL:     req.HealthURL,
			ServiceURL:    req.ServiceURL,
			Metadata:      req.Metadata,
			StatusInfo:    domain.StatusInfo{Status: domain.StatusUnknown, Timestamp: now},
			RegisteredAt:  now,
			LastHeartbeat: now,
		}
		r.applications[id] = app
		r.names[req.Name] = append(r.names[req.Name], id)
	}
	r.mu.Unlock()

	slog.Info("application registered",
		"id", id,
		"name", req.Name,
		"health_url", req.HealthURL,
		"refresh", exists,
	)

	return &domain.RegisterResponse{
		ID:                id,
		HeartbeatInterval: int(r.config.HeartbeatTTL.Seconds()),
		HeartbeatURL:      fmt.Sprintf("/api/applications/%s/heartbeat", id),
	}, nil
}

func (r *Registry) Deregister(id string) error {
	r.mu.Lock()
	app, exists := r.applications[id]
	if !exists {
		r.mu.Unlock()
		return domain.ErrApplicationNotFound
	}
	event := domain.NewDeregisteredEvent(app, r.now())
	r.removeApplicationLocked(id)
	r.mu.Unlock()

	slog.Info("application deregistered", "id", id, "name", app.Name)
	r.publish([]domain.Event{event})
	return nil
}

func (r *Registry) removeApplicationLocked(id string) {
	app, exists := r.applications[id]
	if !exists {
		return
	}
	r.removeNameLocked(app.Name, id)
	delete(r.applications, id)
}

func (r *Registry) removeNameLocked(name, id string) {
	ids := r.names[name]
	for i, existing := range ids {
		if existing == id {
			r.names[name] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(r.names[name]) == 0 {
		delete(r.names, name)
	}
}
