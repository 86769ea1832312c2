package application

import "github.com/apascualco/microscope/internal/domain"

func (r *Registry) Heartbeat(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	app, exists := r.applications[id]
	if !exists {
		return domain.ErrApplicationNotFound
	}

	app.LastHeartbeat = r.now()
	return nil
}
