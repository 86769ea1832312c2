package application

import (
	"sort"

	"github.com/apascualco/microscope/internal/domain"
)

func (r *Registry) GetApplication(id string) *domain.Application {
	r.mu.RLock()
	defer r.mu.RUnlock()

	app := r.applications[id]
	if app == nil {
		return nil
	}
	return cloneApplication(app)
}

// GetApplications returns every application ordered by name then id.
func (r *Registry) GetApplications() []*domain.Application {
	r.mu.RLock()
	defer r.mu.RUnlock()

	apps := make([]*domain.Application, 0, len(r.applications))
	for _, app := range r.applications {
		apps = append(apps, cloneApplication(app))
	}
	sortApplications(apps)
	return apps
}

func (r *Registry) GetApplicationsByName(name string) []*domain.Application {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.names[name]
	if len(ids) == 0 {
		return nil
	}

	apps := make([]*domain.Application, 0, len(ids))
	for _, id := range ids {
		if app := r.applications[id]; app != nil {
			apps = append(apps, cloneApplication(app))
		}
	}
	sortApplications(apps)
	return apps
}

func (r *Registry) GetNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.names))
	for name := range r.names {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func sortApplications(apps []*domain.Application) {
	sort.Slice(apps, func(i, j int) bool {
		if apps[i].Name != apps[j].Name {
			return apps[i].Name < apps[j].Name
		}
		return apps[i].ID < apps[j].ID
	})
}

// StatusCounts returns how many applications are in each status.
func (r *Registry) StatusCounts() map[domain.Status]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := make(map[domain.Status]int)
	for _, app := range r.applications {
		counts[app.StatusInfo.Status]++
	}
	return counts
}
