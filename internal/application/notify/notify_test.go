package notify

import (
	"context"
	"sync"
	"time"

	"github.com/apascualco/microscope/internal/domain"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []domain.Event
	err    error
}

func (r *recordingNotifier) Notify(_ context.Context, event domain.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return r.err
}

func (r *recordingNotifier) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func statusEvent(id, name string, status domain.Status, at time.Time) domain.Event {
	return domain.Event{
		ID:          id + "-" + string(status),
		Type:        domain.EventStatusChanged,
		Application: domain.ApplicationRef{ID: id, Name: name, HealthURL: "http://" + name + "/health"},
		From:        domain.StatusInfo{Status: domain.StatusUp, Timestamp: at},
		To:          domain.StatusInfo{Status: status, Timestamp: at},
		Timestamp:   at,
	}
}
