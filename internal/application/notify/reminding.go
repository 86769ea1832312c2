package notify

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/apascualco/microscope/internal/domain"
)

const DefaultReminderPeriod = 10 * time.Minute

var DefaultReminderStatuses = []domain.Status{domain.StatusDown, domain.StatusOffline}

type reminder struct {
	event        domain.Event
	lastNotified time.Time
}

// RemindingNotifier re-sends the last event of an application while it stays in
// one of the reminder statuses.
type RemindingNotifier struct {
	delegate  Notifier
	period    time.Duration
	statuses  []domain.Status
	reminders map[string]*reminder
	now       func() time.Time
}

func NewRemindingNotifier(delegate Notifier, period time.Duration, statuses []domain.Status) *RemindingNotifier {
	if period <= 0 {
		period = DefaultReminderPeriod
	}
	if len(statuses) == 0 {
		statuses = DefaultReminderStatuses
	}
	return &RemindingNotifier{
		delegate:  delegate,
		period:    period,
		statuses:  statuses,
		reminders: make(map[string]*reminder),
		now:       time.Now,
	}
}

func (n *RemindingNotifier) Notify(ctx context.Context, event domain.Event) error {
	err := n.delegate.Notify(ctx, event)

	id := event.Application.ID
	switch {
	case n.shouldEnd(event):
		delete(n.reminders, id)
	case n.shouldStart(event):
		last := event.Timestamp
		if last.IsZero() {
			last = n.now()
		}
		n.reminders[id] = &reminder{event: event, lastNotified: last}
	}
	return err
}

// SendReminders re-sends every reminder last sent at least one period ago and
// returns the number of reminders sent.
func (n *RemindingNotifier) SendReminders(ctx context.Context) (int, error) {
	now := n.now()
	sent := 0
	var errs []error

	for _, r := range n.reminders {
		if now.Sub(r.lastNotified) < n.period {
			continue
		}
		r.lastNotified = now
		sent++
		if err := n.delegate.Notify(ctx, r.event); err != nil {
			errs = append(errs, err)
		}
	}
	return sent, errors.Join(errs...)
}

// Pending returns the number of applications with an active reminder.
func (n *RemindingNotifier) Pending() int {
	return len(n.reminders)
}

func (n *RemindingNotifier) shouldStart(event domain.Event) bool {
	return event.Type == domain.EventStatusChanged && slices.Contains(n.statuses, event.To.Status)
}

func (n *RemindingNotifier) shouldEnd(event domain.Event) bool {
	if event.Type == domain.EventDeregistered {
		return true
	}
	return event.Type == domain.EventStatusChanged && !slices.Contains(n.statuses, event.To.Status)
}
