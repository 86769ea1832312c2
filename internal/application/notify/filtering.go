package notify

import (
	"context"
	"sort"
	"time"

	"github.com/apascualco/microscope/internal/domain"
	"github.com/google/uuid"
)

// FilteringNotifier drops events matched by any installed filter.
type FilteringNotifier struct {
	delegate Notifier
	filters  map[string]Filter
	now      func() time.Time
}

func NewFilteringNotifier(delegate Notifier) *FilteringNotifier {
	return &FilteringNotifier{
		delegate: delegate,
		filters:  make(map[string]Filter),
		now:      time.Now,
	}
}

func (n *FilteringNotifier) Notify(ctx context.Context, event domain.Event) error {
	n.removeExpired()
	if n.filtered(event) {
		return nil
	}
	return n.delegate.Notify(ctx, event)
}

func (n *FilteringNotifier) AddFilter(f Filter) string {
	id := uuid.New().String()
	n.filters[id] = f
	return id
}

func (n *FilteringNotifier) RemoveFilter(id string) error {
	if _, ok := n.filters[id]; !ok {
		return domain.ErrFilterNotFound
	}
	delete(n.filters, id)
	return nil
}

// Filters lists the active filters ordered by id.
func (n *FilteringNotifier) Filters() []FilterInfo {
	n.removeExpired()
	out := make([]FilterInfo, 0, len(n.filters))
	for id, f := range n.filters {
		info := f.Describe()
		info.ID = id
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (n *FilteringNotifier) filtered(event domain.Event) bool {
	for _, f := range n.filters {
		if f.Filter(event) {
			return true
		}
	}
	return false
}

func (n *FilteringNotifier) removeExpired() {
	now := n.now()
	for id, f := range n.filters {
		if f.Expired(now) {
			delete(n.filters, id)
		}
	}
}
