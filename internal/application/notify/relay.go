package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/apascualco/microscope/internal/domain"
)

var ErrFixedRateRequired = errors.New("reminder scheduler fixed rate must be positive")

// Counter is the subset of the metrics API the relay reports to.
type Counter interface {
	Incr(name string, tags map[string]string)
	Add(name string, value float64, tags map[string]string)
}

type noopCounter struct{}

func (noopCounter) Incr(string, map[string]string)         {}
func (noopCounter) Add(string, float64, map[string]string) {}

type RelayConfig struct {
	FixedRate        time.Duration
	ReminderPeriod   time.Duration
	ReminderStatuses []domain.Status
}

type RelayOption func(*Relay)

func WithMetrics(c Counter) RelayOption {
	return func(r *Relay) {
		if c != nil {
			r.metrics = c
		}
	}
}

func WithLogger(logger *slog.Logger) RelayOption {
	return func(r *Relay) {
		r.logger = logger
	}
}

func WithClock(now func() time.Time) RelayOption {
	return func(r *Relay) {
		r.filtering.now = now
		r.reminding.now = now
	}
}

// Relay owns the notifier chain sink <- filtering <- reminding. Live events and the
// reminder scheduler both go through one mutex, so filter and reminder state is
// never written concurrently. Delivery is best effort: failures are logged, never
// returned.
type Relay struct {
	mu        sync.Mutex
	filtering *FilteringNotifier
	reminding *RemindingNotifier
	fixedRate time.Duration
	metrics   Counter
	logger    *slog.Logger
	stopCh    chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

// NewRelay builds the chain around sink. A nil sink is replaced by Noop so the
// bookkeeping and the scheduler still run.
func NewRelay(sink Notifier, cfg RelayConfig, opts ...RelayOption) (*Relay, error) {
	if cfg.FixedRate <= 0 {
		return nil, ErrFixedRateRequired
	}
	if sink == nil {
		sink = Noop{}
	}

	filtering := NewFilteringNotifier(sink)
	r := &Relay{
		filtering: filtering,
		reminding: NewRemindingNotifier(filtering, cfg.ReminderPeriod, cfg.ReminderStatuses),
		fixedRate: cfg.FixedRate,
		metrics:   noopCounter{},
		logger:    slog.Default(),
		stopCh:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

func (r *Relay) Notify(ctx context.Context, event domain.Event) {
	r.mu.Lock()
	err := r.reminding.Notify(ctx, event)
	r.mu.Unlock()

	tags := map[string]string{"type": string(event.Type), "status": string(event.To.Status)}
	r.metrics.Incr("notify.events", tags)
	if err != nil {
		r.metrics.Incr("notify.failures", tags)
		r.logger.Warn("notification delivery failed",
			"event_id", event.ID,
			"application", event.Application.Name,
			"status", event.To.Status,
			"error", err,
		)
	}
}

func (r *Relay) SendReminders(ctx context.Context) {
	r.mu.Lock()
	sent, err := r.reminding.SendReminders(ctx)
	r.mu.Unlock()

	if sent > 0 {
		r.metrics.Add("notify.reminders", float64(sent), nil)
		r.logger.Debug("reminders sent", "count", sent)
	}
	if err != nil {
		r.metrics.Incr("notify.failures", map[string]string{"type": "REMINDER", "status": ""})
		r.logger.Warn("reminder delivery failed", "error", err)
	}
}

func (r *Relay) AddFilter(f Filter) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.filtering.AddFilter(f)
}

func (r *Relay) RemoveFilter(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.filtering.RemoveFilter(id)
}

func (r *Relay) Filters() []FilterInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.filtering.Filters()
}

// PendingReminders returns how many applications currently have a reminder.
func (r *Relay) PendingReminders() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reminding.Pending()
}

// Start runs SendReminders at the fixed rate until Stop is called.
func (r *Relay) Start() {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		ticker := time.NewTicker(r.fixedRate)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				r.SendReminders(context.Background())
			case <-r.stopCh:
				return
			}
		}
	}()
}

func (r *Relay) Stop() {
	r.stopOnce.Do(func() {
		close(r.stopCh)
	})
	r.wg.Wait()
}
