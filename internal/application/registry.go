package application

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/apascualco/microscope/internal/domain"
)

// EventSink receives application events. Implementations must not block for long
// and must not call back into the registry.
type EventSink interface {
	Notify(ctx context.Context, event domain.Event)
}

// StatusProber asks an application for its current status.
type StatusProber interface {
	Probe(ctx context.Context, app *domain.Application) (domain.Status, error)
}

// Gauge records the current size of the registry.
type Gauge interface {
	Set(name string, value float64, tags map[string]string)
}

type discardSink struct{}

func (discardSink) Notify(context.Context, domain.Event) {}

type discardGauge struct{}

func (discardGauge) Set(string, float64, map[string]string) {}

type RegistryConfig struct {
	HeartbeatTTL        time.Duration
	HealthCheckInterval time.Duration
	ProbeConcurrency    int
}

type RegistryOption func(*Registry)

func WithEventSink(sink EventSink) RegistryOption {
	return func(r *Registry) {
		if sink != nil {
			r.events = sink
		}
	}
}

func WithGauge(g Gauge) RegistryOption {
	return func(r *Registry) {
		if g != nil {
			r.gauge = g
		}
	}
}

func WithStatusProber(prober StatusProber) RegistryOption {
	return func(r *Registry) {
		r.prober = prober
	}
}

type Registry struct {
	config       RegistryConfig
	mu           sync.RWMutex
	applications map[string]*domain.Application
	names        map[string][]string
	events       EventSink
	prober       StatusProber
	gauge        Gauge
	now          func() time.Time
	stopCh       chan struct{}
}

func NewRegistry(cfg RegistryConfig, opts ...RegistryOption) *Registry {
	r := &Registry{
		config:       cfg,
		applications: make(map[string]*domain.Application),
		names:        make(map[string][]string),
		events:       discardSink{},
		gauge:        discardGauge{},
		now:          time.Now,
		stopCh:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Registry) publish(events []domain.Event) {
	for _, e := range events {
		r.events.Notify(context.Background(), e)
	}
}

func cloneApplication(app *domain.Application) *domain.Application {
	c := *app
	c.Metadata = maps.Clone(app.Metadata)
	return &c
}
