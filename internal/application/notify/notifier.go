// Package notify turns application events into outbound notifications. The
// notifiers in this package are not safe for concurrent use on their own; Relay
// serialises every call into the chain.
package notify

import (
	"context"
	"errors"

	"github.com/apascualco/microscope/internal/domain"
)

type Notifier interface {
	Notify(ctx context.Context, event domain.Event) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, event domain.Event) error

func (f NotifierFunc) Notify(ctx context.Context, event domain.Event) error {
	return f(ctx, event)
}

// Noop discards every event. It stands in when no sink is configured.
type Noop struct{}

func (Noop) Notify(context.Context, domain.Event) error { return nil }

// Composite fans an event out to every delegate and joins their errors.
type Composite []Notifier

func (c Composite) Notify(ctx context.Context, event domain.Event) error {
	var errs []error
	for _, n := range c {
		if err := n.Notify(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
