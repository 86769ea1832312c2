// Package notifier holds the outbound sinks the notification relay delivers to.
package notifier

import (
	"context"
	"log/slog"

	"github.com/apascualco/microscope/internal/domain"
)

// Log writes every event to a structured logger.
type Log struct {
	logger *slog.Logger
}

func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger.With(slog.String("component", "notifier"))}
}

func (l *Log) Notify(ctx context.Context, event domain.Event) error {
	level := slog.LevelInfo
	if event.To.Status == domain.StatusDown || event.To.Status == domain.StatusOffline {
		level = slog.LevelWarn
	}
	l.logger.LogAttrs(ctx, level, "application event",
		slog.String("event_id", event.ID),
		slog.String("type", string(event.Type)),
		slog.String("application", event.Application.Name),
		slog.String("application_id", event.Application.ID),
		slog.String("from", string(event.From.Status)),
		slog.String("to", string(event.To.Status)),
	)
	return nil
}
