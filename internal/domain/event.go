package domain

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventStatusChanged EventType = "STATUS_CHANGED"
	EventDeregistered  EventType = "DEREGISTERED"
)

// Event reports a change observed on a monitored application.
type Event struct {
	ID          string         `json:"id"`
	Type        EventType      `json:"type"`
	Application ApplicationRef `json:"application"`
	From        StatusInfo     `json:"from"`
	To          StatusInfo     `json:"to"`
	Timestamp   time.Time      `json:"timestamp"`
}

func NewStatusChangedEvent(app *Application, from StatusInfo, at time.Time) Event {
	return Event{
		ID:          uuid.New().String(),
		Type:        EventStatusChanged,
		Application: app.Ref(),
		From:        from,
		To:          app.StatusInfo,
		Timestamp:   at,
	}
}

func NewDeregisteredEvent(app *Application, at time.Time) Event {
	return Event{
		ID:          uuid.New().String(),
		Type:        EventDeregistered,
		Application: app.Ref(),
		From:        app.StatusInfo,
		To:          StatusInfo{Status: StatusOffline, Timestamp: at},
		Timestamp:   at,
	}
}
