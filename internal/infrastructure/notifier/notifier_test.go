package notifier

import (
	"time"

	"github.com/apascualco/microscope/internal/domain"
)

func downEvent() domain.Event {
	at := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	return domain.Event{
		ID:          "evt-1",
		Type:        domain.EventStatusChanged,
		Application: domain.ApplicationRef{ID: "a1", Name: "billing", HealthURL: "http://billing/health"},
		From:        domain.StatusInfo{Status: domain.StatusUp, Timestamp: at},
		To:          domain.StatusInfo{Status: domain.StatusDown, Timestamp: at},
		Timestamp:   at,
	}
}
