package notify

import (
	"fmt"
	"time"

	"github.com/apascualco/microscope/internal/domain"
)

// Filter suppresses the events it matches.
type Filter interface {
	Filter(event domain.Event) bool
	Expired(now time.Time) bool
	Describe() FilterInfo
}

type FilterInfo struct {
	ID            string     `json:"id"`
	ApplicationID string     `json:"application_id,omitempty"`
	Name          string     `json:"name,omitempty"`
	Expiry        *time.Time `json:"expiry,omitempty"`
}

// expiring is embedded by filters with an optional expiry. A zero expiry never expires.
type expiring struct {
	expiry time.Time
}

func (e expiring) Expired(now time.Time) bool {
	return !e.expiry.IsZero() && !now.Before(e.expiry)
}

func (e expiring) expiryPtr() *time.Time {
	if e.expiry.IsZero() {
		return nil
	}
	t := e.expiry
	return &t
}

type ApplicationNameFilter struct {
	expiring
	name string
}

func NewApplicationNameFilter(name string, expiry time.Time) *ApplicationNameFilter {
	return &ApplicationNameFilter{expiring: expiring{expiry: expiry}, name: name}
}

func (f *ApplicationNameFilter) Filter(event domain.Event) bool {
	return event.Application.Name == f.name
}

func (f *ApplicationNameFilter) Describe() FilterInfo {
	return FilterInfo{Name: f.name, Expiry: f.expiryPtr()}
}

func (f *ApplicationNameFilter) String() string {
	return fmt.Sprintf("name=%s", f.name)
}

type ApplicationIDFilter struct {
	expiring
	id string
}

func NewApplicationIDFilter(id string, expiry time.Time) *ApplicationIDFilter {
	return &ApplicationIDFilter{expiring: expiring{expiry: expiry}, id: id}
}

func (f *ApplicationIDFilter) Filter(event domain.Event) bool {
	return event.Application.ID == f.id
}

func (f *ApplicationIDFilter) Describe() FilterInfo {
	return FilterInfo{ApplicationID: f.id, Expiry: f.expiryPtr()}
}

func (f *ApplicationIDFilter) String() string {
	return fmt.Sprintf("id=%s", f.id)
}
