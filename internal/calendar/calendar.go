// Package calendar mirrors a Google Calendar read-only and passes the few
// write operations through to the provider.
package calendar

import (
	"context"
	"errors"
	"strings"
	"time"

	"eastviewpta.org/internal/pta"
)

// ErrUnavailable covers every provider failure: timeouts, transport errors
// and non-2xx responses alike.
var ErrUnavailable = errors.New("calendar service unavailable")

// Event is the normalized shape served to clients.
type Event struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Start       time.Time  `json:"start"`
	End         time.Time  `json:"end"`
	AllDay      bool       `json:"all_day"`
	When        string     `json:"when,omitempty"`
	Location    string     `json:"location"`
	Attendees   []Attendee `json:"attendees"`
	HTMLLink    string     `json:"html_link,omitempty"`
	Created     time.Time  `json:"created,omitzero"`
	Updated     time.Time  `json:"updated,omitzero"`
}

type Attendee struct {
	Email          string `json:"email"`
	DisplayName    string `json:"display_name,omitempty"`
	ResponseStatus string `json:"response_status,omitempty"`
}

// EventInput is the body of a create or update pass-through.
type EventInput struct {
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	StartDateTime time.Time `json:"startDateTime"`
	EndDateTime   time.Time `json:"endDateTime"`
	Location      string    `json:"location"`
	Attendees     []string  `json:"attendees"`
}

func (in EventInput) Validate() error {
	switch {
	case strings.TrimSpace(in.Title) == "":
		return &pta.ValidationError{Message: "title is required"}
	case in.StartDateTime.IsZero():
		return &pta.ValidationError{Message: "valid start date/time is required"}
	case in.EndDateTime.IsZero():
		return &pta.ValidationError{Message: "valid end date/time is required"}
	case !in.EndDateTime.After(in.StartDateTime):
		return &pta.ValidationError{Message: "endDateTime must be after startDateTime"}
	}
	return nil
}

// Range bounds a listing on event start time.
type Range struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Provider is the upstream calendar.
type Provider interface {
	List(ctx context.Context, r Range, maxResults int) ([]Event, error)
	Get(ctx context.Context, id string) (Event, error)
	Create(ctx context.Context, in EventInput) (Event, error)
	Update(ctx context.Context, id string, in EventInput) (Event, error)
	Delete(ctx context.Context, id string) error
}

// Disabled stands in when no calendar credentials are configured.
type Disabled struct{}

func (Disabled) List(context.Context, Range, int) ([]Event, error) { return nil, ErrUnavailable }
func (Disabled) Get(context.Context, string) (Event, error)        { return Event{}, ErrUnavailable }
func (Disabled) Create(context.Context, EventInput) (Event, error) { return Event{}, ErrUnavailable }
func (Disabled) Update(context.Context, string, EventInput) (Event, error) {
	return Event{}, ErrUnavailable
}
func (Disabled) Delete(context.Context, string) error { return ErrUnavailable }

var _ Provider = Disabled{}
