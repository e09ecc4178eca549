package pta

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"eastviewpta.org/internal/ids"
)

const (
	eventEntity        = "event"
	registrationEntity = "registration"
	maxNotesLen        = 500
)

// EventInput is the organizer-supplied part of an event.
type EventInput struct {
	Title                string        `json:"title"`
	Description          string        `json:"description"`
	StartDate            time.Time     `json:"start_date"`
	EndDate              time.Time     `json:"end_date"`
	AllDay               bool          `json:"all_day"`
	Location             Location      `json:"location"`
	Category             EventCategory `json:"category"`
	RegistrationRequired bool          `json:"registration_required"`
	MaxAttendees         int           `json:"max_attendees"`
	RegistrationDeadline *time.Time    `json:"registration_deadline"`
	CostCents            int64         `json:"cost_cents"`
	PaymentRequired      bool          `json:"payment_required"`
	Featured             bool          `json:"featured"`
}

// EventQuery narrows the public event listing. Bounds apply to the start.
type EventQuery struct {
	From     *time.Time
	To       *time.Time
	Category EventCategory
}

// checkSchedule enforces the date guards shared by create and publish.
func checkSchedule(start, end time.Time, deadline *time.Time) error {
	if start.IsZero() || end.IsZero() {
		return invalid("startDate and endDate are required")
	}
	if !end.After(start) {
		return invalid("endDate must be after startDate")
	}
	if deadline != nil && !deadline.Before(start) {
		return invalid("registrationDeadline must be before startDate")
	}
	return nil
}

func (in *EventInput) validate() error {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	switch {
	case in.Title == "":
		return invalid("title is required")
	case utf8.RuneCountInString(in.Title) > maxTitleLen:
		return invalid("title must be at most %d characters", maxTitleLen)
	case in.Description == "":
		return invalid("description is required")
	case !in.Category.Valid():
		return invalid("category must be one of %s", joinEnum(eventCategories))
	case in.MaxAttendees < 0:
		return invalid("maxAttendees cannot be negative")
	case in.CostCents < 0:
		return invalid("cost cannot be negative")
	}
	return checkSchedule(in.StartDate, in.EndDate, in.RegistrationDeadline)
}

// CreateEvent stores a draft event organized by the caller.
func (s *Service) CreateEvent(ctx context.Context, actor Actor, in EventInput) (Event, error) {
	if err := in.validate(); err != nil {
		return Event{}, err
	}
	status, err := EventWorkflow.Next(TransitionCreate, "")
	if err != nil {
		return Event{}, err
	}
	now := s.clock()
	e := Event{
		ID:                   ids.NewAt(now),
		Title:                in.Title,
		Description:          in.Description,
		StartDate:            in.StartDate.UTC(),
		EndDate:              in.EndDate.UTC(),
		AllDay:               in.AllDay,
		Location:             in.Location,
		OrganizerID:          actor.ID,
		Category:             in.Category,
		Status:               status,
		RegistrationRequired: in.RegistrationRequired,
		MaxAttendees:         in.MaxAttendees,
		CostCents:            in.CostCents,
		PaymentRequired:      in.PaymentRequired,
		Attendees:            []Registration{},
		Volunteers:           []VolunteerSlot{},
		Featured:             in.Featured,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if in.RegistrationDeadline != nil {
		d := in.RegistrationDeadline.UTC()
		e.RegistrationDeadline = &d
	}
	created, err := s.store.CreateEvent(ctx, e)
	if err != nil {
		return Event{}, s.fail(ctx, eventEntity, e.ID, TransitionCreate, err)
	}
	s.notify(ctx, Change{
		Entity:     eventEntity,
		EntityID:   created.ID,
		Transition: TransitionCreate,
		To:         string(created.Status),
		ActorID:    actor.ID,
		SubjectID:  actor.ID,
	})
	return created, nil
}

// PublishEvent re-checks the schedule guards, since stored drafts may predate
// them.
func (s *Service) PublishEvent(ctx context.Context, actor Actor, id string) (Event, error) {
	e, err := s.store.GetEvent(ctx, id)
	if err != nil {
		return Event{}, s.fail(ctx, eventEntity, id, TransitionPublish, err)
	}
	if err := checkSchedule(e.StartDate, e.EndDate, e.RegistrationDeadline); err != nil {
		return Event{}, err
	}
	return s.moveEvent(ctx, actor, e, TransitionPublish)
}

func (s *Service) CancelEvent(ctx context.Context, actor Actor, id string) (Event, error) {
	e, err := s.store.GetEvent(ctx, id)
	if err != nil {
		return Event{}, s.fail(ctx, eventEntity, id, TransitionCancel, err)
	}
	return s.moveEvent(ctx, actor, e, TransitionCancel)
}

func (s *Service) moveEvent(ctx context.Context, actor Actor, e Event, t Transition) (Event, error) {
	from := e.Status
	next, err := EventWorkflow.Next(t, from)
	if err != nil {
		return Event{}, err
	}
	e.Status = next
	e.UpdatedAt = s.clock()
	updated, err := s.store.UpdateEvent(ctx, e)
	if err != nil {
		return Event{}, s.fail(ctx, eventEntity, e.ID, t, err)
	}
	s.notify(ctx, Change{
		Entity:     eventEntity,
		EntityID:   e.ID,
		Transition: t,
		From:       string(from),
		To:         string(next),
		ActorID:    actor.ID,
		SubjectID:  e.OrganizerID,
	})
	return updated, nil
}

// ListEvents returns published events in ascending start order.
func (s *Service) ListEvents(ctx context.Context, q EventQuery) ([]Event, error) {
	if q.Category != "" && !q.Category.Valid() {
		return nil, invalid("category must be one of %s", joinEnum(eventCategories))
	}
	if q.From != nil && q.To != nil && q.To.Before(*q.From) {
		return nil, invalid("end of range must not precede its start")
	}
	return s.store.ListEvents(ctx, EventFilter{
		Status:   EventPublished,
		Category: q.Category,
		From:     q.From,
		To:       q.To,
	})
}

// GetEvent hides unpublished events from everybody but their organizer and
// the board.
func (s *Service) GetEvent(ctx context.Context, id string, viewer Actor) (Event, error) {
	e, err := s.store.GetEvent(ctx, id)
	if err != nil {
		return Event{}, err
	}
	if e.Status != EventPublished && !viewer.Role.Privileged() && (viewer.ID == "" || viewer.ID != e.OrganizerID) {
		return Event{}, notFound(eventEntity)
	}
	return e, nil
}

// RegisterAttendee adds the caller to the attendee list. The duplicate and
// capacity checks run inside the store as one atomic step.
func (s *Service) RegisterAttendee(ctx context.Context, actor Actor, eventID, notes string) (Event, error) {
	notes = strings.TrimSpace(notes)
	if utf8.RuneCountInString(notes) > maxNotesLen {
		return Event{}, invalid("notes must be at most %d characters", maxNotesLen)
	}
	e, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return Event{}, s.fail(ctx, registrationEntity, eventID, TransitionRegister, err)
	}
	now := s.clock()
	switch {
	case e.Status != EventPublished:
		return Event{}, invalid("registration is only open for published events")
	case e.RegistrationDeadline != nil && now.After(*e.RegistrationDeadline):
		return Event{}, invalid("registration deadline has passed")
	case !now.Before(e.EndDate):
		return Event{}, invalid("event has already ended")
	}
	status, err := RegistrationWorkflow.Next(TransitionRegister, "")
	if err != nil {
		return Event{}, err
	}
	r := Registration{
		UserID:        actor.ID,
		RegisteredAt:  now,
		Status:        status,
		PaymentStatus: PaymentPending,
		Notes:         notes,
	}
	updated, err := s.store.AddRegistration(ctx, eventID, r)
	if err != nil {
		return Event{}, s.fail(ctx, registrationEntity, eventID, TransitionRegister, err)
	}
	s.notify(ctx, Change{
		Entity:     registrationEntity,
		EntityID:   eventID,
		Transition: TransitionRegister,
		To:         string(status),
		ActorID:    actor.ID,
		SubjectID:  actor.ID,
	})
	return updated, nil
}

// CancelRegistration withdraws the caller's active registration. The entry
// stays on the list as cancelled and frees its spot.
func (s *Service) CancelRegistration(ctx context.Context, actor Actor, eventID string) (Event, error) {
	return s.moveRegistration(ctx, actor, eventID, actor.ID, TransitionCancel)
}

// MarkAttendance records whether a registered user showed up.
func (s *Service) MarkAttendance(ctx context.Context, actor Actor, eventID, userID string, status RegistrationStatus) (Event, error) {
	var t Transition
	switch status {
	case RegistrationAttended:
		t = TransitionAttend
	case RegistrationNoShow:
		t = TransitionNoShow
	default:
		return Event{}, invalid("attendance status must be %q or %q", RegistrationAttended, RegistrationNoShow)
	}
	return s.moveRegistration(ctx, actor, eventID, userID, t)
}

func (s *Service) moveRegistration(ctx context.Context, actor Actor, eventID, userID string, t Transition) (Event, error) {
	e, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return Event{}, s.fail(ctx, registrationEntity, eventID, t, err)
	}
	r, ok := e.ActiveRegistration(userID)
	if !ok {
		return Event{}, notFound(registrationEntity)
	}
	next, err := RegistrationWorkflow.Next(t, r.Status)
	if err != nil {
		return Event{}, err
	}
	updated, err := s.store.SetRegistrationStatus(ctx, eventID, userID, []RegistrationStatus{r.Status}, next)
	if err != nil {
		return Event{}, s.fail(ctx, registrationEntity, eventID, t, err)
	}
	s.notify(ctx, Change{
		Entity:     registrationEntity,
		EntityID:   eventID,
		Transition: t,
		From:       string(r.Status),
		To:         string(next),
		ActorID:    actor.ID,
		SubjectID:  userID,
	})
	return updated, nil
}

// CompletePastEvents marks every published event that ended by now as
// completed and returns how many were moved.
func (s *Service) CompletePastEvents(ctx context.Context, now time.Time) (int, error) {
	now = now.UTC()
	events, err := s.store.ListEvents(ctx, EventFilter{Status: EventPublished, EndedBy: &now})
	if err != nil {
		return 0, err
	}
	done := 0
	for _, e := range events {
		if _, err := s.moveEvent(ctx, Actor{}, e, TransitionComplete); err != nil {
			return done, err
		}
		done++
	}
	return done, nil
}
