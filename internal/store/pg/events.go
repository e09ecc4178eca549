package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"eastviewpta.org/internal/pta"
)

const eventColumns = `id, title, description, start_date, end_date, all_day, location, organizer_id,
	category, status, registration_required, max_attendees, registration_deadline, cost_cents,
	payment_required, volunteers, google_calendar_event_id, featured, created_at, updated_at`

func scanEvent(row scanner) (pta.Event, error) {
	var (
		e                    pta.Event
		category, status     string
		location, volunteers []byte
		deadline             sql.NullTime
	)
	if err := row.Scan(&e.ID, &e.Title, &e.Description, &e.StartDate, &e.EndDate, &e.AllDay,
		&location, &e.OrganizerID, &category, &status, &e.RegistrationRequired, &e.MaxAttendees,
		&deadline, &e.CostCents, &e.PaymentRequired, &volunteers, &e.GoogleCalendarEventID,
		&e.Featured, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return pta.Event{}, err
	}
	e.Category = pta.EventCategory(category)
	e.Status = pta.EventStatus(status)
	if err := unmarshalJSON(location, &e.Location); err != nil {
		return pta.Event{}, err
	}
	if err := unmarshalJSON(volunteers, &e.Volunteers); err != nil {
		return pta.Event{}, err
	}
	e.RegistrationDeadline = timePtr(deadline)
	e.StartDate = e.StartDate.UTC()
	e.EndDate = e.EndDate.UTC()
	e.CreatedAt = e.CreatedAt.UTC()
	e.UpdatedAt = e.UpdatedAt.UTC()
	e.Attendees = []pta.Registration{}
	return e, nil
}

func (s *Store) CreateEvent(ctx context.Context, e pta.Event) (pta.Event, error) {
	location, err := marshalJSON(e.Location)
	if err != nil {
		return pta.Event{}, err
	}
	volunteers, err := marshalJSON(nonNil(e.Volunteers))
	if err != nil {
		return pta.Event{}, err
	}
	row := s.db.QueryRowContext(ctx, `
		insert into events (id, title, description, start_date, end_date, all_day, location,
			organizer_id, category, status, registration_required, max_attendees,
			registration_deadline, cost_cents, payment_required, volunteers,
			google_calendar_event_id, featured, created_at, updated_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		returning `+eventColumns,
		e.ID, e.Title, e.Description, e.StartDate.UTC(), e.EndDate.UTC(), e.AllDay, location,
		e.OrganizerID, string(e.Category), string(e.Status), e.RegistrationRequired, e.MaxAttendees,
		nullTime(e.RegistrationDeadline), e.CostCents, e.PaymentRequired, volunteers,
		e.GoogleCalendarEventID, e.Featured, e.CreatedAt.UTC(), e.UpdatedAt.UTC())
	out, err := scanEvent(row)
	if err != nil {
		return pta.Event{}, mapError(err, "event")
	}
	return out, nil
}

func (s *Store) GetEvent(ctx context.Context, id string) (pta.Event, error) {
	return s.getEvent(ctx, s.db, id)
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *Store) getEvent(ctx context.Context, q querier, id string) (pta.Event, error) {
	e, err := scanEvent(q.QueryRowContext(ctx, `select `+eventColumns+` from events where id = $1`, id))
	if err != nil {
		return pta.Event{}, mapError(err, "event")
	}
	regs, err := s.registrations(ctx, q, []string{id})
	if err != nil {
		return pta.Event{}, err
	}
	if r := regs[id]; r != nil {
		e.Attendees = r
	}
	return e, nil
}

func (s *Store) registrations(ctx context.Context, q querier, eventIDs []string) (map[string][]pta.Registration, error) {
	out := make(map[string][]pta.Registration, len(eventIDs))
	if len(eventIDs) == 0 {
		return out, nil
	}
	rows, err := q.QueryContext(ctx, `
		select event_id, user_id, registered_at, status, payment_status, notes
		from event_registrations
		where event_id = any($1)
		order by seq
	`, eventIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			eventID, status, payment string
			r                        pta.Registration
		)
		if err := rows.Scan(&eventID, &r.UserID, &r.RegisteredAt, &status, &payment, &r.Notes); err != nil {
			return nil, err
		}
		r.Status = pta.RegistrationStatus(status)
		r.PaymentStatus = pta.PaymentStatus(payment)
		r.RegisteredAt = r.RegisteredAt.UTC()
		out[eventID] = append(out[eventID], r)
	}
	return out, rows.Err()
}

func (s *Store) ListEvents(ctx context.Context, f pta.EventFilter) ([]pta.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		select `+eventColumns+`
		from events
		where ($1 = '' or status = $1)
		  and ($2 = '' or category = $2)
		  and ($3::timestamptz is null or start_date >= $3)
		  and ($4::timestamptz is null or start_date <= $4)
		  and ($5::timestamptz is null or end_date <= $5)
		order by start_date asc, id asc
	`, string(f.Status), string(f.Category), nullTime(f.From), nullTime(f.To), nullTime(f.EndedBy))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]pta.Event, 0)
	ids := make([]string, 0)
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
		ids = append(ids, e.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	regs, err := s.registrations(ctx, s.db, ids)
	if err != nil {
		return nil, err
	}
	for i := range events {
		if r := regs[events[i].ID]; r != nil {
			events[i].Attendees = r
		}
	}
	return events, nil
}

// UpdateEvent leaves registrations and volunteers alone; they change only
// through their own calls.
func (s *Store) UpdateEvent(ctx context.Context, e pta.Event) (pta.Event, error) {
	location, err := marshalJSON(e.Location)
	if err != nil {
		return pta.Event{}, err
	}
	res, err := s.db.ExecContext(ctx, `
		update events set
			title = $2, description = $3, start_date = $4, end_date = $5, all_day = $6,
			location = $7, category = $8, status = $9, registration_required = $10,
			max_attendees = $11, registration_deadline = $12, cost_cents = $13,
			payment_required = $14, google_calendar_event_id = $15, featured = $16,
			updated_at = $17
		where id = $1
	`, e.ID, e.Title, e.Description, e.StartDate.UTC(), e.EndDate.UTC(), e.AllDay,
		location, string(e.Category), string(e.Status), e.RegistrationRequired,
		e.MaxAttendees, nullTime(e.RegistrationDeadline), e.CostCents,
		e.PaymentRequired, e.GoogleCalendarEventID, e.Featured, e.UpdatedAt.UTC())
	if err != nil {
		return pta.Event{}, mapError(err, "event")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return pta.Event{}, mapError(sql.ErrNoRows, "event")
	}
	return s.GetEvent(ctx, e.ID)
}

var errRetry = errors.New("retry")

// AddRegistration runs the duplicate and capacity checks and the insert in
// one serializable transaction holding the event row lock.
func (s *Store) AddRegistration(ctx context.Context, eventID string, r pta.Registration) (pta.Event, error) {
	var lastErr error
	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		err := s.tryRegister(ctx, eventID, r)
		if err == nil {
			return s.GetEvent(ctx, eventID)
		}
		if !errors.Is(err, errRetry) {
			return pta.Event{}, err
		}
		lastErr = err
	}
	return pta.Event{}, fmt.Errorf("register for event %s: %w (%v)", eventID, pta.ErrConflict, lastErr)
}

func (s *Store) tryRegister(ctx context.Context, eventID string, r pta.Registration) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var maxAttendees int
	if err := tx.QueryRowContext(ctx, `select max_attendees from events where id = $1 for update`, eventID).Scan(&maxAttendees); err != nil {
		return classifyTxError(err, "event")
	}

	var registered, mine int
	if err := tx.QueryRowContext(ctx, `
		select
			count(*) filter (where status = 'registered'),
			count(*) filter (where user_id = $2 and status <> 'cancelled')
		from event_registrations
		where event_id = $1
	`, eventID, r.UserID).Scan(&registered, &mine); err != nil {
		return classifyTxError(err, "event")
	}
	if mine > 0 {
		return pta.ErrAlreadyRegistered
	}
	if maxAttendees > 0 && registered >= maxAttendees {
		return pta.ErrEventFull
	}

	if _, err := tx.ExecContext(ctx, `
		insert into event_registrations (event_id, user_id, registered_at, status, payment_status, notes)
		values ($1, $2, $3, $4, $5, $6)
	`, eventID, r.UserID, r.RegisteredAt.UTC(), string(r.Status), string(r.PaymentStatus), r.Notes); err != nil {
		return classifyTxError(err, "event")
	}
	if err := tx.Commit(); err != nil {
		return classifyTxError(err, "event")
	}
	return nil
}

func classifyTxError(err error, kind string) error {
	if pgErr, ok := maybePgError(err); ok {
		switch pgErr.Code {
		case pgErrSerialization:
			return fmt.Errorf("%w: %s", errRetry, pgErr.Message)
		case pgErrUniqueViolation:
			return pta.ErrAlreadyRegistered
		}
	}
	return mapError(err, kind)
}

func (s *Store) SetRegistrationStatus(ctx context.Context, eventID, userID string, from []pta.RegistrationStatus, to pta.RegistrationStatus) (pta.Event, error) {
	allowed := make([]string, len(from))
	for i, st := range from {
		allowed[i] = string(st)
	}
	var seq int64
	err := s.db.QueryRowContext(ctx, `
		update event_registrations set status = $4
		where seq = (
			select seq from event_registrations
			where event_id = $1 and user_id = $2 and status = any($3)
			order by seq desc
			limit 1
		)
		returning seq
	`, eventID, userID, allowed, string(to)).Scan(&seq)
	if errors.Is(err, sql.ErrNoRows) {
		if _, getErr := s.GetEvent(ctx, eventID); getErr != nil {
			return pta.Event{}, getErr
		}
		return pta.Event{}, mapError(err, "registration")
	}
	if err != nil {
		return pta.Event{}, classifyTxError(err, "registration")
	}
	return s.GetEvent(ctx, eventID)
}
