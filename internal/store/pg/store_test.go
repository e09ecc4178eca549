package pg

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"eastviewpta.org/internal/pta"
)

// arrayConverter lets sqlmock accept the []string arguments pgx would send
// as Postgres arrays.
type arrayConverter struct{}

func (arrayConverter) ConvertValue(v any) (driver.Value, error) {
	if out, err := driver.DefaultParameterConverter.ConvertValue(v); err == nil {
		return out, nil
	}
	return v, nil
}

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.ValueConverterOption(arrayConverter{}))
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
		db.Close()
	})
	return New(db), mock
}

var (
	userCols = []string{"id", "email", "password_hash", "first_name", "last_name", "phone", "role", "status",
		"membership_type", "students", "emergency_contact", "volunteer_interests", "profile_image",
		"created_at", "updated_at"}
	eventCols = []string{"id", "title", "description", "start_date", "end_date", "all_day", "location",
		"organizer_id", "category", "status", "registration_required", "max_attendees",
		"registration_deadline", "cost_cents", "payment_required", "volunteers",
		"google_calendar_event_id", "featured", "created_at", "updated_at"}
	regCols = []string{"event_id", "user_id", "registered_at", "status", "payment_status", "notes"}
	ts      = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
)

func eventRows(id string, max int) *sqlmock.Rows {
	return sqlmock.NewRows(eventCols).AddRow(id, "Book fair", "Annual fair", ts.Add(48*time.Hour), ts.Add(50*time.Hour),
		false, []byte(`{"name":"Gym"}`), "org", "fundraiser", "published", true, max, nil, int64(0), false,
		[]byte(`[]`), "", false, ts, ts)
}

func TestGetUserDecodesDocuments(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery("select .* from users where id = \\$1").WithArgs("u1").WillReturnRows(
		sqlmock.NewRows(userCols).AddRow("u1", "pat@example.org", "hash", "Pat", "Lee", "(512) 555-0100",
			"member", "approved", "family", []byte(`[{"name":"Sam","grade":"9","teacher":"Ms. Ortiz"}]`),
			[]byte(`{"name":"Kim","phone":"(512) 555-0101","relationship":"spouse"}`),
			[]byte(`["events","technology"]`), "", ts, ts))

	u, err := s.GetUser(context.Background(), "u1")
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if u.Status != pta.UserApproved || u.MembershipType != pta.MembershipFamily {
		t.Fatalf("unexpected enums: %+v", u)
	}
	if len(u.Students) != 1 || u.Students[0].Teacher != "Ms. Ortiz" {
		t.Fatalf("students not decoded: %+v", u.Students)
	}
	if u.EmergencyContact.Relationship != "spouse" || len(u.VolunteerInterests) != 2 {
		t.Fatalf("documents not decoded: %+v", u)
	}
}

func TestGetUserNotFound(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery("from users where id").WithArgs("missing").WillReturnError(sql.ErrNoRows)

	_, err := s.GetUser(context.Background(), "missing")
	if !errors.Is(err, pta.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateUserConflict(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery("insert into users").WillReturnError(&pgconn.PgError{Code: pgErrUniqueViolation})

	_, err := s.CreateUser(context.Background(), pta.User{ID: "u1", Email: "pat@example.org", CreatedAt: ts, UpdatedAt: ts})
	if !errors.Is(err, pta.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestCreatePostMissingAuthor(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery("insert into posts").WillReturnError(&pgconn.PgError{Code: pgErrForeignKeyViolation})

	_, err := s.CreatePost(context.Background(), pta.BlogPost{ID: "p1", Slug: "hello"})
	if !errors.Is(err, pta.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListPostsPaging(t *testing.T) {
	s, mock := newMockStore(t)
	postCols := []string{"id", "title", "slug", "content", "content_html", "excerpt", "author_id", "status",
		"featured_image", "tags", "categories", "comments", "likes", "seo_title", "seo_description",
		"featured", "pinned", "published_at", "created_at", "updated_at"}
	mock.ExpectQuery("select count\\(\\*\\) from posts").WithArgs("published").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(12))
	mock.ExpectQuery("order by pinned desc").WithArgs("published", 10, int64(10)).
		WillReturnRows(sqlmock.NewRows(postCols).AddRow("p11", "Hello", "hello", "body", "<p>body</p>", "body",
			"u1", "published", "", []byte(`["news"]`), []byte(`["news"]`),
			[]byte(`[{"id":"c1","author_id":"u2","content":"hi","status":"approved"}]`),
			[]byte(`["u2","u3"]`), "", "", false, false, ts, ts, ts))

	posts, total, err := s.ListPosts(context.Background(), pta.PostFilter{Status: pta.PostPublished, Offset: 10, Limit: 10})
	if err != nil {
		t.Fatalf("ListPosts: %v", err)
	}
	if total != 12 || len(posts) != 1 {
		t.Fatalf("unexpected page: total=%d len=%d", total, len(posts))
	}
	p := posts[0]
	if p.PublishedAt == nil || !p.PublishedAt.Equal(ts) {
		t.Fatalf("published_at not scanned: %v", p.PublishedAt)
	}
	if p.CommentCount() != 1 || p.LikeCount() != 2 {
		t.Fatalf("unexpected derived counts: %d comments, %d likes", p.CommentCount(), p.LikeCount())
	}
}

func TestAddRegistrationRejectsFullEvent(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectQuery("select max_attendees from events where id = \\$1 for update").WithArgs("e1").
		WillReturnRows(sqlmock.NewRows([]string{"max_attendees"}).AddRow(2))
	mock.ExpectQuery("from event_registrations").WithArgs("e1", "u3").
		WillReturnRows(sqlmock.NewRows([]string{"registered", "mine"}).AddRow(2, 0))
	mock.ExpectRollback()

	_, err := s.AddRegistration(context.Background(), "e1", pta.Registration{UserID: "u3", RegisteredAt: ts})
	if !errors.Is(err, pta.ErrEventFull) {
		t.Fatalf("expected ErrEventFull, got %v", err)
	}
}

func TestAddRegistrationRejectsDuplicate(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectQuery("select max_attendees").WithArgs("e1").
		WillReturnRows(sqlmock.NewRows([]string{"max_attendees"}).AddRow(0))
	mock.ExpectQuery("from event_registrations").WithArgs("e1", "u1").
		WillReturnRows(sqlmock.NewRows([]string{"registered", "mine"}).AddRow(1, 1))
	mock.ExpectRollback()

	_, err := s.AddRegistration(context.Background(), "e1", pta.Registration{UserID: "u1", RegisteredAt: ts})
	if !errors.Is(err, pta.ErrAlreadyRegistered) {
		t.Fatalf("expected ErrAlreadyRegistered, got %v", err)
	}
}

func TestAddRegistrationMissingEvent(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectQuery("select max_attendees").WithArgs("nope").WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err := s.AddRegistration(context.Background(), "nope", pta.Registration{UserID: "u1"})
	if !errors.Is(err, pta.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAddRegistrationRetriesSerializationFailure(t *testing.T) {
	s, mock := newMockStore(t)
	reg := pta.Registration{UserID: "u1", RegisteredAt: ts, Status: pta.RegistrationRegistered, PaymentStatus: pta.PaymentPending}

	expectAttempt := func() {
		mock.ExpectBegin()
		mock.ExpectQuery("select max_attendees").WithArgs("e1").
			WillReturnRows(sqlmock.NewRows([]string{"max_attendees"}).AddRow(5))
		mock.ExpectQuery("from event_registrations").WithArgs("e1", "u1").
			WillReturnRows(sqlmock.NewRows([]string{"registered", "mine"}).AddRow(0, 0))
		mock.ExpectExec("insert into event_registrations").
			WithArgs("e1", "u1", ts, "registered", "pending", "").
			WillReturnResult(sqlmock.NewResult(1, 1))
	}
	expectAttempt()
	mock.ExpectCommit().WillReturnError(&pgconn.PgError{Code: pgErrSerialization, Message: "could not serialize access"})
	expectAttempt()
	mock.ExpectCommit()

	mock.ExpectQuery("from events where id = \\$1").WithArgs("e1").WillReturnRows(eventRows("e1", 5))
	mock.ExpectQuery("from event_registrations").WithArgs([]string{"e1"}).
		WillReturnRows(sqlmock.NewRows(regCols).AddRow("e1", "u1", ts, "registered", "pending", ""))

	e, err := s.AddRegistration(context.Background(), "e1", reg)
	if err != nil {
		t.Fatalf("AddRegistration: %v", err)
	}
	if e.RegisteredCount() != 1 || e.Location.Name != "Gym" {
		t.Fatalf("unexpected event: %+v", e)
	}
}

func TestAddRegistrationRetriesSerializationFailureOnLock(t *testing.T) {
	s, mock := newMockStore(t)
	reg := pta.Registration{UserID: "u1", RegisteredAt: ts, Status: pta.RegistrationRegistered, PaymentStatus: pta.PaymentPending}

	mock.ExpectBegin()
	mock.ExpectQuery("select max_attendees").WithArgs("e1").
		WillReturnError(&pgconn.PgError{Code: pgErrSerialization, Message: "could not serialize access"})
	mock.ExpectRollback()

	mock.ExpectBegin()
	mock.ExpectQuery("select max_attendees").WithArgs("e1").
		WillReturnRows(sqlmock.NewRows([]string{"max_attendees"}).AddRow(5))
	mock.ExpectQuery("from event_registrations").WithArgs("e1", "u1").
		WillReturnRows(sqlmock.NewRows([]string{"registered", "mine"}).AddRow(0, 0))
	mock.ExpectExec("insert into event_registrations").
		WithArgs("e1", "u1", ts, "registered", "pending", "").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	mock.ExpectQuery("from events where id = \\$1").WithArgs("e1").WillReturnRows(eventRows("e1", 5))
	mock.ExpectQuery("from event_registrations").WithArgs([]string{"e1"}).
		WillReturnRows(sqlmock.NewRows(regCols).AddRow("e1", "u1", ts, "registered", "pending", ""))

	e, err := s.AddRegistration(context.Background(), "e1", reg)
	if err != nil {
		t.Fatalf("AddRegistration: %v", err)
	}
	if e.RegisteredCount() != 1 {
		t.Fatalf("unexpected event: %+v", e)
	}
}

func TestAddRegistrationGivesUpAsConflict(t *testing.T) {
	s, mock := newMockStore(t)
	for i := 0; i < maxTxAttempts; i++ {
		mock.ExpectBegin()
		mock.ExpectQuery("select max_attendees").WithArgs("e1").
			WillReturnRows(sqlmock.NewRows([]string{"max_attendees"}).AddRow(5))
		mock.ExpectQuery("from event_registrations").WithArgs("e1", "u1").
			WillReturnError(&pgconn.PgError{Code: pgErrSerialization, Message: "could not serialize access"})
		mock.ExpectRollback()
	}

	_, err := s.AddRegistration(context.Background(), "e1", pta.Registration{UserID: "u1", RegisteredAt: ts})
	if !errors.Is(err, pta.ErrConflict) {
		t.Fatalf("expected ErrConflict after %d attempts, got %v", maxTxAttempts, err)
	}
}

func TestSetRegistrationStatusMissingEntry(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery("update event_registrations set status").
		WithArgs("e1", "u9", []string{"registered"}, "cancelled").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("from events where id = \\$1").WithArgs("e1").WillReturnRows(eventRows("e1", 0))
	mock.ExpectQuery("from event_registrations").WithArgs([]string{"e1"}).WillReturnRows(sqlmock.NewRows(regCols))

	_, err := s.SetRegistrationStatus(context.Background(), "e1", "u9",
		[]pta.RegistrationStatus{pta.RegistrationRegistered}, pta.RegistrationCancelled)
	if !errors.Is(err, pta.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateEventMissing(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec("update events set").WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := s.UpdateEvent(context.Background(), pta.Event{ID: "gone", StartDate: ts, EndDate: ts.Add(time.Hour)})
	if !errors.Is(err, pta.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestEmbeddedMigrations(t *testing.T) {
	for _, name := range []string{"0001_users.up.sql", "0002_posts.up.sql", "0003_events.up.sql", "0003_events.down.sql"} {
		if _, err := Migrations().Open(name); err != nil {
			t.Fatalf("missing migration %s: %v", name, err)
		}
	}
}
