package pta

import (
	"encoding/json"
	"strings"
	"time"
)

// Actor is the authenticated caller a mutation runs on behalf of.
type Actor struct {
	ID   string
	Role Role
}

type Student struct {
	Name    string `json:"name" bson:"name"`
	Grade   string `json:"grade" bson:"grade"`
	Teacher string `json:"teacher" bson:"teacher"`
}

type EmergencyContact struct {
	Name         string `json:"name" bson:"name"`
	Phone        string `json:"phone" bson:"phone"`
	Relationship string `json:"relationship" bson:"relationship"`
}

// User is a registered account.
type User struct {
	ID                 string              `json:"id" bson:"_id"`
	FirstName          string              `json:"first_name" bson:"first_name"`
	LastName           string              `json:"last_name" bson:"last_name"`
	Email              string              `json:"email" bson:"email"`
	PasswordHash       string              `json:"-" bson:"password_hash"`
	Phone              string              `json:"phone,omitempty" bson:"phone"`
	Role               Role                `json:"role" bson:"role"`
	Status             UserStatus          `json:"status" bson:"status"`
	MembershipType     MembershipType      `json:"membership_type" bson:"membership_type"`
	Students           []Student           `json:"students" bson:"students"`
	EmergencyContact   EmergencyContact    `json:"emergency_contact" bson:"emergency_contact"`
	VolunteerInterests []VolunteerInterest `json:"volunteer_interests" bson:"volunteer_interests"`
	ProfileImage       string              `json:"profile_image,omitempty" bson:"profile_image"`
	CreatedAt          time.Time           `json:"created_at" bson:"created_at"`
	UpdatedAt          time.Time           `json:"updated_at" bson:"updated_at"`
}

func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

func (u User) MarshalJSON() ([]byte, error) {
	type alias User
	return json.Marshal(struct {
		alias
		FullName string `json:"full_name"`
	}{alias(u), u.FullName()})
}

type Comment struct {
	ID        string        `json:"id" bson:"id"`
	AuthorID  string        `json:"author_id" bson:"author_id"`
	Content   string        `json:"content" bson:"content"`
	Status    CommentStatus `json:"status" bson:"status"`
	CreatedAt time.Time     `json:"created_at" bson:"created_at"`
}

// BlogPost is an authored article subject to moderation.
type BlogPost struct {
	ID             string         `json:"id" bson:"_id"`
	Title          string         `json:"title" bson:"title"`
	Slug           string         `json:"slug" bson:"slug"`
	Content        string         `json:"content" bson:"content"`
	ContentHTML    string         `json:"content_html" bson:"content_html"`
	Excerpt        string         `json:"excerpt" bson:"excerpt"`
	AuthorID       string         `json:"author_id" bson:"author_id"`
	Status         PostStatus     `json:"status" bson:"status"`
	FeaturedImage  string         `json:"featured_image,omitempty" bson:"featured_image"`
	Tags           []string       `json:"tags" bson:"tags"`
	Categories     []PostCategory `json:"categories" bson:"categories"`
	Comments       []Comment      `json:"comments" bson:"comments"`
	Likes          []string       `json:"likes" bson:"likes"`
	SEOTitle       string         `json:"seo_title,omitempty" bson:"seo_title"`
	SEODescription string         `json:"seo_description,omitempty" bson:"seo_description"`
	Featured       bool           `json:"featured" bson:"featured"`
	Pinned         bool           `json:"pinned" bson:"pinned"`
	PublishedAt    *time.Time     `json:"published_at,omitempty" bson:"published_at"`
	CreatedAt      time.Time      `json:"created_at" bson:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at" bson:"updated_at"`
}

// CommentCount counts approved comments only.
func (p BlogPost) CommentCount() int {
	n := 0
	for _, c := range p.Comments {
		if c.Status == CommentApproved {
			n++
		}
	}
	return n
}

func (p BlogPost) LikeCount() int { return len(p.Likes) }

// PublicComments returns approved comments plus any the viewer wrote.
func (p BlogPost) PublicComments(viewerID string) []Comment {
	out := make([]Comment, 0, len(p.Comments))
	for _, c := range p.Comments {
		if c.Status == CommentApproved || (viewerID != "" && c.AuthorID == viewerID) {
			out = append(out, c)
		}
	}
	return out
}

func (p BlogPost) MarshalJSON() ([]byte, error) {
	type alias BlogPost
	return json.Marshal(struct {
		alias
		CommentCount int `json:"comment_count"`
		LikeCount    int `json:"like_count"`
	}{alias(p), p.CommentCount(), p.LikeCount()})
}

type Location struct {
	Name    string `json:"name,omitempty" bson:"name"`
	Address string `json:"address,omitempty" bson:"address"`
	Room    string `json:"room,omitempty" bson:"room"`
}

// Registration is one attendee entry of an event. Entries are never deleted;
// they move to cancelled.
type Registration struct {
	UserID        string             `json:"user_id" bson:"user_id"`
	RegisteredAt  time.Time          `json:"registered_at" bson:"registered_at"`
	Status        RegistrationStatus `json:"status" bson:"status"`
	PaymentStatus PaymentStatus      `json:"payment_status" bson:"payment_status"`
	Notes         string             `json:"notes,omitempty" bson:"notes"`
}

type VolunteerSlot struct {
	UserID      string    `json:"user_id" bson:"user_id"`
	Role        string    `json:"role" bson:"role"`
	ConfirmedAt time.Time `json:"confirmed_at" bson:"confirmed_at"`
}

// Event is a scheduled PTA activity.
type Event struct {
	ID                    string          `json:"id" bson:"_id"`
	Title                 string          `json:"title" bson:"title"`
	Description           string          `json:"description" bson:"description"`
	StartDate             time.Time       `json:"start_date" bson:"start_date"`
	EndDate               time.Time       `json:"end_date" bson:"end_date"`
	AllDay                bool            `json:"all_day" bson:"all_day"`
	Location              Location        `json:"location" bson:"location"`
	OrganizerID           string          `json:"organizer_id" bson:"organizer_id"`
	Category              EventCategory   `json:"category" bson:"category"`
	Status                EventStatus     `json:"status" bson:"status"`
	RegistrationRequired  bool            `json:"registration_required" bson:"registration_required"`
	MaxAttendees          int             `json:"max_attendees,omitempty" bson:"max_attendees"`
	RegistrationDeadline  *time.Time      `json:"registration_deadline,omitempty" bson:"registration_deadline"`
	CostCents             int64           `json:"cost_cents" bson:"cost_cents"`
	PaymentRequired       bool            `json:"payment_required" bson:"payment_required"`
	Attendees             []Registration  `json:"attendees" bson:"attendees"`
	Volunteers            []VolunteerSlot `json:"volunteers" bson:"volunteers"`
	GoogleCalendarEventID string          `json:"google_calendar_event_id,omitempty" bson:"google_calendar_event_id"`
	Featured              bool            `json:"featured" bson:"featured"`
	CreatedAt             time.Time       `json:"created_at" bson:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at" bson:"updated_at"`
}

// RegisteredCount counts entries with status registered.
func (e Event) RegisteredCount() int {
	n := 0
	for _, a := range e.Attendees {
		if a.Status == RegistrationRegistered {
			n++
		}
	}
	return n
}

// AvailableSpots is nil when the event has no capacity limit.
func (e Event) AvailableSpots() *int {
	if e.MaxAttendees <= 0 {
		return nil
	}
	left := e.MaxAttendees - e.RegisteredCount()
	if left < 0 {
		left = 0
	}
	return &left
}

func (e Event) IsFull() bool {
	if e.MaxAttendees <= 0 {
		return false
	}
	return e.RegisteredCount() >= e.MaxAttendees
}

// ActiveRegistration returns the caller's non-cancelled entry, if any.
func (e Event) ActiveRegistration(userID string) (Registration, bool) {
	for _, a := range e.Attendees {
		if a.UserID == userID && a.Status != RegistrationCancelled {
			return a, true
		}
	}
	return Registration{}, false
}

// EventPhase places an event relative to a point in time.
type EventPhase string

const (
	PhaseUpcoming EventPhase = "upcoming"
	PhaseOngoing  EventPhase = "ongoing"
	PhasePast     EventPhase = "past"
)

func (e Event) Phase(now time.Time) EventPhase {
	switch {
	case now.Before(e.StartDate):
		return PhaseUpcoming
	case now.Before(e.EndDate):
		return PhaseOngoing
	default:
		return PhasePast
	}
}

func (e Event) MarshalJSON() ([]byte, error) {
	type alias Event
	return json.Marshal(struct {
		alias
		RegisteredCount int        `json:"registered_count"`
		AvailableSpots  *int       `json:"available_spots"`
		IsFull          bool       `json:"is_full"`
		Phase           EventPhase `json:"phase"`
	}{alias(e), e.RegisteredCount(), e.AvailableSpots(), e.IsFull(), e.Phase(time.Now())})
}
