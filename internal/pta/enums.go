package pta

import (
	"slices"
	"strings"
)

// Role is the privilege level of an account.
type Role string

const (
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
	RoleBoard  Role = "board"
)

// UserStatus is the approval state of an account.
type UserStatus string

const (
	UserPending   UserStatus = "pending"
	UserApproved  UserStatus = "approved"
	UserSuspended UserStatus = "suspended"
)

type MembershipType string

const (
	MembershipIndividual MembershipType = "individual"
	MembershipFamily     MembershipType = "family"
	MembershipBusiness   MembershipType = "business"
)

type VolunteerInterest string

const (
	InterestEvents           VolunteerInterest = "events"
	InterestFundraising      VolunteerInterest = "fundraising"
	InterestCommunications   VolunteerInterest = "communications"
	InterestHospitality      VolunteerInterest = "hospitality"
	InterestTechnology       VolunteerInterest = "technology"
	InterestTransportation   VolunteerInterest = "transportation"
	InterestClassroomSupport VolunteerInterest = "classroom-support"
	InterestOther            VolunteerInterest = "other"
)

// PostStatus is the moderation state of a blog post.
type PostStatus string

const (
	PostDraft     PostStatus = "draft"
	PostPending   PostStatus = "pending"
	PostPublished PostStatus = "published"
	PostArchived  PostStatus = "archived"
)

type PostCategory string

const (
	CategoryNews          PostCategory = "news"
	CategoryEvents        PostCategory = "events"
	CategoryFundraising   PostCategory = "fundraising"
	CategoryVolunteer     PostCategory = "volunteer"
	CategoryAcademic      PostCategory = "academic"
	CategoryCommunity     PostCategory = "community"
	CategoryBoardUpdates  PostCategory = "board-updates"
	CategoryAnnouncements PostCategory = "announcements"
)

type CommentStatus string

const (
	CommentPending  CommentStatus = "pending"
	CommentApproved CommentStatus = "approved"
	CommentRejected CommentStatus = "rejected"
)

// EventStatus is the lifecycle state of an event.
type EventStatus string

const (
	EventDraft     EventStatus = "draft"
	EventPublished EventStatus = "published"
	EventCancelled EventStatus = "cancelled"
	EventCompleted EventStatus = "completed"
)

type EventCategory string

const (
	EventMeeting          EventCategory = "meeting"
	EventFundraiser       EventCategory = "fundraiser"
	EventSocial           EventCategory = "social"
	EventVolunteer        EventCategory = "volunteer"
	EventEducational      EventCategory = "educational"
	EventSports           EventCategory = "sports"
	EventArts             EventCategory = "arts"
	EventCommunityService EventCategory = "community-service"
	EventOther            EventCategory = "other"
)

// RegistrationStatus is the state of one attendee entry.
type RegistrationStatus string

const (
	RegistrationRegistered RegistrationStatus = "registered"
	RegistrationAttended   RegistrationStatus = "attended"
	RegistrationNoShow     RegistrationStatus = "no-show"
	RegistrationCancelled  RegistrationStatus = "cancelled"
)

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
)

var (
	roles              = []Role{RoleMember, RoleAdmin, RoleBoard}
	userStatuses       = []UserStatus{UserPending, UserApproved, UserSuspended}
	membershipTypes    = []MembershipType{MembershipIndividual, MembershipFamily, MembershipBusiness}
	volunteerInterests = []VolunteerInterest{
		InterestEvents, InterestFundraising, InterestCommunications, InterestHospitality,
		InterestTechnology, InterestTransportation, InterestClassroomSupport, InterestOther,
	}
	postStatuses   = []PostStatus{PostDraft, PostPending, PostPublished, PostArchived}
	postCategories = []PostCategory{
		CategoryNews, CategoryEvents, CategoryFundraising, CategoryVolunteer,
		CategoryAcademic, CategoryCommunity, CategoryBoardUpdates, CategoryAnnouncements,
	}
	commentStatuses = []CommentStatus{CommentPending, CommentApproved, CommentRejected}
	eventStatuses   = []EventStatus{EventDraft, EventPublished, EventCancelled, EventCompleted}
	eventCategories = []EventCategory{
		EventMeeting, EventFundraiser, EventSocial, EventVolunteer, EventEducational,
		EventSports, EventArts, EventCommunityService, EventOther,
	}
	registrationStatuses = []RegistrationStatus{
		RegistrationRegistered, RegistrationAttended, RegistrationNoShow, RegistrationCancelled,
	}
	paymentStatuses = []PaymentStatus{PaymentPending, PaymentPaid, PaymentRefunded}
)

// parseEnum normalizes raw and checks it against the closed set of values.
func parseEnum[T ~string](kind, raw string, allowed []T) (T, error) {
	v := T(strings.ToLower(strings.TrimSpace(raw)))
	if slices.Contains(allowed, v) {
		return v, nil
	}
	return "", invalid("%s %q is not one of %s", kind, raw, joinEnum(allowed))
}

func joinEnum[T ~string](values []T) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = string(v)
	}
	return strings.Join(parts, ", ")
}

func unmarshalEnum[T ~string](dst *T, kind string, text []byte, allowed []T) error {
	v, err := parseEnum(kind, string(text), allowed)
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

func ParseRole(s string) (Role, error) { return parseEnum("role", s, roles) }
func ParseUserStatus(s string) (UserStatus, error) { return parseEnum("user status", s, userStatuses) }
func ParsePostStatus(s string) (PostStatus, error) { return parseEnum("post status", s, postStatuses) }
func ParseEventStatus(s string) (EventStatus, error) { return parseEnum("event status", s, eventStatuses) }
func ParseEventCategory(s string) (EventCategory, error) {
	return parseEnum("event category", s, eventCategories)
}
func ParseRegistrationStatus(s string) (RegistrationStatus, error) {
	return parseEnum("registration status", s, registrationStatuses)
}

func (r Role) Valid() bool { return slices.Contains(roles, r) }
func (s UserStatus) Valid() bool { return slices.Contains(userStatuses, s) }
func (m MembershipType) Valid() bool { return slices.Contains(membershipTypes, m) }
func (v VolunteerInterest) Valid() bool { return slices.Contains(volunteerInterests, v) }
func (s PostStatus) Valid() bool { return slices.Contains(postStatuses, s) }
func (c PostCategory) Valid() bool { return slices.Contains(postCategories, c) }
func (s CommentStatus) Valid() bool { return slices.Contains(commentStatuses, s) }
func (s EventStatus) Valid() bool { return slices.Contains(eventStatuses, s) }
func (c EventCategory) Valid() bool { return slices.Contains(eventCategories, c) }
func (s RegistrationStatus) Valid() bool { return slices.Contains(registrationStatuses, s) }
func (s PaymentStatus) Valid() bool { return slices.Contains(paymentStatuses, s) }

func (r *Role) UnmarshalText(b []byte) error { return unmarshalEnum(r, "role", b, roles) }
func (s *UserStatus) UnmarshalText(b []byte) error {
	return unmarshalEnum(s, "user status", b, userStatuses)
}
func (m *MembershipType) UnmarshalText(b []byte) error {
	return unmarshalEnum(m, "membership type", b, membershipTypes)
}
func (v *VolunteerInterest) UnmarshalText(b []byte) error {
	return unmarshalEnum(v, "volunteer interest", b, volunteerInterests)
}
func (s *PostStatus) UnmarshalText(b []byte) error {
	return unmarshalEnum(s, "post status", b, postStatuses)
}
func (c *PostCategory) UnmarshalText(b []byte) error {
	return unmarshalEnum(c, "category", b, postCategories)
}
func (s *CommentStatus) UnmarshalText(b []byte) error {
	return unmarshalEnum(s, "comment status", b, commentStatuses)
}
func (s *EventStatus) UnmarshalText(b []byte) error {
	return unmarshalEnum(s, "event status", b, eventStatuses)
}
func (c *EventCategory) UnmarshalText(b []byte) error {
	return unmarshalEnum(c, "event category", b, eventCategories)
}
func (s *RegistrationStatus) UnmarshalText(b []byte) error {
	return unmarshalEnum(s, "registration status", b, registrationStatuses)
}
func (s *PaymentStatus) UnmarshalText(b []byte) error {
	return unmarshalEnum(s, "payment status", b, paymentStatuses)
}

// Privileged reports whether the role may moderate board-level resources.
func (r Role) Privileged() bool { return r == RoleAdmin || r == RoleBoard }
