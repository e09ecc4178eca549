package pta

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"eastviewpta.org/internal/ids"
)

const (
	maxNameLen        = 50
	minPasswordLen    = 8
	maxProfileStudent = 10
)

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phonePattern = regexp.MustCompile(`^\(\d{3}\) \d{3}-\d{4}$`)
)

// NewUser is the self-service registration payload.
type NewUser struct {
	FirstName          string              `json:"first_name"`
	LastName           string              `json:"last_name"`
	Email              string              `json:"email"`
	Password           string              `json:"password"`
	Phone              string              `json:"phone"`
	MembershipType     MembershipType      `json:"membership_type"`
	Students           []Student           `json:"students"`
	EmergencyContact   EmergencyContact    `json:"emergency_contact"`
	VolunteerInterests []VolunteerInterest `json:"volunteer_interests"`
}

// ProfileUpdate lists the fields a member may change on their own account.
// Nil fields are left alone.
type ProfileUpdate struct {
	FirstName          *string              `json:"first_name"`
	LastName           *string              `json:"last_name"`
	Phone              *string              `json:"phone"`
	Students           *[]Student           `json:"students"`
	EmergencyContact   *EmergencyContact    `json:"emergency_contact"`
	VolunteerInterests *[]VolunteerInterest `json:"volunteer_interests"`
}

// NormalizeEmail is the canonical form used for uniqueness and lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateName(field, v string) error {
	if v == "" {
		return invalid("%s is required", field)
	}
	if utf8.RuneCountInString(v) > maxNameLen {
		return invalid("%s must be at most %d characters", field, maxNameLen)
	}
	return nil
}

func validatePhone(phone string) error {
	if phone != "" && !phonePattern.MatchString(phone) {
		return invalid("phone must be formatted as (555) 123-4567")
	}
	return nil
}

func validateInterests(list []VolunteerInterest) error {
	for _, v := range list {
		if !v.Valid() {
			return invalid("unknown volunteer interest %q", v)
		}
	}
	return nil
}

func validateStudents(list []Student) error {
	if len(list) > maxProfileStudent {
		return invalid("at most %d students may be listed", maxProfileStudent)
	}
	for _, st := range list {
		if strings.TrimSpace(st.Name) == "" {
			return invalid("student name is required")
		}
	}
	return nil
}

// RegisterUser creates a pending member account.
func (s *Service) RegisterUser(ctx context.Context, in NewUser) (User, error) {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Email = NormalizeEmail(in.Email)
	in.Phone = strings.TrimSpace(in.Phone)
	if err := validateName("first name", in.FirstName); err != nil {
		return User{}, err
	}
	if err := validateName("last name", in.LastName); err != nil {
		return User{}, err
	}
	if !emailPattern.MatchString(in.Email) {
		return User{}, invalid("a valid email is required")
	}
	if len(in.Password) < minPasswordLen {
		return User{}, invalid("password must be at least %d characters", minPasswordLen)
	}
	if err := validatePhone(in.Phone); err != nil {
		return User{}, err
	}
	if in.MembershipType == "" {
		in.MembershipType = MembershipIndividual
	}
	if !in.MembershipType.Valid() {
		return User{}, invalid("unknown membership type %q", in.MembershipType)
	}
	if err := validateStudents(in.Students); err != nil {
		return User{}, err
	}
	if err := validateInterests(in.VolunteerInterests); err != nil {
		return User{}, err
	}
	if s.hash == nil {
		return User{}, errors.New("password hasher is not configured")
	}
	status, err := UserWorkflow.Next(TransitionCreate, "")
	if err != nil {
		return User{}, err
	}
	hash, err := s.hash(in.Password)
	if err != nil {
		return User{}, s.fail(ctx, "user", in.Email, TransitionCreate, err)
	}

	now := s.clock()
	u := User{
		ID:                 ids.NewAt(now),
		FirstName:          in.FirstName,
		LastName:           in.LastName,
		Email:              in.Email,
		PasswordHash:       hash,
		Phone:              in.Phone,
		Role:               RoleMember,
		Status:             status,
		MembershipType:     in.MembershipType,
		Students:           in.Students,
		EmergencyContact:   in.EmergencyContact,
		VolunteerInterests: in.VolunteerInterests,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	created, err := s.store.CreateUser(ctx, u)
	if errors.Is(err, ErrConflict) {
		return User{}, fmt.Errorf("email %w", ErrConflict)
	}
	if err != nil {
		return User{}, s.fail(ctx, "user", u.ID, TransitionCreate, err)
	}
	s.notify(ctx, Change{
		Entity:     "user",
		EntityID:   created.ID,
		Transition: TransitionCreate,
		To:         string(created.Status),
		SubjectID:  created.ID,
	})
	return created, nil
}

func (s *Service) GetUser(ctx context.Context, id string) (User, error) {
	return s.store.GetUser(ctx, id)
}

// PendingUsers lists accounts awaiting approval, newest first.
func (s *Service) PendingUsers(ctx context.Context) ([]User, error) {
	return s.store.ListUsersByStatus(ctx, UserPending)
}

func (s *Service) ApproveUser(ctx context.Context, actor Actor, id string) (User, error) {
	return s.moveUser(ctx, actor, id, TransitionApprove)
}

func (s *Service) RejectUser(ctx context.Context, actor Actor, id string) (User, error) {
	if actor.ID == id {
		return User{}, invalid("you cannot suspend your own account")
	}
	return s.moveUser(ctx, actor, id, TransitionReject)
}

func (s *Service) moveUser(ctx context.Context, actor Actor, id string, t Transition) (User, error) {
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		return User{}, s.fail(ctx, "user", id, t, err)
	}
	from := u.Status
	next, err := UserWorkflow.Next(t, from)
	if err != nil {
		return User{}, err
	}
	u.Status = next
	u.UpdatedAt = s.clock()
	updated, err := s.store.UpdateUser(ctx, u)
	if err != nil {
		return User{}, s.fail(ctx, "user", id, t, err)
	}
	s.notify(ctx, Change{
		Entity:     "user",
		EntityID:   id,
		Transition: t,
		From:       string(from),
		To:         string(next),
		ActorID:    actor.ID,
		SubjectID:  id,
	})
	return updated, nil
}

// UpdateProfile changes the caller's own contact details. Role, status and
// e-mail are not reachable from here.
func (s *Service) UpdateProfile(ctx context.Context, actor Actor, in ProfileUpdate) (User, error) {
	u, err := s.store.GetUser(ctx, actor.ID)
	if err != nil {
		return User{}, s.fail(ctx, "user", actor.ID, "update", err)
	}
	if in.FirstName != nil {
		v := strings.TrimSpace(*in.FirstName)
		if err := validateName("first name", v); err != nil {
			return User{}, err
		}
		u.FirstName = v
	}
	if in.LastName != nil {
		v := strings.TrimSpace(*in.LastName)
		if err := validateName("last name", v); err != nil {
			return User{}, err
		}
		u.LastName = v
	}
	if in.Phone != nil {
		v := strings.TrimSpace(*in.Phone)
		if err := validatePhone(v); err != nil {
			return User{}, err
		}
		u.Phone = v
	}
	if in.Students != nil {
		if err := validateStudents(*in.Students); err != nil {
			return User{}, err
		}
		u.Students = *in.Students
	}
	if in.EmergencyContact != nil {
		u.EmergencyContact = *in.EmergencyContact
	}
	if in.VolunteerInterests != nil {
		if err := validateInterests(*in.VolunteerInterests); err != nil {
			return User{}, err
		}
		u.VolunteerInterests = *in.VolunteerInterests
	}
	u.UpdatedAt = s.clock()
	updated, err := s.store.UpdateUser(ctx, u)
	if err != nil {
		return User{}, s.fail(ctx, "user", actor.ID, "update", err)
	}
	return updated, nil
}
