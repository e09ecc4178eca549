package pta

import "slices"

// Transition names a workflow step.
type Transition string

const (
	TransitionApprove  Transition = "approve"
	TransitionReject   Transition = "reject"
	TransitionDraft    Transition = "draft"
	TransitionSubmit   Transition = "submit"
	TransitionPublish  Transition = "publish"
	TransitionArchive  Transition = "archive"
	TransitionCreate   Transition = "create"
	TransitionCancel   Transition = "cancel"
	TransitionComplete Transition = "complete"
	TransitionRegister Transition = "register"
	TransitionAttend   Transition = "attend"
	TransitionNoShow   Transition = "no-show"
)

// Rule is one row of a state table. The empty status stands for "not yet
// created".
type Rule[S ~string] struct {
	From []S
	To   S
}

// Machine is the transition table for one entity kind.
type Machine[S ~string] struct {
	Entity string
	Rules  map[Transition]Rule[S]
}

// Next returns the state reached by applying t in state current, or a
// ValidationError when the table has no such edge.
func (m Machine[S]) Next(t Transition, current S) (S, error) {
	rule, ok := m.Rules[t]
	if !ok {
		return current, invalid("%s cannot %s", m.Entity, t)
	}
	if !slices.Contains(rule.From, current) {
		if current == "" {
			return current, invalid("a new %s cannot %s", m.Entity, t)
		}
		return current, invalid("cannot %s %s in status %q", t, m.Entity, current)
	}
	return rule.To, nil
}

// Allows reports whether t is a legal edge from current.
func (m Machine[S]) Allows(t Transition, current S) bool {
	_, err := m.Next(t, current)
	return err == nil
}

var UserWorkflow = Machine[UserStatus]{
	Entity: "user",
	Rules: map[Transition]Rule[UserStatus]{
		TransitionCreate:  {From: []UserStatus{""}, To: UserPending},
		TransitionApprove: {From: []UserStatus{UserPending, UserApproved}, To: UserApproved},
		TransitionReject:  {From: []UserStatus{UserPending, UserApproved, UserSuspended}, To: UserSuspended},
	},
}

var PostWorkflow = Machine[PostStatus]{
	Entity: "post",
	Rules: map[Transition]Rule[PostStatus]{
		TransitionDraft:   {From: []PostStatus{""}, To: PostDraft},
		TransitionSubmit:  {From: []PostStatus{"", PostDraft}, To: PostPending},
		TransitionPublish: {From: []PostStatus{"", PostDraft}, To: PostPublished},
		TransitionApprove: {From: []PostStatus{PostPending, PostPublished}, To: PostPublished},
		TransitionArchive: {From: []PostStatus{PostPublished, PostArchived}, To: PostArchived},
	},
}

var CommentWorkflow = Machine[CommentStatus]{
	Entity: "comment",
	Rules: map[Transition]Rule[CommentStatus]{
		TransitionSubmit:  {From: []CommentStatus{""}, To: CommentPending},
		TransitionApprove: {From: []CommentStatus{CommentPending, CommentApproved, CommentRejected}, To: CommentApproved},
		TransitionReject:  {From: []CommentStatus{CommentPending, CommentApproved, CommentRejected}, To: CommentRejected},
	},
}

var EventWorkflow = Machine[EventStatus]{
	Entity: "event",
	Rules: map[Transition]Rule[EventStatus]{
		TransitionCreate:   {From: []EventStatus{""}, To: EventDraft},
		TransitionPublish:  {From: []EventStatus{EventDraft, EventPublished}, To: EventPublished},
		TransitionCancel:   {From: []EventStatus{EventDraft, EventPublished, EventCancelled}, To: EventCancelled},
		TransitionComplete: {From: []EventStatus{EventPublished, EventCompleted}, To: EventCompleted},
	},
}

var RegistrationWorkflow = Machine[RegistrationStatus]{
	Entity: "registration",
	Rules: map[Transition]Rule[RegistrationStatus]{
		TransitionRegister: {From: []RegistrationStatus{""}, To: RegistrationRegistered},
		TransitionCancel:   {From: []RegistrationStatus{RegistrationRegistered}, To: RegistrationCancelled},
		TransitionAttend: {
			From: []RegistrationStatus{RegistrationRegistered, RegistrationAttended, RegistrationNoShow},
			To:   RegistrationAttended,
		},
		TransitionNoShow: {
			From: []RegistrationStatus{RegistrationRegistered, RegistrationAttended, RegistrationNoShow},
			To:   RegistrationNoShow,
		},
	},
}

// SubmitTransition picks the entry edge for a new post: admins publish
// directly, everybody else goes through moderation.
func SubmitTransition(role Role) Transition {
	if role == RoleAdmin {
		return TransitionPublish
	}
	return TransitionSubmit
}

// Change describes one applied transition. Observers receive it after the
// new state has been persisted.
type Change struct {
	Entity     string     `json:"entity"`
	EntityID   string     `json:"entity_id"`
	Transition Transition `json:"transition"`
	From       string     `json:"from,omitempty"`
	To         string     `json:"to"`
	ActorID    string     `json:"actor_id,omitempty"`
	SubjectID  string     `json:"subject_id,omitempty"`
}
