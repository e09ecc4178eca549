package pta

import (
	"context"
	"time"
)

// PostFilter selects posts for listings. Zero Limit means no limit.
type PostFilter struct {
	Status PostStatus
	Offset int
	Limit  int
}

// EventFilter selects events. Bounds apply to StartDate and are inclusive.
type EventFilter struct {
	Status   EventStatus
	Category EventCategory
	From     *time.Time
	To       *time.Time
	EndedBy  *time.Time
}

// Store persists users, posts and events. Implementations must make
// AddRegistration atomic: the duplicate and capacity checks and the insert
// happen as one step.
type Store interface {
	CreateUser(ctx context.Context, u User) (User, error)
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	ListUsersByStatus(ctx context.Context, status UserStatus) ([]User, error)
	UpdateUser(ctx context.Context, u User) (User, error)

	CreatePost(ctx context.Context, p BlogPost) (BlogPost, error)
	GetPost(ctx context.Context, id string) (BlogPost, error)
	GetPostBySlug(ctx context.Context, slug string) (BlogPost, error)
	ListPosts(ctx context.Context, f PostFilter) ([]BlogPost, int, error)
	UpdatePost(ctx context.Context, p BlogPost) (BlogPost, error)
	AddComment(ctx context.Context, postID string, c Comment) (BlogPost, error)
	SetCommentStatus(ctx context.Context, postID, commentID string, status CommentStatus) (BlogPost, error)
	AddLike(ctx context.Context, postID, userID string) (BlogPost, error)

	CreateEvent(ctx context.Context, e Event) (Event, error)
	GetEvent(ctx context.Context, id string) (Event, error)
	ListEvents(ctx context.Context, f EventFilter) ([]Event, error)
	UpdateEvent(ctx context.Context, e Event) (Event, error)
	AddRegistration(ctx context.Context, eventID string, r Registration) (Event, error)
	SetRegistrationStatus(ctx context.Context, eventID, userID string, from []RegistrationStatus, to RegistrationStatus) (Event, error)
}
