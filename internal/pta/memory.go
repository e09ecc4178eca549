package pta

import (
	"context"
	"slices"
	"sort"
	"sync"
)

// InMemory implements Store with in-process concurrency safety. Reads return
// copies so callers never share slices with the store.
type InMemory struct {
	mu      sync.RWMutex
	users   map[string]*User
	byEmail map[string]string
	posts   map[string]*BlogPost
	bySlug  map[string]string
	events  map[string]*Event
}

// NewInMemory creates an empty store.
func NewInMemory() *InMemory {
	return &InMemory{
		users:   make(map[string]*User),
		byEmail: make(map[string]string),
		posts:   make(map[string]*BlogPost),
		bySlug:  make(map[string]string),
		events:  make(map[string]*Event),
	}
}

func (s *InMemory) CreateUser(ctx context.Context, u User) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byEmail[u.Email]; ok {
		return User{}, ErrConflict
	}
	if _, ok := s.users[u.ID]; ok {
		return User{}, ErrConflict
	}
	stored := cloneUser(u)
	s.users[u.ID] = &stored
	s.byEmail[u.Email] = u.ID
	return cloneUser(stored), nil
}

func (s *InMemory) GetUser(ctx context.Context, id string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return User{}, notFound("user")
	}
	return cloneUser(*u), nil
}

func (s *InMemory) GetUserByEmail(ctx context.Context, email string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[email]
	if !ok {
		return User{}, notFound("user")
	}
	return cloneUser(*s.users[id]), nil
}

func (s *InMemory) ListUsersByStatus(ctx context.Context, status UserStatus) ([]User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]User, 0)
	for _, u := range s.users {
		if u.Status == status {
			out = append(out, cloneUser(*u))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemory) UpdateUser(ctx context.Context, u User) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.users[u.ID]
	if !ok {
		return User{}, notFound("user")
	}
	if cur.Email != u.Email {
		if _, taken := s.byEmail[u.Email]; taken {
			return User{}, ErrConflict
		}
		delete(s.byEmail, cur.Email)
		s.byEmail[u.Email] = u.ID
	}
	stored := cloneUser(u)
	s.users[u.ID] = &stored
	return cloneUser(stored), nil
}

func (s *InMemory) CreatePost(ctx context.Context, p BlogPost) (BlogPost, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bySlug[p.Slug]; ok {
		return BlogPost{}, ErrConflict
	}
	stored := clonePost(p)
	s.posts[p.ID] = &stored
	s.bySlug[p.Slug] = p.ID
	return clonePost(stored), nil
}

func (s *InMemory) GetPost(ctx context.Context, id string) (BlogPost, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.posts[id]
	if !ok {
		return BlogPost{}, notFound("post")
	}
	return clonePost(*p), nil
}

func (s *InMemory) GetPostBySlug(ctx context.Context, slug string) (BlogPost, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.bySlug[slug]
	if !ok {
		return BlogPost{}, notFound("post")
	}
	return clonePost(*s.posts[id]), nil
}

func (s *InMemory) ListPosts(ctx context.Context, f PostFilter) ([]BlogPost, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := make([]BlogPost, 0)
	for _, p := range s.posts {
		if f.Status != "" && p.Status != f.Status {
			continue
		}
		all = append(all, *p)
	}
	sort.Slice(all, func(i, j int) bool { return postLess(all[i], all[j]) })
	total := len(all)
	start := min(max(f.Offset, 0), total)
	end := total
	if f.Limit > 0 {
		end = min(start+f.Limit, total)
	}
	out := make([]BlogPost, 0, end-start)
	for _, p := range all[start:end] {
		out = append(out, clonePost(p))
	}
	return out, total, nil
}

// postLess orders pinned posts first, then newest by publish time.
func postLess(a, b BlogPost) bool {
	if a.Pinned != b.Pinned {
		return a.Pinned
	}
	at, bt := a.CreatedAt, b.CreatedAt
	if a.PublishedAt != nil {
		at = *a.PublishedAt
	}
	if b.PublishedAt != nil {
		bt = *b.PublishedAt
	}
	if !at.Equal(bt) {
		return at.After(bt)
	}
	return a.ID > b.ID
}

func (s *InMemory) UpdatePost(ctx context.Context, p BlogPost) (BlogPost, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.posts[p.ID]
	if !ok {
		return BlogPost{}, notFound("post")
	}
	if cur.Slug != p.Slug {
		if _, taken := s.bySlug[p.Slug]; taken {
			return BlogPost{}, ErrConflict
		}
		delete(s.bySlug, cur.Slug)
		s.bySlug[p.Slug] = p.ID
	}
	if cur.PublishedAt != nil {
		p.PublishedAt = cur.PublishedAt
	}
	stored := clonePost(p)
	// comments and likes only change through AddComment, SetCommentStatus and AddLike
	stored.Comments = cur.Comments
	stored.Likes = cur.Likes
	s.posts[p.ID] = &stored
	return clonePost(stored), nil
}

func (s *InMemory) AddComment(ctx context.Context, postID string, c Comment) (BlogPost, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[postID]
	if !ok {
		return BlogPost{}, notFound("post")
	}
	p.Comments = append(p.Comments, c)
	return clonePost(*p), nil
}

func (s *InMemory) SetCommentStatus(ctx context.Context, postID, commentID string, status CommentStatus) (BlogPost, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[postID]
	if !ok {
		return BlogPost{}, notFound("post")
	}
	i := slices.IndexFunc(p.Comments, func(c Comment) bool { return c.ID == commentID })
	if i < 0 {
		return BlogPost{}, notFound("comment")
	}
	p.Comments[i].Status = status
	return clonePost(*p), nil
}

func (s *InMemory) AddLike(ctx context.Context, postID, userID string) (BlogPost, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[postID]
	if !ok {
		return BlogPost{}, notFound("post")
	}
	if !slices.Contains(p.Likes, userID) {
		p.Likes = append(p.Likes, userID)
	}
	return clonePost(*p), nil
}

func (s *InMemory) CreateEvent(ctx context.Context, e Event) (Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[e.ID]; ok {
		return Event{}, ErrConflict
	}
	stored := cloneEvent(e)
	s.events[e.ID] = &stored
	return cloneEvent(stored), nil
}

func (s *InMemory) GetEvent(ctx context.Context, id string) (Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.events[id]
	if !ok {
		return Event{}, notFound("event")
	}
	return cloneEvent(*e), nil
}

func (s *InMemory) ListEvents(ctx context.Context, f EventFilter) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Event, 0)
	for _, e := range s.events {
		if !f.matches(*e) {
			continue
		}
		out = append(out, cloneEvent(*e))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartDate.Equal(out[j].StartDate) {
			return out[i].StartDate.Before(out[j].StartDate)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (f EventFilter) matches(e Event) bool {
	switch {
	case f.Status != "" && e.Status != f.Status:
		return false
	case f.Category != "" && e.Category != f.Category:
		return false
	case f.From != nil && e.StartDate.Before(*f.From):
		return false
	case f.To != nil && e.StartDate.After(*f.To):
		return false
	case f.EndedBy != nil && e.EndDate.After(*f.EndedBy):
		return false
	}
	return true
}

// UpdateEvent replaces the event's own fields. Attendees and volunteers are
// owned by the registration calls and survive the update untouched.
func (s *InMemory) UpdateEvent(ctx context.Context, e Event) (Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.events[e.ID]
	if !ok {
		return Event{}, notFound("event")
	}
	stored := cloneEvent(e)
	stored.Attendees = cur.Attendees
	stored.Volunteers = cur.Volunteers
	s.events[e.ID] = &stored
	return cloneEvent(stored), nil
}

func (s *InMemory) AddRegistration(ctx context.Context, eventID string, r Registration) (Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[eventID]
	if !ok {
		return Event{}, notFound("event")
	}
	if _, dup := e.ActiveRegistration(r.UserID); dup {
		return Event{}, ErrAlreadyRegistered
	}
	if e.IsFull() {
		return Event{}, ErrEventFull
	}
	e.Attendees = append(e.Attendees, r)
	return cloneEvent(*e), nil
}

func (s *InMemory) SetRegistrationStatus(ctx context.Context, eventID, userID string, from []RegistrationStatus, to RegistrationStatus) (Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[eventID]
	if !ok {
		return Event{}, notFound("event")
	}
	i := slices.IndexFunc(e.Attendees, func(a Registration) bool {
		return a.UserID == userID && slices.Contains(from, a.Status)
	})
	if i < 0 {
		return Event{}, notFound("registration")
	}
	e.Attendees[i].Status = to
	return cloneEvent(*e), nil
}

func cloneUser(u User) User {
	u.Students = slices.Clone(u.Students)
	u.VolunteerInterests = slices.Clone(u.VolunteerInterests)
	return u
}

func clonePost(p BlogPost) BlogPost {
	p.Tags = slices.Clone(p.Tags)
	p.Categories = slices.Clone(p.Categories)
	p.Comments = slices.Clone(p.Comments)
	p.Likes = slices.Clone(p.Likes)
	if p.PublishedAt != nil {
		t := *p.PublishedAt
		p.PublishedAt = &t
	}
	return p
}

func cloneEvent(e Event) Event {
	e.Attendees = slices.Clone(e.Attendees)
	e.Volunteers = slices.Clone(e.Volunteers)
	if e.RegistrationDeadline != nil {
		t := *e.RegistrationDeadline
		e.RegistrationDeadline = &t
	}
	return e
}

var _ Store = (*InMemory)(nil)
