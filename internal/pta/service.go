package pta

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Observer is notified after a transition has been persisted.
type Observer interface {
	Observe(ctx context.Context, c Change)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, c Change)

func (f ObserverFunc) Observe(ctx context.Context, c Change) { f(ctx, c) }

type multiObserver []Observer

func (m multiObserver) Observe(ctx context.Context, c Change) {
	for _, o := range m {
		o.Observe(ctx, c)
	}
}

// Observers fans a change out to every non-nil observer in order.
func Observers(list ...Observer) Observer {
	out := make(multiObserver, 0, len(list))
	for _, o := range list {
		if o != nil {
			out = append(out, o)
		}
	}
	return out
}

// PasswordHasher turns a plaintext password into a storable hash.
type PasswordHasher func(password string) (string, error)

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

func WithObserver(o Observer) Option {
	return func(s *Service) { s.observer = o }
}

func WithPasswordHasher(h PasswordHasher) Option {
	return func(s *Service) { s.hash = h }
}

// Service applies workflow transitions on top of a Store. Every mutator
// follows the same shape: load, transition, persist, notify.
type Service struct {
	store    Store
	now      func() time.Time
	log      *slog.Logger
	observer Observer
	hash     PasswordHasher
}

func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store: store,
		now:   time.Now,
		log:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store exposes the backing store for read paths that need no workflow.
func (s *Service) Store() Store { return s.store }

func (s *Service) clock() time.Time { return s.now().UTC() }

func (s *Service) notify(ctx context.Context, c Change) {
	s.log.InfoContext(ctx, "transition applied",
		slog.String("module", "pta"),
		slog.String("event", c.Entity+"."+string(c.Transition)),
		slog.String("entity_id", c.EntityID),
		slog.String("from", c.From),
		slog.String("to", c.To),
		slog.String("actor_id", c.ActorID),
	)
	if s.observer != nil {
		s.observer.Observe(ctx, c)
	}
}

// fail passes domain outcomes through untouched and logs anything else with
// the entity and attempted transition before wrapping it.
func (s *Service) fail(ctx context.Context, entity, id string, t Transition, err error) error {
	if err == nil || IsDomain(err) || errors.Is(err, context.Canceled) {
		return err
	}
	s.log.ErrorContext(ctx, "transition failed",
		slog.String("module", "pta"),
		slog.String("entity", entity),
		slog.String("entity_id", id),
		slog.String("transition", string(t)),
		slog.Any("err", err),
	)
	return fmt.Errorf("%s %s %s: %w", t, entity, id, err)
}
