package calendar

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"eastviewpta.org/internal/cache"
	"eastviewpta.org/internal/obs"
)

const (
	DefaultFreshFor = 5 * time.Minute
	// copies older than this are dropped rather than served stale
	defaultKeepFor = 24 * time.Hour
	listMaxResults = 100
	lastWriteKey   = "calendar:last_write"
)

// Listing is the response of a mirrored read. Available is false whenever
// the provider could not be reached; Events then holds the last good copy
// or nothing.
type Listing struct {
	Events    []Event `json:"events"`
	Count     int     `json:"count"`
	Available bool    `json:"available"`
	Stale     bool    `json:"stale,omitempty"`
	Range     Range   `json:"range"`
}

type cachedListing struct {
	Events    []Event   `json:"events"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Mirror fronts a Provider with a cache and never fails a listing.
type Mirror struct {
	provider Provider
	cache    cache.Cache
	freshFor time.Duration
	keepFor  time.Duration
	loc      *time.Location
	now      func() time.Time
	log      *slog.Logger
}

type MirrorOption func(*Mirror)

func WithFreshFor(d time.Duration) MirrorOption {
	return func(m *Mirror) {
		if d > 0 {
			m.freshFor = d
		}
	}
}

func WithLocation(loc *time.Location) MirrorOption {
	return func(m *Mirror) {
		if loc != nil {
			m.loc = loc
		}
	}
}

func WithMirrorClock(now func() time.Time) MirrorOption {
	return func(m *Mirror) {
		if now != nil {
			m.now = now
		}
	}
}

// NewMirror builds a mirror; a nil provider behaves like Disabled and a nil
// cache disables both caching and stale fallback.
func NewMirror(p Provider, c cache.Cache, opts ...MirrorOption) *Mirror {
	if p == nil {
		p = Disabled{}
	}
	m := &Mirror{
		provider: p,
		cache:    c,
		freshFor: DefaultFreshFor,
		keepFor:  defaultKeepFor,
		loc:      time.UTC,
		now:      time.Now,
		log:      obs.Logger().With("module", "calendar"),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.keepFor < m.freshFor {
		m.keepFor = m.freshFor
	}
	return m
}

func (m *Mirror) Location() *time.Location { return m.loc }

// List returns events starting inside r.
func (m *Mirror) List(ctx context.Context, r Range) Listing {
	key := cacheKey(r)
	cached, hasCached := m.load(ctx, key)
	if hasCached && m.now().Sub(cached.FetchedAt) < m.freshFor && cached.FetchedAt.After(m.lastWrite(ctx)) {
		return m.listing(cached.Events, r, true, false)
	}

	events, err := m.provider.List(ctx, r, listMaxResults)
	if err != nil {
		m.log.Warn("calendar listing degraded", "event", "calendar.degraded", "stale", hasCached, "error", err)
		if hasCached {
			return m.listing(cached.Events, r, false, true)
		}
		return m.listing(nil, r, false, false)
	}
	m.store(ctx, key, cachedListing{Events: events, FetchedAt: m.now()})
	return m.listing(events, r, true, false)
}

// Upcoming lists the next limit events from now within the default window.
func (m *Mirror) Upcoming(ctx context.Context, limit int) Listing {
	now := m.now()
	r := DefaultRange(now)
	l := m.List(ctx, r)
	l.Events = Upcoming(l.Events, now, limit)
	l.Count = len(l.Events)
	return l
}

// Warm refreshes the default window; it reports whether the provider answered.
func (m *Mirror) Warm(ctx context.Context) bool {
	r := DefaultRange(m.now())
	events, err := m.provider.List(ctx, r, listMaxResults)
	if err != nil {
		return false
	}
	m.store(ctx, cacheKey(r), cachedListing{Events: events, FetchedAt: m.now()})
	return true
}

// Get, Create, Update and Delete pass straight through; failures surface as
// ErrUnavailable. A successful write makes every cached listing refetch on
// its next read while keeping it as the stale fallback.
func (m *Mirror) Get(ctx context.Context, id string) (Event, error) {
	ev, err := m.provider.Get(ctx, id)
	if err != nil {
		return Event{}, unavailable(err)
	}
	m.label(&ev)
	return ev, nil
}

func (m *Mirror) Create(ctx context.Context, in EventInput) (Event, error) {
	if err := in.Validate(); err != nil {
		return Event{}, err
	}
	ev, err := m.provider.Create(ctx, in)
	if err != nil {
		return Event{}, unavailable(err)
	}
	m.invalidate(ctx)
	m.label(&ev)
	return ev, nil
}

func (m *Mirror) Update(ctx context.Context, id string, in EventInput) (Event, error) {
	if err := in.Validate(); err != nil {
		return Event{}, err
	}
	ev, err := m.provider.Update(ctx, id, in)
	if err != nil {
		return Event{}, unavailable(err)
	}
	m.invalidate(ctx)
	m.label(&ev)
	return ev, nil
}

func (m *Mirror) Delete(ctx context.Context, id string) error {
	if err := m.provider.Delete(ctx, id); err != nil {
		return unavailable(err)
	}
	m.invalidate(ctx)
	return nil
}

func (m *Mirror) listing(events []Event, r Range, available, stale bool) Listing {
	out := make([]Event, len(events))
	copy(out, events)
	for i := range out {
		m.label(&out[i])
	}
	return Listing{Events: out, Count: len(out), Available: available, Stale: stale, Range: r}
}

func (m *Mirror) label(ev *Event) {
	if !ev.Start.IsZero() {
		ev.When = FormatRange(ev.Start, ev.End, ev.AllDay, m.loc)
	}
}

func (m *Mirror) load(ctx context.Context, key string) (cachedListing, bool) {
	if m.cache == nil {
		return cachedListing{}, false
	}
	raw, err := m.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			m.log.Warn("calendar cache read failed", "error", err)
		}
		return cachedListing{}, false
	}
	var cl cachedListing
	if err := json.Unmarshal(raw, &cl); err != nil {
		return cachedListing{}, false
	}
	return cl, true
}

func (m *Mirror) store(ctx context.Context, key string, cl cachedListing) {
	if m.cache == nil {
		return
	}
	raw, err := json.Marshal(cl)
	if err != nil {
		return
	}
	if err := m.cache.Set(ctx, key, raw, m.keepFor); err != nil {
		m.log.Warn("calendar cache write failed", "error", err)
	}
}

// invalidate records the write time; listings fetched before it are no
// longer fresh.
func (m *Mirror) invalidate(ctx context.Context) {
	if m.cache == nil {
		return
	}
	mark := []byte(m.now().UTC().Format(time.RFC3339Nano))
	if err := m.cache.Set(ctx, lastWriteKey, mark, m.keepFor); err != nil {
		m.log.Warn("calendar cache invalidation failed", "error", err)
	}
}

func (m *Mirror) lastWrite(ctx context.Context) time.Time {
	if m.cache == nil {
		return time.Time{}
	}
	raw, err := m.cache.Get(ctx, lastWriteKey)
	if err != nil {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, string(raw))
	if err != nil {
		return time.Time{}
	}
	return t
}

func cacheKey(r Range) string {
	return "calendar:" + r.Start.UTC().Format(time.RFC3339) + ":" + r.End.UTC().Format(time.RFC3339)
}

func unavailable(err error) error {
	if errors.Is(err, ErrUnavailable) {
		return err
	}
	return errors.Join(ErrUnavailable, err)
}
