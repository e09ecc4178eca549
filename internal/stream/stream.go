package stream

import (
	"context"
	"sync"
	"time"

	"eastviewpta.org/internal/pta"
)

// Activity is one workflow transition as shown to board members.
type Activity struct {
	pta.Change
	Timestamp time.Time `json:"timestamp"`
}

// Stream fan-outs activity to all active subscribers (SSE clients).
type Stream struct {
	mu   sync.RWMutex
	subs map[int]chan Activity
	next int
	now  func() time.Time
}

// New initialises an empty stream.
func New() *Stream {
	return &Stream{
		subs: make(map[int]chan Activity),
		now:  time.Now,
	}
}

// Subscribe registers a subscriber and returns a channel which will receive events.
// The channel is closed when the provided context ends.
func (s *Stream) Subscribe(ctx context.Context) <-chan Activity {
	ch := make(chan Activity, 16)

	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = ch
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subs, id)
		close(ch)
		s.mu.Unlock()
	}()

	return ch
}

// Subscribers reports how many clients are attached.
func (s *Stream) Subscribers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}

// Publish fan-outs the event to all subscribers.
func (s *Stream) Publish(evt Activity) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subs {
		select {
		case ch <- evt:
		default:
			// Drop when subscriber is slow to avoid blocking.
		}
	}
}

// Observe publishes a workflow change; it lets the stream sit in the
// service's observer chain.
func (s *Stream) Observe(_ context.Context, c pta.Change) {
	s.Publish(Activity{Change: c, Timestamp: s.now().UTC()})
}

var _ pta.Observer = (*Stream)(nil)
