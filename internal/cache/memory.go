package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// Memory is a process-local TTL cache.
type Memory struct {
	mu         sync.RWMutex
	data       map[string]memoryEntry
	defaultTTL time.Duration
	now        func() time.Time
	stopCh     chan struct{}
	closed     atomic.Bool
}

// NewMemory creates a cache; a positive cleanup interval starts a sweeper
// goroutine that Close stops.
func NewMemory(defaultTTL, cleanup time.Duration) *Memory {
	if defaultTTL <= 0 {
		defaultTTL = time.Hour
	}
	c := &Memory{
		data:       make(map[string]memoryEntry),
		defaultTTL: defaultTTL,
		now:        time.Now,
		stopCh:     make(chan struct{}),
	}
	if cleanup > 0 {
		go c.cleanupLoop(cleanup)
	}
	return c
}

func (c *Memory) Get(_ context.Context, key string) ([]byte, error) {
	if c.closed.Load() {
		return nil, ErrCacheClosed
	}
	c.mu.RLock()
	e, ok := c.data[key]
	c.mu.RUnlock()
	if !ok || !c.now().Before(e.expiresAt) {
		return nil, ErrCacheMiss
	}
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, nil
}

func (c *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if c.closed.Load() {
		return ErrCacheClosed
	}
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	v := make([]byte, len(value))
	copy(v, value)
	c.mu.Lock()
	c.data[key] = memoryEntry{value: v, expiresAt: c.now().Add(ttl)}
	c.mu.Unlock()
	return nil
}

func (c *Memory) Delete(_ context.Context, key string) error {
	if c.closed.Load() {
		return ErrCacheClosed
	}
	c.mu.Lock()
	delete(c.data, key)
	c.mu.Unlock()
	return nil
}

func (c *Memory) Has(ctx context.Context, key string) (bool, error) {
	_, err := c.Get(ctx, key)
	switch err {
	case nil:
		return true, nil
	case ErrCacheMiss:
		return false, nil
	default:
		return false, err
	}
}

func (c *Memory) Ping(context.Context) error {
	if c.closed.Load() {
		return ErrCacheClosed
	}
	return nil
}

func (c *Memory) Close() error {
	if c.closed.CompareAndSwap(false, true) {
		close(c.stopCh)
	}
	return nil
}

func (c *Memory) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.removeExpired()
		}
	}
}

func (c *Memory) removeExpired() {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.data {
		if !now.Before(e.expiresAt) {
			delete(c.data, k)
		}
	}
}
