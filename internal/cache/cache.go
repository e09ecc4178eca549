// Package cache stores short-lived byte payloads such as calendar mirrors.
package cache

import (
	"context"
	"strings"
	"time"
)

// Cache is implemented by the in-memory and Redis backends. Implementations
// must be safe for concurrent use.
type Cache interface {
	// Get returns ErrCacheMiss when the key is absent or expired.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value for ttl; zero ttl means the backend default.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Has(ctx context.Context, key string) (bool, error)
	Ping(ctx context.Context) error
	Close() error
}

type Error string

func (e Error) Error() string { return string(e) }

const (
	ErrCacheMiss   Error = "cache miss"
	ErrCacheClosed Error = "cache closed"
)

// New picks a backend from a URL: redis:// and rediss:// connect to Redis,
// anything else (including "") yields an in-memory cache.
func New(url, prefix string, defaultTTL time.Duration) (Cache, error) {
	if strings.HasPrefix(url, "redis://") || strings.HasPrefix(url, "rediss://") {
		opts := DefaultRedisOptions()
		opts.URL = url
		if prefix != "" {
			opts.Prefix = prefix
		}
		if defaultTTL > 0 {
			opts.DefaultTTL = defaultTTL
		}
		return NewRedis(opts)
	}
	return NewMemory(defaultTTL, time.Minute), nil
}
