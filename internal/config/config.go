// Package config loads runtime settings from the environment.
package config

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/caarlos0/env/v11"
)

const MinSecretLength = 32

var knownWeakSecrets = []string{
	"change-me",
	"secret",
	"your-jwt-secret",
}

// Config is populated from PTA_* variables; Google settings keep the names
// the deployment already uses.
type Config struct {
	Env      string `env:"PTA_ENV" envDefault:"development"`
	HTTPAddr string `env:"PTA_HTTP_ADDR" envDefault:":8080"`
	GRPCAddr string `env:"PTA_GRPC_ADDR" envDefault:":9090"`

	LogLevel  string `env:"PTA_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"PTA_LOG_FORMAT" envDefault:"json"`

	JWTSecret string        `env:"PTA_JWT_SECRET"`
	TokenTTL  time.Duration `env:"PTA_TOKEN_TTL" envDefault:"168h"`

	// memory, postgres or mongo
	Store       string `env:"PTA_STORE" envDefault:"memory"`
	PgDSN       string `env:"PTA_PG_DSN"`
	MongoURI    string `env:"PTA_MONGO_URI"`
	MongoDB     string `env:"PTA_MONGO_DB" envDefault:"eastviewpta"`
	AutoMigrate bool   `env:"PTA_AUTO_MIGRATE" envDefault:"false"`

	RedisURL    string `env:"PTA_REDIS_URL"`
	CachePrefix string `env:"PTA_CACHE_PREFIX" envDefault:"pta:"`

	CalendarID       string        `env:"GOOGLE_CALENDAR_ID" envDefault:"primary"`
	CalendarAPIKey   string        `env:"GOOGLE_CALENDAR_API_KEY"`
	CalendarToken    string        `env:"GOOGLE_CALENDAR_ACCESS_TOKEN"`
	CalendarBaseURL  string        `env:"GOOGLE_CALENDAR_BASE_URL"`
	CalendarTimeout  time.Duration `env:"PTA_CALENDAR_TIMEOUT" envDefault:"5s"`
	CalendarFreshFor time.Duration `env:"PTA_CALENDAR_CACHE_TTL" envDefault:"5m"`
	TimeZone         string        `env:"PTA_TIMEZONE" envDefault:"America/Chicago"`

	CORSOrigins    []string `env:"PTA_CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`
	// addresses or CIDRs allowed to set X-Forwarded-For / X-Real-IP
	TrustedProxies []string `env:"PTA_TRUSTED_PROXIES" envSeparator:","`

	// requests per minute per client IP on the auth endpoints
	AuthRateLimit int `env:"PTA_AUTH_RATE_LIMIT" envDefault:"20"`

	CompleteEventsSpec string `env:"PTA_CRON_COMPLETE_EVENTS" envDefault:"@every 15m"`
	WarmCalendarSpec   string `env:"PTA_CRON_WARM_CALENDAR" envDefault:"@every 5m"`
}

func (c Config) IsProduction() bool { return c.Env == "production" }

func (c Config) CalendarEnabled() bool {
	return c.CalendarAPIKey != "" || c.CalendarToken != ""
}

// Load parses the environment and validates the result.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	c.Store = strings.ToLower(strings.TrimSpace(c.Store))
	switch c.Store {
	case "memory":
	case "postgres":
		if c.PgDSN == "" {
			errs = append(errs, errors.New("PTA_PG_DSN is required when PTA_STORE=postgres"))
		}
	case "mongo":
		if c.MongoURI == "" {
			errs = append(errs, errors.New("PTA_MONGO_URI is required when PTA_STORE=mongo"))
		}
	default:
		errs = append(errs, fmt.Errorf("PTA_STORE must be memory, postgres or mongo, got %q", c.Store))
	}
	if c.PgDSN != "" && c.MongoURI != "" {
		errs = append(errs, errors.New("set only one of PTA_PG_DSN and PTA_MONGO_URI"))
	}

	if c.JWTSecret == "" {
		errs = append(errs, errors.New("PTA_JWT_SECRET is required"))
	} else if c.IsProduction() {
		if len(c.JWTSecret) < MinSecretLength {
			errs = append(errs, fmt.Errorf("PTA_JWT_SECRET must be at least %d bytes in production", MinSecretLength))
		}
		for _, weak := range knownWeakSecrets {
			if c.JWTSecret == weak {
				errs = append(errs, errors.New("PTA_JWT_SECRET is a known default value"))
			}
		}
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, errors.New("PTA_TOKEN_TTL must be positive"))
	}
	if c.CalendarTimeout <= 0 {
		errs = append(errs, errors.New("PTA_CALENDAR_TIMEOUT must be positive"))
	}
	if c.AuthRateLimit < 0 {
		errs = append(errs, errors.New("PTA_AUTH_RATE_LIMIT must not be negative"))
	}
	if _, err := c.TrustedProxyPrefixes(); err != nil {
		errs = append(errs, fmt.Errorf("PTA_TRUSTED_PROXIES: %w", err))
	}
	if _, err := time.LoadLocation(c.TimeZone); err != nil {
		errs = append(errs, fmt.Errorf("PTA_TIMEZONE: %w", err))
	}
	return errors.Join(errs...)
}

// Location resolves TimeZone, falling back to UTC.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// TrustedProxyPrefixes parses TrustedProxies; a bare address becomes a
// single-host prefix.
func (c Config) TrustedProxyPrefixes() ([]netip.Prefix, error) {
	out := make([]netip.Prefix, 0, len(c.TrustedProxies))
	for _, raw := range c.TrustedProxies {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if strings.Contains(raw, "/") {
			p, err := netip.ParsePrefix(raw)
			if err != nil {
				return nil, err
			}
			out = append(out, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(raw)
		if err != nil {
			return nil, err
		}
		addr = addr.Unmap()
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out, nil
}
