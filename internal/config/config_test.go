package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PTA_JWT_SECRET", "dev-secret-for-tests")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Store)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, 168*time.Hour, cfg.TokenTTL)
	assert.Equal(t, 5*time.Second, cfg.CalendarTimeout)
	assert.Equal(t, "primary", cfg.CalendarID)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.CORSOrigins)
	assert.False(t, cfg.CalendarEnabled())
}

func TestLoadPostgresRequiresDSN(t *testing.T) {
	t.Setenv("PTA_JWT_SECRET", "dev-secret-for-tests")
	t.Setenv("PTA_STORE", "postgres")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PTA_PG_DSN")
}

func TestValidateRejectsConflictingStores(t *testing.T) {
	cfg := Config{
		Store:           "postgres",
		PgDSN:           "postgres://localhost/pta",
		MongoURI:        "mongodb://localhost",
		JWTSecret:       "dev",
		TokenTTL:        time.Hour,
		CalendarTimeout: time.Second,
		TimeZone:        "UTC",
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "only one")
}

func TestValidateProductionSecret(t *testing.T) {
	cfg := Config{
		Env:             "production",
		Store:           "memory",
		JWTSecret:       "short",
		TokenTTL:        time.Hour,
		CalendarTimeout: time.Second,
		TimeZone:        "UTC",
	}
	require.Error(t, cfg.Validate())

	cfg.JWTSecret = strings.Repeat("k", MinSecretLength)
	require.NoError(t, cfg.Validate())
}

func TestValidateUnknownStore(t *testing.T) {
	cfg := Config{Store: "sqlite", JWTSecret: "x", TokenTTL: time.Hour, CalendarTimeout: time.Second, TimeZone: "UTC"}
	assert.ErrorContains(t, cfg.Validate(), "PTA_STORE")
}

func TestTrustedProxyPrefixes(t *testing.T) {
	t.Setenv("PTA_JWT_SECRET", "dev-secret-for-tests")
	t.Setenv("PTA_TRUSTED_PROXIES", "10.0.0.0/8, 192.168.1.7")

	cfg, err := Load()
	require.NoError(t, err)
	prefixes, err := cfg.TrustedProxyPrefixes()
	require.NoError(t, err)
	require.Len(t, prefixes, 2)
	assert.Equal(t, "10.0.0.0/8", prefixes[0].String())
	assert.Equal(t, "192.168.1.7/32", prefixes[1].String())

	cfg.TrustedProxies = []string{"not-an-ip"}
	assert.ErrorContains(t, cfg.Validate(), "PTA_TRUSTED_PROXIES")
}
