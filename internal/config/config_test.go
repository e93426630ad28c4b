package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("SQLITE_PATH", "")
	t.Setenv("APP_ENV", "")

	cfg := Load()

	assert.Equal(t, "backoffice.db", cfg.DatabaseURL)
	assert.Equal(t, 20, cfg.AlertsCriticalLimit)
	assert.Equal(t, 30, cfg.AlertsExpirationLimit)
	assert.Equal(t, 7, cfg.AlertsExpirationDays)
	assert.Equal(t, 60*time.Second, cfg.AlertsPollInterval)
	assert.False(t, cfg.IsProduction())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost/cocina")
	t.Setenv("APP_ENV", "production")
	t.Setenv("ALERTS_CRITICAL_LIMIT", "5")
	t.Setenv("REDIS_SENTINEL_ADDRS", "10.0.0.1:26379, 10.0.0.2:26379,")

	cfg := Load()

	assert.Equal(t, "postgres://u:p@localhost/cocina", cfg.DatabaseURL)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 5, cfg.AlertsCriticalLimit)
	assert.Equal(t, []string{"10.0.0.1:26379", "10.0.0.2:26379"}, cfg.RedisSentinelAddrs)
}

func TestLocationFallsBackToUTC(t *testing.T) {
	cfg := &Config{TimeZone: "Not/AZone"}
	assert.Equal(t, time.UTC, cfg.Location())
}
