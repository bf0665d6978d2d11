package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultTenantID, cfg.Portal.TenantID.String())
	assert.Equal(t, 2, cfg.Portal.DefaultMaxRevisions)
	assert.Equal(t, "0 0 1 * *", cfg.Worker.CycleResetCron)
	assert.Equal(t, 10.0, cfg.Server.RateLimitPerSecond)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORTAL_DEFAULT_MAX_REVISIONS", "5")
	t.Setenv("PORTAL_APP_URL", "https://portal.example.com/")
	t.Setenv("RATE_LIMIT_PER_SEC", "2.5")
	t.Setenv("REDIS_DB", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Portal.DefaultMaxRevisions)
	assert.Equal(t, "https://portal.example.com", cfg.Portal.AppURL)
	assert.Equal(t, 2.5, cfg.Server.RateLimitPerSecond)
	assert.Equal(t, 0, cfg.Redis.DB)
}

func TestLoadRejectsBadTenant(t *testing.T) {
	t.Setenv("PORTAL_TENANT_ID", "acme")
	_, err := Load()
	assert.Error(t, err)
}

func TestDSN(t *testing.T) {
	c := DatabaseConfig{Host: "db", Port: "5432", User: "u", Password: "p", DBName: "portal", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p@db:5432/portal?sslmode=disable", c.DSN())

	c.URL = "postgres://elsewhere/portal"
	assert.Equal(t, "postgres://elsewhere/portal", c.DSN())
}
