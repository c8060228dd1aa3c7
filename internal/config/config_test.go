package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaults(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 3, cfg.Monitor.TweetsPerAccount)
	assert.Equal(t, 3, cfg.Monitor.BatchSize)
	assert.Equal(t, 20, cfg.Monitor.BatchIntervalMinutes)
	assert.Equal(t, 180000, cfg.Monitor.BaseAPIDelayMs)
	assert.Equal(t, 3, cfg.Monitor.MaxRetryAttempts)
	assert.Equal(t, 400, cfg.Monitor.DailyAPILimit)
	assert.Equal(t, "0 */12 * * *", cfg.Monitor.CronSchedule)
	assert.False(t, cfg.Monitor.TestMode)
	assert.Equal(t, 3000, cfg.Web.Port)
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("TWITTER_BEARER_TOKEN", "tok-123")
	t.Setenv("DATABASE_URL", "postgres://localhost/marvin")
	t.Setenv("WEB_PORT", "8080")

	cfg := Default()
	cfg.ApplyEnv()

	assert.Equal(t, "tok-123", cfg.Twitter.BearerToken)
	assert.Equal(t, "postgres", cfg.Storage.Driver)
	assert.Equal(t, "postgres://localhost/marvin", cfg.Storage.DatabaseURL)
	assert.Equal(t, 8080, cfg.Web.Port)
}

func TestTestModeShrinksSchedule(t *testing.T) {
	t.Setenv("MONITOR_TEST_MODE", "true")

	cfg := Default()
	cfg.ApplyEnv()

	assert.True(t, cfg.Monitor.TestMode)
	assert.Equal(t, 1, cfg.Monitor.BatchSize)
	assert.Equal(t, 5, cfg.Monitor.BatchIntervalMinutes)
	assert.Equal(t, "*/30 * * * *", cfg.Monitor.CronSchedule)
}
