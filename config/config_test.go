package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/points-engine/config"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "sqlite3", cfg.Database.Driver)
	assert.Equal(t, int64(10), cfg.Economy.ExchangeCost)
	assert.Equal(t, 3, cfg.Economy.DailyExchangeCap)
	assert.Equal(t, 5, cfg.Economy.RetryAttempts)
	assert.Equal(t, "UTC", cfg.Economy.Timezone)
	assert.Equal(t, time.Hour, cfg.Scheduler.PruneInterval)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_FileThenEnv(t *testing.T) {
	// GIVEN: a TOML file and an environment override
	// WHEN: the config is loaded
	// THEN: env beats file and file beats defaults

	dir := t.TempDir()
	path := filepath.Join(dir, "points.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
log_level = "debug"

[economy]
timezone = "Asia/Shanghai"
daily_exchange_cap = 5

[scheduler]
prune_interval = "15m"
`), 0o600))
	t.Setenv("POINTS_ECONOMY_DAILY_EXCHANGE_CAP", "2")
	t.Setenv("POINTS_DATABASE_DSN", "file:test.db")

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "Asia/Shanghai", cfg.Economy.Timezone)
	assert.Equal(t, 2, cfg.Economy.DailyExchangeCap)
	assert.Equal(t, "file:test.db", cfg.Database.DSN)
	assert.Equal(t, 15*time.Minute, cfg.Scheduler.PruneInterval)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_RejectsBadValues(t *testing.T) {
	t.Chdir(t.TempDir())

	t.Setenv("POINTS_DATABASE_DRIVER", "mysql")
	_, err := config.Load("")
	assert.ErrorContains(t, err, "database.driver")

	t.Setenv("POINTS_DATABASE_DRIVER", "postgres")
	t.Setenv("POINTS_ECONOMY_TIMEZONE", "Mars/Olympus")
	_, err = config.Load("")
	assert.ErrorContains(t, err, "timezone")
}
