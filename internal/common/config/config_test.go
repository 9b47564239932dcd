package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("BOT_TOKEN", "token")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Sync.Interval)
	assert.Equal(t, time.Duration(0), cfg.Sync.MinAccrualInterval)
	assert.Equal(t, int64(1), cfg.Sync.AccrualUnit)
	assert.Equal(t, 24*time.Hour, cfg.Telegram.InitDataTTL)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SYNC_INTERVAL", "20s")
	t.Setenv("SYNC_ACCRUAL_UNIT", "5")
	t.Setenv("REDIS_PORT", "6380")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 20*time.Second, cfg.Sync.Interval)
	assert.Equal(t, int64(5), cfg.Sync.AccrualUnit)
	assert.Equal(t, "localhost:6380", cfg.RedisAddr())
}

func TestLoadRejectsZeroInterval(t *testing.T) {
	t.Setenv("SYNC_INTERVAL", "0s")

	_, err := Load()
	assert.Error(t, err)
}
