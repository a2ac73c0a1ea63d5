package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/advisor/internal/domain"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.DevMode)
	assert.Equal(t, "./data/candles.db", cfg.DatabasePath)
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, cfg.TrackedInstruments)
	assert.Equal(t, domain.Timeframe1d, cfg.DecisionTimeframe)
	assert.Equal(t, []string{"00:05"}, cfg.SchedulerTimes)
	assert.Equal(t, 60*time.Second, cfg.RunTimeout)
	assert.Equal(t, 0, cfg.Parallelism)
	assert.True(t, cfg.StreamEnabled)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("TRACKED_INSTRUMENTS", "SOLUSDT, ADAUSDT ,BTCUSDT")
	t.Setenv("DECISION_TIMEFRAME", "4h")
	t.Setenv("CACHE_TTL", "30m")
	t.Setenv("SCHEDULER_TIMES", "06:00,18:00")
	t.Setenv("RUN_TIMEOUT", "90s")
	t.Setenv("PARALLELISM", "4")
	t.Setenv("STREAM_ENABLED", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, []string{"SOLUSDT", "ADAUSDT", "BTCUSDT"}, cfg.TrackedInstruments)
	assert.Equal(t, domain.Timeframe4h, cfg.DecisionTimeframe)
	assert.Equal(t, 30*time.Minute, cfg.CacheTTL)
	assert.Equal(t, []string{"06:00", "18:00"}, cfg.SchedulerTimes)
	assert.Equal(t, 90*time.Second, cfg.RunTimeout)
	assert.Equal(t, 4, cfg.Parallelism)
	assert.False(t, cfg.StreamEnabled)
}

func TestLoad_InvalidTimeframe(t *testing.T) {
	t.Setenv("DECISION_TIMEFRAME", "2w")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_InvalidSchedulerTime(t *testing.T) {
	t.Setenv("SCHEDULER_TIMES", "25:99")

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Port:               8080,
			DatabasePath:       "./data/candles.db",
			TrackedInstruments: []string{"BTCUSDT"},
			DecisionTimeframe:  domain.Timeframe1d,
			SchedulerTimes:     []string{"00:05"},
			RunTimeout:         time.Minute,
		}
	}

	assert.NoError(t, base().Validate())

	c := base()
	c.TrackedInstruments = nil
	assert.Error(t, c.Validate())

	c = base()
	c.DatabasePath = ""
	assert.Error(t, c.Validate())

	c = base()
	c.RunTimeout = 0
	assert.Error(t, c.Validate())

	c = base()
	c.Parallelism = -1
	assert.Error(t, c.Validate())
}

func TestEffectiveCacheTTL(t *testing.T) {
	c := &Config{DecisionTimeframe: domain.Timeframe1d}
	assert.Equal(t, 24*time.Hour, c.EffectiveCacheTTL())

	c.CacheTTL = time.Hour
	assert.Equal(t, time.Hour, c.EffectiveCacheTTL())
}
