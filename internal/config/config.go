package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/aristath/advisor/internal/domain"
)

// Config holds application configuration
type Config struct {
	Port         int
	LogLevel     string
	DevMode      bool
	DatabasePath string

	TrackedInstruments []string
	DecisionTimeframe  domain.Timeframe
	CacheTTL           time.Duration // zero selects one bar of the decision timeframe
	SchedulerTimes     []string      // UTC times of day, "HH:MM"
	RunTimeout         time.Duration
	Parallelism        int // zero selects the number of CPU cores
	CORSOrigins        []string

	BinanceBaseURL   string
	BinanceStreamURL string
	StreamEnabled    bool
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Port:               getEnvAsInt("PORT", 8080),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		DevMode:            getEnvAsBool("DEV_MODE", false),
		DatabasePath:       getEnv("DATABASE_PATH", "./data/candles.db"),
		TrackedInstruments: getEnvAsList("TRACKED_INSTRUMENTS", []string{"BTCUSDT", "ETHUSDT"}),
		DecisionTimeframe:  domain.Timeframe(getEnv("DECISION_TIMEFRAME", "1d")),
		CacheTTL:           getEnvAsDuration("CACHE_TTL", 0),
		SchedulerTimes:     getEnvAsList("SCHEDULER_TIMES", []string{"00:05"}),
		RunTimeout:         getEnvAsDuration("RUN_TIMEOUT", 60*time.Second),
		Parallelism:        getEnvAsInt("PARALLELISM", 0),
		CORSOrigins:        getEnvAsList("CORS_ORIGINS", []string{"*"}),
		BinanceBaseURL:     getEnv("BINANCE_BASE_URL", ""),
		BinanceStreamURL:   getEnv("BINANCE_STREAM_URL", ""),
		StreamEnabled:      getEnvAsBool("STREAM_ENABLED", true),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks if required configuration is present and coherent
func (c *Config) Validate() error {
	if len(c.TrackedInstruments) == 0 {
		return fmt.Errorf("TRACKED_INSTRUMENTS must not be empty")
	}
	if !c.DecisionTimeframe.Valid() {
		return fmt.Errorf("DECISION_TIMEFRAME %q is not a supported timeframe", c.DecisionTimeframe)
	}
	if c.DatabasePath == "" {
		return fmt.Errorf("DATABASE_PATH is required")
	}
	for _, t := range c.SchedulerTimes {
		if _, err := time.Parse("15:04", t); err != nil {
			return fmt.Errorf("SCHEDULER_TIMES entry %q is not HH:MM: %w", t, err)
		}
	}
	if c.RunTimeout <= 0 {
		return fmt.Errorf("RUN_TIMEOUT must be positive")
	}
	if c.Parallelism < 0 {
		return fmt.Errorf("PARALLELISM must not be negative")
	}
	return nil
}

// EffectiveCacheTTL resolves the configured TTL, defaulting to one bar
// of the decision timeframe
func (c *Config) EffectiveCacheTTL() time.Duration {
	if c.CacheTTL > 0 {
		return c.CacheTTL
	}
	return c.DecisionTimeframe.Duration()
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
