package config

import (
	"fmt"
	"os"
	"time"
)

// Config holds all application configuration loaded from environment
// variables. All required fields are validated at startup to ensure
// fail-fast behavior; the feed endpoint and subscription filters come from
// CLI flags instead (see cmd/ingester).
type Config struct {
	// Database configuration
	DatabaseURL string

	// Observability configuration
	LogLevel    string
	MetricsAddr string

	// Reconnect backoff configuration
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Load reads configuration from environment variables and validates all
// required fields. Returns an error if any required configuration is
// missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{}
	var errs []error

	cfg.DatabaseURL = os.Getenv("POSTGRES_DB_URL")
	if cfg.DatabaseURL == "" {
		errs = append(errs, fmt.Errorf("POSTGRES_DB_URL is required"))
	}

	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")
	cfg.MetricsAddr = getEnvOrDefault("METRICS_ADDR", ":9091")

	initialBackoff, err := parseDuration("INITIAL_BACKOFF", "500ms")
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.InitialBackoff = initialBackoff
	}

	maxBackoff, err := parseDuration("MAX_BACKOFF", "60s")
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.MaxBackoff = maxBackoff
	}

	if cfg.InitialBackoff > cfg.MaxBackoff {
		errs = append(errs, fmt.Errorf("INITIAL_BACKOFF (%v) cannot be greater than MAX_BACKOFF (%v)",
			cfg.InitialBackoff, cfg.MaxBackoff))
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %v", errs)
	}

	return cfg, nil
}

// MustLoad is like Load but panics if configuration is invalid.
// Useful for initialization paths where misconfiguration should halt
// startup.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// Validate checks if the configuration is valid. Useful for testing
// configuration without loading from env.
func (c *Config) Validate() error {
	var errs []error

	if c.DatabaseURL == "" {
		errs = append(errs, fmt.Errorf("DatabaseURL is required"))
	}

	if c.InitialBackoff <= 0 {
		errs = append(errs, fmt.Errorf("InitialBackoff must be positive"))
	}

	if c.InitialBackoff > c.MaxBackoff {
		errs = append(errs, fmt.Errorf("InitialBackoff cannot be greater than MaxBackoff"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errs)
	}

	return nil
}

// getEnvOrDefault returns the environment variable value or a default if
// not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseDuration parses a duration from an environment variable or uses a
// default.
func parseDuration(key, defaultValue string) (time.Duration, error) {
	value := getEnvOrDefault(key, defaultValue)
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, value, err)
	}
	return duration, nil
}
