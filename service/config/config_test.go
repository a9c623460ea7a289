package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_ValidConfig(t *testing.T) {
	os.Setenv("POSTGRES_DB_URL", "postgres://localhost/test")
	defer cleanupEnv()

	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "postgres://localhost/test", cfg.DatabaseURL)
	assert.Equal(t, "info", cfg.LogLevel)                     // Default
	assert.Equal(t, ":9091", cfg.MetricsAddr)                 // Default
	assert.Equal(t, 500*time.Millisecond, cfg.InitialBackoff) // Default
	assert.Equal(t, 60*time.Second, cfg.MaxBackoff)           // Default
}

func TestLoad_MissingDatabaseURL(t *testing.T) {
	defer cleanupEnv()

	cfg, err := Load()
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "POSTGRES_DB_URL is required")
}

func TestLoad_InvalidBackoff(t *testing.T) {
	os.Setenv("POSTGRES_DB_URL", "postgres://localhost/test")
	os.Setenv("INITIAL_BACKOFF", "invalid")
	defer cleanupEnv()

	cfg, err := Load()
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "invalid duration")
}

func TestLoad_InitialBackoffGreaterThanMax(t *testing.T) {
	os.Setenv("POSTGRES_DB_URL", "postgres://localhost/test")
	os.Setenv("INITIAL_BACKOFF", "2m")
	os.Setenv("MAX_BACKOFF", "30s")
	defer cleanupEnv()

	cfg, err := Load()
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "cannot be greater than MAX_BACKOFF")
}

func TestMustLoad(t *testing.T) {
	os.Setenv("POSTGRES_DB_URL", "postgres://localhost/test")
	defer cleanupEnv()

	cfg := MustLoad()
	require.NotNil(t, cfg)
	assert.Equal(t, "postgres://localhost/test", cfg.DatabaseURL)
}

func TestMustLoad_PanicsOnMissingConfig(t *testing.T) {
	cleanupEnv()

	assert.Panics(t, func() { MustLoad() })
}

func TestValidate(t *testing.T) {
	cfg := &Config{
		DatabaseURL:    "postgres://localhost/test",
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     time.Minute,
	}
	assert.NoError(t, cfg.Validate())

	cfg.DatabaseURL = ""
	assert.Error(t, cfg.Validate())
}

func cleanupEnv() {
	os.Unsetenv("POSTGRES_DB_URL")
	os.Unsetenv("LOG_LEVEL")
	os.Unsetenv("METRICS_ADDR")
	os.Unsetenv("INITIAL_BACKOFF")
	os.Unsetenv("MAX_BACKOFF")
}
