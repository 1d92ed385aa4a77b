package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("API_BASE_URL", "http://api.local:8080/")
	t.Setenv("TOKEN_STORE", "")
	t.Setenv("TOKEN_FILE", "/tmp/rsvp-token")
	t.Setenv("SOCKET_URL", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://api.local:8080", cfg.APIBaseURL)
	assert.Equal(t, cfg.APIBaseURL, cfg.SocketURL)
	assert.Equal(t, "Authorization", cfg.AuthHeader)
	assert.Equal(t, TokenStoreFile, cfg.TokenStore)
	assert.Equal(t, "drsfbuadcjk", cfg.TokenKey)
	assert.Zero(t, cfg.HTTPReadTimeout)
	assert.Zero(t, cfg.HTTPWriteTimeout)
	assert.True(t, cfg.RealtimeEnabled)
	assert.False(t, cfg.TracingEnabled)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("API_BASE_URL", "https://events.example.com")
	t.Setenv("SOCKET_URL", "https://ws.example.com")
	t.Setenv("TOKEN_STORE", "memory")
	t.Setenv("HTTP_READ_TIMEOUT", "3s")
	t.Setenv("HTTP_WRITE_TIMEOUT", "bogus")
	t.Setenv("REALTIME_ENABLED", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://ws.example.com", cfg.SocketURL)
	assert.Equal(t, TokenStoreMemory, cfg.TokenStore)
	assert.Equal(t, 3*time.Second, cfg.HTTPReadTimeout)
	assert.Zero(t, cfg.HTTPWriteTimeout)
	assert.False(t, cfg.RealtimeEnabled)
}

func TestLoad_Validation(t *testing.T) {
	t.Run("bad_base_url", func(t *testing.T) {
		t.Setenv("API_BASE_URL", "events.example.com")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("redis_requires_url", func(t *testing.T) {
		t.Setenv("API_BASE_URL", "http://localhost:8080")
		t.Setenv("TOKEN_STORE", "redis")
		t.Setenv("REDIS_URL", "")
		_, err := Load()
		assert.ErrorContains(t, err, "REDIS_URL")
	})

	t.Run("unknown_store", func(t *testing.T) {
		t.Setenv("API_BASE_URL", "http://localhost:8080")
		t.Setenv("TOKEN_STORE", "cookie")
		_, err := Load()
		assert.ErrorContains(t, err, "TOKEN_STORE")
	})

	t.Run("tracing_requires_endpoint", func(t *testing.T) {
		t.Setenv("API_BASE_URL", "http://localhost:8080")
		t.Setenv("TOKEN_STORE", "memory")
		t.Setenv("TRACING_ENABLED", "true")
		t.Setenv("OTLP_ENDPOINT", "")
		_, err := Load()
		assert.ErrorContains(t, err, "OTLP_ENDPOINT")
	})
}
