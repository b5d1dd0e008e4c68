package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "static", cfg.Directory.Source)
	assert.Equal(t, "data/providers.yaml", cfg.Directory.SeedPath)
	assert.False(t, cfg.Directory.MatchAllTokens)
	assert.Equal(t, 10*time.Minute, cfg.Directory.WarmInterval)
	assert.Equal(t, "browser", cfg.Geolocation.Source)
	assert.Equal(t, 10*time.Second, cfg.Geolocation.Timeout)
	assert.Equal(t, 5*time.Minute, cfg.Geolocation.MaxAge)
	assert.Equal(t, 30*time.Minute, cfg.Map.SessionTTL)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DIRECTORY_SOURCE", "postgres")
	t.Setenv("DIRECTORY_SEARCH_MATCH_ALL_TOKENS", "true")
	t.Setenv("GEOLOCATION_SOURCE", "ip")
	t.Setenv("GEOLOCATION_TIMEOUT", "3s")
	t.Setenv("GEOLOCATION_MAX_AGE", "1m")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com")
	t.Setenv("TYPESENSE_URL", "http://test-typesense:8108")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Directory.Source)
	assert.True(t, cfg.Directory.MatchAllTokens)
	assert.Equal(t, "ip", cfg.Geolocation.Source)
	assert.Equal(t, 3*time.Second, cfg.Geolocation.Timeout)
	assert.Equal(t, time.Minute, cfg.Geolocation.MaxAge)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "http://test-typesense:8108", cfg.Typesense.URL)
}

func TestLoad_RejectsUnknownSources(t *testing.T) {
	t.Setenv("GEOLOCATION_SOURCE", "satellite")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_IgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("SERVER_PORT", "eighty")
	t.Setenv("GEOLOCATION_TIMEOUT", "soon")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Geolocation.Timeout)
}
