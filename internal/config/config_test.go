package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("BRIDGE_HOST_URL", "wss://host.example.com/bridge")
	t.Setenv("BRIDGE_ALLOWED_ORIGINS", "https://app.bullhorn.com")
}

func TestLoad_Minimal(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "wss://host.example.com/bridge", cfg.HostURL)
	assert.Equal(t, "development", cfg.Environment)
	assert.False(t, cfg.Debug)
	assert.False(t, cfg.IsProduction())
}

func TestLoad_MissingHostURL(t *testing.T) {
	t.Setenv("BRIDGE_HOST_URL", "")
	t.Setenv("BRIDGE_ALLOWED_ORIGINS", "https://app.bullhorn.com")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BRIDGE_HOST_URL")
}

func TestLoad_RejectsNonWebSocketScheme(t *testing.T) {
	t.Setenv("BRIDGE_HOST_URL", "https://host.example.com/bridge")
	t.Setenv("BRIDGE_ALLOWED_ORIGINS", "https://app.bullhorn.com")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ws or wss")
}

func TestLoad_RequiresSomeOriginSource(t *testing.T) {
	t.Setenv("BRIDGE_HOST_URL", "wss://host.example.com/bridge")
	t.Setenv("BRIDGE_ALLOWED_ORIGINS", "")
	t.Setenv("BRIDGE_ORIGINS_FILE", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestOrigins_EnvListOnly(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("BRIDGE_ALLOWED_ORIGINS", "https://app.bullhorn.com, https://*.bullhornstaffing.com")

	cfg, err := Load()
	require.NoError(t, err)

	origins, err := cfg.Origins()
	require.NoError(t, err)
	assert.Equal(t, []string{
		"https://app.bullhorn.com",
		"https://*.bullhornstaffing.com",
	}, origins)
}

func TestOrigins_MergesYAMLFile(t *testing.T) {
	setRequiredEnv(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "origins.yaml")
	data := "origins:\n  - https://*.bullhorn.com\n  - https://app.bullhorn.com\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))
	t.Setenv("BRIDGE_ORIGINS_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)

	origins, err := cfg.Origins()
	require.NoError(t, err)
	// Env entries first, file entries appended, duplicates dropped.
	assert.Equal(t, []string{
		"https://app.bullhorn.com",
		"https://*.bullhorn.com",
	}, origins)
}

func TestOrigins_MissingFile(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("BRIDGE_ORIGINS_FILE", filepath.Join(t.TempDir(), "nope.yaml"))

	cfg, err := Load()
	require.NoError(t, err)

	_, err = cfg.Origins()
	assert.Error(t, err)
}

func TestOrigins_MalformedYAML(t *testing.T) {
	setRequiredEnv(t)

	path := filepath.Join(t.TempDir(), "origins.yaml")
	require.NoError(t, os.WriteFile(path, []byte("origins: {broken"), 0o600))
	t.Setenv("BRIDGE_ORIGINS_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)

	_, err = cfg.Origins()
	assert.Error(t, err)
}

func TestIsProduction(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("ENVIRONMENT", "production")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
}
