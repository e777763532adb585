package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, configFileName), []byte(content), 0644))
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{EnvEndpoint, EnvClientID, EnvClientSecret, EnvLogLevel} {
		t.Setenv(key, "")
	}
}

func TestLoadConfig_MissingFileRequiresEndpoint(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	_, err := LoadConfig(dir)
	require.Error(t, err)

	var collection ConfigurationErrorCollection
	require.True(t, errors.As(err, &collection))
	assert.Equal(t, 1, collection.Count())
	assert.Contains(t, collection.Error(), "endpoint")
}

func TestLoadConfig_DefaultsWithEndpointFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvEndpoint, "https://api.example.com/oauth/token")
	dir := t.TempDir()

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	defaults := GetDefaultConfig()
	assert.Equal(t, "https://api.example.com/oauth/token", cfg.Endpoint)
	assert.Equal(t, defaults.ClientID, cfg.ClientID)
	assert.Equal(t, 25*time.Minute, cfg.RefreshLead)
	assert.Equal(t, 5*time.Second, cfg.HardExpiryMargin)
	assert.Equal(t, 5*time.Minute, cfg.RetryDelay)
	assert.Equal(t, 10*time.Second, cfg.OnDemandRefreshInterval)
	assert.Equal(t, time.Hour, cfg.DefaultTokenLifetime)
	assert.Equal(t, StoreTypeFile, cfg.Store.Type)
	assert.Equal(t, filepath.Join(dir, DefaultTokenDirName), cfg.Store.Path)
	assert.Equal(t, DefaultLogLevel, cfg.LogLevel)
}

func TestLoadConfig_FileOverridesDefaults(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	writeConfig(t, dir, `
endpoint: https://auth.example.com/token
clientId: my-client
clientSecret: my-secret
refreshLead: 10m
retryDelay: 30s
onDemandRefreshInterval: 0s
store:
  type: sqlite
logLevel: debug
`)

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, "https://auth.example.com/token", cfg.Endpoint)
	assert.Equal(t, "my-client", cfg.ClientID)
	assert.Equal(t, "my-secret", cfg.ClientSecret)
	assert.Equal(t, 10*time.Minute, cfg.RefreshLead)
	assert.Equal(t, 30*time.Second, cfg.RetryDelay)
	assert.Equal(t, time.Duration(0), cfg.OnDemandRefreshInterval)
	assert.Equal(t, 5*time.Second, cfg.HardExpiryMargin, "unset fields keep defaults")
	assert.Equal(t, StoreTypeSQLite, cfg.Store.Type)
	assert.Equal(t, filepath.Join(dir, DefaultDatabaseName), cfg.Store.Path)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	writeConfig(t, dir, "endpoint: https://file.example.com/token\nlogLevel: info\n")
	t.Setenv(EnvEndpoint, "https://env.example.com/token")
	t.Setenv(EnvClientID, "env-client")
	t.Setenv(EnvClientSecret, "env-secret")
	t.Setenv(EnvLogLevel, "warn")

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, "https://env.example.com/token", cfg.Endpoint)
	assert.Equal(t, "env-client", cfg.ClientID)
	assert.Equal(t, "env-secret", cfg.ClientSecret)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestLoadConfig_OverridesWinOverEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	t.Setenv(EnvEndpoint, "https://env.example.com/token")

	cfg, err := LoadConfig(dir, func(c *TokenSessionConfig) {
		c.Endpoint = "https://flag.example.com/token"
		c.Store.Type = StoreTypeSQLite
	})
	require.NoError(t, err)
	assert.Equal(t, "https://flag.example.com/token", cfg.Endpoint)
	assert.Equal(t, filepath.Join(dir, DefaultDatabaseName), cfg.Store.Path, "store path resolved after overrides")
}

func TestLoadConfig_MalformedYAML(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	writeConfig(t, dir, "endpoint: [unclosed\n")

	_, err := LoadConfig(dir)
	require.Error(t, err)

	var cfgErr ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "parse", cfgErr.ErrorType)
	assert.Equal(t, configFileName, cfgErr.FileName)
	assert.NotEmpty(t, cfgErr.Suggestions)
	assert.Contains(t, cfgErr.DetailedError(), "Suggestions:")
}

func TestLoadConfig_ExplicitStorePathKept(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	writeConfig(t, dir, "endpoint: https://auth.example.com/token\nstore:\n  type: file\n  path: /var/lib/tokens\n")

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/tokens", cfg.Store.Path)
}

func TestApplyEnvOverrides_IgnoresEmptyValues(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Endpoint = "https://keep.example.com"

	ApplyEnvOverrides(&cfg, func(key string) (string, bool) {
		return "", true
	})
	assert.Equal(t, "https://keep.example.com", cfg.Endpoint)
}
