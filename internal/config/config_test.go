package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Store.Backend)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "default", cfg.Realtime.CampaignID)
}

func TestLoadParsesRealtimeSection(t *testing.T) {
	path := writeConfig(t, `
realtime:
  tokenUrl: https://example.com/token
  campaignId: summit-2026
  voice: cedar
store:
  backend: memory
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/token", cfg.Realtime.TokenURL)
	assert.Equal(t, "summit-2026", cfg.Realtime.CampaignID)
	assert.Equal(t, "cedar", cfg.Realtime.Voice)
	assert.Equal(t, "memory", cfg.Store.Backend)
	// defaults still applied for untouched fields
	assert.Equal(t, "gpt-realtime", cfg.Realtime.Model)
}

func TestLoadExpandsSensitiveFields(t *testing.T) {
	t.Setenv("TEST_SEARCH_KEY", "sk-123")
	path := writeConfig(t, `
services:
  search:
    endpoint: https://search.example.com
    apiKey: ${TEST_SEARCH_KEY}
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sk-123", cfg.Services.Search.APIKey)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PULSESTAGE_TOKEN_URL", "https://override.example.com/token")
	t.Setenv("PULSESTAGE_STORE", "redis")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "https://override.example.com/token", cfg.Realtime.TokenURL)
	assert.Equal(t, "redis", cfg.Store.Backend)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := writeConfig(t, "realtime: [not a map")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "missing token url",
			mutate:  func(c *Config) { c.Realtime.TokenURL = "" },
			wantErr: "realtime.tokenUrl",
		},
		{
			name:    "bad token url",
			mutate:  func(c *Config) { c.Realtime.TokenURL = "not a url" },
			wantErr: "realtime.tokenUrl",
		},
		{
			name:    "bad store backend",
			mutate:  func(c *Config) { c.Store.Backend = "mysql" },
			wantErr: "store.backend",
		},
		{
			name: "redis without addr",
			mutate: func(c *Config) {
				c.Store.Backend = "redis"
				c.Store.Redis.Addr = ""
			},
			wantErr: "store.redis.addr",
		},
		{
			name:    "bad ui port",
			mutate:  func(c *Config) { c.UI.Port = 99999 },
			wantErr: "ui.port",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: "logging.level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			cfg.Realtime.TokenURL = "https://example.com/token"
			tt.mutate(&cfg)

			issues := Validate(&cfg)
			require.NotEmpty(t, issues)
			found := false
			for _, issue := range issues {
				if issue.Path == tt.wantErr {
					found = true
				}
			}
			assert.True(t, found, "expected issue at %s, got %v", tt.wantErr, issues)
		})
	}
}

func TestValidateCleanConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Realtime.TokenURL = "https://example.com/token"
	assert.Empty(t, Validate(&cfg))
}

func TestParseConfigPath(t *testing.T) {
	parts, err := ParseConfigPath("store.redis.addr")
	require.NoError(t, err)
	assert.Equal(t, []string{"store", "redis", "addr"}, parts)

	_, err = ParseConfigPath("")
	assert.Error(t, err)

	_, err = ParseConfigPath("a..b")
	assert.Error(t, err)

	_, err = ParseConfigPath("a.__proto__.b")
	assert.Error(t, err)
}

func TestSetGetUnsetValueAtPath(t *testing.T) {
	root := map[string]any{}
	SetValueAtPath(root, []string{"ui", "port"}, 9000)

	v, ok := GetValueAtPath(root, []string{"ui", "port"})
	require.True(t, ok)
	assert.Equal(t, 9000, v)

	assert.True(t, UnsetValueAtPath(root, []string{"ui", "port"}))
	_, ok = GetValueAtPath(root, []string{"ui", "port"})
	assert.False(t, ok)
	assert.False(t, UnsetValueAtPath(root, []string{"ui", "missing"}))
}
