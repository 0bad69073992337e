package common

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Defaults(t *testing.T) {
	cfg := NewDefaultConfig()
	if cfg.API.BaseURL != DefaultAPIOrigin {
		t.Errorf("API.BaseURL default = %q, want %q", cfg.API.BaseURL, DefaultAPIOrigin)
	}
	if got := cfg.Polling.GetQuoteInterval(); got != 10*time.Second {
		t.Errorf("quote interval default = %v, want 10s", got)
	}
	if cfg.Storage.Driver != "memory" {
		t.Errorf("Storage.Driver default = %q, want memory", cfg.Storage.Driver)
	}
}

func TestConfig_APIURLEnvOverride(t *testing.T) {
	t.Setenv("VITE_API_URL", "http://legacy:9000")

	cfg := NewDefaultConfig()
	applyEnvOverrides(cfg)
	assert.Equal(t, "http://legacy:9000", cfg.API.BaseURL)

	t.Setenv("TRADEONLY_API_URL", "http://primary:9001")
	cfg = NewDefaultConfig()
	applyEnvOverrides(cfg)
	assert.Equal(t, "http://primary:9001", cfg.API.BaseURL, "TRADEONLY_API_URL wins over VITE_API_URL")
}

func TestConfig_PortEnvOverride(t *testing.T) {
	t.Setenv("TRADEONLY_PORT", "9191")

	cfg := NewDefaultConfig()
	applyEnvOverrides(cfg)
	if cfg.Server.Port != 9191 {
		t.Errorf("Server.Port = %d after env override, want 9191", cfg.Server.Port)
	}

	t.Setenv("TRADEONLY_PORT", "not-a-port")
	cfg = NewDefaultConfig()
	applyEnvOverrides(cfg)
	if cfg.Server.Port != 8090 {
		t.Errorf("invalid port should keep default, got %d", cfg.Server.Port)
	}
}

func TestLoadConfig_LaterFilesOverride(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "base.toml")
	local := filepath.Join(dir, "local.toml")

	require.NoError(t, os.WriteFile(base, []byte(`
environment = "staging"

[api]
base_url = "http://base:8000"
timeout = "5s"

[storage]
driver = "Postgres"

[polling]
quote_interval = "30s"
`), 0o600))
	require.NoError(t, os.WriteFile(local, []byte(`
[api]
base_url = "http://local:8000"
`), 0o600))

	cfg, err := LoadConfig(base, local, filepath.Join(dir, "missing.toml"))
	require.NoError(t, err)

	assert.Equal(t, "staging", cfg.Environment)
	assert.Equal(t, "http://local:8000", cfg.API.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.API.GetTimeout())
	assert.Equal(t, "postgres", cfg.Storage.Driver)
	assert.Equal(t, 30*time.Second, cfg.Polling.GetQuoteInterval())
}

func TestLoadConfig_InvalidTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("[api\nbase_url = "), 0o600))

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestDurationGetters_Fallbacks(t *testing.T) {
	api := APIConfig{Timeout: "garbage"}
	assert.Equal(t, 15*time.Second, api.GetTimeout())

	auth := AuthConfig{Timeout: "-1s"}
	assert.Equal(t, 10*time.Second, auth.GetTimeout())

	poll := PollingConfig{QuoteInterval: "2s"}
	assert.Equal(t, 2*time.Second, poll.GetQuoteInterval())
}

func TestPostgresConfig_ConnString(t *testing.T) {
	c := PostgresConfig{Host: "db", Port: 5432, User: "u", Password: "p", DBName: "d", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=d sslmode=disable", c.ConnString())

	c.DSN = "postgres://u:p@db/d"
	assert.Equal(t, "postgres://u:p@db/d", c.ConnString())
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	assert.Equal(t, filepath.Join(home, "x", "y.json"), ExpandHome("~/x/y.json"))
	assert.Equal(t, "/abs/path", ExpandHome("/abs/path"))
}

func TestPrintBanner_ListsSettings(t *testing.T) {
	var buf bytes.Buffer
	prev := bannerOut
	bannerOut = &buf
	defer func() { bannerOut = prev }()

	cfg := NewDefaultConfig()
	cfg.Storage.Driver = "surrealdb"
	PrintBanner(cfg, NewSilentLogger())

	out := buf.String()
	assert.Contains(t, out, "ws://127.0.0.1:8090/ws")
	assert.Contains(t, out, "surrealdb")
	assert.True(t, strings.Contains(out, DefaultAPIOrigin))
}
