package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate runs the test from an empty directory with no overriding env vars.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	for _, key := range []string{
		"SERVER_PORT", "CORS_ALLOW_ORIGIN", "DB_PATH", "JWT_SECRET",
		"TOKEN_TTL", "LOG_LEVEL", "LOG_FORMAT", "LEDGER_WORKERS",
	} {
		t.Setenv(key, "")
	}
	return dir
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	ttl, err := cfg.Auth.TokenDuration()
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, ttl)
}

func TestLoad_MissingFile(t *testing.T) {
	dir := isolate(t)

	cfg, err := Load(filepath.Join(dir, "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoad_TOML(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "splitledger.toml")
	writeFile(t, path, `
[server]
port = 9090

[storage]
path = "/var/lib/splitledger/ledger.db"

[auth]
token_ttl = "1h"

[logging]
level = "debug"
format = "json"

[ledger]
workers = 2
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "/var/lib/splitledger/ledger.db", cfg.Storage.Path)
	assert.Equal(t, "1h", cfg.Auth.TokenTTL)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, 2, cfg.Ledger.Workers)
	// Untouched keys keep their defaults.
	assert.Equal(t, Default().Auth.JWTSecret, cfg.Auth.JWTSecret)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "splitledger.toml")
	writeFile(t, path, "[server]\nport = 9090\n")

	t.Setenv("SERVER_PORT", "7070")
	t.Setenv("LOG_LEVEL", "WARN")
	t.Setenv("LEDGER_WORKERS", "3")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, 3, cfg.Ledger.Workers)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := isolate(t)
	writeFile(t, filepath.Join(dir, ".env"), "JWT_SECRET=from-dotenv\nDB_PATH=/tmp/dotenv.db\n")
	// An explicit environment variable beats .env.
	t.Setenv("DB_PATH", "/tmp/env.db")
	// godotenv sets JWT_SECRET with os.Setenv; restore it when the test ends.
	t.Setenv("JWT_SECRET", "")
	os.Unsetenv("JWT_SECRET")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.Auth.JWTSecret)
	assert.Equal(t, "/tmp/env.db", cfg.Storage.Path)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		toml string
	}{
		{name: "non-numeric port", env: map[string]string{"SERVER_PORT": "http"}},
		{name: "port out of range", env: map[string]string{"SERVER_PORT": "70000"}},
		{name: "zero workers", env: map[string]string{"LEDGER_WORKERS": "0"}},
		{name: "bad ttl", env: map[string]string{"TOKEN_TTL": "forever"}},
		{name: "negative ttl", env: map[string]string{"TOKEN_TTL": "-1h"}},
		{name: "bad format", env: map[string]string{"LOG_FORMAT": "xml"}},
		{name: "empty secret", toml: "[auth]\njwt_secret = \"\"\n"},
		{name: "malformed toml", toml: "[server\nport = 1\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := isolate(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := ""
			if tt.toml != "" {
				path = filepath.Join(dir, "splitledger.toml")
				writeFile(t, path, tt.toml)
			}

			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}
