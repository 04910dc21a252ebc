// Package config loads splitledger's settings.
//
// Values are layered: built-in defaults, then an optional TOML file, then a
// .env file in the working directory, then the process environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
)

// Config holds all configuration for the server.
type Config struct {
	Server  ServerConfig  `toml:"server"`
	Storage StorageConfig `toml:"storage"`
	Auth    AuthConfig    `toml:"auth"`
	Logging LoggingConfig `toml:"logging"`
	Ledger  LedgerConfig  `toml:"ledger"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port        int    `toml:"port"`
	AllowOrigin string `toml:"allow_origin"` // CORS Access-Control-Allow-Origin
}

// StorageConfig holds the SQLite database location.
type StorageConfig struct {
	Path string `toml:"path"`
}

// AuthConfig holds JWT settings.
type AuthConfig struct {
	JWTSecret string `toml:"jwt_secret"`
	TokenTTL  string `toml:"token_ttl"` // duration string, e.g. "24h"
}

// TokenDuration parses TokenTTL.
func (c AuthConfig) TokenDuration() (time.Duration, error) {
	d, err := time.ParseDuration(c.TokenTTL)
	if err != nil {
		return 0, fmt.Errorf("invalid token_ttl %q: %w", c.TokenTTL, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("token_ttl must be positive, got %s", d)
	}
	return d, nil
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `toml:"level"`  // debug, info, warn, error
	Format string `toml:"format"` // text or json
}

// LedgerConfig tunes balance recomputation.
type LedgerConfig struct {
	Workers int `toml:"workers"`
}

// Default returns a Config with development defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        8080,
			AllowOrigin: "*",
		},
		Storage: StorageConfig{
			Path: "./data/splitledger.db",
		},
		Auth: AuthConfig{
			JWTSecret: "dev-jwt-secret-change-in-production",
			TokenTTL:  "24h",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Ledger: LedgerConfig{
			Workers: 8,
		},
	}
}

// Load builds the configuration. path names an optional TOML file; an empty
// path or a missing file leaves the defaults in place.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		default:
			if err := toml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
		}
	}

	// Variables already set in the environment win over .env.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("SERVER_PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid SERVER_PORT %q: %w", v, err)
		}
		cfg.Server.Port = p
	}
	if v := os.Getenv("CORS_ALLOW_ORIGIN"); v != "" {
		cfg.Server.AllowOrigin = v
	}
	if v := os.Getenv("DB_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("TOKEN_TTL"); v != "" {
		cfg.Auth.TokenTTL = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v := os.Getenv("LEDGER_WORKERS"); v != "" {
		w, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid LEDGER_WORKERS %q: %w", v, err)
		}
		cfg.Ledger.Workers = w
	}
	return nil
}

// Validate reports the first setting that cannot work.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}
	if c.Storage.Path == "" {
		return errors.New("storage path is required")
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("jwt secret is required")
	}
	if _, err := c.Auth.TokenDuration(); err != nil {
		return err
	}
	if c.Ledger.Workers < 1 {
		return fmt.Errorf("ledger workers must be positive, got %d", c.Ledger.Workers)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Logging.Format)
	}
	return nil
}
