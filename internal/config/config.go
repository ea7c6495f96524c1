// Package config loads server settings from YAML, .env and the environment
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the full server configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	Keys      KeysConfig      `yaml:"keys"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig configures the HTTP listener
type ServerConfig struct {
	Addr            string   `yaml:"addr"`
	ReadTimeout     string   `yaml:"read_timeout"`
	WriteTimeout    string   `yaml:"write_timeout"`
	ShutdownTimeout string   `yaml:"shutdown_timeout"`
	AllowedOrigins  []string `yaml:"allowed_origins"`
	MaxBodyBytes    int64    `yaml:"max_body_bytes"`
}

// DatabaseConfig configures SQLite storage
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// AuthConfig configures sessions
type AuthConfig struct {
	JWTSecret    string `yaml:"jwt_secret"`
	SessionTTL   string `yaml:"session_ttl"`
	CookieName   string `yaml:"cookie_name"`
	SecureCookie bool   `yaml:"secure_cookie"`
	BcryptCost   int    `yaml:"bcrypt_cost"`
}

// KeysConfig configures API key sealing
type KeysConfig struct {
	Secret string `yaml:"secret"`
}

// RateLimitConfig configures the per-IP limiter
type RateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// LoggingConfig configures zap
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "json" | "console"
}

// DefaultConfig returns settings suitable for local development
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     "15s",
			WriteTimeout:    "15s",
			ShutdownTimeout: "10s",
			MaxBodyBytes:    1 << 20,
		},
		Database: DatabaseConfig{
			Path: "c3.db",
		},
		Auth: AuthConfig{
			SessionTTL: "168h",
			CookieName: "c3-session",
			BcryptCost: 12,
		},
		RateLimit: RateLimitConfig{
			RPS:   10,
			Burst: 20,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads path, then a .env file next to the working directory, then
// the environment. A missing config file yields defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration as YAML
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if port := os.Getenv("PORT"); port != "" {
		c.Server.Addr = ":" + strings.TrimPrefix(port, ":")
	}
	if path := os.Getenv("DB_PATH"); path != "" {
		c.Database.Path = path
	}
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		c.Auth.JWTSecret = secret
	}
	if secret := os.Getenv("C3_KEY_SECRET"); secret != "" {
		c.Keys.Secret = secret
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}

// Validate checks the settings the server cannot start without
func (c *Config) Validate() error {
	if len(c.Auth.JWTSecret) < 32 {
		return errors.New("auth.jwt_secret must be at least 32 bytes (set JWT_SECRET)")
	}
	if c.Keys.Secret == "" {
		return errors.New("keys.secret must be set (set C3_KEY_SECRET)")
	}
	for name, v := range map[string]string{
		"server.read_timeout":     c.Server.ReadTimeout,
		"server.write_timeout":    c.Server.WriteTimeout,
		"server.shutdown_timeout": c.Server.ShutdownTimeout,
		"auth.session_ttl":        c.Auth.SessionTTL,
	} {
		if _, err := time.ParseDuration(v); err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, v, err)
		}
	}
	if c.RateLimit.RPS <= 0 || c.RateLimit.Burst <= 0 {
		return errors.New("rate_limit.rps and rate_limit.burst must be positive")
	}
	return nil
}

// ReadTimeout returns the server read timeout
func (c *Config) ReadTimeout() time.Duration { return parseDuration(c.Server.ReadTimeout, 15*time.Second) }

// WriteTimeout returns the server write timeout
func (c *Config) WriteTimeout() time.Duration {
	return parseDuration(c.Server.WriteTimeout, 15*time.Second)
}

// ShutdownTimeout returns how long shutdown waits for requests
func (c *Config) ShutdownTimeout() time.Duration {
	return parseDuration(c.Server.ShutdownTimeout, 10*time.Second)
}

// SessionTTL returns the session lifetime
func (c *Config) SessionTTL() time.Duration {
	return parseDuration(c.Auth.SessionTTL, 7*24*time.Hour)
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
