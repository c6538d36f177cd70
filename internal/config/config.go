// Package config loads stockroom configuration from YAML with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all stockroom configuration.
type Config struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Email    EmailConfig    `yaml:"email"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	ListenAddr      string `yaml:"listen_addr"`
	ReadTimeout     string `yaml:"read_timeout"`
	WriteTimeout    string `yaml:"write_timeout"`
	ShutdownTimeout string `yaml:"shutdown_timeout"`
}

// DatabaseConfig configures SQLite storage.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// AuthConfig configures sessions and role derivation.
type AuthConfig struct {
	// SessionTTL is how long a login stays valid (Go duration string).
	SessionTTL string `yaml:"session_ttl"`

	// EmailDomain is the domain appended to usernames to form the
	// synthetic account email (user "alice" -> "alice@<domain>").
	EmailDomain string `yaml:"email_domain"`

	// AdminUsernames are accounts that always derive the admin role.
	AdminUsernames []string `yaml:"admin_usernames"`

	// HookSecret authorizes the low-stock webhook without a session.
	HookSecret string `yaml:"hook_secret"`
}

// EmailConfig configures the transactional email provider.
type EmailConfig struct {
	Enabled bool   `yaml:"enabled"`
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	Sender  string `yaml:"sender"`
	Timeout string `yaml:"timeout"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "stockroom",
		Version: "1.0.0",

		Server: ServerConfig{
			ListenAddr:      ":8090",
			ReadTimeout:     "15s",
			WriteTimeout:    "30s",
			ShutdownTimeout: "10s",
		},

		Database: DatabaseConfig{
			Path: "data/stockroom.db",
		},

		Auth: AuthConfig{
			SessionTTL:  "24h",
			EmailDomain: "stockroom.local",
		},

		Email: EmailConfig{
			Enabled: false,
			BaseURL: "https://api.resend.com",
			Sender:  "stockroom@stockroom.local",
			Timeout: "15s",
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults; environment overrides apply either way.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies STOCKROOM_* environment variables on top of
// whatever the file provided. Secrets are the main use case: keeping
// the email API key out of the config file.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("STOCKROOM_LISTEN_ADDR"); v != "" {
		c.Server.ListenAddr = v
	}
	if v := os.Getenv("STOCKROOM_DB_PATH"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("STOCKROOM_EMAIL_API_KEY"); v != "" {
		c.Email.APIKey = v
		c.Email.Enabled = true
	}
	if v := os.Getenv("STOCKROOM_EMAIL_SENDER"); v != "" {
		c.Email.Sender = v
	}
	if v := os.Getenv("STOCKROOM_HOOK_SECRET"); v != "" {
		c.Auth.HookSecret = v
	}
	if v := os.Getenv("STOCKROOM_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("STOCKROOM_ADMIN_USERS"); v != "" {
		c.Auth.AdminUsernames = splitList(v)
	}
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// SessionTTL returns the parsed session lifetime, defaulting to 24h on
// a bad or empty value.
func (c *AuthConfig) SessionTTLDuration() time.Duration {
	return parseDuration(c.SessionTTL, 24*time.Hour)
}

// ReadTimeoutDuration returns the parsed read timeout.
func (c *ServerConfig) ReadTimeoutDuration() time.Duration {
	return parseDuration(c.ReadTimeout, 15*time.Second)
}

// WriteTimeoutDuration returns the parsed write timeout.
func (c *ServerConfig) WriteTimeoutDuration() time.Duration {
	return parseDuration(c.WriteTimeout, 30*time.Second)
}

// ShutdownTimeoutDuration returns the parsed shutdown grace period.
func (c *ServerConfig) ShutdownTimeoutDuration() time.Duration {
	return parseDuration(c.ShutdownTimeout, 10*time.Second)
}

// TimeoutDuration returns the parsed email request timeout.
func (c *EmailConfig) TimeoutDuration() time.Duration {
	return parseDuration(c.Timeout, 15*time.Second)
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// Validate checks invariants that would otherwise surface as confusing
// runtime failures.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Auth.EmailDomain == "" {
		return fmt.Errorf("auth.email_domain is required")
	}
	if c.Email.Enabled && c.Email.APIKey == "" {
		return fmt.Errorf("email.api_key is required when email is enabled")
	}
	return nil
}
