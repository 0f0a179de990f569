// Package config loads application configuration from environment variables.
package config

import (
	"encoding/base64"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds the application configuration. Every field can be set through
// an SMSPANEL_-prefixed environment variable.
type Config struct {
	ListenAddr   string        `mapstructure:"LISTEN_ADDR"`
	DBPath       string        `mapstructure:"DB_PATH"`
	LogLevel     string        `mapstructure:"LOG_LEVEL"`
	PollInterval time.Duration `mapstructure:"POLL_INTERVAL"`

	AdminUsername string        `mapstructure:"ADMIN_USERNAME"`
	AdminPassword string        `mapstructure:"ADMIN_PASSWORD"`
	JWTSecret     string        `mapstructure:"JWT_SECRET"`
	TokenTTL      time.Duration `mapstructure:"TOKEN_TTL"`
	APIKey        string        `mapstructure:"API_KEY"`

	// CredentialKey is the base64-encoded 32-byte AES key protecting stored
	// credentials. Optional; without it password changes do not persist.
	CredentialKey string `mapstructure:"CRED_KEY"`
}

// DecodeCredentialKey returns the decoded AES key, or nil when none is
// configured.
func (c *Config) DecodeCredentialKey() ([]byte, error) {
	if c.CredentialKey == "" {
		return nil, nil
	}

	key, err := base64.StdEncoding.DecodeString(c.CredentialKey)
	if err != nil {
		return nil, fmt.Errorf("SMSPANEL_CRED_KEY is not valid base64: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("SMSPANEL_CRED_KEY must decode to 32 bytes, got %d", len(key))
	}

	return key, nil
}

// Load reads configuration from the environment and returns a validated
// Config. SMSPANEL_ADMIN_PASSWORD, SMSPANEL_JWT_SECRET, and SMSPANEL_API_KEY
// are required; the server refuses to start without its secrets rather than
// running with guessable ones.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SMSPANEL")
	v.AutomaticEnv()

	v.SetDefault("LISTEN_ADDR", "127.0.0.1:8080")
	v.SetDefault("DB_PATH", "smspanel.db")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("POLL_INTERVAL", "5s")
	v.SetDefault("ADMIN_USERNAME", "admin")
	v.SetDefault("TOKEN_TTL", "24h")

	// AutomaticEnv only resolves keys viper already knows about; declare the
	// required ones so their env vars bind without defaults.
	for _, key := range []string{"ADMIN_PASSWORD", "JWT_SECRET", "API_KEY", "CRED_KEY"} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.AdminPassword == "" {
		return nil, fmt.Errorf("SMSPANEL_ADMIN_PASSWORD is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("SMSPANEL_JWT_SECRET is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("SMSPANEL_API_KEY is required")
	}
	if cfg.PollInterval <= 0 {
		return nil, fmt.Errorf("SMSPANEL_POLL_INTERVAL must be positive, got %s", cfg.PollInterval)
	}
	if cfg.TokenTTL <= 0 {
		return nil, fmt.Errorf("SMSPANEL_TOKEN_TTL must be positive, got %s", cfg.TokenTTL)
	}

	if _, err := cfg.DecodeCredentialKey(); err != nil {
		return nil, err
	}

	return &cfg, nil
}
