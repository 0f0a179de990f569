package config

import (
	"encoding/base64"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// allConfigKeys lists every SMSPANEL_ env var that Load() reads.
var allConfigKeys = []string{
	"SMSPANEL_LISTEN_ADDR",
	"SMSPANEL_DB_PATH",
	"SMSPANEL_LOG_LEVEL",
	"SMSPANEL_POLL_INTERVAL",
	"SMSPANEL_ADMIN_USERNAME",
	"SMSPANEL_ADMIN_PASSWORD",
	"SMSPANEL_JWT_SECRET",
	"SMSPANEL_TOKEN_TTL",
	"SMSPANEL_API_KEY",
	"SMSPANEL_CRED_KEY",
}

// isolateConfigEnv saves and unsets all SMSPANEL_ env vars so tests don't
// inherit values from the host environment. t.Cleanup restores original
// values after the test.
func isolateConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range allConfigKeys {
		if orig, ok := os.LookupEnv(key); ok {
			t.Cleanup(func() { os.Setenv(key, orig) })
		} else {
			t.Cleanup(func() { os.Unsetenv(key) })
		}
		os.Unsetenv(key)
	}
}

// setRequired sets the three secrets Load refuses to start without.
func setRequired(t *testing.T) {
	t.Setenv("SMSPANEL_ADMIN_PASSWORD", "test-password")
	t.Setenv("SMSPANEL_JWT_SECRET", "test-jwt-secret")
	t.Setenv("SMSPANEL_API_KEY", "test-api-key")
}

func TestLoad_Success(t *testing.T) {
	isolateConfigEnv(t)
	setRequired(t)
	t.Setenv("SMSPANEL_LISTEN_ADDR", "0.0.0.0:9090")
	t.Setenv("SMSPANEL_DB_PATH", "/tmp/test.db")
	t.Setenv("SMSPANEL_POLL_INTERVAL", "10s")
	t.Setenv("SMSPANEL_TOKEN_TTL", "1h")
	t.Setenv("SMSPANEL_ADMIN_USERNAME", "operator")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9090", cfg.ListenAddr)
	assert.Equal(t, "/tmp/test.db", cfg.DBPath)
	assert.Equal(t, 10*time.Second, cfg.PollInterval)
	assert.Equal(t, time.Hour, cfg.TokenTTL)
	assert.Equal(t, "operator", cfg.AdminUsername)
	assert.Equal(t, "test-password", cfg.AdminPassword)
	assert.Equal(t, "test-jwt-secret", cfg.JWTSecret)
	assert.Equal(t, "test-api-key", cfg.APIKey)
}

func TestLoad_Defaults(t *testing.T) {
	isolateConfigEnv(t)
	setRequired(t)

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:8080", cfg.ListenAddr)
	assert.Equal(t, "smspanel.db", cfg.DBPath)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 5*time.Second, cfg.PollInterval)
	assert.Equal(t, 24*time.Hour, cfg.TokenTTL)
	assert.Equal(t, "admin", cfg.AdminUsername)
	assert.Empty(t, cfg.CredentialKey)
}

func TestLoad_MissingSecrets(t *testing.T) {
	tests := []struct {
		name string
		omit string
	}{
		{"missing admin password", "SMSPANEL_ADMIN_PASSWORD"},
		{"missing jwt secret", "SMSPANEL_JWT_SECRET"},
		{"missing api key", "SMSPANEL_API_KEY"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolateConfigEnv(t)
			setRequired(t)
			os.Unsetenv(tt.omit)

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.omit)
		})
	}
}

func TestLoad_InvalidDurations(t *testing.T) {
	isolateConfigEnv(t)
	setRequired(t)
	t.Setenv("SMSPANEL_POLL_INTERVAL", "-5s")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SMSPANEL_POLL_INTERVAL")
}

func TestDecodeCredentialKey(t *testing.T) {
	isolateConfigEnv(t)
	setRequired(t)

	t.Run("absent key decodes to nil", func(t *testing.T) {
		cfg, err := Load()
		require.NoError(t, err)

		key, err := cfg.DecodeCredentialKey()
		require.NoError(t, err)
		assert.Nil(t, key)
	})

	t.Run("valid 32-byte key", func(t *testing.T) {
		raw := make([]byte, 32)
		for i := range raw {
			raw[i] = byte(i)
		}
		t.Setenv("SMSPANEL_CRED_KEY", base64.StdEncoding.EncodeToString(raw))

		cfg, err := Load()
		require.NoError(t, err)

		key, err := cfg.DecodeCredentialKey()
		require.NoError(t, err)
		assert.Equal(t, raw, key)
	})

	t.Run("wrong length is rejected at load", func(t *testing.T) {
		t.Setenv("SMSPANEL_CRED_KEY", base64.StdEncoding.EncodeToString([]byte("short")))

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "32 bytes")
	})

	t.Run("invalid base64 is rejected at load", func(t *testing.T) {
		t.Setenv("SMSPANEL_CRED_KEY", "%%%not-base64%%%")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "base64")
	})
}
