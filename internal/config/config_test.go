package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "stockroom", cfg.Name)
	assert.Equal(t, ":8090", cfg.Server.ListenAddr)
	assert.Equal(t, "data/stockroom.db", cfg.Database.Path)
	assert.Equal(t, "stockroom.local", cfg.Auth.EmailDomain)
	assert.False(t, cfg.Email.Enabled)
	assert.NoError(t, cfg.Validate())
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Server.ListenAddr, cfg.Server.ListenAddr)
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
server:
  listen_addr: ":9999"
auth:
  session_ttl: 2h
  email_domain: example.org
  admin_usernames: [boss]
email:
  enabled: true
  api_key: re_test
  sender: alerts@example.org
`)
	require.NoError(t, os.WriteFile(path, data, 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.Server.ListenAddr)
	assert.Equal(t, "example.org", cfg.Auth.EmailDomain)
	assert.Equal(t, []string{"boss"}, cfg.Auth.AdminUsernames)
	assert.Equal(t, 2*time.Hour, cfg.Auth.SessionTTLDuration())
	// Untouched sections keep defaults.
	assert.Equal(t, "data/stockroom.db", cfg.Database.Path)
	assert.NoError(t, cfg.Validate())
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("STOCKROOM_LISTEN_ADDR", ":7070")
	t.Setenv("STOCKROOM_EMAIL_API_KEY", "re_env")
	t.Setenv("STOCKROOM_ADMIN_USERS", "alice, bob ,")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.Server.ListenAddr)
	assert.Equal(t, "re_env", cfg.Email.APIKey)
	assert.True(t, cfg.Email.Enabled, "setting the API key enables email")
	assert.Equal(t, []string{"alice", "bob"}, cfg.Auth.AdminUsernames)
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Email.Enabled = true
	cfg.Email.APIKey = ""
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Database.Path = ""
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Auth.EmailDomain = ""
	assert.Error(t, cfg.Validate())
}

func TestDurationFallbacks(t *testing.T) {
	sc := ServerConfig{ReadTimeout: "garbage", WriteTimeout: ""}
	assert.Equal(t, 15*time.Second, sc.ReadTimeoutDuration())
	assert.Equal(t, 30*time.Second, sc.WriteTimeoutDuration())

	ac := AuthConfig{SessionTTL: "-5m"}
	assert.Equal(t, 24*time.Hour, ac.SessionTTLDuration())
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")

	cfg := DefaultConfig()
	cfg.Server.ListenAddr = ":1234"
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":1234", loaded.Server.ListenAddr)
}
