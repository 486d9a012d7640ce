package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := Default()
	cfg.Auth.AccessSecret = "access-secret-0123456789abcdef0123"
	cfg.Auth.RefreshSecret = "refresh-secret-0123456789abcdef012"
	cfg.Storage.Local.SigningKey = "signing-key-0123456789"
	return cfg
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 15*time.Minute, cfg.Auth.AccessTTL)
	assert.Equal(t, 720*time.Hour, cfg.Auth.RefreshTTL)
	assert.Equal(t, time.Hour, cfg.Storage.URLTTL)
	assert.Equal(t, "local", cfg.Storage.Provider)
	assert.Equal(t, 500, cfg.Queue.MaxItems)
	assert.Contains(t, cfg.Media.AudioExtensions, ".flac")
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr())
}

func TestValidate(t *testing.T) {
	require.NoError(t, validConfig().Validate())

	t.Run("defaults lack secrets", func(t *testing.T) {
		err := Default().Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "auth.access_secret")
		assert.Contains(t, err.Error(), "storage.local.signing_key")
	})

	t.Run("secrets must differ", func(t *testing.T) {
		cfg := validConfig()
		cfg.Auth.RefreshSecret = cfg.Auth.AccessSecret
		assert.ErrorContains(t, cfg.Validate(), "must differ")
	})

	t.Run("unknown driver", func(t *testing.T) {
		cfg := validConfig()
		cfg.Database.Driver = "mysql"
		assert.ErrorContains(t, cfg.Validate(), "database.driver")
	})

	t.Run("tls needs files", func(t *testing.T) {
		cfg := validConfig()
		cfg.Server.EnableTLS = true
		assert.ErrorContains(t, cfg.Validate(), "tls_cert_file")
	})
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "melodia.yaml")
	yaml := `
server:
  port: 9090
database:
  driver: sqlite
  dsn: melodia.db
auth:
  access_ttl: 5m
queue:
  max_items: 50
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))
	t.Setenv("MELODIA_AUTH_ISSUER", "melodia-test")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 5*time.Minute, cfg.Auth.AccessTTL)
	assert.Equal(t, 50, cfg.Queue.MaxItems)
	assert.Equal(t, "melodia-test", cfg.Auth.Issuer)
	assert.Equal(t, 720*time.Hour, cfg.Auth.RefreshTTL)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
