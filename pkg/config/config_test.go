package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/novabloom/capsulecore/internal/bytesize"
)

func TestLoad_NoFileUsesDefaultsPlusEnv(t *testing.T) {
	t.Setenv("CAPSULECORE_ASSET_LINK_SIGNING_KEY", "test-signing-key")
	t.Setenv("CAPSULECORE_STORAGE_BACKEND", "memory")

	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "INFO", cfg.Logging.Level)
	assert.Equal(t, "memory", cfg.Storage.Backend)
	assert.Equal(t, "test-signing-key", cfg.AssetLink.SigningKey)
	assert.Equal(t, 24*time.Hour, cfg.Session.TTL)
}

func TestLoad_MissingSigningKeyFailsValidation(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.Error(t, err)
}

func TestLoad_BadgerBackendRequiresPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
logging:
  level: INFO
  format: text
  output: stdout
shutdown_timeout: 30s
storage:
  backend: badger
asset_link:
  signing_key: k
`), 0644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "badger_path")
}

func TestLoad_FromFileParsesByteSizesAndDurations(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
logging:
  level: DEBUG
  format: json
  output: stdout
shutdown_timeout: 5s
storage:
  backend: badger
  badger_path: /tmp/capsulecore-test
limits:
  inline_max: 64Ki
  chunk_size: 1Mi
  capsule_inline_budget: 128Mi
token_ttl:
  listing: 10m
  on_demand: 30s
session:
  ttl: 12h
asset_link:
  signing_key: super-secret
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "DEBUG", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, 5*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 64*bytesize.KiB, cfg.Limits.InlineMax)
	assert.Equal(t, 1*bytesize.MiB, cfg.Limits.ChunkSize)
	assert.Equal(t, 128*bytesize.MiB, cfg.Limits.CapsuleInlineBudget)
	assert.Equal(t, 10*time.Minute, cfg.TokenTTL.Listing)
	assert.Equal(t, 30*time.Second, cfg.TokenTTL.OnDemand)
	assert.Equal(t, 12*time.Hour, cfg.Session.TTL)
	assert.Equal(t, "super-secret", cfg.AssetLink.SigningKey)
}

func TestSaveConfig_RoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.yaml")

	cfg := defaultConfig()
	cfg.AssetLink.SigningKey = "k"
	cfg.Storage.Backend = "memory"

	require.NoError(t, SaveConfig(cfg, path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Logging.Level, loaded.Logging.Level)
	assert.Equal(t, cfg.AssetLink.SigningKey, loaded.AssetLink.SigningKey)
}

func TestApplyDefaults_FillsZeroValues(t *testing.T) {
	cfg := &Config{}
	applyDefaults(cfg)

	assert.Equal(t, "INFO", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, "stdout", cfg.Logging.Output)
	assert.Equal(t, "memory", cfg.Storage.Backend)
	assert.Equal(t, 32*bytesize.KiB, cfg.Limits.InlineMax)
	assert.Equal(t, 64*bytesize.KiB, cfg.Limits.ChunkSize)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
}
