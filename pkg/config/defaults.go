package config

import (
	"time"

	"github.com/novabloom/capsulecore/internal/bytesize"
)

// applyDefaults fills any zero-valued fields left after unmarshalling a
// partial config file.
func applyDefaults(cfg *Config) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "INFO"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	if cfg.Metrics.Enabled && cfg.Metrics.Port == 0 {
		cfg.Metrics.Port = 9090
	}

	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}

	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = "memory"
	}

	if cfg.Limits.InlineMax == 0 {
		cfg.Limits.InlineMax = 32 * bytesize.KiB
	}
	if cfg.Limits.ChunkSize == 0 {
		cfg.Limits.ChunkSize = 64 * bytesize.KiB
	}
	if cfg.Limits.CapsuleInlineBudget == 0 {
		cfg.Limits.CapsuleInlineBudget = 4 * bytesize.MiB
	}

	if cfg.TokenTTL.Listing == 0 {
		cfg.TokenTTL.Listing = 30 * time.Minute
	}
	if cfg.TokenTTL.OnDemand == 0 {
		cfg.TokenTTL.OnDemand = 3 * time.Minute
	}

	if cfg.Session.TTL == 0 {
		cfg.Session.TTL = 24 * time.Hour
	}
}

// defaultConfig returns a Config with every field set to its default
// value. SigningKey is left empty — callers must supply one via file or
// environment; Load's validation rejects an empty key.
func defaultConfig() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}
