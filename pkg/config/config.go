// Package config loads and validates the capsule storage core's static
// configuration: logging, storage backend selection, blob/upload size
// limits, link token lifetimes, and session expiry.
//
// Configuration sources, in order of precedence:
//  1. CLI flags (bound by callers via viper.BindPFlag before Load)
//  2. Environment variables (CAPSULECORE_*)
//  3. A YAML configuration file
//  4. Default values
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/novabloom/capsulecore/internal/bytesize"
)

// Config is the complete static configuration for a capsule storage core
// process.
type Config struct {
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// ShutdownTimeout bounds how long in-flight operations get to finish
	// during a graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0" yaml:"shutdown_timeout"`

	Storage   StorageConfig   `mapstructure:"storage" yaml:"storage"`
	Limits    LimitsConfig    `mapstructure:"limits" yaml:"limits"`
	TokenTTL  TokenTTLConfig  `mapstructure:"token_ttl" yaml:"token_ttl"`
	Session   SessionConfig   `mapstructure:"session" yaml:"session"`
	AssetLink AssetLinkConfig `mapstructure:"asset_link" yaml:"asset_link"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output.
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`
	// Format is "text" or "json".
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`
	// Output is "stdout", "stderr", or a file path.
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// MetricsConfig configures the optional Prometheus metrics endpoint.
// When Enabled is false, no collectors are registered.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	Port    int  `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`
}

// StorageConfig selects and configures the Persistence Primitives, Blob
// Store, and Upload Session Manager backends.
type StorageConfig struct {
	// Backend is "memory", "badger", or "s3". "memory" and "badger" apply
	// to persistence primitives and blob storage uniformly; "s3" only
	// replaces the blob store — primitives and the capsule store still
	// need a "badger" or "memory" backend alongside it.
	Backend string `mapstructure:"backend" validate:"required,oneof=memory badger s3" yaml:"backend"`

	// BadgerPath is the directory badger opens its database in. Required
	// when Backend is "badger", or when Backend is "s3" (badger still
	// backs the capsule store and upload sessions).
	BadgerPath string `mapstructure:"badger_path" yaml:"badger_path"`

	S3 S3Config `mapstructure:"s3" yaml:"s3"`
}

// S3Config configures the S3 blob store backend.
type S3Config struct {
	Bucket   string `mapstructure:"bucket" yaml:"bucket"`
	Region   string `mapstructure:"region" yaml:"region"`
	Prefix   string `mapstructure:"prefix" yaml:"prefix"`
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint,omitempty"`
}

// LimitsConfig bounds the Blob Store and Memory/Asset Domain.
type LimitsConfig struct {
	// InlineMax is the largest asset payload storable inline on the
	// memory record rather than as a separate blob.
	InlineMax bytesize.ByteSize `mapstructure:"inline_max" yaml:"inline_max"`
	// ChunkSize is the fixed chunk size an upload session accepts.
	ChunkSize bytesize.ByteSize `mapstructure:"chunk_size" yaml:"chunk_size"`
	// CapsuleInlineBudget caps the total inline bytes a single capsule
	// may hold across all its memories.
	CapsuleInlineBudget bytesize.ByteSize `mapstructure:"capsule_inline_budget" yaml:"capsule_inline_budget"`
}

// TokenTTLConfig sets the lifetime of signed asset links minted at
// listing time versus on demand.
type TokenTTLConfig struct {
	Listing  time.Duration `mapstructure:"listing" yaml:"listing"`
	OnDemand time.Duration `mapstructure:"on_demand" yaml:"on_demand"`
}

// SessionConfig controls upload session expiry.
type SessionConfig struct {
	TTL time.Duration `mapstructure:"ttl" yaml:"ttl"`
}

// AssetLinkConfig configures the HMAC signing key and magic-link JWT
// signing used by the Asset Link Minter and Access Control Core.
type AssetLinkConfig struct {
	// SigningKey is the HMAC-SHA256 key for asset link tokens. Required,
	// non-empty, carried only in memory.
	SigningKey string `mapstructure:"signing_key" validate:"required" yaml:"signing_key"`
}

var validate = validator.New()

// Load loads configuration from file, environment, and defaults, then
// validates the result.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	found, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	cfg := defaultConfig()
	if found {
		if err := v.Unmarshal(cfg, viper.DecodeHook(decodeHooks())); err != nil {
			return nil, fmt.Errorf("unmarshal config: %w", err)
		}
	} else {
		applyEnvOverrides(v, cfg)
	}

	applyDefaults(cfg)

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	if err := crossFieldValidate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// maxChunkSize is the upper bound a runtime may raise limits.chunk_size to;
// 1.8 MiB, expressed as integer arithmetic over bytesize.MiB.
const maxChunkSize = 9 * bytesize.MiB / 5

// minChunkSize is the floor every runtime must accept regardless of its
// own resource constraints.
const minChunkSize = 64 * bytesize.KiB

// crossFieldValidate checks invariants the struct tags can't express.
func crossFieldValidate(cfg *Config) error {
	if cfg.Storage.Backend != "memory" && cfg.Storage.BadgerPath == "" {
		return fmt.Errorf("storage.badger_path is required for backend %q", cfg.Storage.Backend)
	}
	if cfg.Storage.Backend == "s3" && cfg.Storage.S3.Bucket == "" {
		return fmt.Errorf("storage.s3.bucket is required for backend \"s3\"")
	}
	if cfg.Limits.ChunkSize == 0 {
		return fmt.Errorf("limits.chunk_size must be non-zero")
	}
	if cfg.Limits.ChunkSize < minChunkSize {
		return fmt.Errorf("limits.chunk_size %s is below the %s floor", cfg.Limits.ChunkSize, minChunkSize)
	}
	if cfg.Limits.ChunkSize > maxChunkSize {
		return fmt.Errorf("limits.chunk_size %s exceeds the %s ceiling", cfg.Limits.ChunkSize, maxChunkSize)
	}
	return nil
}

// SaveConfig writes cfg to path as YAML, creating parent directories as
// needed.
func SaveConfig(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	// 0600: the asset link signing key lives in this file.
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("CAPSULECORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("read config file: %w", err)
	}
	return true, nil
}

// applyEnvOverrides lets CAPSULECORE_* environment variables populate a
// fresh default config even when no file was found, mirroring the
// no-file env-only deployment mode.
func applyEnvOverrides(v *viper.Viper, cfg *Config) {
	if lvl := v.GetString("logging.level"); lvl != "" {
		cfg.Logging.Level = lvl
	}
	if backend := v.GetString("storage.backend"); backend != "" {
		cfg.Storage.Backend = backend
	}
	if path := v.GetString("storage.badger_path"); path != "" {
		cfg.Storage.BadgerPath = path
	}
	if key := v.GetString("asset_link.signing_key"); key != "" {
		cfg.AssetLink.SigningKey = key
	}
}

func decodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		byteSizeDecodeHook(),
		durationDecodeHook(),
	)
}

func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(bytesize.ByteSize(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return bytesize.ParseByteSize(v)
		case int:
			return bytesize.ByteSize(v), nil
		case int64:
			return bytesize.ByteSize(v), nil
		case uint64:
			return bytesize.ByteSize(v), nil
		case float64:
			return bytesize.ByteSize(v), nil
		default:
			return data, nil
		}
	}
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

func getConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "capsulecore")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "capsulecore")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}
