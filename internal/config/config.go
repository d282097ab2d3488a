// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Ledger    LedgerConfig    `mapstructure:"ledger"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Fetch     FetchConfig     `mapstructure:"fetch"`
	Transform TransformConfig `mapstructure:"transform"`
	Worker    WorkerConfig    `mapstructure:"worker"`
	Bridge    BridgeConfig    `mapstructure:"bridge"`
	Publisher PublisherConfig `mapstructure:"publisher"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port           int `mapstructure:"port"`
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// LedgerConfig selects and tunes the job ledger backend.
type LedgerConfig struct {
	Provider string `mapstructure:"provider"`
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// StorageConfig sets the blob sink backend, paths and content types.
type StorageConfig struct {
	Provider    string `mapstructure:"provider"`
	GCSBucket   string `mapstructure:"gcs_bucket"`
	LocalDir    string `mapstructure:"local_dir"`
	Prefix      string `mapstructure:"prefix"`
	ContentType string `mapstructure:"content_type"`
}

// FetchConfig bounds the upstream document fetch.
type FetchConfig struct {
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	UserAgent      string `mapstructure:"user_agent"`
}

// TransformConfig selects the transform applied to fetched documents.
type TransformConfig struct {
	Name string `mapstructure:"name"`
}

// WorkerConfig holds the retry policy parameters. LivenessThresholdSeconds
// must exceed a typical fetch+transform duration so live workers are never
// raced by re-dispatch.
type WorkerConfig struct {
	MaxAttempts              int `mapstructure:"max_attempts"`
	LivenessThresholdSeconds int `mapstructure:"liveness_threshold_seconds"`
}

// BridgeConfig controls the scaling signal poll loop.
type BridgeConfig struct {
	PollIntervalSeconds int `mapstructure:"poll_interval_seconds"`
}

// PublisherConfig holds metadata for completion event publishing.
type PublisherConfig struct {
	Provider  string `mapstructure:"provider"`
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("FILESURE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.timeout_seconds", 60)
	v.SetDefault("ledger.provider", "memory")
	v.SetDefault("ledger.table", "jobs")
	v.SetDefault("ledger.max_conns", 4)
	v.SetDefault("ledger.min_conns", 1)
	v.SetDefault("storage.provider", "memory")
	v.SetDefault("storage.prefix", "artifacts")
	v.SetDefault("storage.content_type", "text/plain; charset=utf-8")
	v.SetDefault("fetch.timeout_seconds", 30)
	v.SetDefault("fetch.user_agent", "filesure-worker/1.0")
	v.SetDefault("transform.name", "passthrough")
	v.SetDefault("worker.max_attempts", 3)
	v.SetDefault("worker.liveness_threshold_seconds", 300)
	v.SetDefault("bridge.poll_interval_seconds", 15)
	v.SetDefault("publisher.provider", "none")
	v.SetDefault("logging.development", false)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Fetch.TimeoutSeconds <= 0 {
		return fmt.Errorf("fetch.timeout_seconds must be > 0")
	}
	if c.Worker.MaxAttempts <= 0 {
		return fmt.Errorf("worker.max_attempts must be > 0")
	}
	if c.Worker.LivenessThresholdSeconds <= c.Fetch.TimeoutSeconds {
		return fmt.Errorf("worker.liveness_threshold_seconds must exceed fetch.timeout_seconds")
	}
	if c.Bridge.PollIntervalSeconds <= 0 {
		return fmt.Errorf("bridge.poll_interval_seconds must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	return nil
}

// FetchTimeout returns the fetch bound as a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutSeconds) * time.Second
}

// LivenessThreshold returns the stale-claim cutoff as a duration.
func (c Config) LivenessThreshold() time.Duration {
	return time.Duration(c.Worker.LivenessThresholdSeconds) * time.Second
}

// BridgePollInterval returns the scaling signal poll cadence.
func (c Config) BridgePollInterval() time.Duration {
	return time.Duration(c.Bridge.PollIntervalSeconds) * time.Second
}
