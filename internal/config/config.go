// Package config defines the relay configuration surface and its defaults.
package config

import (
	"fmt"
	"time"

	"github.com/casaflow/relay-go/internal/retry"
)

// Config is the top-level relay configuration.
type Config struct {
	// BaseURL is the API root all descriptor paths are resolved against.
	BaseURL string `json:"base_url" mapstructure:"base-url"`
	// RefreshPath is the credential renewal endpoint, relative to BaseURL.
	RefreshPath string `json:"refresh_path" mapstructure:"refresh-path"`
	// RequestTimeout is the per-dispatch transport timeout.
	RequestTimeout time.Duration `json:"request_timeout" mapstructure:"request-timeout"`
	// DataDir holds the persistent credential database.
	DataDir string `json:"data_dir" mapstructure:"data-dir"`

	Retry   RetryConfig   `json:"retry" mapstructure:"retry"`
	Refresh RefreshConfig `json:"refresh" mapstructure:"refresh"`
	Logging *LogConfig    `json:"logging,omitempty" mapstructure:"logging"`
}

// RetryConfig selects retry behavior either by preset name or explicitly.
// Explicit fields, when set, override the preset.
type RetryConfig struct {
	Preset       string        `json:"preset,omitempty" mapstructure:"preset"`
	MaxAttempts  int           `json:"max_attempts,omitempty" mapstructure:"max-attempts"`
	InitialDelay time.Duration `json:"initial_delay,omitempty" mapstructure:"initial-delay"`
	MaxDelay     time.Duration `json:"max_delay,omitempty" mapstructure:"max-delay"`
	Multiplier   float64       `json:"multiplier,omitempty" mapstructure:"multiplier"`
	JitterFactor float64       `json:"jitter_factor,omitempty" mapstructure:"jitter-factor"`
}

// Options resolves the config into validated retry options.
func (r RetryConfig) Options() (retry.Options, error) {
	opts, err := retry.Preset(r.Preset)
	if err != nil {
		return retry.Options{}, err
	}
	if r.MaxAttempts > 0 {
		opts.MaxAttempts = r.MaxAttempts
	}
	if r.InitialDelay > 0 {
		opts.InitialDelay = r.InitialDelay
	}
	if r.MaxDelay > 0 {
		opts.MaxDelay = r.MaxDelay
	}
	if r.Multiplier > 0 {
		opts.Multiplier = r.Multiplier
	}
	if r.JitterFactor > 0 {
		opts.JitterFactor = r.JitterFactor
	}
	if err := opts.Validate(); err != nil {
		return retry.Options{}, err
	}
	return opts, nil
}

// RefreshConfig controls proactive credential renewal.
type RefreshConfig struct {
	// Proactive enables renewal ahead of token expiry.
	Proactive bool `json:"proactive" mapstructure:"proactive"`
	// Threshold is the fraction of token lifetime at which renewal fires.
	Threshold float64 `json:"threshold,omitempty" mapstructure:"threshold"`
}

// LogConfig represents logging configuration.
type LogConfig struct {
	Level         string `json:"level" mapstructure:"level"`
	EnableFile    bool   `json:"enable_file" mapstructure:"enable-file"`
	EnableConsole bool   `json:"enable_console" mapstructure:"enable-console"`
	Filename      string `json:"filename" mapstructure:"filename"`
	LogDir        string `json:"log_dir,omitempty" mapstructure:"log-dir"`
	MaxSize       int    `json:"max_size" mapstructure:"max-size"` // MB
	MaxBackups    int    `json:"max_backups" mapstructure:"max-backups"`
	MaxAge        int    `json:"max_age" mapstructure:"max-age"` // days
	Compress      bool   `json:"compress" mapstructure:"compress"`
	JSONFormat    bool   `json:"json_format" mapstructure:"json-format"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		RefreshPath:    "/auth/refresh",
		RequestTimeout: 30 * time.Second,
		DataDir:        ".",
		Retry:          RetryConfig{Preset: retry.PresetStandard},
		Refresh:        RefreshConfig{Proactive: true, Threshold: 0.8},
		Logging: &LogConfig{
			Level:         "info",
			EnableConsole: true,
			Filename:      "relay.log",
			MaxSize:       10,
			MaxBackups:    5,
			MaxAge:        30,
			Compress:      true,
		},
	}
}

// Validate checks the configuration invariants.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base-url is required")
	}
	if c.RefreshPath == "" {
		return fmt.Errorf("refresh-path is required")
	}
	if _, err := c.Retry.Options(); err != nil {
		return fmt.Errorf("retry: %w", err)
	}
	return nil
}
