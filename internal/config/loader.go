package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Load reads configuration from the given file (or the default search paths
// when path is empty) and applies RELAY_* environment overrides. Validation is
// the caller's job, after any flag overrides are applied on top.
func Load(path string) (*Config, error) {
	v := viper.New()

	defaults := Default()
	// base-url has no default, but registering the key lets RELAY_BASE_URL
	// reach Unmarshal.
	v.SetDefault("base-url", "")
	v.SetDefault("refresh-path", defaults.RefreshPath)
	v.SetDefault("request-timeout", defaults.RequestTimeout)
	v.SetDefault("data-dir", defaults.DataDir)
	v.SetDefault("retry.preset", defaults.Retry.Preset)
	v.SetDefault("refresh.proactive", defaults.Refresh.Proactive)
	v.SetDefault("refresh.threshold", defaults.Refresh.Threshold)
	v.SetDefault("logging.level", defaults.Logging.Level)
	v.SetDefault("logging.enable-console", defaults.Logging.EnableConsole)
	v.SetDefault("logging.filename", defaults.Logging.Filename)
	v.SetDefault("logging.max-size", defaults.Logging.MaxSize)
	v.SetDefault("logging.max-backups", defaults.Logging.MaxBackups)
	v.SetDefault("logging.max-age", defaults.Logging.MaxAge)
	v.SetDefault("logging.compress", defaults.Logging.Compress)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("relay")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.relay")
	}

	v.SetEnvPrefix("RELAY")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// A missing file is fine when no explicit path was given; env vars
		// and defaults still apply.
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}
