// Package config provides configuration loading and validation for a ring
// node.
//
// Configuration is loaded with the following priority (highest to lowest):
//  1. Command-line flags (not handled here, see cmd/ringnode/main.go)
//  2. Environment variables (RINGNODE_* prefix)
//  3. YAML config file (if specified with --config)
//  4. Hardcoded defaults
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/viper"
)

// initConfig sets up the config loader with defaults, env binding, and config file.
func initConfig(configPath string) (*viper.Viper, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("RINGNODE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return v, nil
}

// setDefaults configures all default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("tracker.host", "")
	v.SetDefault("tracker.port", 0)

	v.SetDefault("timing.poll", "500ms")
	v.SetDefault("timing.keep_alive_interval", "5s")
	v.SetDefault("timing.bootstrap_timeout", "3s")
	v.SetDefault("timing.bootstrap_retries", 5)

	v.SetDefault("logging.level", "INFO")
	v.SetDefault("logging.structured", false)
	v.SetDefault("logging.structured_format", "json")
	v.SetDefault("logging.include_pid", false)
	v.SetDefault("logging.extra_fields", map[string]string{})

	v.SetDefault("buffer_size", 1024)
}

func loadFromSource(configPath string) (*Config, error) {
	v, err := initConfig(configPath)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}

	loadTrackerConfig(v, cfg)
	loadTimingConfig(v, cfg)
	loadLoggingConfig(v, cfg)
	cfg.BufferSize = v.GetInt("buffer_size")

	if err := normalizeConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadTrackerConfig(v *viper.Viper, cfg *Config) {
	cfg.Tracker.Host = v.GetString("tracker.host")
	cfg.Tracker.Port = v.GetInt("tracker.port")
}

func loadTimingConfig(v *viper.Viper, cfg *Config) {
	cfg.Timing.Poll = v.GetString("timing.poll")
	cfg.Timing.KeepAliveInterval = v.GetString("timing.keep_alive_interval")
	cfg.Timing.BootstrapTimeout = v.GetString("timing.bootstrap_timeout")
	cfg.Timing.BootstrapRetries = v.GetInt("timing.bootstrap_retries")
}

func loadLoggingConfig(v *viper.Viper, cfg *Config) {
	cfg.Logging.Level = strings.ToUpper(v.GetString("logging.level"))
	cfg.Logging.Structured = v.GetBool("logging.structured")
	cfg.Logging.StructuredFormat = v.GetString("logging.structured_format")
	cfg.Logging.IncludePID = v.GetBool("logging.include_pid")
	cfg.Logging.ExtraFields = v.GetStringMapString("logging.extra_fields")
}

// normalizeConfig validates and normalizes the configuration, and checks
// that every duration setting actually parses.
func normalizeConfig(cfg *Config) error {
	if cfg.BufferSize <= 0 {
		return errors.New("buffer_size must be positive")
	}
	if cfg.Timing.BootstrapRetries < 0 {
		return errors.New("timing.bootstrap_retries must not be negative")
	}

	for name, raw := range map[string]string{
		"timing.poll":               cfg.Timing.Poll,
		"timing.keep_alive_interval": cfg.Timing.KeepAliveInterval,
		"timing.bootstrap_timeout":  cfg.Timing.BootstrapTimeout,
	} {
		if _, err := time.ParseDuration(raw); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "INFO"
	}
	if cfg.Logging.StructuredFormat == "" {
		cfg.Logging.StructuredFormat = "json"
	}
	if cfg.Logging.ExtraFields == nil {
		cfg.Logging.ExtraFields = map[string]string{}
	}

	return nil
}

// newInstanceID generates a short correlation ID attached to every log line
// for this node's lifetime. It has no role in the wire protocol.
func newInstanceID() string {
	return uuid.NewString()
}
