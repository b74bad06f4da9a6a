// Package config provides configuration loading for the ring node using
// Viper. Configuration is loaded from an optional YAML file with automatic
// environment variable binding.
//
// Environment variables use the RINGNODE_ prefix and underscore-separated
// keys:
//   - RINGNODE_TRACKER_HOST -> tracker.host
//   - RINGNODE_TIMING_POLL -> timing.poll
//   - RINGNODE_LOGGING_LEVEL -> logging.level
package config

import (
	"os"
	"strings"
)

// TrackerConfig holds a tracker address read from the config file or the
// environment. cmd/ringnode does not use it: the node bootstraps against the
// tracker named by the CLI's two required positional arguments, and those are
// not copied into this struct.
type TrackerConfig struct {
	Host string `yaml:"host" mapstructure:"host"`
	Port int    `yaml:"port" mapstructure:"port"`
}

// TimingConfig holds every duration the state machine's handlers block on
// or schedule against. Durations are stored as strings (parsed with
// time.ParseDuration) so they read naturally in YAML/env ("500ms", "5s").
type TimingConfig struct {
	Poll              string `yaml:"poll"                mapstructure:"poll"`
	KeepAliveInterval string `yaml:"keep_alive_interval" mapstructure:"keep_alive_interval"`
	BootstrapTimeout  string `yaml:"bootstrap_timeout"   mapstructure:"bootstrap_timeout"`
	BootstrapRetries  int    `yaml:"bootstrap_retries"   mapstructure:"bootstrap_retries"`
}

// LoggingConfig contains logging settings, mirroring internal/logging.Config.
type LoggingConfig struct {
	Level            string            `yaml:"level"             mapstructure:"level"`
	Structured       bool              `yaml:"structured"        mapstructure:"structured"`
	StructuredFormat string            `yaml:"structured_format" mapstructure:"structured_format"`
	IncludePID       bool              `yaml:"include_pid"       mapstructure:"include_pid"`
	ExtraFields      map[string]string `yaml:"extra_fields"      mapstructure:"extra_fields"`
}

// Config is the root configuration structure for a ring node.
type Config struct {
	Tracker    TrackerConfig `yaml:"tracker"     mapstructure:"tracker"`
	Timing     TimingConfig  `yaml:"timing"      mapstructure:"timing"`
	Logging    LoggingConfig `yaml:"logging"     mapstructure:"logging"`
	BufferSize int           `yaml:"buffer_size" mapstructure:"buffer_size"`
	InstanceID string        `yaml:"-"           mapstructure:"-"`
}

// ResolveConfigPath determines the config file path from flag or environment.
func ResolveConfigPath(flagValue string) string {
	if strings.TrimSpace(flagValue) != "" {
		return flagValue
	}
	if v := strings.TrimSpace(os.Getenv("RINGNODE_CONFIG")); v != "" {
		return v
	}
	return ""
}

// Load loads configuration from an optional YAML file with environment
// variable overrides, and attaches a fresh InstanceID.
//
// Configuration priority (highest to lowest):
//  1. Environment variables (RINGNODE_*)
//  2. Config file values
//  3. Default values
func Load(path string) (*Config, error) {
	cfg, err := loadFromSource(path)
	if err != nil {
		return nil, err
	}
	cfg.InstanceID = newInstanceID()
	return cfg, nil
}
