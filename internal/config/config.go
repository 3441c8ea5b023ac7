// Package config provides YAML configuration loading and validation for
// the ktracepoint daemon.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration structure for cmd/ktraced.
type Config struct {
	// ControlAddr is the listen address for the control-plane HTTP server
	// (e.g. "127.0.0.1:9090"). Defaults to "127.0.0.1:9090" when omitted.
	ControlAddr string `yaml:"control_addr"`

	// LogLevel sets the minimum log severity: "debug", "info", "warn", or
	// "error". Defaults to "info" when omitted.
	LogLevel string `yaml:"log_level"`

	// JWTPublicKeyPath is the path to a PEM-encoded RSA public key used to
	// verify RS256 Bearer tokens on mutating control-plane routes. Empty
	// disables JWT enforcement entirely.
	JWTPublicKeyPath string `yaml:"jwt_public_key_path"`

	// PipeCapacity is the record capacity of every tracepoint's shared raw
	// trace pipe. Defaults to 4096 when omitted or zero.
	PipeCapacity int `yaml:"pipe_capacity"`

	// CmdlineCacheCapacity is the fixed capacity of the pid->comm LRU
	// cache. Defaults to 1024 when omitted or zero.
	CmdlineCacheCapacity int `yaml:"cmdline_cache_capacity"`

	// TelemetryInterval controls how often the daemon logs fire/filter/
	// drop counters. Defaults to 10s when omitted or zero.
	TelemetryInterval time.Duration `yaml:"telemetry_interval"`
}

// defaultConfig holds every field's zero-configuration value. LoadConfig
// merges a partially-specified file over this default struct via
// dario.cat/mergo rather than a hand-rolled field-by-field check, so an
// added field only needs a default entered here.
func defaultConfig() Config {
	return Config{
		ControlAddr:          "127.0.0.1:9090",
		LogLevel:             "info",
		PipeCapacity:         4096,
		CmdlineCacheCapacity: 1024,
		TelemetryInterval:    10 * time.Second,
	}
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// LoadConfig reads the YAML file at path, unmarshals it into Config,
// merges it over the package defaults, and validates the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: cannot read %q: %w", path, err)
	}

	cfg := defaultConfig()
	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("config: cannot parse %q: %w", path, err)
	}
	if err := mergo.Merge(&cfg, parsed, mergo.WithOverride); err != nil {
		return nil, fmt.Errorf("config: cannot merge %q over defaults: %w", path, err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config: validation failed for %q: %w", path, err)
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	var errs []error
	if cfg.ControlAddr == "" {
		errs = append(errs, errors.New("control_addr is required"))
	}
	if !validLogLevels[cfg.LogLevel] {
		errs = append(errs, fmt.Errorf("log_level %q must be one of: debug, info, warn, error", cfg.LogLevel))
	}
	if cfg.PipeCapacity <= 0 {
		errs = append(errs, errors.New("pipe_capacity must be positive"))
	}
	if cfg.CmdlineCacheCapacity <= 0 {
		errs = append(errs, errors.New("cmdline_cache_capacity must be positive"))
	}
	if cfg.TelemetryInterval <= 0 {
		errs = append(errs, errors.New("telemetry_interval must be positive"))
	}
	return errors.Join(errs...)
}
