// Package config loads flowforge's process-wide settings from a layered
// stack of sources (defaults, config file, environment) and hands back a
// validated, immutable-per-load Config.
package config

import "time"

// SinkConfig points at one of the trace/audit sinks a host may enable.
type SinkConfig struct {
	Enabled bool   `koanf:"enabled"`
	URL     string `koanf:"url"     validate:"required_if=Enabled true,omitempty,url"`
}

// Config is the fully resolved, validated process configuration.
type Config struct {
	Mode            Mode          `koanf:"mode"             validate:"required,oneof=standalone cluster"`
	Timezone        string        `koanf:"timezone"         validate:"required,tz"`
	WorkflowTimeout time.Duration `koanf:"workflow_timeout" validate:"gt=0"`
	MaxParallelJobs int           `koanf:"max_parallel_jobs" validate:"gt=0"`
	RegistryPaths   []string      `koanf:"registry_paths"`
	Trace           SinkConfig    `koanf:"trace"`
	Audit           SinkConfig    `koanf:"audit"`
}

// Default returns the configuration used when no source overrides a
// given field.
func Default() *Config {
	return &Config{
		Mode:            ModeStandalone,
		Timezone:        "UTC",
		WorkflowTimeout: time.Hour,
		MaxParallelJobs: 2,
		RegistryPaths:   []string{"./workflows"},
		Trace:           SinkConfig{Enabled: false, URL: ""},
		Audit:           SinkConfig{Enabled: false, URL: ""},
	}
}
