package metrics

import (
	"fmt"
	"strings"
)

// Config controls whether this system collects and exposes metrics, and
// where the Prometheus exporter serves them.
type Config struct {
	// Enabled turns on the meter provider, the Prometheus registry, and
	// instrument registration. Disabled by default: a no-op meter means
	// every instrument call site stays branch-free.
	Enabled bool

	// Path is the HTTP path the Prometheus exposition handler is mounted
	// at. Must start with "/" and carry no query string.
	Path string
}

// DefaultConfig returns metrics disabled, mounted at /metrics if enabled
// later.
func DefaultConfig() *Config {
	return &Config{Enabled: false, Path: "/metrics"}
}

// Validate checks Path is a usable HTTP path.
func (c *Config) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("metrics path cannot be empty")
	}
	if c.Path[0] != '/' {
		return fmt.Errorf("metrics path must start with '/': got %s", c.Path)
	}
	if strings.ContainsRune(c.Path, '?') {
		return fmt.Errorf("metrics path cannot contain query parameters")
	}
	return nil
}
