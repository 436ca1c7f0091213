package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfig_Validate(t *testing.T) {
	t.Run("Should accept the default configuration", func(t *testing.T) {
		assert.NoError(t, DefaultConfig().Validate())
	})

	t.Run("Should reject an empty path", func(t *testing.T) {
		cfg := &Config{Enabled: true, Path: ""}
		assert.Error(t, cfg.Validate())
	})

	t.Run("Should reject a path missing the leading slash", func(t *testing.T) {
		cfg := &Config{Enabled: true, Path: "metrics"}
		assert.Error(t, cfg.Validate())
	})

	t.Run("Should reject a path with query parameters", func(t *testing.T) {
		cfg := &Config{Enabled: true, Path: "/metrics?format=json"}
		assert.Error(t, cfg.Validate())
	})
}
