package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefault(t *testing.T) {
	t.Run("Should provide a valid, fully populated default configuration", func(t *testing.T) {
		cfg := Default()
		assert.Equal(t, ModeStandalone, cfg.Mode)
		assert.Equal(t, "UTC", cfg.Timezone)
		assert.Equal(t, time.Hour, cfg.WorkflowTimeout)
		assert.Equal(t, 2, cfg.MaxParallelJobs)
		assert.Equal(t, []string{"./workflows"}, cfg.RegistryPaths)
		assert.False(t, cfg.Trace.Enabled)
		assert.False(t, cfg.Audit.Enabled)

		svc := NewService()
		assert.NoError(t, svc.Validate(cfg))
	})
}
