package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSources_Precedence(t *testing.T) {
	t.Run("Should let a YAML file override the defaults", func(t *testing.T) {
		dir := t.TempDir()
		cfgPath := filepath.Join(dir, "flowforge.yaml")
		require.NoError(t, os.WriteFile(cfgPath, []byte("max_parallel_jobs: 7\ntimezone: America/New_York\n"), 0o600))

		m := NewManager(NewService())
		cfg, err := m.Load(context.Background(), NewDefaultProvider(), NewYAMLProvider(cfgPath))
		require.NoError(t, err)
		assert.Equal(t, 7, cfg.MaxParallelJobs)
		assert.Equal(t, "America/New_York", cfg.Timezone)
	})

	t.Run("Should tolerate a missing YAML file as a no-op layer", func(t *testing.T) {
		m := NewManager(NewService())
		cfg, err := m.Load(context.Background(), NewDefaultProvider(), NewYAMLProvider("/nonexistent/flowforge.yaml"))
		require.NoError(t, err)
		assert.Equal(t, Default().MaxParallelJobs, cfg.MaxParallelJobs)
	})

	t.Run("Should let environment variables override a YAML file", func(t *testing.T) {
		dir := t.TempDir()
		cfgPath := filepath.Join(dir, "flowforge.yaml")
		require.NoError(t, os.WriteFile(cfgPath, []byte("max_parallel_jobs: 7\n"), 0o600))
		t.Setenv("FLOWFORGE_MAX_PARALLEL_JOBS", "11")

		m := NewManager(NewService())
		cfg, err := m.Load(
			context.Background(),
			NewDefaultProvider(),
			NewYAMLProvider(cfgPath),
			NewEnvProvider(),
		)
		require.NoError(t, err)
		assert.Equal(t, 11, cfg.MaxParallelJobs)
	})

	t.Run("Should let a CLI overlay win over every other source", func(t *testing.T) {
		t.Setenv("FLOWFORGE_MAX_PARALLEL_JOBS", "11")

		m := NewManager(NewService())
		cfg, err := m.Load(
			context.Background(),
			NewDefaultProvider(),
			NewEnvProvider(),
			NewCLIProvider(map[string]any{"max_parallel_jobs": 20}),
		)
		require.NoError(t, err)
		assert.Equal(t, 20, cfg.MaxParallelJobs)
	})
}
