package sink

import (
	"context"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileTraceSink(t *testing.T) {
	t.Run("Should create the trace file on first use and append JSON lines", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		s, err := NewFileTraceSink(fs, "/var/log/flowforge/trace.jsonl")
		require.NoError(t, err)

		require.NoError(t, s.Trace(context.Background(), TraceEvent{Workflow: "daily_etl", Message: "started"}))
		require.NoError(t, s.Trace(context.Background(), TraceEvent{Workflow: "daily_etl", Message: "finished"}))

		b, err := afero.ReadFile(fs, "/var/log/flowforge/trace.jsonl")
		require.NoError(t, err)
		lines := strings.Split(strings.TrimRight(string(b), "\n"), "\n")
		assert.Len(t, lines, 2)
		assert.Contains(t, lines[0], "started")
		assert.Contains(t, lines[1], "finished")
	})

	t.Run("Should tolerate a pre-existing file without truncating it", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		require.NoError(t, afero.WriteFile(fs, "/trace.jsonl", []byte(`{"Message":"prior"}`+"\n"), 0o644))

		s, err := NewFileTraceSink(fs, "/trace.jsonl")
		require.NoError(t, err)
		require.NoError(t, s.Trace(context.Background(), TraceEvent{Message: "new"}))

		b, err := afero.ReadFile(fs, "/trace.jsonl")
		require.NoError(t, err)
		assert.Contains(t, string(b), "prior")
		assert.Contains(t, string(b), "new")
	})
}

func TestFileAuditSink(t *testing.T) {
	t.Run("Should append one JSON line per audit record", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		s, err := NewFileAuditSink(fs, "/audit.jsonl")
		require.NoError(t, err)

		require.NoError(t, s.Audit(context.Background(), AuditRecord{Name: "daily_etl", Type: "success"}))

		b, err := afero.ReadFile(fs, "/audit.jsonl")
		require.NoError(t, err)
		assert.Contains(t, string(b), "daily_etl")
		assert.Contains(t, string(b), "success")
	})
}
