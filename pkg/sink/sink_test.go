package sink

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNopSinks(t *testing.T) {
	t.Run("Should discard trace events without error", func(t *testing.T) {
		require.NoError(t, NopTraceSink{}.Trace(context.Background(), TraceEvent{Message: "hi"}))
	})

	t.Run("Should discard audit records without error", func(t *testing.T) {
		require.NoError(t, NopAuditSink{}.Audit(context.Background(), AuditRecord{Name: "wf"}))
	})
}

func TestTraceSinkInterfaceSatisfiedByNop(t *testing.T) {
	var _ TraceSink = NopTraceSink{}
	var _ AuditSink = NopAuditSink{}
	assert.True(t, true)
}
