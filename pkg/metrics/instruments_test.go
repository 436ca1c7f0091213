package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestJobMetricsNilSafety(t *testing.T) {
	t.Run("Should no-op when the bundle is nil", func(t *testing.T) {
		var m *JobMetrics
		assert.NotPanics(t, func() {
			m.RecordJob(context.Background(), "wf", "job", "success", time.Second)
		})
	})
}

func TestStageMetricsNilSafety(t *testing.T) {
	t.Run("Should no-op when the bundle is nil", func(t *testing.T) {
		var m *StageMetrics
		assert.NotPanics(t, func() {
			m.RecordStage(context.Background(), "wf", "job", "stage", "bash", "success", time.Second)
		})
	})
}
