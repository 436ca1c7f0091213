package metrics

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// JobMetrics bundles the instruments recording one job's outcome inside a
// workflow run. A nil *JobMetrics is safe to call — every scheduler keeps
// one regardless of whether metrics collection is enabled.
type JobMetrics struct {
	durationHistogram metric.Float64Histogram
	counter           metric.Int64Counter
}

func newJobMetrics(meter metric.Meter) (*JobMetrics, error) {
	if meter == nil {
		return &JobMetrics{}, nil
	}
	duration, err := meter.Float64Histogram(
		MetricNameWithSubsystem("job", "duration_seconds"),
		metric.WithDescription("Duration of job executions"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(DurationBuckets...),
	)
	if err != nil {
		return nil, fmt.Errorf("creating job duration histogram: %w", err)
	}
	counter, err := meter.Int64Counter(
		MetricNameWithSubsystem("job", "total"),
		metric.WithDescription("Total job executions by outcome"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating job outcome counter: %w", err)
	}
	return &JobMetrics{durationHistogram: duration, counter: counter}, nil
}

// RecordJob records one job's duration and terminal status.
func (m *JobMetrics) RecordJob(ctx context.Context, workflow, job, status string, duration time.Duration) {
	if m == nil || m.durationHistogram == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("workflow", workflow),
		attribute.String("job", job),
		attribute.String("status", status),
	)
	m.durationHistogram.Record(ctx, duration.Seconds(), attrs)
	m.counter.Add(ctx, 1, attrs)
}

// StageMetrics bundles the instruments recording one stage attempt inside
// a job. A nil *StageMetrics is safe to call.
type StageMetrics struct {
	durationHistogram metric.Float64Histogram
	counter           metric.Int64Counter
}

func newStageMetrics(meter metric.Meter) (*StageMetrics, error) {
	if meter == nil {
		return &StageMetrics{}, nil
	}
	duration, err := meter.Float64Histogram(
		MetricNameWithSubsystem("stage", "duration_seconds"),
		metric.WithDescription("Duration of stage executions, including retries"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(DurationBuckets...),
	)
	if err != nil {
		return nil, fmt.Errorf("creating stage duration histogram: %w", err)
	}
	counter, err := meter.Int64Counter(
		MetricNameWithSubsystem("stage", "total"),
		metric.WithDescription("Total stage executions by variant and outcome"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating stage outcome counter: %w", err)
	}
	return &StageMetrics{durationHistogram: duration, counter: counter}, nil
}

// RecordStage records one stage's duration, variant, and terminal status.
func (m *StageMetrics) RecordStage(ctx context.Context, workflow, job, stageID, variant, status string, duration time.Duration) {
	if m == nil || m.durationHistogram == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("workflow", workflow),
		attribute.String("job", job),
		attribute.String("stage", stageID),
		attribute.String("variant", variant),
		attribute.String("status", status),
	)
	m.durationHistogram.Record(ctx, duration.Seconds(), attrs)
	m.counter.Add(ctx, 1, attrs)
}
