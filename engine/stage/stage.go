// Package stage runs a single workflow stage: the tagged-variant unit of
// work (bash script, embedded script, callable invocation, sub-workflow
// trigger, …) that a job executes in sequence.
package stage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/flowforge/flowforge/engine/core"
	"github.com/flowforge/flowforge/pkg/metrics"
	"github.com/flowforge/flowforge/pkg/sink"
)

// Variant is the closed set of stage kinds a Spec may declare.
type Variant string

const (
	VariantEmpty          Variant = "empty"
	VariantBash           Variant = "bash"
	VariantEmbeddedScript Variant = "embedded_script"
	VariantCall           Variant = "call"
	VariantTrigger        Variant = "trigger"
	VariantVirtualScript  Variant = "virtual_script"
	VariantRaise          Variant = "raise"
	VariantDocker         Variant = "docker"
)

// defaultRetryPause is the bounded pause applied between retry attempts
// when a Spec doesn't override it.
const defaultRetryPause = 5 * time.Second

// Spec declares one stage: its variant and the variant-specific fields
// needed to run it, plus the common pre-execution knobs every variant
// shares (condition, sleep, retry).
type Spec struct {
	ID        string
	Variant   Variant
	Condition string
	Sleep     time.Duration
	Retry     int
	RetryWait time.Duration

	Echo    string            // Empty
	Run     string            // Bash, Embedded-Script
	Env     core.EnvMap       // Bash
	Vars    map[string]any    // Embedded-Script, Virtual-Script
	Uses    string            // Call: "group/name@tag"
	Args    map[string]any    // Call
	Trigger string            // Trigger: target workflow name
	Params  map[string]any    // Trigger
	Version string            // Virtual-Script: interpreter/runtime version
	Deps    []string          // Virtual-Script: isolated dependency list
	Message string            // Raise
}

// Input bundles everything an Executor needs to run one stage attempt.
type Input struct {
	Spec          Spec
	Context       map[string]any
	RunID         core.RunID
	ParentRunID   core.ParentRunID
	Cancel        *core.CancelToken
	Dispatch      VariantDispatcher
	ConditionEval ConditionEvaluator

	// Workflow and Job label stage metrics and trace events; Metrics and
	// Trace may both be left nil.
	Workflow string
	Job      string
	Metrics  *metrics.StageMetrics
	Trace    sink.TraceSink
}

// Result is the outcome of running a stage to completion (including all
// retry attempts).
type Result struct {
	Status  core.Status
	Outputs core.Output
	Err     error
}

// VariantDispatcher runs one stage attempt by variant, implemented by each
// file in this package (empty.go, bash.go, …) and wired together in
// dispatch.go.
type VariantDispatcher interface {
	Dispatch(ctx context.Context, in Input) (core.Output, error)
}

// ConditionEvaluator evaluates a boolean expression against a context
// snapshot; engine/stage depends only on this narrow interface so the CEL
// implementation in condition.go can be swapped or mocked in tests.
type ConditionEvaluator interface {
	EvalBool(expr string, ctx map[string]any) (bool, error)
}

// Run executes the common pre-execution protocol (condition, sleep) and
// then dispatches by variant, applying the retry discipline for variants
// that declare Retry > 0.
func Run(ctx context.Context, in Input) Result {
	started := time.Now()
	res := run(ctx, in)
	duration := time.Since(started)
	in.Metrics.RecordStage(ctx, in.Workflow, in.Job, in.Spec.ID, string(in.Spec.Variant), string(res.Status), duration)
	traceStage(ctx, in, res, started, duration)
	return res
}

func traceStage(ctx context.Context, in Input, res Result, started time.Time, duration time.Duration) {
	if in.Trace == nil {
		return
	}
	exception := ""
	if res.Err != nil {
		exception = res.Err.Error()
	}
	_ = in.Trace.Trace(ctx, sink.TraceEvent{
		CutID:       uuid.NewString(),
		RunID:       in.RunID,
		ParentRunID: in.ParentRunID,
		Level:       traceLevel(res.Status),
		Message:     fmt.Sprintf("stage %q finished with status %s", in.Spec.ID, res.Status),
		Timestamp:   started,
		Workflow:    in.Workflow,
		Job:         in.Job,
		Stage:       in.Spec.ID,
		DurationMs:  duration.Milliseconds(),
		Exception:   exception,
	})
}

func traceLevel(status core.Status) string {
	switch status {
	case core.StatusFailed:
		return "error"
	case core.StatusCancel:
		return "warn"
	default:
		return "info"
	}
}

func run(ctx context.Context, in Input) Result {
	if in.Spec.Condition != "" {
		skip, err := in.ConditionEval.EvalBool(in.Spec.Condition, in.Context)
		if err != nil {
			return Result{Status: core.StatusFailed, Err: stageErr(in.Spec.ID, fmt.Errorf("condition evaluation failed: %w", err))}
		}
		if skip {
			return Result{Status: core.StatusSkip, Outputs: core.Output{}}
		}
	}
	if in.Spec.Sleep > 0 {
		select {
		case <-time.After(in.Spec.Sleep):
		case <-in.Cancel.Done():
			return Result{Status: core.StatusCancel, Err: in.Cancel.Cause()}
		}
	}
	return runWithRetry(ctx, in)
}

func runWithRetry(ctx context.Context, in Input) Result {
	wait := in.Spec.RetryWait
	if wait <= 0 {
		wait = defaultRetryPause
	}
	backoff := retry.WithMaxRetries(uint64(in.Spec.Retry), retry.NewConstant(wait))

	var outputs core.Output
	var dispatchErr error
	err := retry.Do(in.Cancel.Context(), backoff, func(ctx context.Context) error {
		outputs, dispatchErr = in.Dispatch.Dispatch(ctx, in)
		if dispatchErr == nil {
			return nil
		}
		return retry.RetryableError(dispatchErr)
	})
	if err == nil {
		return Result{Status: core.StatusSuccess, Outputs: outputs}
	}
	if in.Cancel.Fired() {
		return Result{Status: core.StatusCancel, Err: in.Cancel.Cause()}
	}
	return Result{Status: core.StatusFailed, Err: stageErr(in.Spec.ID, dispatchErr)}
}

func stageErr(id string, err error) error {
	return core.NewKindError(core.ErrKindStage, fmt.Errorf("stage %q: %w", id, err))
}
