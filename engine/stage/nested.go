package stage

import (
	"context"

	"github.com/flowforge/flowforge/engine/core"
	"github.com/flowforge/flowforge/pkg/metrics"
	"github.com/flowforge/flowforge/pkg/sink"
	"github.com/flowforge/flowforge/pkg/tplengine"
)

// Node is anything the Nested Stage Executor can run: a single leaf Stage
// or a composite (Parallel/ForEach/Until/Case). Composing Nodes lets a job
// build an arbitrarily deep stage tree while every level shares the same
// condition/cancellation/templating plumbing.
type Node interface {
	NodeID() string
	Run(ctx context.Context, nctx NodeContext) NodeResult
}

// NodeContext is the shared environment threaded through a stage tree
// evaluation: the context-tree snapshot nested stages resolve templates
// and conditions against, plus the run identity and cooperative
// cancellation every level must honor.
type NodeContext struct {
	Context       map[string]any
	RunID         core.RunID
	ParentRunID   core.ParentRunID
	Cancel        *core.CancelToken
	Dispatch      VariantDispatcher
	ConditionEval ConditionEvaluator
	Template      *tplengine.Engine

	// Workflow and Job label stage metrics and trace events; Metrics and
	// Trace may both be left nil.
	Workflow string
	Job      string
	Metrics  *metrics.StageMetrics
	Trace    sink.TraceSink
}

// NodeResult is a composite or leaf node's outcome.
type NodeResult struct {
	Status  core.Status
	Outputs core.Output
	Err     error
}

// LeafNode adapts a single Spec into a Node, so the Nested Stage Executor
// can treat a plain stage exactly like any composite child.
type LeafNode struct {
	Spec Spec
}

func (l LeafNode) NodeID() string { return l.Spec.ID }

func (l LeafNode) Run(ctx context.Context, nctx NodeContext) NodeResult {
	res := Run(ctx, Input{
		Spec:          l.Spec,
		Context:       nctx.Context,
		RunID:         nctx.RunID,
		ParentRunID:   nctx.ParentRunID,
		Cancel:        nctx.Cancel,
		Dispatch:      nctx.Dispatch,
		ConditionEval: nctx.ConditionEval,
		Workflow:      nctx.Workflow,
		Job:           nctx.Job,
		Metrics:       nctx.Metrics,
		Trace:         nctx.Trace,
	})
	return NodeResult{Status: res.Status, Outputs: res.Outputs, Err: res.Err}
}

// withContextValue returns a shallow copy of base with key set to value,
// used to thread per-iteration/per-branch state (item, index, matrix) into
// a child Node's context without mutating the parent's.
func withContextValue(base map[string]any, key string, value any) map[string]any {
	out := make(map[string]any, len(base)+1)
	for k, v := range base {
		out[k] = v
	}
	out[key] = value
	return out
}

// mergeContext shallow-merges updates into a copy of base.
func mergeContext(base map[string]any, updates map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(updates))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range updates {
		out[k] = v
	}
	return out
}
