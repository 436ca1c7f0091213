// Package jobrunner executes a single job: expanding its strategy matrix
// (if any), running its stage tree once per combination, and merging the
// per-combination outputs back into one JobContext.
package jobrunner

import (
	"context"
	"fmt"
	"sync"

	"github.com/flowforge/flowforge/engine/core"
	"github.com/flowforge/flowforge/engine/stage"
	"github.com/flowforge/flowforge/engine/strategy"
)

// defaultMaxParallel bounds concurrent strategy execution when a job
// declares a matrix but no explicit max_parallel (spec §4.4 caps it at 9).
const defaultMaxParallel = 9

// Spec is one job's declaration: its stage tree and optional matrix.
type Spec struct {
	ID          string
	Root        stage.Node
	Matrix      *strategy.Matrix
	MaxParallel int  // bounds concurrent strategy combos; <=0 uses defaultMaxParallel
	FailFast    bool // cancel remaining combos once one terminates non-SUCCESS/non-SKIP
}

// Runner executes a job. LocalRunner is the only implementation shipped;
// the interface exists so a host can swap in a remote/"runs_on"-routed
// runner without touching the scheduler.
type Runner interface {
	// Capability reports the labels this runner can execute jobs for
	// (the spec's "runs_on" capability match).
	Capability() []string
	Run(ctx context.Context, spec Spec, nctx stage.NodeContext) core.JobContext
}

// LocalRunner runs a job's stage tree in-process, once per expanded
// strategy combination (or once, with no matrix, when Spec.Matrix is nil).
type LocalRunner struct {
	Labels []string
}

// NewLocalRunner builds a LocalRunner advertising the given runs_on labels.
func NewLocalRunner(labels ...string) *LocalRunner {
	return &LocalRunner{Labels: labels}
}

func (r *LocalRunner) Capability() []string { return r.Labels }

// Run implements Runner.
func (r *LocalRunner) Run(ctx context.Context, spec Spec, nctx stage.NodeContext) core.JobContext {
	if spec.Matrix == nil {
		res := spec.Root.Run(ctx, nctx)
		return core.JobContext{
			Status: res.Status,
			Stages: map[string]core.StageContext{spec.Root.NodeID(): {Outputs: toOutput(res.Outputs), Status: res.Status}},
		}
	}
	combos, err := strategy.Expand(*spec.Matrix)
	if err != nil {
		return core.JobContext{Status: core.StatusFailed}
	}

	maxParallel := spec.MaxParallel
	if maxParallel <= 0 {
		maxParallel = defaultMaxParallel
	}

	cancel := nctx.Cancel
	var failed bool
	var mu sync.Mutex
	strategies := make(map[string]core.JobContext, len(combos))
	statuses := make([]core.Status, 0, len(combos))

	sem := make(chan struct{}, maxParallel)
	var wg sync.WaitGroup
	for _, combo := range combos {
		wg.Add(1)
		sem <- struct{}{}
		go func(combo strategy.Combo) {
			defer wg.Done()
			defer func() { <-sem }()
			select {
			case <-cancel.Done():
				mu.Lock()
				statuses = append(statuses, core.StatusCancel)
				strategies[combo.Key] = core.JobContext{Status: core.StatusCancel}
				mu.Unlock()
				return
			default:
			}
			comboCtx := nctx
			comboCtx.Context = mergeMatrixContext(nctx.Context, combo.Values)
			res := spec.Root.Run(ctx, comboCtx)
			mu.Lock()
			statuses = append(statuses, res.Status)
			strategies[combo.Key] = core.JobContext{
				Status: res.Status,
				Stages: map[string]core.StageContext{spec.Root.NodeID(): {Outputs: toOutput(res.Outputs), Status: res.Status}},
			}
			if spec.FailFast && res.Status != core.StatusSuccess && res.Status != core.StatusSkip {
				failed = true
			}
			mu.Unlock()
			if spec.FailFast {
				mu.Lock()
				shouldCancel := failed
				mu.Unlock()
				if shouldCancel {
					cancel.Cancel()
				}
			}
		}(combo)
	}
	wg.Wait()
	return core.JobContext{Status: core.WorstOf(statuses), Strategies: strategies}
}

func mergeMatrixContext(base map[string]any, matrix map[string]any) map[string]any {
	out := make(map[string]any, len(base)+1)
	for k, v := range base {
		out[k] = v
	}
	out["matrix"] = matrix
	return out
}

func toOutput(o core.Output) core.Output {
	if o == nil {
		return core.Output{}
	}
	return o
}

// ErrNoCapableRunner is returned by a registry lookup when no runner
// advertises the requested runs_on label.
var ErrNoCapableRunner = fmt.Errorf("no runner advertises the requested runs_on label")

// Registry selects a Runner by runs_on label.
type Registry struct {
	runners []Runner
}

// NewRegistry builds a Registry over the given runners, tried in order.
func NewRegistry(runners ...Runner) *Registry {
	return &Registry{runners: runners}
}

// Select returns the first registered runner advertising label, or the
// first registered runner if label is empty (host-default capability).
func (r *Registry) Select(label string) (Runner, error) {
	for _, runner := range r.runners {
		if label == "" {
			return runner, nil
		}
		for _, cap := range runner.Capability() {
			if cap == label {
				return runner, nil
			}
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrNoCapableRunner, label)
}
