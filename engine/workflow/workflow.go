// Package workflow assembles a workflow's declared jobs into a runnable
// DAG, validates and templates its params, drives one release end to end
// through the job scheduler, and supports replay-based reruns.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/flowforge/flowforge/engine/core"
	"github.com/flowforge/flowforge/engine/event"
	"github.com/flowforge/flowforge/engine/jobrunner"
	"github.com/flowforge/flowforge/engine/paramspec"
	"github.com/flowforge/flowforge/engine/scheduler"
	"github.com/flowforge/flowforge/engine/stage"
	"github.com/flowforge/flowforge/engine/strategy"
	"github.com/flowforge/flowforge/pkg/metrics"
	"github.com/flowforge/flowforge/pkg/sink"
	"github.com/flowforge/flowforge/pkg/tplengine"
)

// DefaultTimeout is the end-to-end workflow-level deadline applied when a
// Spec doesn't override it (spec §4.6 step 7).
const DefaultTimeout = time.Hour

// JobSpec is one declared job: its dependency edges, trigger gate, the
// runs_on capability it requires, and the stage tree jobrunner executes.
type JobSpec struct {
	ID          string
	Needs       []string
	TriggerRule scheduler.TriggerRule
	Condition   string
	RunsOn      string
	Root        stage.Node
	Matrix      *strategy.Matrix
	MaxParallel int
	FailFast    bool
}

// Spec is one workflow's full declaration.
type Spec struct {
	Name        string
	Description string
	Params      paramspec.Declaration
	Event       *event.Spec
	Jobs        []JobSpec
	Trigger     string // set only on the synthetic spec a Trigger stage resolves to
	Timeout     time.Duration
	MaxParallel int
}

// Result is the outcome of one release, matching spec §6's Result shape.
type Result struct {
	Status      core.Status
	Context     map[string]any
	RunID       core.RunID
	ParentRunID core.ParentRunID
	Errors      []core.ErrorRecord
	StartedAt   time.Time
	EndedAt     time.Time
}

// Resolver looks up a Spec by workflow name, used by Trigger stages and
// by Release to find the workflow a cron fire time belongs to.
type Resolver interface {
	Resolve(name string) (Spec, error)
}

// Driver runs workflows: validating params, invoking the Job Scheduler,
// and assembling the final Result.
type Driver struct {
	Registry  *jobrunner.Registry
	Condition stage.ConditionEvaluator
	Dispatch  stage.VariantDispatcher
	Template  *tplengine.Engine
	Resolver  Resolver

	// Metrics is optional; a nil Metrics leaves every job/stage recording
	// call site a no-op.
	Metrics *metrics.Service

	// Trace and Audit are optional; both default to a discarding sink when
	// left nil so every call site stays branch-free.
	Trace sink.TraceSink
	Audit sink.AuditSink
}

func (d *Driver) trace() sink.TraceSink {
	if d.Trace == nil {
		return sink.NopTraceSink{}
	}
	return d.Trace
}

func (d *Driver) audit() sink.AuditSink {
	if d.Audit == nil {
		return sink.NopAuditSink{}
	}
	return d.Audit
}

// New builds a Driver. resolver may be nil if the workflow set never uses
// Trigger stages. Dispatch is typically a *stage.Dispatcher constructed
// with this same Driver wired in as its TriggerRunner.
func New(registry *jobrunner.Registry, cond stage.ConditionEvaluator, dispatch stage.VariantDispatcher, tpl *tplengine.Engine, resolver Resolver) *Driver {
	return &Driver{Registry: registry, Condition: cond, Dispatch: dispatch, Template: tpl, Resolver: resolver}
}

// Run validates rawParams against spec's declared params, builds the
// initial context, and drives the job DAG to completion.
func (d *Driver) Run(ctx context.Context, spec Spec, rawParams map[string]any, parent core.ParentRunID) (Result, error) {
	started := time.Now()
	params, err := spec.Params.Resolve(rawParams)
	if err != nil {
		return Result{
			Status:      core.StatusFailed,
			ParentRunID: parent,
			Errors:      []core.ErrorRecord{core.NewErrorRecord(spec.Name, core.ErrKindParam, err)},
			StartedAt:   started,
			EndedAt:     time.Now(),
		}, err
	}
	runID, err := core.NewRunID(spec.Name, rawParams)
	if err != nil {
		return Result{}, err
	}

	tree := core.NewContextTree(params)
	timeout := spec.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	deadlineCtx, cancelDeadline := context.WithTimeout(ctx, timeout)
	defer cancelDeadline()
	tok, release := core.NewCancelToken(deadlineCtx)
	defer release()

	nodes := make([]scheduler.Node, 0, len(spec.Jobs))
	for _, job := range spec.Jobs {
		job := job
		nodes = append(nodes, scheduler.Node{
			ID:          job.ID,
			Needs:       job.Needs,
			TriggerRule: job.TriggerRule,
			Run: func(runCtx context.Context) core.Status {
				return d.runJob(runCtx, spec.Name, job, tree, runID, tok)
			},
		})
	}

	maxParallel := spec.MaxParallel
	if maxParallel <= 0 {
		maxParallel = scheduler.DefaultMaxParallel
	}
	statuses, schedErr := scheduler.Run(deadlineCtx, nodes, scheduler.Config{MaxParallel: maxParallel, Workflow: spec.Name, Metrics: d.Metrics.JobMetrics()}, tok)

	// A job the scheduler skipped for a trigger-rule mismatch never calls
	// runJob, so its slot is still unwritten; publish it here so the
	// context tree always has one entry per declared job.
	for id, st := range statuses {
		if _, ok := tree.Job(id); !ok {
			tree.SetJob(id, core.JobContext{Status: st})
		}
	}

	status := d.aggregateStatus(tree, schedErr)
	tree.SetStatus(status)
	if schedErr != nil {
		tree.AddError(core.NewErrorRecord(spec.Name, core.ErrKindWorkflow, schedErr))
	}

	result := Result{
		Status:      status,
		Context:     tree.Snapshot(),
		RunID:       runID,
		ParentRunID: parent,
		Errors:      tree.Errors,
		StartedAt:   started,
		EndedAt:     time.Now(),
	}
	d.recordAudit(ctx, spec.Name, result)
	return result, nil
}

// recordAudit writes one AuditRecord per completed release, regardless of
// outcome, through d.Audit (or discards it when no audit sink is wired).
func (d *Driver) recordAudit(ctx context.Context, workflowName string, result Result) {
	_ = d.audit().Audit(ctx, sink.AuditRecord{
		Name:        workflowName,
		Type:        string(result.Status),
		Release:     result.StartedAt,
		Context:     result.Context,
		RunID:       result.RunID,
		ParentRunID: result.ParentRunID,
		UpdatedAt:   result.EndedAt,
	})
}

func (d *Driver) aggregateStatus(tree *core.ContextTree, schedErr error) core.Status {
	if schedErr != nil {
		if stageErr, ok := asCancelCause(schedErr); ok && stageErr {
			return core.StatusCancel
		}
		return core.StatusFailed
	}
	statuses := make([]core.Status, 0, len(tree.Jobs))
	allCancel := len(tree.Jobs) > 0
	for _, jc := range tree.Jobs {
		statuses = append(statuses, jc.Status)
		if jc.Status != core.StatusCancel {
			allCancel = false
		}
	}
	worst := core.WorstOf(statuses)
	if worst != core.StatusSuccess && allCancel {
		return core.StatusCancel
	}
	if worst == core.StatusSkip {
		return core.StatusSuccess
	}
	return worst
}

func asCancelCause(err error) (bool, bool) {
	if errors.Is(err, core.ErrCanceled) {
		return true, true
	}
	if errors.Is(err, core.ErrTimedOut) {
		return false, true
	}
	return false, false
}

// ReleaseType distinguishes a cron-driven release from a manually forced
// one in the release bundle template-injected into params.
type ReleaseType string

const (
	ReleaseScheduled ReleaseType = "scheduled"
	ReleaseManual    ReleaseType = "manual"
)

// Release validates releaseTime against spec's declared cron schedules
// (tolerance: truncated to the minute), template-injects the release
// bundle {logical_date, release_type} into params, and runs the workflow.
func (d *Driver) Release(ctx context.Context, spec Spec, releaseTime time.Time, releaseType ReleaseType, rawParams map[string]any) (Result, error) {
	if spec.Event == nil || len(spec.Event.Schedules) == 0 {
		return Result{}, core.NewKindError(core.ErrKindSchedule, fmt.Errorf("workflow %q declares no cron schedules", spec.Name))
	}
	compiled, err := spec.Event.Compile()
	if err != nil {
		return Result{}, err
	}
	truncated := releaseTime.Truncate(time.Minute)
	matched := false
	for _, sched := range compiled.Schedules {
		candidate := sched.Next(truncated.Add(-time.Second))
		if candidate.Equal(truncated) {
			matched = true
			break
		}
	}
	if !matched {
		return Result{}, core.NewKindError(core.ErrKindSchedule,
			fmt.Errorf("release time %s does not match any cron schedule declared by workflow %q", releaseTime.Format(time.RFC3339), spec.Name))
	}

	params := make(map[string]any, len(rawParams)+1)
	for k, v := range rawParams {
		params[k] = v
	}
	params["logical_date"] = truncated.Format(time.RFC3339)
	params["release_type"] = string(releaseType)

	return d.Run(ctx, spec, params, "")
}

// Rerun replays prior's successful jobs from their recorded outputs
// (rather than re-executing them) and recomputes every job whose prior
// terminal status was not SUCCESS along with all of that job's downstream
// jobs, per spec §4.7 step 5 and §8's replay round-trip law. forced names
// jobs to re-execute even though their prior status was SUCCESS.
func (d *Driver) Rerun(ctx context.Context, spec Spec, prior Result, forced map[string]bool) (Result, error) {
	priorJobs, _ := prior.Context["jobs"].(map[string]any)
	priorParams, _ := prior.Context["params"].(map[string]any)

	recompute := jobsToRecompute(spec, priorJobs, forced)

	started := time.Now()
	runID, err := core.NewRunID(spec.Name, prior.RunID)
	if err != nil {
		return Result{}, err
	}
	params, err := spec.Params.Resolve(priorParams)
	if err != nil {
		return Result{}, err
	}
	tree := core.NewContextTree(params)

	timeout := spec.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	deadlineCtx, cancelDeadline := context.WithTimeout(ctx, timeout)
	defer cancelDeadline()
	tok, release := core.NewCancelToken(deadlineCtx)
	defer release()

	nodes := make([]scheduler.Node, 0, len(spec.Jobs))
	for _, job := range spec.Jobs {
		job := job
		if !recompute[job.ID] {
			replayed := replayJobContext(priorJobs, job.ID)
			nodes = append(nodes, scheduler.Node{
				ID: job.ID, Needs: job.Needs, TriggerRule: job.TriggerRule,
				Run: func(context.Context) core.Status {
					tree.SetJob(job.ID, replayed)
					return replayed.Status
				},
			})
			continue
		}
		nodes = append(nodes, scheduler.Node{
			ID:          job.ID,
			Needs:       job.Needs,
			TriggerRule: job.TriggerRule,
			Run: func(runCtx context.Context) core.Status {
				return d.runJob(runCtx, spec.Name, job, tree, runID, tok)
			},
		})
	}

	maxParallel := spec.MaxParallel
	if maxParallel <= 0 {
		maxParallel = scheduler.DefaultMaxParallel
	}
	statuses, schedErr := scheduler.Run(deadlineCtx, nodes, scheduler.Config{MaxParallel: maxParallel, Workflow: spec.Name, Metrics: d.Metrics.JobMetrics()}, tok)
	for id, st := range statuses {
		if _, ok := tree.Job(id); !ok {
			tree.SetJob(id, core.JobContext{Status: st})
		}
	}

	status := d.aggregateStatus(tree, schedErr)
	tree.SetStatus(status)
	if schedErr != nil {
		tree.AddError(core.NewErrorRecord(spec.Name, core.ErrKindWorkflow, schedErr))
	}
	result := Result{
		Status:    status,
		Context:   tree.Snapshot(),
		RunID:     runID,
		Errors:    tree.Errors,
		StartedAt: started,
		EndedAt:   time.Now(),
	}
	d.recordAudit(ctx, spec.Name, result)
	return result, nil
}

// jobsToRecompute is the set of job IDs that must re-execute: any job
// whose prior status wasn't SUCCESS, any job explicitly forced, and every
// transitive downstream of either.
func jobsToRecompute(spec Spec, priorJobs map[string]any, forced map[string]bool) map[string]bool {
	dependents := make(map[string][]string)
	for _, j := range spec.Jobs {
		for _, dep := range j.Needs {
			dependents[dep] = append(dependents[dep], j.ID)
		}
	}
	recompute := make(map[string]bool, len(spec.Jobs))
	var mark func(id string)
	mark = func(id string) {
		if recompute[id] {
			return
		}
		recompute[id] = true
		for _, dep := range dependents[id] {
			mark(dep)
		}
	}
	for _, j := range spec.Jobs {
		entry, ok := priorJobs[j.ID].(map[string]any)
		priorStatus, _ := entry["status"].(string)
		if !ok || core.Status(priorStatus) != core.StatusSuccess || forced[j.ID] {
			mark(j.ID)
		}
	}
	return recompute
}

// replayJobContext reconstructs a prior job's JobContext from the prior
// release's context-tree snapshot, without re-executing any of its stages.
func replayJobContext(priorJobs map[string]any, jobID string) core.JobContext {
	entry, ok := priorJobs[jobID].(map[string]any)
	if !ok {
		return core.JobContext{Status: core.StatusSkip}
	}
	status, _ := entry["status"].(string)
	jc := core.JobContext{Status: core.Status(status)}
	if stages, ok := entry["stages"].(map[string]any); ok {
		jc.Stages = make(map[string]core.StageContext, len(stages))
		for id, raw := range stages {
			sc, _ := raw.(map[string]any)
			outputs, _ := sc["outputs"].(map[string]any)
			st, _ := sc["status"].(string)
			jc.Stages[id] = core.StageContext{Outputs: core.Output(outputs), Status: core.Status(st)}
		}
	}
	if strategies, ok := entry["strategies"].(map[string]any); ok {
		jc.Strategies = make(map[string]core.JobContext, len(strategies))
		for key, raw := range strategies {
			inner, _ := raw.(map[string]any)
			st, _ := inner["status"].(string)
			jc.Strategies[key] = core.JobContext{Status: core.Status(st)}
		}
	}
	return jc
}

// runJob executes one job via its selected runner and publishes its
// JobContext into tree.
func (d *Driver) runJob(ctx context.Context, workflowName string, job JobSpec, tree *core.ContextTree, runID core.RunID, tok *core.CancelToken) core.Status {
	snapshot := tree.Snapshot()
	if job.Condition != "" {
		skip, err := d.Condition.EvalBool(job.Condition, snapshot)
		if err != nil {
			tree.AddError(core.NewErrorRecord(job.ID, core.ErrKindJob, err))
			tree.SetJob(job.ID, core.JobContext{Status: core.StatusFailed})
			return core.StatusFailed
		}
		if skip {
			tree.SetJob(job.ID, core.JobContext{Status: core.StatusSkip})
			return core.StatusSkip
		}
	}

	runner, err := d.Registry.Select(job.RunsOn)
	if err != nil {
		tree.AddError(core.NewErrorRecord(job.ID, core.ErrKindJob, err))
		tree.SetJob(job.ID, core.JobContext{Status: core.StatusFailed})
		return core.StatusFailed
	}

	spec := jobrunner.Spec{ID: job.ID, Root: job.Root, Matrix: job.Matrix, MaxParallel: job.MaxParallel, FailFast: job.FailFast}

	nctx := stage.NodeContext{
		Context:       snapshot,
		RunID:         runID,
		Cancel:        tok,
		Dispatch:      d.Dispatch,
		ConditionEval: d.Condition,
		Template:      d.Template,
		Workflow:      workflowName,
		Job:           job.ID,
		Metrics:       d.Metrics.StageMetrics(),
		Trace:         d.trace(),
	}
	jc := runner.Run(ctx, spec, nctx)
	tree.SetJob(job.ID, jc)
	if jc.Status == core.StatusFailed {
		tree.AddError(core.NewErrorRecord(job.ID, core.ErrKindJob, fmt.Errorf("job %q in workflow %q failed", job.ID, workflowName)))
	}
	return jc.Status
}
