package stage

import (
	"context"

	"github.com/flowforge/flowforge/engine/core"
)

// SequenceNode runs Children strictly in declaration order within one job
// strategy. After each child completes, its outputs and status are
// published into the context under both "stages.<id>" (a same-job
// shorthand) and "jobs.<JobID>.stages.<id>" (the fully-qualified path every
// template uses for cross-job references), so stage N+1 in this sequence
// can read stage N's outputs before SequenceNode itself returns. These
// writes go to a private copy of the context; other jobs see this job's
// results only through the JobContext published after it finishes.
type SequenceNode struct {
	ID       string
	JobID    string
	Children []Node
}

func (s SequenceNode) NodeID() string { return s.ID }

func (s SequenceNode) Run(ctx context.Context, nctx NodeContext) NodeResult {
	outputs := core.Output{}
	statuses := make([]core.Status, 0, len(s.Children))
	workCtx := cloneContext(nctx.Context)
	for _, child := range s.Children {
		select {
		case <-nctx.Cancel.Done():
			return NodeResult{Status: core.StatusCancel, Outputs: outputs, Err: nctx.Cancel.Cause()}
		default:
		}
		childNctx := nctx
		childNctx.Context = workCtx
		res := child.Run(ctx, childNctx)
		statuses = append(statuses, res.Status)
		outputs[child.NodeID()] = res.Outputs
		publishStage(workCtx, s.JobID, child.NodeID(), res.Outputs, res.Status)
		if res.Status == core.StatusFailed || res.Status == core.StatusCancel {
			return NodeResult{Status: res.Status, Outputs: outputs, Err: res.Err}
		}
	}
	return NodeResult{Status: core.WorstOf(statuses), Outputs: outputs}
}

func cloneContext(base map[string]any) map[string]any {
	out := make(map[string]any, len(base)+2)
	for k, v := range base {
		out[k] = v
	}
	return out
}

// publishStage writes a completed stage's outcome into both the same-job
// "stages" shorthand and the fully-qualified "jobs.<jobID>.stages" path.
func publishStage(ctx map[string]any, jobID, stageID string, outputs core.Output, status core.Status) {
	entry := map[string]any{"outputs": outputs.AsMap(), "status": string(status)}

	stages, _ := ctx["stages"].(map[string]any)
	if stages == nil {
		stages = make(map[string]any)
	} else {
		stages = cloneAnyMap(stages)
	}
	stages[stageID] = entry
	ctx["stages"] = stages

	jobs, _ := ctx["jobs"].(map[string]any)
	if jobs == nil {
		jobs = make(map[string]any)
	} else {
		jobs = cloneAnyMap(jobs)
	}
	job, _ := jobs[jobID].(map[string]any)
	if job == nil {
		job = make(map[string]any)
	} else {
		job = cloneAnyMap(job)
	}
	jobStages, _ := job["stages"].(map[string]any)
	if jobStages == nil {
		jobStages = make(map[string]any)
	} else {
		jobStages = cloneAnyMap(jobStages)
	}
	jobStages[stageID] = entry
	job["stages"] = jobStages
	jobs[jobID] = job
	ctx["jobs"] = jobs
}

func cloneAnyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}
