package stage

import (
	"context"
	"fmt"
	"strconv"

	"github.com/flowforge/flowforge/engine/core"
)

// UntilNode runs Body repeatedly, threading each iteration's outputs back
// into the context for the next, until Condition evaluates true or
// MaxLoop iterations have run. InitialContext seeds the loop variables
// (e.g. {"item": 0}) the example in spec §3 describes.
type UntilNode struct {
	ID             string
	Condition      string
	Body           Node
	MaxLoop        int
	InitialContext map[string]any
}

func (u UntilNode) NodeID() string { return u.ID }

func (u UntilNode) Run(ctx context.Context, nctx NodeContext) NodeResult {
	iterCtx := mergeContext(nctx.Context, u.InitialContext)
	outputs := core.Output{}
	for i := 0; i < u.MaxLoop; i++ {
		select {
		case <-nctx.Cancel.Done():
			return NodeResult{Status: core.StatusCancel, Outputs: outputs, Err: nctx.Cancel.Cause()}
		default:
		}
		bodyNctx := nctx
		bodyNctx.Context = iterCtx
		res := u.Body.Run(ctx, bodyNctx)
		outputs[strconv.Itoa(i)] = res.Outputs
		if res.Status == core.StatusFailed {
			return NodeResult{Status: core.StatusFailed, Outputs: outputs, Err: res.Err}
		}
		iterCtx = mergeContext(iterCtx, res.Outputs)
		done, err := nctx.ConditionEval.EvalBool(u.Condition, iterCtx)
		if err != nil {
			return NodeResult{Status: core.StatusFailed, Outputs: outputs, Err: fmt.Errorf("until %q: evaluating condition: %w", u.ID, err)}
		}
		if done {
			return NodeResult{Status: core.StatusSuccess, Outputs: outputs}
		}
	}
	return NodeResult{
		Status:  core.StatusFailed,
		Outputs: outputs,
		Err:     fmt.Errorf("until %q: exceeded max_loop (%d) without satisfying condition %q", u.ID, u.MaxLoop, u.Condition),
	}
}
