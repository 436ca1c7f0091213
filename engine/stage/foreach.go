package stage

import (
	"context"
	"fmt"
	"strconv"

	"github.com/flowforge/flowforge/engine/core"
)

// ForEachNode resolves ItemsExpr to a list and runs Body once per item,
// sequentially, exposing "item" and "index" in each iteration's context.
type ForEachNode struct {
	ID         string
	ItemsExpr  string
	Body       Node
}

func (f ForEachNode) NodeID() string { return f.ID }

func (f ForEachNode) Run(ctx context.Context, nctx NodeContext) NodeResult {
	resolved, err := nctx.Template.Resolve(f.ItemsExpr, nctx.Context)
	if err != nil {
		return NodeResult{Status: core.StatusFailed, Err: fmt.Errorf("foreach %q: resolving items: %w", f.ID, err)}
	}
	items, ok := resolved.([]any)
	if !ok {
		return NodeResult{Status: core.StatusFailed, Err: fmt.Errorf("foreach %q: items expression did not resolve to a list, got %T", f.ID, resolved)}
	}
	outputs := core.Output{}
	statuses := make([]core.Status, 0, len(items))
	for i, item := range items {
		select {
		case <-nctx.Cancel.Done():
			return NodeResult{Status: core.StatusCancel, Err: nctx.Cancel.Cause()}
		default:
		}
		iterCtx := nctx
		iterCtx.Context = withContextValue(withContextValue(nctx.Context, "item", item), "index", i)
		res := f.Body.Run(ctx, iterCtx)
		statuses = append(statuses, res.Status)
		outputs[strconv.Itoa(i)] = res.Outputs
		if res.Status == core.StatusFailed {
			return NodeResult{Status: core.StatusFailed, Outputs: outputs, Err: res.Err}
		}
	}
	return NodeResult{Status: core.WorstOf(statuses), Outputs: outputs}
}
