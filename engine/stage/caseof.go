package stage

import (
	"context"
	"fmt"

	"github.com/flowforge/flowforge/engine/core"
)

// CaseBranch is one condition/body pair of a CaseNode, evaluated in
// declaration order.
type CaseBranch struct {
	Condition string
	Body      Node
}

// CaseNode evaluates Branches in order and runs the first whose Condition
// is true, falling back to Default when none match. With no Default and
// no match, the node is SKIPped.
type CaseNode struct {
	ID       string
	Branches []CaseBranch
	Default  Node
}

func (c CaseNode) NodeID() string { return c.ID }

func (c CaseNode) Run(ctx context.Context, nctx NodeContext) NodeResult {
	for i, branch := range c.Branches {
		matched, err := nctx.ConditionEval.EvalBool(branch.Condition, nctx.Context)
		if err != nil {
			return NodeResult{Status: core.StatusFailed, Err: fmt.Errorf("case %q: branch %d: %w", c.ID, i, err)}
		}
		if matched {
			return branch.Body.Run(ctx, nctx)
		}
	}
	if c.Default != nil {
		return c.Default.Run(ctx, nctx)
	}
	return NodeResult{Status: core.StatusSkip, Outputs: core.Output{}}
}
