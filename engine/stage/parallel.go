package stage

import (
	"context"
	"sync"

	"github.com/flowforge/flowforge/engine/core"
)

// ParallelNode runs every child concurrently and aggregates their statuses
// with the worst-of rule; outputs are keyed by child NodeID.
type ParallelNode struct {
	ID       string
	Children []Node
}

func (p ParallelNode) NodeID() string { return p.ID }

func (p ParallelNode) Run(ctx context.Context, nctx NodeContext) NodeResult {
	results := make([]NodeResult, len(p.Children))
	var wg sync.WaitGroup
	for i, child := range p.Children {
		wg.Add(1)
		go func(i int, child Node) {
			defer wg.Done()
			results[i] = child.Run(ctx, nctx)
		}(i, child)
	}
	wg.Wait()

	outputs := core.Output{}
	statuses := make([]core.Status, len(results))
	var firstErr error
	for i, r := range results {
		statuses[i] = r.Status
		outputs[p.Children[i].NodeID()] = r.Outputs
		if r.Err != nil && firstErr == nil {
			firstErr = r.Err
		}
	}
	return NodeResult{Status: core.WorstOf(statuses), Outputs: outputs, Err: firstErr}
}
