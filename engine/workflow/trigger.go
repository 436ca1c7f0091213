package workflow

import (
	"context"
	"fmt"

	"github.com/flowforge/flowforge/engine/core"
	"github.com/flowforge/flowforge/engine/stage"
)

// RunTriggered implements stage.TriggerRunner: it resolves in.Spec.Trigger
// through d.Resolver and recursively runs it with in.Spec.Params. ctx is
// already derived from the parent release's CancelToken (stage.Run's retry
// loop calls Dispatch under in.Cancel.Context()), so the child's own token — minted
// fresh inside Run — inherits parent cancellation without the child ever
// contending for the parent's worker slot (spec §5 "the core is
// re-entrant").
func (d *Driver) RunTriggered(ctx context.Context, in stage.Input) (map[string]any, error) {
	if d.Resolver == nil {
		return nil, fmt.Errorf("trigger stage %q: no workflow resolver configured", in.Spec.ID)
	}
	target, err := d.Resolver.Resolve(in.Spec.Trigger)
	if err != nil {
		return nil, fmt.Errorf("trigger stage %q: resolving workflow %q: %w", in.Spec.ID, in.Spec.Trigger, err)
	}

	result, err := d.Run(ctx, target, in.Spec.Params, core.ParentRunID(in.RunID))
	if err != nil {
		return nil, fmt.Errorf("trigger stage %q: running workflow %q: %w", in.Spec.ID, in.Spec.Trigger, err)
	}
	if result.Status == core.StatusFailed {
		return result.Context, fmt.Errorf("trigger stage %q: workflow %q finished with status %s", in.Spec.ID, in.Spec.Trigger, result.Status)
	}
	return result.Context, nil
}
