package stage

import (
	"context"
	"fmt"

	"github.com/flowforge/flowforge/engine/core"
)

// Dispatcher is the default VariantDispatcher, routing a stage attempt to
// its variant-specific runner.
type Dispatcher struct {
	Calls    *CallRegistry
	Triggers TriggerRunner
}

// NewDispatcher builds a Dispatcher. triggers may be nil if the host never
// runs Trigger stages (e.g. a single-workflow embedding).
func NewDispatcher(calls *CallRegistry, triggers TriggerRunner) *Dispatcher {
	if calls == nil {
		calls = NewCallRegistry()
	}
	return &Dispatcher{Calls: calls, Triggers: triggers}
}

// Dispatch implements VariantDispatcher.
func (d *Dispatcher) Dispatch(ctx context.Context, in Input) (core.Output, error) {
	switch in.Spec.Variant {
	case VariantEmpty:
		return runEmpty(in.Spec)
	case VariantBash:
		return runBash(ctx, in.Spec)
	case VariantEmbeddedScript:
		return runEmbeddedScript(in.Spec)
	case VariantCall:
		return d.Calls.Invoke(ctx, in.Spec)
	case VariantTrigger:
		if d.Triggers == nil {
			return nil, fmt.Errorf("trigger stages are not supported by this host")
		}
		out, err := d.Triggers.RunTriggered(ctx, in)
		return core.Output(out), err
	case VariantVirtualScript:
		return runVirtualScript(in.Spec)
	case VariantRaise:
		return runRaise(in.Spec, in.Context)
	case VariantDocker:
		return nil, fmt.Errorf("docker stage variant is reserved and not implemented")
	default:
		return nil, fmt.Errorf("unknown stage variant %q", in.Spec.Variant)
	}
}
