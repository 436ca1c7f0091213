package stage

import "github.com/flowforge/flowforge/engine/core"

// runEmpty is the no-op stage variant: it produces no outputs. Its echo
// text is not written anywhere; the trace event stage.Run emits carries
// only the stage's id and final status.
func runEmpty(spec Spec) (core.Output, error) {
	_ = spec.Echo
	return core.Output{}, nil
}
