package stage

import (
	"fmt"

	"github.com/flowforge/flowforge/engine/core"
)

// runRaise always fails with a Stage error carrying spec.Message as
// declared. The message is not template-resolved: no caller in this module
// resolves a Spec's fields before dispatch, so `${{ }}` placeholders appear
// verbatim. ctx is accepted only for symmetry with other variants and is
// unused.
func runRaise(spec Spec, _ map[string]any) (core.Output, error) {
	return nil, fmt.Errorf("%s", spec.Message)
}
