package tplengine

import (
	"errors"
	"fmt"

	"github.com/flowforge/flowforge/engine/core"
)

// NewUtilError wraps a template-engine failure as a core.KindError tagged
// ErrKindUtil, per the failure-mode table in the template engine design.
func NewUtilError(msg string, cause error) error {
	if cause == nil {
		cause = errors.New(msg)
	} else {
		cause = fmt.Errorf("%s: %w", msg, cause)
	}
	return core.NewKindError(core.ErrKindUtil, cause)
}
