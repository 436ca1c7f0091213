package stage

import (
	"context"
	"fmt"
	"sync"

	"github.com/flowforge/flowforge/engine/core"
)

// Callable is a registered `group/name@tag` implementation invoked by a
// Call stage with its kwargs.
type Callable func(ctx context.Context, args map[string]any) (core.Output, error)

// CallRegistry resolves `uses` strings of the form "group/name@tag" to a
// registered Callable.
type CallRegistry struct {
	mu    sync.RWMutex
	funcs map[string]Callable
}

// NewCallRegistry builds an empty registry; hosts register their callables
// with Register before running any Call stages.
func NewCallRegistry() *CallRegistry {
	return &CallRegistry{funcs: make(map[string]Callable)}
}

// Register binds uses (e.g. "http/request@v1") to fn, overwriting any
// prior registration for the same key.
func (r *CallRegistry) Register(uses string, fn Callable) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.funcs[uses] = fn
}

// Invoke looks up spec.Uses and calls it with spec.Args.
func (r *CallRegistry) Invoke(ctx context.Context, spec Spec) (core.Output, error) {
	r.mu.RLock()
	fn, ok := r.funcs[spec.Uses]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no callable registered for %q", spec.Uses)
	}
	out, err := fn(ctx, spec.Args)
	if err != nil {
		return nil, fmt.Errorf("callable %q failed: %w", spec.Uses, err)
	}
	return out, nil
}
