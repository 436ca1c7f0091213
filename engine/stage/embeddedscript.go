package stage

import (
	"fmt"

	"github.com/robertkrimen/otto"

	"github.com/flowforge/flowforge/engine/core"
)

// runEmbeddedScript executes spec.Run as JavaScript in a sandboxed
// robertkrimen/otto interpreter. otto ships no "require"/module loader, so
// the security constraint against filesystem/process primitives holds by
// construction rather than by an explicit block-list.
func runEmbeddedScript(spec Spec) (core.Output, error) {
	vm := otto.New()
	for name, val := range spec.Vars {
		if err := vm.Set(name, val); err != nil {
			return nil, fmt.Errorf("setting embedded script var %q: %w", name, err)
		}
	}
	before, err := globalSnapshot(vm)
	if err != nil {
		return nil, fmt.Errorf("snapshotting embedded script globals: %w", err)
	}
	if _, err := vm.Run(spec.Run); err != nil {
		return nil, fmt.Errorf("running embedded script: %w", err)
	}
	after, err := globalSnapshot(vm)
	if err != nil {
		return nil, fmt.Errorf("snapshotting embedded script globals: %w", err)
	}
	return diffExports(vm, before, after)
}

// globalSnapshot lists the enumerable own-property names of the VM's
// global object at the point it is called.
func globalSnapshot(vm *otto.Otto) (map[string]bool, error) {
	keysVal, err := vm.Run("Object.keys(this)")
	if err != nil {
		return nil, err
	}
	exported, err := keysVal.Export()
	if err != nil {
		return nil, err
	}
	set := make(map[string]bool)
	switch names := exported.(type) {
	case []string:
		for _, n := range names {
			set[n] = true
		}
	case []any:
		for _, n := range names {
			if s, ok := n.(string); ok {
				set[s] = true
			}
		}
	}
	return set, nil
}

// diffExports captures every name present after running the script but
// absent before it ran: these are the script's exported top-level names.
func diffExports(vm *otto.Otto, before, after map[string]bool) (core.Output, error) {
	out := core.Output{}
	for name := range after {
		if before[name] {
			continue
		}
		val, err := vm.Get(name)
		if err != nil {
			return nil, fmt.Errorf("reading exported name %q: %w", name, err)
		}
		if val.IsFunction() {
			out[name] = "<function>"
			continue
		}
		native, err := val.Export()
		if err != nil {
			return nil, fmt.Errorf("exporting value %q: %w", name, err)
		}
		out[name] = native
	}
	return out, nil
}
