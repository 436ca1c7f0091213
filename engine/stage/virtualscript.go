package stage

import (
	"fmt"

	"go.starlark.net/starlark"

	"github.com/flowforge/flowforge/engine/core"
)

// runVirtualScript executes spec.Run as Starlark in a hermetic
// go.starlark.net interpreter: no builtins beyond the language's own
// (no filesystem, no network, no process spawn), which stands in for the
// "isolated dependency environment" the spec describes as implementer-
// defined. Version/Deps are carried into the globals as metadata so a
// script can branch on its declared runtime, but this interpreter does not
// install or resolve them — see DESIGN.md for the mapping decision.
func runVirtualScript(spec Spec) (core.Output, error) {
	predeclared := starlark.StringDict{
		"version": starlark.String(spec.Version),
		"deps":    depsToStarlark(spec.Deps),
	}
	for name, val := range spec.Vars {
		sv, err := toStarlark(val)
		if err != nil {
			return nil, fmt.Errorf("converting virtual-script var %q: %w", name, err)
		}
		predeclared[name] = sv
	}
	thread := &starlark.Thread{Name: "virtual-script"}
	globals, err := starlark.ExecFile(thread, "<virtual-script>", spec.Run, predeclared)
	if err != nil {
		return nil, fmt.Errorf("running virtual script: %w", err)
	}
	out := core.Output{}
	for name, val := range globals {
		if _, wasInput := predeclared[name]; wasInput {
			continue
		}
		native, err := fromStarlark(val)
		if err != nil {
			return nil, fmt.Errorf("exporting virtual-script global %q: %w", name, err)
		}
		out[name] = native
	}
	return out, nil
}

func depsToStarlark(deps []string) *starlark.List {
	items := make([]starlark.Value, len(deps))
	for i, d := range deps {
		items[i] = starlark.String(d)
	}
	return starlark.NewList(items)
}

func toStarlark(val any) (starlark.Value, error) {
	switch v := val.(type) {
	case nil:
		return starlark.None, nil
	case bool:
		return starlark.Bool(v), nil
	case string:
		return starlark.String(v), nil
	case int:
		return starlark.MakeInt(v), nil
	case int64:
		return starlark.MakeInt64(v), nil
	case float64:
		return starlark.Float(v), nil
	case []any:
		items := make([]starlark.Value, len(v))
		for i, item := range v {
			sv, err := toStarlark(item)
			if err != nil {
				return nil, err
			}
			items[i] = sv
		}
		return starlark.NewList(items), nil
	case map[string]any:
		dict := starlark.NewDict(len(v))
		for k, item := range v {
			sv, err := toStarlark(item)
			if err != nil {
				return nil, err
			}
			if err := dict.SetKey(starlark.String(k), sv); err != nil {
				return nil, err
			}
		}
		return dict, nil
	default:
		return nil, fmt.Errorf("unsupported value type %T", val)
	}
}

func fromStarlark(val starlark.Value) (any, error) {
	switch v := val.(type) {
	case starlark.NoneType:
		return nil, nil
	case starlark.Bool:
		return bool(v), nil
	case starlark.String:
		return string(v), nil
	case starlark.Int:
		i, ok := v.Int64()
		if !ok {
			return nil, fmt.Errorf("integer %s overflows int64", v.String())
		}
		return i, nil
	case starlark.Float:
		return float64(v), nil
	case *starlark.List:
		out := make([]any, v.Len())
		for i := 0; i < v.Len(); i++ {
			item, err := fromStarlark(v.Index(i))
			if err != nil {
				return nil, err
			}
			out[i] = item
		}
		return out, nil
	case *starlark.Dict:
		out := make(map[string]any, v.Len())
		for _, item := range v.Items() {
			k, ok := item[0].(starlark.String)
			if !ok {
				return nil, fmt.Errorf("non-string dict key %v", item[0])
			}
			val, err := fromStarlark(item[1])
			if err != nil {
				return nil, err
			}
			out[string(k)] = val
		}
		return out, nil
	case *starlark.Function, *starlark.Builtin:
		return "<function>", nil
	default:
		return v.String(), nil
	}
}
