// Package paramspec declares and validates a workflow's typed input
// parameters, coercing raw (typically YAML-decoded) values into the
// declared Go representation.
package paramspec

import (
	"fmt"
	"time"

	"github.com/flowforge/flowforge/engine/core"
)

// Kind is the closed set of parameter variants a Spec may declare.
type Kind string

const (
	KindString   Kind = "str"
	KindInt      Kind = "int"
	KindDate     Kind = "date"
	KindDateTime Kind = "datetime"
	KindChoice   Kind = "choice"
	KindMap      Kind = "map"
	KindArray    Kind = "array"
)

const (
	dateLayout     = "2006-01-02"
	dateTimeLayout = time.RFC3339
)

// Spec is one declared parameter: its variant, optional default/
// description, and (for KindChoice) the closed option list. A parameter
// with no Default is required unless Optional is set.
type Spec struct {
	Kind        Kind   `json:"kind" yaml:"kind"`
	Default     any    `json:"default,omitempty" yaml:"default,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Options     []any  `json:"options,omitempty" yaml:"options,omitempty"`
	Optional    bool   `json:"optional,omitempty" yaml:"optional,omitempty"`
}

// Declaration is the full named parameter set of a workflow.
type Declaration map[string]Spec

// Resolve coerces raw caller-supplied values against d, applying defaults
// for parameters the caller omitted and failing with an ErrKindParam error
// on any type mismatch or invalid choice.
func (d Declaration) Resolve(raw map[string]any) (core.Input, error) {
	out := make(core.Input, len(d))
	for name, spec := range d {
		val, present := raw[name]
		if !present {
			if spec.Default != nil {
				val = spec.Default
			} else if spec.Optional {
				continue
			} else {
				return nil, core.NewKindError(core.ErrKindParam, fmt.Errorf("param %q is required", name))
			}
		}
		coerced, err := spec.coerce(val)
		if err != nil {
			return nil, core.NewKindError(core.ErrKindParam, fmt.Errorf("param %q: %w", name, err))
		}
		out[name] = coerced
	}
	for name := range raw {
		if _, declared := d[name]; !declared {
			return nil, core.NewKindError(core.ErrKindParam, fmt.Errorf("param %q is not declared", name))
		}
	}
	return out, nil
}

// coerce converts val to the representation demanded by s.Kind,
// idempotently: passing an already-coerced value back through coerce
// yields an equal value.
func (s Spec) coerce(val any) (any, error) {
	switch s.Kind {
	case KindString:
		return coerceString(val)
	case KindInt:
		return coerceInt(val)
	case KindDate:
		return coerceTemporal(val, dateLayout)
	case KindDateTime:
		return coerceTemporal(val, dateTimeLayout)
	case KindChoice:
		return s.coerceChoice(val)
	case KindMap:
		return coerceMap(val)
	case KindArray:
		return coerceArray(val)
	default:
		return nil, fmt.Errorf("unknown param kind %q", s.Kind)
	}
}

func coerceString(val any) (any, error) {
	s, ok := val.(string)
	if !ok {
		return nil, fmt.Errorf("expected str, got %T", val)
	}
	return s, nil
}

func coerceInt(val any) (any, error) {
	switch v := val.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		if v != float64(int(v)) {
			return nil, fmt.Errorf("expected int, got non-integral float %v", v)
		}
		return int(v), nil
	default:
		return nil, fmt.Errorf("expected int, got %T", val)
	}
}

// coerceTemporal parses val as layout and re-formats it in that same
// layout, guaranteeing the ISO-8601 round-trip the spec requires.
func coerceTemporal(val any, layout string) (any, error) {
	switch v := val.(type) {
	case time.Time:
		return v.Format(layout), nil
	case string:
		t, err := time.Parse(layout, v)
		if err != nil {
			return nil, fmt.Errorf("expected ISO-8601 value matching %q: %w", layout, err)
		}
		return t.Format(layout), nil
	default:
		return nil, fmt.Errorf("expected ISO-8601 string, got %T", val)
	}
}

func (s Spec) coerceChoice(val any) (any, error) {
	for _, opt := range s.Options {
		if opt == val {
			return val, nil
		}
	}
	return nil, fmt.Errorf("value %v is not one of the declared options %v", val, s.Options)
}

func coerceMap(val any) (any, error) {
	m, ok := val.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected map, got %T", val)
	}
	return m, nil
}

func coerceArray(val any) (any, error) {
	a, ok := val.([]any)
	if !ok {
		return nil, fmt.Errorf("expected array, got %T", val)
	}
	return a, nil
}
