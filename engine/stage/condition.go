package stage

import (
	"fmt"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
)

// CELEvaluator evaluates condition/case/until boolean expressions using
// google/cel-go, caching compiled programs in a ristretto cache keyed by
// expression text — condition/case/until strings repeat across iterations
// of the same ForEach/Until stage, so recompilation would otherwise be the
// dominant cost of a tight loop.
type CELEvaluator struct {
	env   *cel.Env
	cache *ristretto.Cache[string, cel.Program]
}

// NewCELEvaluator builds a CELEvaluator declaring six dynamically typed
// top-level variables (params, jobs, status, item, index, matrix), so
// expressions can reference "params.x", "jobs.j1.status", etc. without a
// fixed schema. Other context keys (such as "stages") are not declared and
// cannot be referenced.
func NewCELEvaluator() (*CELEvaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("params", cel.DynType),
		cel.Variable("jobs", cel.DynType),
		cel.Variable("status", cel.DynType),
		cel.Variable("item", cel.DynType),
		cel.Variable("index", cel.DynType),
		cel.Variable("matrix", cel.DynType),
	)
	if err != nil {
		return nil, fmt.Errorf("building CEL environment: %w", err)
	}
	cache, err := ristretto.NewCache(&ristretto.Config[string, cel.Program]{
		NumCounters: 10_000,
		MaxCost:     1_000,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("building CEL program cache: %w", err)
	}
	return &CELEvaluator{env: env, cache: cache}, nil
}

func (c *CELEvaluator) compile(expr string) (cel.Program, error) {
	if prog, ok := c.cache.Get(expr); ok {
		return prog, nil
	}
	ast, issues := c.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compiling expression %q: %w", expr, issues.Err())
	}
	prog, err := c.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("building program for %q: %w", expr, err)
	}
	c.cache.Set(expr, prog, 1)
	return prog, nil
}

// EvalBool evaluates expr against ctx and coerces the result to bool.
func (c *CELEvaluator) EvalBool(expr string, ctx map[string]any) (bool, error) {
	prog, err := c.compile(expr)
	if err != nil {
		return false, err
	}
	out, _, err := prog.Eval(toVars(ctx))
	if err != nil {
		return false, fmt.Errorf("evaluating %q: %w", expr, err)
	}
	b, ok := asBool(out)
	if !ok {
		return false, fmt.Errorf("expression %q did not evaluate to a boolean, got %v", expr, out)
	}
	return b, nil
}

func toVars(ctx map[string]any) map[string]any {
	if ctx == nil {
		return map[string]any{}
	}
	return ctx
}

func asBool(v ref.Val) (bool, bool) {
	b, ok := v.(types.Bool)
	if !ok {
		return false, false
	}
	return bool(b), true
}
