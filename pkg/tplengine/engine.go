// Package tplengine resolves "${{ expr }}" placeholders inside arbitrary
// JSON-like values (scalars, slices, maps) against a context tree. A string
// that is exactly one placeholder resolves to the expression's native value;
// placeholders embedded in surrounding text are rendered with
// ToDisplayString and concatenated into a string.
package tplengine

import (
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	markerOpen  = "${{"
	markerClose = "}}"
)

// pathCacheSize bounds the compiled-expression cache shared by an Engine.
const pathCacheSize = 1024

// Engine resolves template placeholders against a context map.
type Engine struct {
	filters  map[string]Filter
	cache    *lru.Cache[string, *expr]
	preserve bool
}

// New builds an Engine with the built-in filter set registered.
func New() *Engine {
	cache, err := lru.New[string, *expr](pathCacheSize)
	if err != nil {
		// Only fails for a non-positive size, which pathCacheSize never is.
		panic(fmt.Sprintf("tplengine: failed to build path cache: %v", err))
	}
	e := &Engine{filters: make(map[string]Filter, len(builtinFilters)), cache: cache}
	for name, fn := range builtinFilters {
		e.filters[name] = fn
	}
	return e
}

// WithPrecisionPreservation toggles shopspring/decimal-backed numeric
// resolution so that whole-string numeric placeholders round-trip without
// float64 precision loss.
func (e *Engine) WithPrecisionPreservation(on bool) *Engine {
	e.preserve = on
	return e
}

// RegisterFilter adds or overrides a named filter in the user registry.
func (e *Engine) RegisterFilter(name string, fn Filter) {
	e.filters[name] = fn
}

// HasTemplate reports whether s contains at least one "${{ ... }}" marker.
func HasTemplate(s string) bool {
	open := strings.Index(s, markerOpen)
	if open < 0 {
		return false
	}
	return strings.Contains(s[open+len(markerOpen):], markerClose)
}

// Resolve walks any JSON-like value and substitutes every placeholder found
// in string scalars, looking values up against ctx. See the package doc for
// the whole-string vs embedded-placeholder resolution modes.
func (e *Engine) Resolve(value any, ctx map[string]any) (any, error) {
	switch v := value.(type) {
	case string:
		return e.resolveString(v, ctx)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			r, err := e.Resolve(item, ctx)
			if err != nil {
				return nil, err
			}
			out[i] = r
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			r, err := e.Resolve(item, ctx)
			if err != nil {
				return nil, err
			}
			out[k] = r
		}
		return out, nil
	default:
		return value, nil
	}
}

// resolveString implements the whole-string vs embedded-placeholder split
// described in the package doc.
func (e *Engine) resolveString(s string, ctx map[string]any) (any, error) {
	if !HasTemplate(s) {
		return s, nil
	}
	if whole, ok := wholeStringPlaceholder(s); ok {
		return e.evalPlaceholder(whole, ctx)
	}
	var sb strings.Builder
	rest := s
	for {
		open := strings.Index(rest, markerOpen)
		if open < 0 {
			sb.WriteString(rest)
			break
		}
		sb.WriteString(rest[:open])
		afterOpen := rest[open+len(markerOpen):]
		closeIdx := strings.Index(afterOpen, markerClose)
		if closeIdx < 0 {
			return nil, NewUtilError(fmt.Sprintf("unterminated placeholder in %q", s), nil)
		}
		raw := strings.TrimSpace(afterOpen[:closeIdx])
		val, err := e.evalPlaceholder(raw, ctx)
		if err != nil {
			return nil, err
		}
		sb.WriteString(ToDisplayString(val))
		rest = afterOpen[closeIdx+len(markerClose):]
	}
	return sb.String(), nil
}

// wholeStringPlaceholder reports whether s is exactly one "${{ expr }}" with
// no surrounding text, returning the trimmed inner expression.
func wholeStringPlaceholder(s string) (string, bool) {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, markerOpen) || !strings.HasSuffix(trimmed, markerClose) {
		return "", false
	}
	inner := trimmed[len(markerOpen) : len(trimmed)-len(markerClose)]
	if strings.Contains(inner, markerOpen) {
		return "", false
	}
	return strings.TrimSpace(inner), true
}

// evalPlaceholder compiles (or retrieves from cache) and evaluates one raw
// "path | filter(...) | ..." expression.
func (e *Engine) evalPlaceholder(raw string, ctx map[string]any) (any, error) {
	compiled, ok := e.cache.Get(raw)
	if !ok {
		var err error
		compiled, err = parseExpr(raw)
		if err != nil {
			return nil, err
		}
		e.cache.Add(raw, compiled)
	}
	return compiled.eval(ctx, e.filters, e.preserve)
}

// ResolveIdempotent re-resolves an already-resolved value; per the
// idempotence guarantee, values with no remaining markers pass through
// unchanged.
func (e *Engine) ResolveIdempotent(value any, ctx map[string]any) (any, error) {
	return e.Resolve(value, ctx)
}
