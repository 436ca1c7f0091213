// Package strategy expands a job's matrix declaration into an ordered
// list of parameter combinations, each tagged with a stable hash key.
package strategy

import (
	"github.com/flowforge/flowforge/engine/core"
)

// Matrix declares the cross-product axes plus exclude/include overrides.
type Matrix struct {
	Axes    map[string][]any
	Exclude []map[string]any
	Include []map[string]any
}

// Combo is one expanded combination: its parameter values and a stable
// key derived from their content.
type Combo struct {
	Key    string
	Values map[string]any
}

// Expand produces the ordered combination list: the full cross-product of
// Axes, minus anything matching an Exclude pattern, plus every Include
// entry appended at the end (each becoming its own combo regardless of
// whether it duplicates one from the cross-product).
func Expand(m Matrix) ([]Combo, error) {
	if len(m.Axes) == 0 {
		return nil, nil
	}
	names := make([]string, 0, len(m.Axes))
	for name := range m.Axes {
		names = append(names, name)
	}
	sortStrings(names)

	var combos []map[string]any
	crossProduct(m.Axes, names, 0, map[string]any{}, &combos)

	out := make([]Combo, 0, len(combos))
	for _, c := range combos {
		if matchesAny(c, m.Exclude) {
			continue
		}
		out = append(out, toCombo(c))
	}
	for _, inc := range m.Include {
		out = append(out, toCombo(inc))
	}
	return out, nil
}

func crossProduct(axes map[string][]any, names []string, i int, acc map[string]any, out *[]map[string]any) {
	if i == len(names) {
		copy := make(map[string]any, len(acc))
		for k, v := range acc {
			copy[k] = v
		}
		*out = append(*out, copy)
		return
	}
	name := names[i]
	for _, v := range axes[name] {
		acc[name] = v
		crossProduct(axes, names, i+1, acc, out)
	}
	delete(acc, name)
}

// matchesAny reports whether combo matches every key/value pair of at
// least one exclude pattern (a pattern may be a subset of combo's keys).
func matchesAny(combo map[string]any, excludes []map[string]any) bool {
	for _, ex := range excludes {
		if matchesPattern(combo, ex) {
			return true
		}
	}
	return false
}

func matchesPattern(combo, pattern map[string]any) bool {
	for k, v := range pattern {
		if combo[k] != v {
			return false
		}
	}
	return true
}

func toCombo(values map[string]any) Combo {
	return Combo{Key: core.ETagFromAny(values), Values: values}
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}
