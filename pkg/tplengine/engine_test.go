package tplengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasTemplate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want bool
	}{
		{"empty", "", false},
		{"no_markers", "plain text", false},
		{"with_marker", "Hello ${{ .name }}", true},
		{"brace_like_not_template", "Hello {not tmpl}", false},
		{"unterminated", "Hello ${{ .name", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HasTemplate(tt.in))
		})
	}
}

func TestResolve_WholeStringPreservesType(t *testing.T) {
	e := New()
	ctx := map[string]any{"jobs": map[string]any{"j1": map[string]any{"stages": map[string]any{"s": map[string]any{"outputs": []any{10, 20}}}}}}
	t.Run("Should preserve native type for a whole-string placeholder", func(t *testing.T) {
		out, err := e.Resolve("${{ jobs.j1.stages.s.outputs.0 }}", ctx)
		require.NoError(t, err)
		assert.Equal(t, 10, out)
	})
	t.Run("Should concatenate embedded placeholders as strings", func(t *testing.T) {
		out, err := e.Resolve("value=${{ jobs.j1.stages.s.outputs.1 }}!", ctx)
		require.NoError(t, err)
		assert.Equal(t, "value=20!", out)
	})
}

func TestResolve_Idempotence(t *testing.T) {
	e := New()
	t.Run("Should leave an already-resolved value unchanged", func(t *testing.T) {
		out, err := e.Resolve("plain text", nil)
		require.NoError(t, err)
		out2, err := e.Resolve(out, nil)
		require.NoError(t, err)
		assert.Equal(t, out, out2)
	})
}

func TestResolve_NestedStructures(t *testing.T) {
	e := New()
	ctx := map[string]any{"params": map[string]any{"name": "World"}}
	in := map[string]any{
		"greeting": "Hello ${{ params.name }}",
		"list":     []any{"a", "${{ params.name }}"},
	}
	out, err := e.Resolve(in, ctx)
	require.NoError(t, err)
	m := out.(map[string]any)
	assert.Equal(t, "Hello World", m["greeting"])
	assert.Equal(t, "World", m["list"].([]any)[1])
}

func TestResolve_UnresolvedPathFails(t *testing.T) {
	e := New()
	t.Run("Should fail on a missing path with no coalesce default", func(t *testing.T) {
		_, err := e.Resolve("${{ params.missing }}", map[string]any{})
		require.Error(t, err)
	})
	t.Run("Should fall back to coalesce default on a missing path", func(t *testing.T) {
		out, err := e.Resolve("${{ params.missing | coalesce('fallback') }}", map[string]any{})
		require.NoError(t, err)
		assert.Equal(t, "fallback", out)
	})
}

func TestResolve_Filters(t *testing.T) {
	e := New()
	ctx := map[string]any{"params": map[string]any{"name": "ada", "n": -7}}
	cases := []struct {
		name string
		expr string
		want any
	}{
		{"upper", "${{ params.name | upper }}", "ADA"},
		{"lower then title", "${{ params.name | title }}", "Ada"},
		{"abs", "${{ params.n | abs }}", int64(7)},
		{"fmt", "${{ params.n | fmt('%03d') }}", "-07"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out, err := e.Resolve(tc.expr, ctx)
			require.NoError(t, err)
			assert.Equal(t, tc.want, out)
		})
	}
}

func TestResolve_InvalidSyntax(t *testing.T) {
	e := New()
	_, err := e.Resolve("${{ }}", nil)
	require.Error(t, err)
}

func TestResolve_UnknownFilter(t *testing.T) {
	e := New()
	_, err := e.Resolve("${{ params.x | nope }}", map[string]any{"params": map[string]any{"x": 1}})
	require.Error(t, err)
}
