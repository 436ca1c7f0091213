package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpand_CrossProduct(t *testing.T) {
	m := Matrix{Axes: map[string][]any{
		"os":  {"linux", "darwin"},
		"arch": {"amd64", "arm64"},
	}}
	combos, err := Expand(m)
	require.NoError(t, err)
	assert.Len(t, combos, 4)
}

func TestExpand_Exclude(t *testing.T) {
	m := Matrix{
		Axes:    map[string][]any{"os": {"linux", "darwin"}, "arch": {"amd64", "arm64"}},
		Exclude: []map[string]any{{"os": "darwin", "arch": "arm64"}},
	}
	combos, err := Expand(m)
	require.NoError(t, err)
	assert.Len(t, combos, 3)
}

func TestExpand_Include(t *testing.T) {
	m := Matrix{
		Axes:    map[string][]any{"os": {"linux"}},
		Include: []map[string]any{{"os": "windows", "arch": "386"}},
	}
	combos, err := Expand(m)
	require.NoError(t, err)
	assert.Len(t, combos, 2)
}

func TestExpand_StableKeys(t *testing.T) {
	m := Matrix{Axes: map[string][]any{"os": {"linux"}}}
	a, err := Expand(m)
	require.NoError(t, err)
	b, err := Expand(m)
	require.NoError(t, err)
	assert.Equal(t, a[0].Key, b[0].Key)
}

func TestExpand_NoAxes(t *testing.T) {
	combos, err := Expand(Matrix{})
	require.NoError(t, err)
	assert.Nil(t, combos)
}
