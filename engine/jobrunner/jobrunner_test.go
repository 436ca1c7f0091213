package jobrunner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowforge/flowforge/engine/core"
	"github.com/flowforge/flowforge/engine/stage"
	"github.com/flowforge/flowforge/engine/strategy"
)

type constNode struct {
	id      string
	status  core.Status
	outputs core.Output
}

func (n constNode) NodeID() string { return n.id }
func (n constNode) Run(context.Context, stage.NodeContext) stage.NodeResult {
	return stage.NodeResult{Status: n.status, Outputs: n.outputs}
}

func newNodeContext(t *testing.T) stage.NodeContext {
	t.Helper()
	tok, release := core.NewCancelToken(context.Background())
	t.Cleanup(release)
	return stage.NodeContext{Context: map[string]any{}, Cancel: tok}
}

func TestLocalRunner_NoMatrix(t *testing.T) {
	runner := NewLocalRunner()
	jc := runner.Run(context.Background(), Spec{ID: "j1", Root: constNode{id: "s1", status: core.StatusSuccess, outputs: core.Output{"x": 1}}}, newNodeContext(t))
	assert.Equal(t, core.StatusSuccess, jc.Status)
	require.Contains(t, jc.Stages, "s1")
	assert.Equal(t, 1, jc.Stages["s1"].Outputs["x"])
}

func TestLocalRunner_Matrix(t *testing.T) {
	runner := NewLocalRunner()
	matrix := strategy.Matrix{Axes: map[string][]any{"os": {"linux", "darwin"}}}
	jc := runner.Run(context.Background(), Spec{
		ID:     "j1",
		Root:   constNode{id: "s1", status: core.StatusSuccess, outputs: core.Output{}},
		Matrix: &matrix,
	}, newNodeContext(t))
	assert.Equal(t, core.StatusSuccess, jc.Status)
	assert.Len(t, jc.Strategies, 2)
}

func TestRegistry_Select(t *testing.T) {
	local := NewLocalRunner("gpu")
	reg := NewRegistry(local)
	t.Run("Should select a runner advertising the requested label", func(t *testing.T) {
		r, err := reg.Select("gpu")
		require.NoError(t, err)
		assert.Same(t, local, r)
	})
	t.Run("Should fail when no runner advertises the label", func(t *testing.T) {
		_, err := reg.Select("tpu")
		require.Error(t, err)
	})
}
