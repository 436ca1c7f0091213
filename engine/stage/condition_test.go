package stage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCELEvaluator_EvalBool(t *testing.T) {
	ev, err := NewCELEvaluator()
	require.NoError(t, err)

	t.Run("Should evaluate a simple comparison", func(t *testing.T) {
		ok, err := ev.EvalBool("item >= 10", map[string]any{"item": 12})
		require.NoError(t, err)
		assert.True(t, ok)
	})
	t.Run("Should reuse the cached program on repeated evaluation", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			ok, err := ev.EvalBool("item >= 10", map[string]any{"item": 5})
			require.NoError(t, err)
			assert.False(t, ok)
		}
	})
	t.Run("Should fail to compile an invalid expression", func(t *testing.T) {
		_, err := ev.EvalBool("item >=", map[string]any{"item": 1})
		require.Error(t, err)
	})
	t.Run("Should fail when the expression does not evaluate to a bool", func(t *testing.T) {
		_, err := ev.EvalBool("item + 1", map[string]any{"item": 1})
		require.Error(t, err)
	})
}
