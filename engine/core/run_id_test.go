package core

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRunID(t *testing.T) {
	t.Run("Should produce a ksuid-prefixed, hash-suffixed id", func(t *testing.T) {
		id, err := NewRunID("wf", map[string]any{"a": 1})
		require.NoError(t, err)
		assert.NotEmpty(t, id)
		parts := strings.Split(id.String(), ".")
		require.Len(t, parts, 2)
		assert.Len(t, parts[1], 12)
	})
	t.Run("Should differ for different seeds even at the same instant", func(t *testing.T) {
		id1, err := NewRunID("wf", map[string]any{"a": 1})
		require.NoError(t, err)
		id2, err := NewRunID("wf", map[string]any{"a": 2})
		require.NoError(t, err)
		assert.NotEqual(t, id1, id2)
	})
	t.Run("Should report IsZero correctly", func(t *testing.T) {
		var zero RunID
		assert.True(t, zero.IsZero())
		id, err := NewRunID("wf", nil)
		require.NoError(t, err)
		assert.False(t, id.IsZero())
	})
}
