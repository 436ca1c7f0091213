package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowforge/flowforge/engine/core"
)

func runConst(status core.Status) func(context.Context) core.Status {
	return func(context.Context) core.Status { return status }
}

func TestValidate(t *testing.T) {
	t.Run("Should accept a valid DAG", func(t *testing.T) {
		err := Validate([]Node{{ID: "a"}, {ID: "b", Needs: []string{"a"}}})
		require.NoError(t, err)
	})

	t.Run("Should reject an undeclared dependency", func(t *testing.T) {
		err := Validate([]Node{{ID: "b", Needs: []string{"a"}}})
		assert.Error(t, err)
	})

	t.Run("Should reject a duplicate job id", func(t *testing.T) {
		err := Validate([]Node{{ID: "a"}, {ID: "a"}})
		assert.Error(t, err)
	})

	t.Run("Should reject a cycle", func(t *testing.T) {
		err := Validate([]Node{
			{ID: "a", Needs: []string{"b"}},
			{ID: "b", Needs: []string{"a"}},
		})
		assert.Error(t, err)
	})
}

func TestSatisfiesRule(t *testing.T) {
	cases := []struct {
		rule     TriggerRule
		upstream []core.Status
		want     bool
	}{
		{RuleAllSuccess, []core.Status{core.StatusSuccess, core.StatusSuccess}, true},
		{RuleAllSuccess, []core.Status{core.StatusSuccess, core.StatusFailed}, false},
		{RuleAllFailed, []core.Status{core.StatusFailed, core.StatusFailed}, true},
		{RuleAllDone, []core.Status{core.StatusSuccess, core.StatusFailed, core.StatusSkip}, true},
		{RuleOneSuccess, []core.Status{core.StatusFailed, core.StatusSuccess}, true},
		{RuleOneFailed, []core.Status{core.StatusSuccess, core.StatusFailed}, true},
		{RuleNoneFailed, []core.Status{core.StatusSuccess, core.StatusSkip}, true},
		{RuleNoneFailed, []core.Status{core.StatusSuccess, core.StatusFailed}, false},
		{RuleNoneSkipped, []core.Status{core.StatusSuccess, core.StatusFailed}, true},
		{RuleNoneSkipped, []core.Status{core.StatusSuccess, core.StatusSkip}, false},
	}
	for _, c := range cases {
		got := satisfiesRule(c.rule, c.upstream)
		assert.Equalf(t, c.want, got, "rule %s over %v", c.rule, c.upstream)
	}

	t.Run("Should proceed for none_skipped with zero upstreams", func(t *testing.T) {
		assert.True(t, satisfiesRule(RuleNoneSkipped, nil))
	})

	t.Run("Should proceed for all_success with zero upstreams", func(t *testing.T) {
		assert.True(t, satisfiesRule(RuleAllSuccess, nil))
	})
}

func TestRun(t *testing.T) {
	t.Run("Should run independent jobs and report success", func(t *testing.T) {
		nodes := []Node{
			{ID: "a", Run: runConst(core.StatusSuccess)},
			{ID: "b", Run: runConst(core.StatusSuccess)},
		}
		tok, release := core.NewCancelToken(context.Background())
		defer release()
		statuses, err := Run(context.Background(), nodes, Config{MaxParallel: 2}, tok)
		require.NoError(t, err)
		assert.Equal(t, core.StatusSuccess, statuses["a"])
		assert.Equal(t, core.StatusSuccess, statuses["b"])
	})

	t.Run("Should skip a downstream job whose trigger rule is unsatisfied", func(t *testing.T) {
		nodes := []Node{
			{ID: "a", Run: runConst(core.StatusFailed)},
			{ID: "b", Needs: []string{"a"}, TriggerRule: RuleAllSuccess, Run: runConst(core.StatusSuccess)},
		}
		tok, release := core.NewCancelToken(context.Background())
		defer release()
		statuses, err := Run(context.Background(), nodes, Config{MaxParallel: 2}, tok)
		require.NoError(t, err)
		assert.Equal(t, core.StatusFailed, statuses["a"])
		assert.Equal(t, core.StatusSkip, statuses["b"])
	})

	t.Run("Should run a downstream job when none_failed holds despite a skip", func(t *testing.T) {
		nodes := []Node{
			{ID: "a", Run: runConst(core.StatusSkip)},
			{ID: "b", Needs: []string{"a"}, TriggerRule: RuleNoneFailed, Run: runConst(core.StatusSuccess)},
		}
		tok, release := core.NewCancelToken(context.Background())
		defer release()
		statuses, err := Run(context.Background(), nodes, Config{MaxParallel: 2}, tok)
		require.NoError(t, err)
		assert.Equal(t, core.StatusSuccess, statuses["b"])
	})

	t.Run("Should reject an invalid graph before running anything", func(t *testing.T) {
		nodes := []Node{{ID: "a", Needs: []string{"missing"}}}
		tok, release := core.NewCancelToken(context.Background())
		defer release()
		_, err := Run(context.Background(), nodes, Config{MaxParallel: 2}, tok)
		assert.Error(t, err)
	})

	t.Run("Should stop scheduling further jobs once cancelled", func(t *testing.T) {
		nodes := []Node{{ID: "a", Run: runConst(core.StatusSuccess)}}
		tok, release := core.NewCancelToken(context.Background())
		defer release()
		tok.Cancel()
		time.Sleep(time.Millisecond)
		_, err := Run(context.Background(), nodes, Config{MaxParallel: 1}, tok)
		assert.Error(t, err)
	})
}
