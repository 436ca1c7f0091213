package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowforge/flowforge/engine/core"
	"github.com/flowforge/flowforge/engine/cronx"
	"github.com/flowforge/flowforge/engine/event"
	"github.com/flowforge/flowforge/engine/jobrunner"
	"github.com/flowforge/flowforge/engine/paramspec"
	"github.com/flowforge/flowforge/engine/scheduler"
	"github.com/flowforge/flowforge/engine/stage"
	"github.com/flowforge/flowforge/pkg/tplengine"
)

func newTestDriver(t *testing.T) *Driver {
	t.Helper()
	cond, err := stage.NewCELEvaluator()
	require.NoError(t, err)
	dispatch := stage.NewDispatcher(nil, nil)
	registry := jobrunner.NewRegistry(jobrunner.NewLocalRunner())
	return New(registry, cond, dispatch, tplengine.New(), nil)
}

func echoJob(id string, needs []string, rule scheduler.TriggerRule) JobSpec {
	return JobSpec{
		ID:          id,
		Needs:       needs,
		TriggerRule: rule,
		Root:        stage.SequenceNode{ID: id + "-seq", JobID: id, Children: []stage.Node{stage.LeafNode{Spec: stage.Spec{ID: id + "-echo", Variant: stage.VariantEmpty, Echo: "hi"}}}},
	}
}

func TestDriver_Run(t *testing.T) {
	t.Run("Should run an independent single-job workflow to success", func(t *testing.T) {
		d := newTestDriver(t)
		spec := Spec{
			Name:   "wf",
			Params: paramspec.Declaration{},
			Jobs:   []JobSpec{echoJob("a", nil, "")},
		}
		res, err := d.Run(context.Background(), spec, map[string]any{}, "")
		require.NoError(t, err)
		assert.Equal(t, core.StatusSuccess, res.Status)
		assert.False(t, res.RunID.IsZero())
	})

	t.Run("Should fail with a Param error on a missing required param", func(t *testing.T) {
		d := newTestDriver(t)
		spec := Spec{
			Name:   "wf",
			Params: paramspec.Declaration{"name": {Kind: paramspec.KindString}},
			Jobs:   []JobSpec{echoJob("a", nil, "")},
		}
		res, err := d.Run(context.Background(), spec, map[string]any{}, "")
		assert.Error(t, err)
		assert.Equal(t, core.StatusFailed, res.Status)
	})

	t.Run("Should skip a downstream job whose trigger rule is unmet and still record its slot", func(t *testing.T) {
		d := newTestDriver(t)
		failing := echoJob("a", nil, "")
		failing.Root = stage.LeafNode{Spec: stage.Spec{ID: "a-raise", Variant: stage.VariantRaise, Message: "boom"}}
		spec := Spec{
			Name: "wf",
			Jobs: []JobSpec{
				failing,
				echoJob("b", []string{"a"}, scheduler.RuleAllSuccess),
			},
		}
		res, err := d.Run(context.Background(), spec, map[string]any{}, "")
		require.NoError(t, err)
		assert.Equal(t, core.StatusFailed, res.Status)
		jobs := res.Context["jobs"].(map[string]any)
		bCtx := jobs["b"].(map[string]any)
		assert.Equal(t, string(core.StatusSkip), bCtx["status"])
	})

	t.Run("Should run a downstream job once its upstream succeeds", func(t *testing.T) {
		d := newTestDriver(t)
		spec := Spec{
			Name: "wf",
			Jobs: []JobSpec{
				echoJob("a", nil, ""),
				echoJob("b", []string{"a"}, scheduler.RuleAllSuccess),
			},
		}
		res, err := d.Run(context.Background(), spec, map[string]any{}, "")
		require.NoError(t, err)
		assert.Equal(t, core.StatusSuccess, res.Status)
	})
}

func TestDriver_Release(t *testing.T) {
	t.Run("Should reject a release time matching no declared schedule", func(t *testing.T) {
		d := newTestDriver(t)
		spec := Spec{
			Name:  "wf",
			Jobs:  []JobSpec{echoJob("a", nil, "")},
			Event: &event.Spec{Schedules: []event.ScheduleDecl{{Cron: "0 9 * * *", Timezone: "UTC"}}},
		}
		_, err := d.Release(context.Background(), spec, time.Date(2026, 7, 31, 9, 1, 0, 0, time.UTC), ReleaseScheduled, nil)
		assert.Error(t, err)
	})

	t.Run("Should accept a release time matching a declared schedule and inject the release bundle", func(t *testing.T) {
		d := newTestDriver(t)
		spec := Spec{
			Name:  "wf",
			Jobs:  []JobSpec{echoJob("a", nil, "")},
			Event: &event.Spec{Schedules: []event.ScheduleDecl{{Cron: "0 9 * * *", Timezone: "UTC"}}},
		}
		res, err := d.Release(context.Background(), spec, time.Date(2026, 7, 31, 9, 0, 0, 0, time.UTC), ReleaseScheduled, nil)
		require.NoError(t, err)
		assert.Equal(t, core.StatusSuccess, res.Status)
		params := res.Context["params"].(map[string]any)
		assert.Equal(t, "scheduled", params["release_type"])
	})
}

func TestDriver_Rerun(t *testing.T) {
	t.Run("Should replay a prior SUCCESS job and recompute its failed sibling", func(t *testing.T) {
		d := newTestDriver(t)
		failing := echoJob("b", nil, "")
		failing.Root = stage.LeafNode{Spec: stage.Spec{ID: "b-raise", Variant: stage.VariantRaise, Message: "boom"}}
		spec := Spec{Name: "wf", Jobs: []JobSpec{echoJob("a", nil, ""), failing}}

		prior, err := d.Run(context.Background(), spec, map[string]any{}, "")
		require.NoError(t, err)
		require.Equal(t, core.StatusFailed, prior.Status)

		rerun, err := d.Rerun(context.Background(), spec, prior, nil)
		require.NoError(t, err)
		assert.Equal(t, core.StatusFailed, rerun.Status)
		jobs := rerun.Context["jobs"].(map[string]any)
		assert.Contains(t, jobs, "a")
		assert.Contains(t, jobs, "b")
	})
}

func TestCronxSanity(t *testing.T) {
	sched, err := cronx.Parse("0 9 * * *", "UTC")
	require.NoError(t, err)
	next := sched.Next(time.Date(2026, 7, 31, 8, 0, 0, 0, time.UTC))
	assert.Equal(t, 9, next.Hour())
}
