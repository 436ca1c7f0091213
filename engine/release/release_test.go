package release

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowforge/flowforge/engine/core"
	"github.com/flowforge/flowforge/engine/event"
	"github.com/flowforge/flowforge/engine/jobrunner"
	"github.com/flowforge/flowforge/engine/stage"
	"github.com/flowforge/flowforge/engine/workflow"
	"github.com/flowforge/flowforge/pkg/tplengine"
)

func newTestDriver(t *testing.T) *workflow.Driver {
	t.Helper()
	cond, err := stage.NewCELEvaluator()
	require.NoError(t, err)
	dispatch := stage.NewDispatcher(nil, nil)
	registry := jobrunner.NewRegistry(jobrunner.NewLocalRunner())
	return workflow.New(registry, cond, dispatch, tplengine.New(), nil)
}

func echoSpec(name string, sched event.ScheduleDecl) workflow.Spec {
	return workflow.Spec{
		Name: name,
		Jobs: []workflow.JobSpec{{
			ID:   "a",
			Root: stage.SequenceNode{ID: "a-seq", JobID: "a", Children: []stage.Node{stage.LeafNode{Spec: stage.Spec{ID: "a-echo", Variant: stage.VariantEmpty, Echo: "hi"}}}},
		}},
		Event: &event.Spec{Schedules: []event.ScheduleDecl{sched}},
	}
}

func TestNew(t *testing.T) {
	t.Run("Should reject a workflow with an unparsable cron expression", func(t *testing.T) {
		d := newTestDriver(t)
		spec := echoSpec("wf", event.ScheduleDecl{Cron: "not a cron", Timezone: "UTC"})
		_, err := New(d, []workflow.Spec{spec}, Config{})
		assert.Error(t, err)
	})

	t.Run("Should ignore workflows with no declared event", func(t *testing.T) {
		d := newTestDriver(t)
		spec := echoSpec("wf", event.ScheduleDecl{Cron: "0 9 * * *", Timezone: "UTC"})
		spec.Event = nil
		s, err := New(d, []workflow.Spec{spec}, Config{})
		require.NoError(t, err)
		assert.Empty(t, s.names)
	})

	t.Run("Should default the release timeout", func(t *testing.T) {
		d := newTestDriver(t)
		s, err := New(d, nil, Config{})
		require.NoError(t, err)
		assert.Equal(t, DefaultReleaseTimeout, s.cfg.ReleaseTimeout)
	})
}

func TestScheduler_Tick(t *testing.T) {
	t.Run("Should fire a workflow whose schedule matches the tick and report the result", func(t *testing.T) {
		d := newTestDriver(t)
		spec := echoSpec("wf", event.ScheduleDecl{Cron: "0 9 * * *", Timezone: "UTC"})

		results := make(chan workflow.Result, 1)
		s, err := New(d, []workflow.Spec{spec}, Config{OnResult: func(name string, at time.Time, res workflow.Result, err error) {
			require.NoError(t, err)
			results <- res
		}})
		require.NoError(t, err)

		at := time.Date(2026, 7, 31, 9, 0, 0, 0, time.UTC)
		s.tick(context.Background(), nil, at)

		select {
		case res := <-results:
			assert.Equal(t, core.StatusSuccess, res.Status)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for release result")
		}
	})

	t.Run("Should not fire a workflow whose schedule does not match the tick", func(t *testing.T) {
		d := newTestDriver(t)
		spec := echoSpec("wf", event.ScheduleDecl{Cron: "0 9 * * *", Timezone: "UTC"})

		fired := make(chan struct{}, 1)
		s, err := New(d, []workflow.Spec{spec}, Config{OnResult: func(string, time.Time, workflow.Result, error) { fired <- struct{}{} }})
		require.NoError(t, err)

		s.tick(context.Background(), nil, time.Date(2026, 7, 31, 9, 1, 0, 0, time.UTC))

		select {
		case <-fired:
			t.Fatal("release fired for a non-matching minute")
		case <-time.After(50 * time.Millisecond):
		}
	})

	t.Run("Should deduplicate a repeated tick for the same logical date", func(t *testing.T) {
		d := newTestDriver(t)
		spec := echoSpec("wf", event.ScheduleDecl{Cron: "0 9 * * *", Timezone: "UTC"})

		count := 0
		done := make(chan struct{}, 2)
		s, err := New(d, []workflow.Spec{spec}, Config{OnResult: func(string, time.Time, workflow.Result, error) {
			count++
			done <- struct{}{}
		}})
		require.NoError(t, err)

		at := time.Date(2026, 7, 31, 9, 0, 0, 0, time.UTC)
		s.tick(context.Background(), nil, at)
		s.tick(context.Background(), nil, at)

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for release result")
		}
		// give a possible (incorrect) second fire a chance to land before asserting
		time.Sleep(50 * time.Millisecond)
		assert.Equal(t, 1, count)
	})
}

func TestScheduler_RatePerMinute(t *testing.T) {
	t.Run("Should suppress a release once the per-workflow rate is exhausted", func(t *testing.T) {
		d := newTestDriver(t)
		spec := echoSpec("wf", event.ScheduleDecl{Cron: "* * * * *", Timezone: "UTC"})

		fired := make(chan struct{}, 4)
		s, err := New(d, []workflow.Spec{spec}, Config{RatePerMinute: 1, OnResult: func(string, time.Time, workflow.Result, error) { fired <- struct{}{} }})
		require.NoError(t, err)

		base := time.Date(2026, 7, 31, 9, 0, 0, 0, time.UTC)
		s.tick(context.Background(), nil, base)
		<-fired

		// Force a distinct logical date past dedup so only the rate limit can suppress it.
		s.released = map[string]struct{}{}
		s.tick(context.Background(), nil, base.Add(time.Minute))

		select {
		case <-fired:
			t.Fatal("release fired after the per-minute rate was exhausted")
		case <-time.After(100 * time.Millisecond):
		}
	})
}
