package stage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowforge/flowforge/engine/core"
)

type fakeCondition struct {
	skip bool
	err  error
}

func (f fakeCondition) EvalBool(string, map[string]any) (bool, error) { return f.skip, f.err }

func newInput(t *testing.T, spec Spec, dispatch VariantDispatcher, cond ConditionEvaluator) (Input, func()) {
	t.Helper()
	tok, release := core.NewCancelToken(context.Background())
	t.Cleanup(release)
	return Input{Spec: spec, Cancel: tok, Dispatch: dispatch, ConditionEval: cond}, release
}

type fakeDispatcher struct {
	calls   int
	failFor int
	outputs core.Output
}

func (d *fakeDispatcher) Dispatch(context.Context, Input) (core.Output, error) {
	d.calls++
	if d.calls <= d.failFor {
		return nil, assertErr("boom")
	}
	return d.outputs, nil
}

type assertErr string

func (e assertErr) Error() string { return string(e) }

func TestRun_ConditionSkips(t *testing.T) {
	in, _ := newInput(t, Spec{ID: "s1", Condition: "true"}, &fakeDispatcher{}, fakeCondition{skip: true})
	res := Run(context.Background(), in)
	assert.Equal(t, core.StatusSkip, res.Status)
}

func TestRun_ConditionFails(t *testing.T) {
	in, _ := newInput(t, Spec{ID: "s1", Condition: "bad"}, &fakeDispatcher{}, fakeCondition{err: assertErr("bad expr")})
	res := Run(context.Background(), in)
	assert.Equal(t, core.StatusFailed, res.Status)
	require.Error(t, res.Err)
}

func TestRun_Success(t *testing.T) {
	d := &fakeDispatcher{outputs: core.Output{"x": 1}}
	in, _ := newInput(t, Spec{ID: "s1"}, d, fakeCondition{})
	res := Run(context.Background(), in)
	assert.Equal(t, core.StatusSuccess, res.Status)
	assert.Equal(t, core.Output{"x": 1}, res.Outputs)
}

func TestRun_RetriesThenSucceeds(t *testing.T) {
	d := &fakeDispatcher{failFor: 2, outputs: core.Output{"ok": true}}
	in, _ := newInput(t, Spec{ID: "s1", Retry: 2, RetryWait: time.Millisecond}, d, fakeCondition{})
	res := Run(context.Background(), in)
	assert.Equal(t, core.StatusSuccess, res.Status)
	assert.Equal(t, 3, d.calls)
}

func TestRun_ExhaustsRetries(t *testing.T) {
	d := &fakeDispatcher{failFor: 99}
	in, _ := newInput(t, Spec{ID: "s1", Retry: 1, RetryWait: time.Millisecond}, d, fakeCondition{})
	res := Run(context.Background(), in)
	assert.Equal(t, core.StatusFailed, res.Status)
	assert.Equal(t, 2, d.calls)
}

func TestRun_CancelDuringSleep(t *testing.T) {
	tok, release := core.NewCancelToken(context.Background())
	defer release()
	in := Input{Spec: Spec{ID: "s1", Sleep: time.Second}, Cancel: tok, Dispatch: &fakeDispatcher{}, ConditionEval: fakeCondition{}}
	tok.Cancel()
	res := Run(context.Background(), in)
	assert.Equal(t, core.StatusCancel, res.Status)
}

func TestCallRegistry_Invoke(t *testing.T) {
	reg := NewCallRegistry()
	reg.Register("group/name@v1", func(_ context.Context, args map[string]any) (core.Output, error) {
		return core.Output{"echo": args["x"]}, nil
	})
	t.Run("Should invoke a registered callable", func(t *testing.T) {
		out, err := reg.Invoke(context.Background(), Spec{Uses: "group/name@v1", Args: map[string]any{"x": 1}})
		require.NoError(t, err)
		assert.Equal(t, 1, out["echo"])
	})
	t.Run("Should fail for an unregistered callable", func(t *testing.T) {
		_, err := reg.Invoke(context.Background(), Spec{Uses: "missing/one@v1"})
		require.Error(t, err)
	})
}

func TestRunEmbeddedScript(t *testing.T) {
	t.Run("Should capture top-level exported names", func(t *testing.T) {
		out, err := runEmbeddedScript(Spec{Run: "var total = a + b;", Vars: map[string]any{"a": 2, "b": 3}})
		require.NoError(t, err)
		assert.EqualValues(t, 5, out["total"])
	})
}

func TestRunVirtualScript(t *testing.T) {
	t.Run("Should capture new globals from a starlark script", func(t *testing.T) {
		out, err := runVirtualScript(Spec{Run: "total = a + b", Vars: map[string]any{"a": 2, "b": 3}})
		require.NoError(t, err)
		assert.EqualValues(t, 5, out["total"])
	})
}

func TestRunRaise(t *testing.T) {
	_, err := runRaise(Spec{Message: "boom"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestRunEmpty(t *testing.T) {
	out, err := runEmpty(Spec{Echo: "hi"})
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestDispatcher_DockerIsReserved(t *testing.T) {
	d := NewDispatcher(nil, nil)
	_, err := d.Dispatch(context.Background(), Input{Spec: Spec{Variant: VariantDocker}})
	require.Error(t, err)
}

func TestDispatcher_TriggerWithoutRunner(t *testing.T) {
	d := NewDispatcher(nil, nil)
	_, err := d.Dispatch(context.Background(), Input{Spec: Spec{Variant: VariantTrigger}})
	require.Error(t, err)
}
