package playback

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ml-under-the-hood/traceplay/playback/internal/testutil"
	"github.com/ml-under-the-hood/traceplay/playback/trace"
)

func newScenarioController(t *testing.T) *Controller {
	t.Helper()
	c := NewController(trace.KMeans())
	c.Load(testutil.ScenarioTrace())
	require.Equal(t, StateReady, c.State())
	return c
}

func TestController_NewIsEmpty(t *testing.T) {
	c := NewController(trace.KMeans())

	assert.Equal(t, StateEmpty, c.State())
	assert.Equal(t, 0, c.Position())
	assert.Equal(t, 0, c.TotalIterations())
	assert.False(t, c.IsConverged())
	_, err := c.Trace()
	assert.ErrorIs(t, err, ErrNoTrace)
	_, idx, ok := c.EffectiveStep()
	assert.False(t, ok)
	assert.Equal(t, -1, idx)
}

func TestController_EmptyNavigation_NoOp(t *testing.T) {
	// GIVEN an empty controller
	c := NewController(trace.KMeans())

	// WHEN every navigation operation is invoked
	c.GoTo(5)
	c.Next()
	c.Previous()
	c.Last()
	c.First()
	c.ResetPosition()

	// THEN it stays empty at position 0
	assert.Equal(t, StateEmpty, c.State())
	assert.Equal(t, 0, c.Position())
}

func TestController_GoTo_Clamps(t *testing.T) {
	c := newScenarioController(t)
	total := c.TotalIterations()

	for _, i := range []int{-100, -1, 0, 1, 2, 5, 1 << 30} {
		c.GoTo(i)
		got := c.Position()
		assert.GreaterOrEqual(t, got, 0, "GoTo(%d)", i)
		assert.LessOrEqual(t, got, total, "GoTo(%d)", i)
		switch {
		case i < 0:
			assert.Equal(t, 0, got, "GoTo(%d)", i)
		case i > total:
			assert.Equal(t, total, got, "GoTo(%d)", i)
		default:
			assert.Equal(t, i, got, "GoTo(%d)", i)
		}
	}
}

func TestController_Load_ResetsPosition(t *testing.T) {
	// GIVEN a controller navigated away from 0
	c := NewController(trace.KMeans())
	c.Load(testutil.DecodeFixture(t, "kmeans_trace.json", trace.FamilyKMeans))
	c.Last()
	require.Equal(t, 2, c.Position())

	// WHEN a new trace is loaded
	c.Load(testutil.ScenarioTrace())

	// THEN position is back at 0 and bounds follow the new trace
	assert.Equal(t, 0, c.Position())
	assert.Equal(t, 1, c.TotalIterations())
}

func TestController_NextPrevious_StayInBounds(t *testing.T) {
	c := newScenarioController(t)

	for i := 0; i < 5; i++ {
		c.Previous()
		assert.Equal(t, 0, c.Position())
	}

	c.Last()
	for i := 0; i < 5; i++ {
		c.Next()
		assert.Equal(t, c.TotalIterations(), c.Position())
	}

	c.Previous()
	assert.Equal(t, c.TotalIterations()-1, c.Position())
	c.Next()
	assert.Equal(t, c.TotalIterations(), c.Position())
	c.First()
	assert.Equal(t, 0, c.Position())
}

func TestController_EffectiveStep_SkipsConvergedMarker(t *testing.T) {
	// GIVEN a linreg trace ending in a converged step that only carries cost
	c := NewController(trace.LinReg())
	tr := testutil.DecodeFixture(t, "linreg_trace.json", trace.FamilyLinReg)
	c.Load(tr)

	// WHEN the controller sits on the last reachable position
	c.Last()

	// THEN the effective step is the last update, not the converged marker
	step, idx, ok := c.EffectiveStep()
	require.True(t, ok)
	assert.Equal(t, 2, idx)
	assert.Equal(t, "update", step.Type)
	w, _ := step.Payload.Floats("weights")
	assert.Equal(t, []float64{-0.5, 1.6}, w)
}

func TestController_EffectiveStep_ScansPastIncompleteSteps(t *testing.T) {
	c := NewController(trace.LinReg())
	c.Load(&trace.Trace{Steps: []trace.Step{
		{Type: "init", Payload: trace.Payload{"weights": []float64{0, 0}}},
		{Type: "update", Payload: trace.Payload{"cost": 3.0}},
		{Type: "mystery", Payload: trace.Payload{"weights": []float64{9, 9}}},
		{Type: "update", Payload: trace.Payload{"cost": 1.0}},
	}})

	c.GoTo(3)
	step, idx, ok := c.EffectiveStep()

	require.True(t, ok)
	assert.Equal(t, 0, idx, "unknown tag and weight-less updates are skipped")
	assert.Equal(t, "init", step.Type)
}

func TestController_EffectiveStep_NoneComplete(t *testing.T) {
	c := NewController(trace.LinReg())
	c.Load(&trace.Trace{Steps: []trace.Step{
		{Type: "init", Payload: trace.Payload{"cost": 1.0}},
		{Type: "update", Payload: trace.Payload{"cost": 0.5}},
	}})
	c.Last()

	_, _, ok := c.EffectiveStep()
	assert.False(t, ok)
	v := c.View()
	assert.Nil(t, v.EffectiveStep)
	assert.Equal(t, -1, v.EffectiveIndex)
}

func TestController_GoTo_Idempotent(t *testing.T) {
	c := NewController(trace.KMeans())
	c.Load(testutil.DecodeFixture(t, "kmeans_trace.json", trace.FamilyKMeans))

	for k := -1; k <= 4; k++ {
		c.GoTo(k)
		first := c.View()
		c.GoTo(k)
		second := c.View()
		assert.Equal(t, first, second, "GoTo(%d) twice", k)
	}
}

func TestController_KMeansScenario(t *testing.T) {
	// GIVEN init → iteration → converged{}
	c := newScenarioController(t)

	// THEN the last reachable position is the iteration step
	assert.Equal(t, 1, c.TotalIterations())
	assert.False(t, c.IsConverged())

	// WHEN navigating past the end
	c.GoTo(5)

	// THEN position clamps to 1 and the iteration payload is effective
	assert.Equal(t, 1, c.Position())
	step, idx, ok := c.EffectiveStep()
	require.True(t, ok)
	assert.Equal(t, 1, idx)
	centroids, _ := step.Payload.Matrix("centroids")
	assert.Equal(t, [][]float64{{1, 1}}, centroids)

	// AND the terminal converged tag marks the run converged at the logical end
	assert.True(t, c.IsConverged())

	c.Previous()
	assert.False(t, c.IsConverged())
}

func TestController_ResetPosition_KeepsTrace(t *testing.T) {
	c := newScenarioController(t)
	c.Last()

	c.ResetPosition()

	assert.Equal(t, 0, c.Position())
	assert.Equal(t, StateReady, c.State())
	tr, err := c.Trace()
	require.NoError(t, err)
	assert.Equal(t, 3, tr.Len())
}

func TestController_Clear(t *testing.T) {
	c := newScenarioController(t)
	c.Last()

	c.Clear()

	assert.Equal(t, StateEmpty, c.State())
	assert.Equal(t, 0, c.Position())
	assert.Equal(t, 0, c.TotalIterations())
	assert.Nil(t, c.View().Trace)
}

func TestController_LoadNil_Clears(t *testing.T) {
	c := newScenarioController(t)

	c.Load(nil)

	assert.Equal(t, StateEmpty, c.State())
}

func TestController_View(t *testing.T) {
	c := NewController(trace.KMeans())
	tr := testutil.DecodeFixture(t, "kmeans_trace.json", trace.FamilyKMeans)
	c.Load(tr)
	c.Next()

	v := c.View()

	assert.Equal(t, StateReady, v.State)
	assert.Equal(t, 1, v.Position)
	assert.Equal(t, 2, v.TotalIterations)
	assert.False(t, v.IsConverged)
	require.NotNil(t, v.EffectiveStep)
	assert.Equal(t, "iteration", v.EffectiveStep.Type)
	assert.Equal(t, 1, v.EffectiveIndex)
	assert.Same(t, tr, v.Trace)
}

func TestController_NilFamily_FallsBackToLastIndex(t *testing.T) {
	c := NewController(nil)
	c.Load(testutil.ScenarioTrace())

	c.Last()

	assert.Equal(t, 2, c.Position())
	_, _, ok := c.EffectiveStep()
	assert.False(t, ok, "no recognized tags means no usable payloads")
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "empty", StateEmpty.String())
	assert.Equal(t, "ready", StateReady.String())
	assert.Equal(t, "State(7)", State(7).String())
}
