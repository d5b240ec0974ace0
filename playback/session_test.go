package playback

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ml-under-the-hood/traceplay/playback/internal/testutil"
	"github.com/ml-under-the-hood/traceplay/playback/trace"
)

func TestSession_StaleResponseDiscarded(t *testing.T) {
	// GIVEN two fetches issued back to back
	s := NewSession(NewController(trace.KMeans()))
	first := s.Begin()
	second := s.Begin()

	// WHEN the newer one resolves first and the older one arrives late
	newer := testutil.ScenarioTrace()
	older := testutil.DecodeFixture(t, "kmeans_trace.json", trace.FamilyKMeans)
	assert.True(t, s.Deliver(second, newer))
	assert.False(t, s.Deliver(first, older))

	// THEN the controller shows the newer trace
	v := s.View()
	assert.Same(t, newer, v.Trace)
	assert.Equal(t, second, s.Latest())
}

func TestSession_Fail_LeavesControllerUntouched(t *testing.T) {
	s := NewSession(NewController(trace.KMeans()))
	tk := s.Begin()
	require.True(t, s.Deliver(tk, testutil.ScenarioTrace()))
	s.Navigate(func(c *Controller) { c.Last() })

	tk = s.Begin()
	boom := errors.New("boom")
	assert.True(t, s.Fail(tk, boom))

	v := s.View()
	assert.Equal(t, StateReady, v.State)
	assert.Equal(t, 1, v.Position)
	assert.ErrorIs(t, s.Err(), boom)
}

func TestSession_Fail_StaleIgnored(t *testing.T) {
	s := NewSession(NewController(trace.KMeans()))
	old := s.Begin()
	s.Begin()

	assert.False(t, s.Fail(old, errors.New("late")))
	assert.NoError(t, s.Err())
}

func TestSession_Deliver_ClearsError(t *testing.T) {
	s := NewSession(NewController(trace.KMeans()))
	tk := s.Begin()
	s.Fail(tk, errors.New("first attempt"))

	tk = s.Begin()
	s.Deliver(tk, testutil.ScenarioTrace())

	assert.NoError(t, s.Err())
}

func TestSession_ConcurrentDeliveries_OnlyLatestLoads(t *testing.T) {
	s := NewSession(NewController(trace.KMeans()))
	tickets := make([]Ticket, 20)
	for i := range tickets {
		tickets[i] = s.Begin()
	}
	latest := tickets[len(tickets)-1]
	want := testutil.ScenarioTrace()

	var wg sync.WaitGroup
	for _, tk := range tickets {
		wg.Add(1)
		go func(tk Ticket) {
			defer wg.Done()
			tr := testutil.ScenarioTrace()
			if tk == latest {
				tr = want
			}
			s.Deliver(tk, tr)
		}(tk)
	}
	wg.Wait()

	assert.Same(t, want, s.View().Trace)
}
