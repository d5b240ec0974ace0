package trace_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ml-under-the-hood/traceplay/playback/trace"
)

func decodePayload(t *testing.T, doc string) trace.Payload {
	t.Helper()
	var p trace.Payload
	require.NoError(t, json.Unmarshal([]byte(doc), &p))
	return p
}

func TestPayload_JSONAccessors(t *testing.T) {
	p := decodePayload(t, `{
		"cost": 1.5,
		"iteration": 3,
		"converged": true,
		"name": "blobs",
		"weights": [1, 2.5],
		"labels": [0, 1, 1],
		"centroids": [[0, 1], [2, 3]],
		"movement": null,
		"data": {"x_min": -5}
	}`)

	cost, ok := p.Float("cost")
	assert.True(t, ok)
	assert.Equal(t, 1.5, cost)

	it, ok := p.Int("iteration")
	assert.True(t, ok)
	assert.Equal(t, 3, it)

	_, ok = p.Int("cost")
	assert.False(t, ok, "non-integral number is not an int")

	conv, ok := p.Bool("converged")
	assert.True(t, ok && conv)

	name, _ := p.String("name")
	assert.Equal(t, "blobs", name)

	w, ok := p.Floats("weights")
	assert.True(t, ok)
	assert.Equal(t, []float64{1, 2.5}, w)

	labels, ok := p.Ints("labels")
	assert.True(t, ok)
	assert.Equal(t, []int{0, 1, 1}, labels)

	m, ok := p.Matrix("centroids")
	assert.True(t, ok)
	assert.Equal(t, [][]float64{{0, 1}, {2, 3}}, m)

	n, ok := p.Len("centroids")
	assert.True(t, ok)
	assert.Equal(t, 2, n)

	assert.False(t, p.Has("movement"), "null counts as absent")
	assert.True(t, p.Has("cost"))

	data, ok := p.Object("data")
	require.True(t, ok)
	xmin, _ := data.Float("x_min")
	assert.Equal(t, -5.0, xmin)
}

func TestPayload_WrongShape_NotOK(t *testing.T) {
	p := decodePayload(t, `{"weights": [1, "x"], "labels": [0.5], "centroids": [1, 2], "cost": "high"}`)

	_, ok := p.Floats("weights")
	assert.False(t, ok)
	_, ok = p.Ints("labels")
	assert.False(t, ok)
	_, ok = p.Matrix("centroids")
	assert.False(t, ok)
	_, ok = p.Float("cost")
	assert.False(t, ok)
	_, ok = p.Bool("missing")
	assert.False(t, ok)
}

func TestPayload_NilMap(t *testing.T) {
	var p trace.Payload
	assert.False(t, p.Has("x"))
	_, ok := p.Floats("x")
	assert.False(t, ok)
}

func TestPayload_GoNativeValues(t *testing.T) {
	p := trace.Payload{
		"centroids": [][]float64{{1, 1}},
		"labels":    []int{0, 1},
		"weights":   []float64{3},
		"count":     2,
	}

	m, ok := p.Matrix("centroids")
	assert.True(t, ok)
	assert.Equal(t, [][]float64{{1, 1}}, m)
	l, ok := p.Ints("labels")
	assert.True(t, ok)
	assert.Equal(t, []int{0, 1}, l)
	w, ok := p.Floats("weights")
	assert.True(t, ok)
	assert.Equal(t, []float64{3}, w)
	c, ok := p.Int("count")
	assert.True(t, ok)
	assert.Equal(t, 2, c)
}
