package trace_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ml-under-the-hood/traceplay/playback/internal/testutil"
	"github.com/ml-under-the-hood/traceplay/playback/trace"
)

func TestValidate_EmptySteps_ReturnsValidationError(t *testing.T) {
	// GIVEN a document with an empty step sequence
	raw := &trace.Raw{Steps: []trace.RawStep{}, History: map[string][]float64{}}

	// WHEN validated
	tr, err := trace.Validate(raw, trace.KMeans())

	// THEN no trace is produced and the error names the steps field
	assert.Nil(t, tr)
	var verr *trace.ValidationError
	require.True(t, errors.As(err, &verr), "expected *ValidationError, got %T", err)
	assert.Equal(t, "steps", verr.Field)
	assert.True(t, errors.Is(err, trace.ErrEmptySteps))
}

func TestDecode_MissingOrNullSteps_Rejected(t *testing.T) {
	for name, doc := range map[string]string{
		"missing": `{"history": {}}`,
		"null":    `{"steps": null}`,
		"empty":   `{"steps": [], "history": {}, "datasetMeta": {}, "algoParams": {}}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := trace.Decode([]byte(doc), trace.KMeans())
			assert.ErrorIs(t, err, trace.ErrEmptySteps)
		})
	}
}

func TestDecode_StepsNotASequence_Malformed(t *testing.T) {
	_, err := trace.Decode([]byte(`{"steps": {"type": "init"}}`), nil)
	assert.ErrorIs(t, err, trace.ErrMalformed)

	_, err = trace.Decode([]byte(`{"steps": [{"type": 3}]}`), nil)
	assert.ErrorIs(t, err, trace.ErrMalformed, "step type must be a string")
}

func TestValidate_HistoryLengthMismatch_Rejected(t *testing.T) {
	// GIVEN two steps but a history series with three entries
	raw := &trace.Raw{
		Steps: []trace.RawStep{{Type: "init"}, {Type: "update"}},
		History: map[string][]float64{
			"cost": {3, 2},
			"mse":  {3, 2, 1},
		},
	}

	// WHEN validated
	_, err := trace.Validate(raw, trace.LinReg())

	// THEN the offending series is named
	var verr *trace.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "history.mse", verr.Field)
	assert.ErrorIs(t, err, trace.ErrHistoryLength)
}

func TestValidate_UnknownStepType_Accepted(t *testing.T) {
	raw := &trace.Raw{Steps: []trace.RawStep{
		{Type: "init", Payload: map[string]any{"weights": []any{1.0}}},
		{Type: "line_search", Payload: map[string]any{"weights": []any{2.0}}},
	}}

	tr, err := trace.Validate(raw, trace.LinReg())

	require.NoError(t, err)
	require.Equal(t, 2, tr.Len())
	assert.False(t, trace.LinReg().Usable(tr, tr.Steps[1]), "unknown tags carry no usable payload")
}

func TestValidate_CopiesHistory(t *testing.T) {
	series := []float64{1, 2}
	raw := &trace.Raw{
		Steps:   []trace.RawStep{{Type: "init"}, {Type: "update"}},
		History: map[string][]float64{"cost": series},
	}

	tr, err := trace.Validate(raw, nil)
	require.NoError(t, err)

	series[0] = 99
	assert.Equal(t, 1.0, tr.History["cost"][0], "trace must not alias caller slices")
}

func TestDecode_CanonicalShape(t *testing.T) {
	doc := `{
		"steps": [
			{"type": "init", "payload": {"weights": [0, 0], "cost": 4}},
			{"type": "update", "payload": {"weights": [1, 2], "cost": 1}}
		],
		"history": {"cost": [4, 1]},
		"datasetMeta": {"n": 10, "d": 1},
		"algoParams": {"fit_intercept": true}
	}`

	tr, err := trace.Decode([]byte(doc), trace.LinReg())

	require.NoError(t, err)
	assert.Equal(t, []float64{4, 1}, tr.History["cost"])
	n, ok := tr.DatasetMeta.Int("n")
	assert.True(t, ok)
	assert.Equal(t, 10, n)
	fit, _ := tr.AlgoParams.Bool("fit_intercept")
	assert.True(t, fit)
}

func TestDecode_NativeShape_FoldsFamilyHistoryKeys(t *testing.T) {
	// GIVEN the algorithm service's native K-Means document
	tr := testutil.DecodeFixture(t, "kmeans_trace.json", trace.FamilyKMeans)

	// THEN meta/params map onto the canonical fields and inertia_history becomes "inertia"
	assert.Equal(t, "kmeans", tr.Algo)
	assert.Equal(t, 1, tr.SchemaVersion)
	assert.Equal(t, []string{"inertia"}, tr.HistoryNames())
	assert.Equal(t, []float64{20.5, 1.25, 0.25}, tr.History["inertia"])
	n, _ := tr.DatasetMeta.Int("n")
	assert.Equal(t, 4, n)
	k, _ := tr.AlgoParams.Int("n_clusters")
	assert.Equal(t, 2, k)
	assert.Equal(t, 2, tr.Steps[2].T)
	converged, _ := tr.Summary.Bool("converged")
	assert.True(t, converged)
}

func TestDecode_NativeShape_IgnoresUnalignedArrays(t *testing.T) {
	// cost_history has one entry fewer than the steps and is not a linreg history key
	tr := testutil.DecodeFixture(t, "linreg_trace.json", trace.FamilyLinReg)

	assert.Empty(t, tr.History)
	assert.Equal(t, 4, tr.Len())
}

func TestDecode_CanonicalHistoryWinsOverNativeKey(t *testing.T) {
	doc := `{
		"steps": [{"type": "init"}, {"type": "iteration"}],
		"history": {"inertia": [5, 4]},
		"inertia_history": [1, 2]
	}`

	tr, err := trace.Decode([]byte(doc), trace.KMeans())

	require.NoError(t, err)
	assert.Equal(t, []float64{5, 4}, tr.History["inertia"])
}

func TestDecode_NativeHistoryKeyWrongLength_Rejected(t *testing.T) {
	doc := `{"steps": [{"type": "init"}, {"type": "iteration"}], "inertia_history": [1]}`

	_, err := trace.Decode([]byte(doc), trace.KMeans())

	var verr *trace.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "history.inertia", verr.Field)
}

func TestTrace_NilSafe(t *testing.T) {
	var tr *trace.Trace
	assert.Equal(t, 0, tr.Len())
	assert.Nil(t, tr.HistoryNames())
}

func TestEncode_RoundTripsNativeFixture(t *testing.T) {
	// GIVEN a native K-Means response decoded with its history keys
	original := testutil.DecodeFixture(t, "kmeans_trace.json", trace.FamilyKMeans)

	// WHEN encoded and decoded again without a family
	data, err := trace.Encode(original)
	require.NoError(t, err)
	again, err := trace.Decode(data, nil)

	// THEN the canonical document carries the same trace
	require.NoError(t, err)
	assert.Equal(t, original.Algo, again.Algo)
	assert.Equal(t, original.History, again.History)
	require.Equal(t, original.Len(), again.Len())
	for i := range original.Steps {
		assert.Equal(t, original.Steps[i].Type, again.Steps[i].Type)
		assert.Equal(t, original.Steps[i].T, again.Steps[i].T)
	}
	n, _ := again.DatasetMeta.Int("n")
	assert.Equal(t, 4, n)
	assert.Contains(t, string(data), `"datasetMeta"`)
	assert.NotContains(t, string(data), `"meta"`)
}

func TestEncode_EmptyTrace_Error(t *testing.T) {
	_, err := trace.Encode(&trace.Trace{})
	assert.True(t, errors.Is(err, trace.ErrEmptySteps))
}
