// Package testutil provides shared test infrastructure for the playback packages.
// It loads fixture traces from the repository testdata/ directory and offers
// assertion helpers used across playback/ and its sub-packages.
package testutil

import (
	"math"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/ml-under-the-hood/traceplay/playback/trace"
)

// FixturePath resolves a file under testdata/ relative to this source file:
// playback/internal/testutil/ → testdata/.
func FixturePath(t *testing.T, name string) string {
	t.Helper()

	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("Failed to get current file path")
	}
	return filepath.Join(filepath.Dir(thisFile), "..", "..", "..", "testdata", name)
}

// LoadFixture reads a fixture file.
func LoadFixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(FixturePath(t, name))
	if err != nil {
		t.Fatalf("Failed to read fixture %s: %v", name, err)
	}
	return data
}

// DecodeFixture loads and decodes a fixture trace for the named family.
func DecodeFixture(t *testing.T, name, family string) *trace.Trace {
	t.Helper()
	fam := trace.MustLookup(family)
	tr, err := trace.Decode(LoadFixture(t, name), fam)
	if err != nil {
		t.Fatalf("Failed to decode fixture %s: %v", name, err)
	}
	return tr
}

// ScenarioTrace builds the three-step clustering trace
// init → iteration → converged (empty payload).
func ScenarioTrace() *trace.Trace {
	return &trace.Trace{
		Algo: "kmeans",
		Steps: []trace.Step{
			{T: 0, Type: "init", Payload: trace.Payload{"centroids": [][]float64{{0, 0}}, "labels": []int{0, 0}}},
			{T: 1, Type: "iteration", Payload: trace.Payload{"centroids": [][]float64{{1, 1}}, "labels": []int{0, 1}}},
			{T: 2, Type: "converged", Payload: trace.Payload{}},
		},
		History: map[string][]float64{},
	}
}

// AssertFloat64Equal compares two float64 values with relative tolerance.
func AssertFloat64Equal(t *testing.T, name string, want, got, relTol float64) {
	t.Helper()
	if want == 0 && got == 0 {
		return
	}
	diff := math.Abs(want - got)
	maxVal := math.Max(math.Abs(want), math.Abs(got))
	if diff/maxVal > relTol {
		t.Errorf("%s: got %v, want %v (diff=%v, relDiff=%v)", name, got, want, diff, diff/maxVal)
	}
}
