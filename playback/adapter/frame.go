// Package adapter turns a playback.View into presentation data: metric cards,
// plottable series, and PNG charts. Adapters only read the view; they never
// navigate or mutate the controller.
package adapter

import (
	"fmt"
	"sort"
	"sync"

	"github.com/ml-under-the-hood/traceplay/playback"
	"github.com/ml-under-the-hood/traceplay/playback/trace"
)

// Series kinds.
const (
	KindPoints = "points"
	KindLine   = "line"
)

// Card is one labeled metric shown beside a chart.
type Card struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// Series is a plottable 2D series. Higher-dimensional data is projected onto
// its first two coordinates.
type Series struct {
	Name string    `json:"name"`
	Kind string    `json:"kind"`
	X    []float64 `json:"x"`
	Y    []float64 `json:"y"`
}

// Frame is everything a renderer needs for the current position.
type Frame struct {
	Family          string   `json:"family"`
	Position        int      `json:"position"`
	TotalIterations int      `json:"total_iterations"`
	Converged       bool     `json:"converged"`
	Placeholder     bool     `json:"placeholder"`
	Message         string   `json:"message,omitempty"`
	StepIndex       int      `json:"step_index"`
	StepType        string   `json:"step_type,omitempty"`
	Cards           []Card   `json:"cards,omitempty"`
	Series          []Series `json:"series,omitempty"`
}

// Card returns the value of the card labeled label.
func (f Frame) Card(label string) (float64, bool) {
	for _, c := range f.Cards {
		if c.Label == label {
			return c.Value, true
		}
	}
	return 0, false
}

// BuilderFunc fills cards and series for one effective step.
type BuilderFunc func(f *Frame, t *trace.Trace, fam *trace.Family, step trace.Step, index int) error

var (
	buildersMu sync.RWMutex
	builders   = map[string]BuilderFunc{
		trace.FamilyKMeans:         buildKMeans,
		trace.FamilyLinReg:         buildRegression(1),
		trace.FamilyRegularization: buildRegression(0),
		trace.FamilyEM:             buildEM,
	}
)

// RegisterBuilder installs the frame builder for a family name, replacing any existing one.
func RegisterBuilder(family string, b BuilderFunc) {
	if b == nil {
		panic("adapter: nil builder for " + family)
	}
	buildersMu.Lock()
	defer buildersMu.Unlock()
	builders[family] = b
}

// BuilderNames lists the families with a frame builder, sorted.
func BuilderNames() []string {
	buildersMu.RLock()
	defer buildersMu.RUnlock()
	names := make([]string, 0, len(builders))
	for n := range builders {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// BuildFrame renders v for family fam. With no trace loaded, or before the first
// complete step, a placeholder frame is returned instead of an error.
func BuildFrame(v playback.View, fam *trace.Family) (Frame, error) {
	if fam == nil {
		return Frame{}, fmt.Errorf("adapter: nil family")
	}
	f := Frame{
		Family:          fam.Name,
		Position:        v.Position,
		TotalIterations: v.TotalIterations,
		Converged:       v.IsConverged,
		StepIndex:       v.EffectiveIndex,
	}
	if v.State == playback.StateEmpty || v.Trace == nil {
		f.Placeholder = true
		f.Message = "no trace loaded"
		return f, nil
	}
	if v.EffectiveStep == nil {
		f.Placeholder = true
		f.Message = fmt.Sprintf("no complete %s step at or before position %d", fam.Name, v.Position)
		return f, nil
	}

	buildersMu.RLock()
	build, ok := builders[fam.Name]
	buildersMu.RUnlock()
	if !ok {
		return Frame{}, fmt.Errorf("adapter: no frame builder for family %q", fam.Name)
	}

	f.StepType = v.EffectiveStep.Type
	if err := build(&f, v.Trace, fam, *v.EffectiveStep, v.EffectiveIndex); err != nil {
		return Frame{}, fmt.Errorf("building %s frame at step %d: %w", fam.Name, v.EffectiveIndex, err)
	}
	return f, nil
}

func (f *Frame) addCard(label string, v float64) {
	f.Cards = append(f.Cards, Card{Label: label, Value: v})
}

// project splits rows into x and y coordinates. Rows with a single coordinate plot on y=0.
func project(rows [][]float64) (xs, ys []float64) {
	xs = make([]float64, 0, len(rows))
	ys = make([]float64, 0, len(rows))
	for _, r := range rows {
		switch {
		case len(r) >= 2:
			xs, ys = append(xs, r[0]), append(ys, r[1])
		case len(r) == 1:
			xs, ys = append(xs, r[0]), append(ys, 0)
		}
	}
	return xs, ys
}
