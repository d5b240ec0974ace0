package adapter

import (
	"fmt"
	"io"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
	"gonum.org/v1/gonum/floats"

	"github.com/ml-under-the-hood/traceplay/playback/trace"
)

// Chart dimensions in pixels.
const (
	ChartWidth  = 800
	ChartHeight = 400
)

// RenderHistoryPNG draws the named history series as a line chart with a marker
// at position (clamped to the series).
func RenderHistoryPNG(w io.Writer, t *trace.Trace, name string, position int) error {
	if t == nil {
		return fmt.Errorf("render %s: no trace", name)
	}
	ys, ok := t.History[name]
	if !ok {
		return fmt.Errorf("render %s: unknown history series (have %v)", name, t.HistoryNames())
	}
	xs := make([]float64, len(ys))
	for i := range xs {
		xs[i] = float64(i)
	}
	return renderLine(w, name, xs, ys, position)
}

// RenderObjectivePNG plots the family's objective field over the steps that carry it.
// It serves families whose objective history is not step-aligned.
func RenderObjectivePNG(w io.Writer, t *trace.Trace, fam *trace.Family, position int) error {
	if t == nil || fam == nil || fam.ObjectiveField == "" {
		return fmt.Errorf("render objective: no trace or objective field")
	}
	var xs, ys []float64
	for i, s := range t.Steps {
		if v, ok := fam.Objective(s); ok {
			xs = append(xs, float64(i))
			ys = append(ys, v)
		}
	}
	return renderLine(w, fam.ObjectiveField, xs, ys, position)
}

func renderLine(w io.Writer, name string, xs, ys []float64, position int) error {
	if len(ys) == 0 {
		return fmt.Errorf("render %s: series is empty", name)
	}
	mark := 0
	for i, x := range xs {
		if x <= float64(position) {
			mark = i
		}
	}
	markX, markY := xs[mark], ys[mark]

	// go-chart needs a non-degenerate x range.
	if len(xs) == 1 {
		xs = []float64{xs[0], xs[0] + 1}
		ys = []float64{ys[0], ys[0]}
	}
	lo, hi := floats.Min(ys), floats.Max(ys)
	if hi == lo {
		lo, hi = lo-1, hi+1
	}

	ch := chart.Chart{
		Title:  name,
		Width:  ChartWidth,
		Height: ChartHeight,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16},
		},
		XAxis: chart.XAxis{Name: "step"},
		YAxis: chart.YAxis{Name: name, Range: &chart.ContinuousRange{Min: lo, Max: hi}},
		Series: []chart.Series{
			chart.ContinuousSeries{
				Name:    name,
				XValues: xs,
				YValues: ys,
				Style:   chart.Style{StrokeColor: chart.ColorBlue, StrokeWidth: 2},
			},
			chart.ContinuousSeries{
				Name:    "current",
				XValues: []float64{markX},
				YValues: []float64{markY},
				Style: chart.Style{
					StrokeColor: drawing.ColorTransparent,
					DotWidth:    5,
					DotColor:    chart.ColorRed,
				},
			},
		},
	}
	ch.Elements = []chart.Renderable{chart.Legend(&ch)}
	if err := ch.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("render %s: %w", name, err)
	}
	return nil
}
