package trace

import "gonum.org/v1/gonum/floats"

// SeriesStats summarizes one history series.
type SeriesStats struct {
	Min   float64
	Max   float64
	First float64
	Final float64
}

// TraceSummary aggregates statistics from a Trace.
type TraceSummary struct {
	Algo            string
	Steps           int
	TotalIterations int
	UsableSteps     int
	UnusableSteps   int
	TypeCounts      map[string]int // step type → count
	Converged       bool
	HasObjective    bool
	FirstObjective  float64
	FinalObjective  float64
	History         map[string]SeriesStats
}

// Summarize computes aggregate statistics from a Trace.
// Safe for nil traces (returns zero-value fields).
func Summarize(t *Trace, fam *Family) *TraceSummary {
	summary := &TraceSummary{
		TypeCounts: make(map[string]int),
		History:    make(map[string]SeriesStats),
	}
	if t.Len() == 0 {
		return summary
	}

	summary.Algo = t.Algo
	summary.Steps = len(t.Steps)
	summary.TotalIterations = fam.TotalIterations(t)
	summary.Converged = fam.Converged(t, summary.TotalIterations)

	objectives := make([]float64, 0, len(t.Steps))
	for _, s := range t.Steps {
		summary.TypeCounts[s.Type]++
		if fam.Usable(t, s) {
			summary.UsableSteps++
			if v, ok := fam.Objective(s); ok {
				objectives = append(objectives, v)
			}
		} else {
			summary.UnusableSteps++
		}
	}
	if len(objectives) > 0 {
		summary.HasObjective = true
		summary.FirstObjective = objectives[0]
		summary.FinalObjective = objectives[len(objectives)-1]
	}

	for name, series := range t.History {
		if len(series) == 0 {
			continue
		}
		summary.History[name] = SeriesStats{
			Min:   floats.Min(series),
			Max:   floats.Max(series),
			First: series[0],
			Final: series[len(series)-1],
		}
	}
	return summary
}
