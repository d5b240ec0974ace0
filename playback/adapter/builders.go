package adapter

import (
	"fmt"
	"math"
	"strconv"

	"gonum.org/v1/gonum/floats"

	"github.com/ml-under-the-hood/traceplay/playback/trace"
)

// curveSamples is the number of x positions used to draw a fitted curve.
const curveSamples = 64

func buildKMeans(f *Frame, t *trace.Trace, fam *trace.Family, step trace.Step, index int) error {
	centroids, ok := step.Payload.Matrix("centroids")
	if !ok {
		return fmt.Errorf("step has no centroids")
	}
	labels, _ := step.Payload.Ints("labels")

	// Points are colored by cluster; labels outside the centroid range are not drawn.
	if points, ok := t.DatasetMeta.Matrix("data_points"); ok && len(points) == len(labels) {
		clusters := make([][][]float64, len(centroids))
		for i, p := range points {
			if l := labels[i]; l >= 0 && l < len(clusters) {
				clusters[l] = append(clusters[l], p)
			}
		}
		for k, members := range clusters {
			xs, ys := project(members)
			f.Series = append(f.Series, Series{Name: fmt.Sprintf("cluster %d", k), Kind: KindPoints, X: xs, Y: ys})
		}
	}
	xs, ys := project(centroids)
	f.Series = append(f.Series, Series{Name: "centroids", Kind: KindPoints, X: xs, Y: ys})

	if v, ok := fam.Objective(step); ok {
		f.addCard(fam.ObjectiveField, v)
	}

	sizes, ok := step.Payload.Ints("cluster_sizes")
	if !ok {
		sizes = make([]int, len(centroids))
		for _, l := range labels {
			if l >= 0 && l < len(sizes) {
				sizes[l]++
			}
		}
	}
	for k, n := range sizes {
		f.addCard(fmt.Sprintf("cluster %d size", k), float64(n))
	}

	if m, ok := step.Payload.Float("movement"); ok {
		f.addCard("movement", m)
	} else if index > 0 {
		if prev := fam.LastUsable(t, index-1); prev >= 0 {
			if old, ok := t.Steps[prev].Payload.Matrix("centroids"); ok {
				if m, ok := movement(old, centroids); ok {
					f.addCard("movement", m)
				}
			}
		}
	}
	return nil
}

// movement sums the Euclidean distance each centroid travelled.
func movement(old, cur [][]float64) (float64, bool) {
	if len(old) != len(cur) {
		return 0, false
	}
	total := 0.0
	for i := range cur {
		if len(old[i]) != len(cur[i]) {
			return 0, false
		}
		total += floats.Distance(old[i], cur[i], 2)
	}
	return total, true
}

// featureStat is the standardization applied to one polynomial feature.
type featureStat struct {
	mean, std float64
}

// polyModel evaluates a weight vector over the features x^firstPower, x^(firstPower+1), ...
// optionally preceded by an intercept weight.
type polyModel struct {
	weights    []float64
	intercept  bool
	firstPower int
	stats      map[int]featureStat
}

func (m polyModel) predict(x float64) float64 {
	w := m.weights
	y := 0.0
	if m.intercept && len(w) > 0 {
		y, w = w[0], w[1:]
	}
	for j, wj := range w {
		power := m.firstPower + j
		v := math.Pow(x, float64(power))
		if s, ok := m.stats[power]; ok && power > 0 && s.std > 1e-10 {
			v = (v - s.mean) / s.std
		}
		y += wj * v
	}
	return y
}

// buildRegression renders linear (firstPower=1) and polynomial (firstPower=0, whose
// first feature column is the constant) regression steps.
func buildRegression(firstPower int) BuilderFunc {
	return func(f *Frame, t *trace.Trace, fam *trace.Family, step trace.Step, index int) error {
		w, ok := step.Payload.Floats("weights")
		if !ok || len(w) == 0 {
			return fmt.Errorf("step has no weights")
		}
		data, _ := t.DatasetMeta.Object("data")
		xMin, xMax := dataRange(data)

		model := polyModel{
			weights:    w,
			intercept:  hasIntercept(t, len(w)),
			firstPower: firstPower,
			stats:      featureStats(t.DatasetMeta),
		}
		xs := floats.Span(make([]float64, curveSamples), xMin, xMax)
		ys := make([]float64, len(xs))
		for i, x := range xs {
			ys[i] = model.predict(x)
		}
		f.Series = append(f.Series, Series{Name: "fit", Kind: KindLine, X: xs, Y: ys})
		if truth, ok := trueCurve(data, xs); ok {
			f.Series = append(f.Series, Series{Name: "truth", Kind: KindLine, X: xs, Y: truth})
		}

		if v, ok := fam.Objective(step); ok {
			f.addCard(fam.ObjectiveField, v)
		}
		for _, key := range []string{"mse", "regularization"} {
			if v, ok := step.Payload.Float(key); ok {
				f.addCard(key, v)
			}
		}
		if firstPower == 1 && len(w) == 2 && model.intercept {
			f.addCard("intercept", w[0])
			f.addCard("slope", w[1])
		}
		f.addCard("weight norm", floats.Norm(w, 2))
		if g, ok := step.Payload.Floats("gradient"); ok && len(g) > 0 {
			f.addCard("gradient norm", floats.Norm(g, 2))
		}
		return nil
	}
}

func dataRange(data trace.Payload) (float64, float64) {
	xMin, okMin := data.Float("x_min")
	xMax, okMax := data.Float("x_max")
	if !okMin || !okMax {
		return -5, 5
	}
	if xMax < xMin {
		xMin, xMax = xMax, xMin
	}
	if xMax == xMin {
		xMax = xMin + 1
	}
	return xMin, xMax
}

func hasIntercept(t *trace.Trace, weights int) bool {
	if fit, ok := t.AlgoParams.Bool("fit_intercept"); ok {
		return fit
	}
	if d, ok := t.DatasetMeta.Int("d"); ok {
		return weights == d+1
	}
	return true
}

// featureStats reads meta.feature_stats, keyed by feature power: {"1": {"mean": .., "std": ..}}.
func featureStats(meta trace.Payload) map[int]featureStat {
	raw, ok := meta.Object("feature_stats")
	if !ok {
		return nil
	}
	stats := make(map[int]featureStat, len(raw))
	for key := range raw {
		power, err := strconv.Atoi(key)
		if err != nil {
			continue
		}
		s, ok := raw.Object(key)
		if !ok {
			continue
		}
		mean, _ := s.Float("mean")
		std, _ := s.Float("std")
		stats[power] = featureStat{mean: mean, std: std}
	}
	return stats
}

// trueCurve evaluates the generating function recorded in the dataset metadata.
func trueCurve(data trace.Payload, xs []float64) ([]float64, bool) {
	if coef, ok := data.Floats("true_coefficients"); ok && len(coef) > 0 {
		ys := make([]float64, len(xs))
		for i, x := range xs {
			for k, c := range coef {
				ys[i] += c * math.Pow(x, float64(k))
			}
		}
		return ys, true
	}
	slope, okS := data.Float("true_slope")
	intercept, okI := data.Float("true_intercept")
	if !okS || !okI {
		return nil, false
	}
	ys := make([]float64, len(xs))
	for i, x := range xs {
		ys[i] = intercept + slope*x
	}
	return ys, true
}

func buildEM(f *Frame, t *trace.Trace, fam *trace.Family, step trace.Step, index int) error {
	mu, ok := step.Payload.Matrix("mu")
	if !ok {
		return fmt.Errorf("step has no component means")
	}
	pi, ok := step.Payload.Floats("pi")
	if !ok {
		return fmt.Errorf("step has no mixing weights")
	}

	if points, ok := t.DatasetMeta.Matrix("data_points"); ok {
		xs, ys := project(points)
		f.Series = append(f.Series, Series{Name: "data", Kind: KindPoints, X: xs, Y: ys})
	}
	xs, ys := project(mu)
	f.Series = append(f.Series, Series{Name: "means", Kind: KindPoints, X: xs, Y: ys})

	if v, ok := fam.Objective(step); ok {
		f.addCard(fam.ObjectiveField, v)
	}
	for k, w := range pi {
		f.addCard(fmt.Sprintf("component %d weight", k), w)
	}
	return nil
}
