package trace

// Built-in family names.
const (
	FamilyKMeans         = "kmeans"
	FamilyLinReg         = "linreg"
	FamilyRegularization = "regularization"
	FamilyEM             = "em"
)

func init() {
	Register(KMeans())
	Register(LinReg())
	Register(Regularization())
	Register(EM())
}

// KMeans describes clustering traces. Steps carry centroids plus one label per point.
func KMeans() *Family {
	return &Family{
		Name:           FamilyKMeans,
		Algos:          []string{"kmeans"},
		ProgressTags:   []string{"init", "initialization", "iteration"},
		TerminalTags:   []string{"converged"},
		ConvergedField: "converged",
		ObjectiveField: "inertia",
		HistoryKeys:    []string{"inertia_history"},
		Complete:       kmeansComplete,
	}
}

// LinReg describes gradient-descent linear regression traces.
// cost_history is one entry short of the steps (no entry for the converged marker),
// so it is not folded into History.
func LinReg() *Family {
	return &Family{
		Name:           FamilyLinReg,
		Algos:          []string{"linear_regression"},
		ProgressTags:   []string{"init", "update"},
		TerminalTags:   []string{"converged"},
		ObjectiveField: "cost",
		Complete:       weightsComplete,
	}
}

// Regularization describes ridge/lasso gradient-descent traces.
func Regularization() *Family {
	return &Family{
		Name:           FamilyRegularization,
		Algos:          []string{"regularization_ridge", "regularization_lasso"},
		ProgressTags:   []string{"init", "update"},
		TerminalTags:   []string{"converged"},
		ObjectiveField: "cost",
		Complete:       weightsComplete,
	}
}

// EM describes Gaussian-mixture EM traces.
func EM() *Family {
	return &Family{
		Name:           FamilyEM,
		Algos:          []string{"em_gmm_3d"},
		ProgressTags:   []string{"init", "update"},
		TerminalTags:   []string{"converged"},
		ObjectiveField: "loglike",
		Complete:       emComplete,
	}
}

func kmeansComplete(t *Trace, s Step) bool {
	centroids, ok := s.Payload.Matrix("centroids")
	if !ok || len(centroids) == 0 {
		return false
	}
	dim := len(centroids[0])
	if dim == 0 {
		return false
	}
	for _, c := range centroids {
		if len(c) != dim {
			return false
		}
	}
	labels, ok := s.Payload.Ints("labels")
	if !ok || len(labels) == 0 {
		return false
	}
	if t != nil {
		if n, ok := t.DatasetMeta.Int("n"); ok && n != len(labels) {
			return false
		}
	}
	return true
}

// weightsComplete requires a weight vector. When the dataset dimension is known
// the arity must be d, plus one for the intercept.
func weightsComplete(t *Trace, s Step) bool {
	w, ok := s.Payload.Floats("weights")
	if !ok || len(w) == 0 {
		return false
	}
	if t == nil {
		return true
	}
	d, ok := t.DatasetMeta.Int("d")
	if !ok {
		return true
	}
	if fit, ok := t.AlgoParams.Bool("fit_intercept"); ok {
		if fit {
			return len(w) == d+1
		}
		return len(w) == d
	}
	return len(w) == d || len(w) == d+1
}

func emComplete(t *Trace, s Step) bool {
	pi, ok := s.Payload.Floats("pi")
	if !ok || len(pi) == 0 {
		return false
	}
	mu, ok := s.Payload.Matrix("mu")
	if !ok || len(mu) != len(pi) {
		return false
	}
	if n, ok := s.Payload.Len("sigma"); !ok || n != len(pi) {
		return false
	}
	if t != nil {
		if c, ok := t.AlgoParams.Int("C"); ok && c != len(pi) {
			return false
		}
	}
	return true
}
