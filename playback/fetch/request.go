package fetch

import (
	"fmt"

	"github.com/ml-under-the-hood/traceplay/playback/trace"
)

// Request is one algorithm run configuration, posted as JSON to the trace service.
// Validate checks shape only (enumerated literals, non-negative counts); semantic
// validation belongs to the server.
type Request interface {
	Endpoint() string // path segment under /api/trace/
	Family() string   // trace family used to decode the response
	Validate() error
}

// ValidDataTypes is the set of recognized K-Means dataset generators.
var ValidDataTypes = map[string]bool{"blobs": true, "moons": true, "circles": true, "random": true}

// ValidInitMethods is the set of recognized K-Means centroid initializations.
var ValidInitMethods = map[string]bool{"kmeans++": true, "random": true}

// ValidRegularizationTypes is the set of recognized penalties.
var ValidRegularizationTypes = map[string]bool{"ridge": true, "lasso": true}

// KMeansDataset parameterizes the clustering dataset generator.
type KMeansDataset struct {
	DataType    string  `json:"data_type" yaml:"data_type"`
	NSamples    int     `json:"n_samples" yaml:"n_samples"`
	NCenters    int     `json:"n_centers" yaml:"n_centers"`
	RandomState int     `json:"random_state" yaml:"random_state"`
	NFeatures   int     `json:"n_features" yaml:"n_features"`
	Noise       float64 `json:"noise,omitempty" yaml:"noise,omitempty"`
	Separation  float64 `json:"separation,omitempty" yaml:"separation,omitempty"`
	Factor      float64 `json:"factor,omitempty" yaml:"factor,omitempty"`
}

// KMeansAlgo parameterizes the clustering run.
type KMeansAlgo struct {
	NClusters   int     `json:"n_clusters" yaml:"n_clusters"`
	MaxIters    int     `json:"max_iters" yaml:"max_iters"`
	Tolerance   float64 `json:"tolerance" yaml:"tolerance"`
	RandomState *int    `json:"random_state,omitempty" yaml:"random_state,omitempty"` // nil = dataset seed
	InitMethod  string  `json:"init_method" yaml:"init_method"`
}

// KMeansRequest asks for a K-Means trace. InitialCentroids carries manually
// placed starting centroids; when set the server skips its own initialization.
type KMeansRequest struct {
	Dataset          KMeansDataset `json:"dataset" yaml:"dataset"`
	Algo             KMeansAlgo    `json:"algo" yaml:"algo"`
	InitialCentroids [][]float64   `json:"initial_centroids,omitempty" yaml:"initial_centroids,omitempty"`
}

func (r *KMeansRequest) Endpoint() string { return "kmeans" }
func (r *KMeansRequest) Family() string   { return trace.FamilyKMeans }

func (r *KMeansRequest) Validate() error {
	if !ValidDataTypes[r.Dataset.DataType] {
		return fmt.Errorf("unknown data_type %q", r.Dataset.DataType)
	}
	if !ValidInitMethods[r.Algo.InitMethod] {
		return fmt.Errorf("unknown init_method %q", r.Algo.InitMethod)
	}
	if err := nonNegative(map[string]int{
		"n_samples": r.Dataset.NSamples, "n_centers": r.Dataset.NCenters,
		"n_features": r.Dataset.NFeatures, "n_clusters": r.Algo.NClusters, "max_iters": r.Algo.MaxIters,
	}); err != nil {
		return err
	}
	for i, c := range r.InitialCentroids {
		if len(c) != r.Dataset.NFeatures {
			return fmt.Errorf("initial centroid %d has %d coordinates, expected %d", i, len(c), r.Dataset.NFeatures)
		}
	}
	return nil
}

// LinRegDataset parameterizes the synthetic linear dataset.
type LinRegDataset struct {
	N             int     `json:"n" yaml:"n"`
	Seed          int     `json:"seed" yaml:"seed"`
	TrueSlope     float64 `json:"true_slope" yaml:"true_slope"`
	TrueIntercept float64 `json:"true_intercept" yaml:"true_intercept"`
	NoiseStd      float64 `json:"noise_std" yaml:"noise_std"`
	XMin          float64 `json:"x_min" yaml:"x_min"`
	XMax          float64 `json:"x_max" yaml:"x_max"`
}

// LinRegAlgo parameterizes gradient descent.
type LinRegAlgo struct {
	LearningRate float64 `json:"learning_rate" yaml:"learning_rate"`
	NumIters     int     `json:"num_iters" yaml:"num_iters"`
	FitIntercept bool    `json:"fit_intercept" yaml:"fit_intercept"`
}

// LinRegRequest asks for a linear regression trace.
type LinRegRequest struct {
	Dataset LinRegDataset `json:"dataset" yaml:"dataset"`
	Algo    LinRegAlgo    `json:"algo" yaml:"algo"`
}

func (r *LinRegRequest) Endpoint() string { return "linreg" }
func (r *LinRegRequest) Family() string   { return trace.FamilyLinReg }

func (r *LinRegRequest) Validate() error {
	return nonNegative(map[string]int{"n": r.Dataset.N, "num_iters": r.Algo.NumIters})
}

// RegularizationDataset parameterizes the synthetic polynomial dataset.
type RegularizationDataset struct {
	N                int       `json:"n" yaml:"n"`
	Seed             int       `json:"seed" yaml:"seed"`
	TrueCoefficients []float64 `json:"true_coefficients" yaml:"true_coefficients"`
	NoiseStd         float64   `json:"noise_std" yaml:"noise_std"`
	XMin             float64   `json:"x_min" yaml:"x_min"`
	XMax             float64   `json:"x_max" yaml:"x_max"`
}

// RegularizationAlgo parameterizes penalized gradient descent.
type RegularizationAlgo struct {
	RegularizationType string  `json:"regularization_type" yaml:"regularization_type"`
	LearningRate       float64 `json:"learning_rate" yaml:"learning_rate"`
	LambdaReg          float64 `json:"lambda_reg" yaml:"lambda_reg"`
	NumIters           int     `json:"num_iters" yaml:"num_iters"`
	FitIntercept       bool    `json:"fit_intercept" yaml:"fit_intercept"`
}

// RegularizationRequest asks for a ridge or lasso trace. Coefficient-path and
// loss-surface modes return non-trace documents and are not requested.
type RegularizationRequest struct {
	Dataset RegularizationDataset `json:"dataset" yaml:"dataset"`
	Algo    RegularizationAlgo    `json:"algo" yaml:"algo"`
}

func (r *RegularizationRequest) Endpoint() string { return "regularization" }
func (r *RegularizationRequest) Family() string   { return trace.FamilyRegularization }

func (r *RegularizationRequest) Validate() error {
	if !ValidRegularizationTypes[r.Algo.RegularizationType] {
		return fmt.Errorf("unknown regularization_type %q", r.Algo.RegularizationType)
	}
	return nonNegative(map[string]int{"n": r.Dataset.N, "num_iters": r.Algo.NumIters})
}

// EMDataset parameterizes the 3D Gaussian mixture generator.
type EMDataset struct {
	K          int     `json:"K" yaml:"K"`
	Seed       int     `json:"seed" yaml:"seed"`
	N          int     `json:"n" yaml:"n"`
	CovDiagMin float64 `json:"cov_diag_min" yaml:"cov_diag_min"`
	CovDiagMax float64 `json:"cov_diag_max" yaml:"cov_diag_max"`
	MeanMin    float64 `json:"mean_min" yaml:"mean_min"`
	MeanMax    float64 `json:"mean_max" yaml:"mean_max"`
}

// EMAlgo parameterizes the EM run.
type EMAlgo struct {
	C        int `json:"C" yaml:"C"`
	NumIters int `json:"num_iters" yaml:"num_iters"`
}

// EMRequest asks for a Gaussian-mixture EM trace.
type EMRequest struct {
	Dataset EMDataset `json:"dataset" yaml:"dataset"`
	Algo    EMAlgo    `json:"algo" yaml:"algo"`
}

func (r *EMRequest) Endpoint() string { return "em" }
func (r *EMRequest) Family() string   { return trace.FamilyEM }

func (r *EMRequest) Validate() error {
	return nonNegative(map[string]int{"K": r.Dataset.K, "n": r.Dataset.N, "C": r.Algo.C, "num_iters": r.Algo.NumIters})
}

// DefaultRequest returns a request for family filled with the service's defaults.
func DefaultRequest(family string) (Request, error) {
	switch family {
	case trace.FamilyKMeans:
		return &KMeansRequest{
			Dataset: KMeansDataset{DataType: "blobs", NSamples: 300, NCenters: 3, RandomState: 42, NFeatures: 2},
			Algo:    KMeansAlgo{NClusters: 3, MaxIters: 100, Tolerance: 1e-4, InitMethod: "kmeans++"},
		}, nil
	case trace.FamilyLinReg:
		return &LinRegRequest{
			Dataset: LinRegDataset{N: 100, Seed: 42, TrueSlope: 2.0, TrueIntercept: -1.0, NoiseStd: 0.5, XMin: -5.0, XMax: 5.0},
			Algo:    LinRegAlgo{LearningRate: 0.01, NumIters: 100, FitIntercept: true},
		}, nil
	case trace.FamilyRegularization:
		return &RegularizationRequest{
			Dataset: RegularizationDataset{N: 100, Seed: 42, TrueCoefficients: []float64{0.0, 1.0, -0.5, 0.1}, NoiseStd: 0.5, XMin: -3.0, XMax: 3.0},
			Algo:    RegularizationAlgo{RegularizationType: "ridge", LearningRate: 0.001, LambdaReg: 0.1, NumIters: 100, FitIntercept: true},
		}, nil
	case trace.FamilyEM:
		return &EMRequest{
			Dataset: EMDataset{K: 4, Seed: 7, N: 600, CovDiagMin: 0.2, CovDiagMax: 1.0, MeanMin: -4.0, MeanMax: 4.0},
			Algo:    EMAlgo{C: 4, NumIters: 20},
		}, nil
	}
	return nil, fmt.Errorf("no request type for family %q", family)
}

func nonNegative(fields map[string]int) error {
	for name, v := range fields {
		if v < 0 {
			return fmt.Errorf("%s must be non-negative, got %d", name, v)
		}
	}
	return nil
}
