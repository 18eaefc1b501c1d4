// Package regress provides the linear regression capability used to relate
// expression between species and datasets.
//
// A Regressor fits y ≈ a + b·x and reports per-sample residuals. IRLS is the
// robust default; OLS is available for comparison.
package regress

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

var (
	// ErrDegenerate is returned for input a line cannot be fitted to.
	ErrDegenerate = errors.New("degenerate regression input")
	// ErrNotConverged is returned when IRLS exhausts its iteration budget.
	ErrNotConverged = errors.New("robust regression did not converge")
)

// Fit is the result of regressing y on x.
type Fit struct {
	Intercept  float64
	Slope      float64
	Residuals  []float64 // y - (Intercept + Slope·x), in input order
	Weights    []float64 // final observation weights
	Iterations int
}

// Fitted returns the model's expected response at x.
func (f Fit) Fitted(x float64) float64 {
	return f.Intercept + f.Slope*x
}

// Regressor fits a straight line to paired samples.
type Regressor interface {
	Name() string
	Fit(x, y []float64) (Fit, error)
}

// Method names accepted by New.
const (
	MethodHuber    = "huber"
	MethodBisquare = "bisquare"
	MethodOLS      = "ols"
)

// Options tune the iterative methods. Zero values select the defaults.
type Options struct {
	MaxIter   int
	Tolerance float64
}

// New returns the regressor registered under method.
func New(method string, opts Options) (Regressor, error) {
	switch method {
	case MethodHuber, "":
		return &IRLS{Norm: Huber{}, MaxIter: opts.MaxIter, Tolerance: opts.Tolerance}, nil
	case MethodBisquare:
		return &IRLS{Norm: Bisquare{}, MaxIter: opts.MaxIter, Tolerance: opts.Tolerance}, nil
	case MethodOLS:
		return OLS{}, nil
	}
	return nil, fmt.Errorf("unknown regression method %q", method)
}

// checkInput validates paired samples shared by every regressor.
func checkInput(x, y []float64) error {
	if len(x) != len(y) {
		return fmt.Errorf("%w: %d predictors for %d responses", ErrDegenerate, len(x), len(y))
	}
	if len(x) < 3 {
		return fmt.Errorf("%w: need at least 3 samples, got %d", ErrDegenerate, len(x))
	}
	for i := range x {
		if math.IsNaN(x[i]) || math.IsInf(x[i], 0) || math.IsNaN(y[i]) || math.IsInf(y[i], 0) {
			return fmt.Errorf("%w: non-finite sample at %d", ErrDegenerate, i)
		}
	}
	if floats.Max(x) == floats.Min(x) {
		return fmt.Errorf("%w: constant predictor", ErrDegenerate)
	}
	return nil
}

func residuals(x, y []float64, a, b float64) []float64 {
	r := make([]float64, len(x))
	for i := range x {
		r[i] = y[i] - (a + b*x[i])
	}
	return r
}
