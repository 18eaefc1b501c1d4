package regress

import (
	"fmt"

	"github.com/sajari/regression"
)

// OLS is ordinary least squares. Every observation keeps weight 1.
type OLS struct{}

func (OLS) Name() string { return MethodOLS }

func (OLS) Fit(x, y []float64) (Fit, error) {
	if err := checkInput(x, y); err != nil {
		return Fit{}, err
	}

	r := new(regression.Regression)
	r.SetObserved("response")
	r.SetVar(0, "predictor")
	for i := range x {
		r.Train(regression.DataPoint(y[i], []float64{x[i]}))
	}
	if err := r.Run(); err != nil {
		return Fit{}, fmt.Errorf("ols: %w", err)
	}

	a, b := r.Coeff(0), r.Coeff(1)
	weights := make([]float64, len(x))
	for i := range weights {
		weights[i] = 1
	}
	return Fit{
		Intercept:  a,
		Slope:      b,
		Residuals:  residuals(x, y, a, b),
		Weights:    weights,
		Iterations: 1,
	}, nil
}
