package regress

import (
	"fmt"
	"math"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Default IRLS settings.
const (
	DefaultMaxIter   = 50
	DefaultTolerance = 1e-8
)

// madNormal rescales the median absolute deviation to a normal standard deviation.
const madNormal = 0.6744897501960817

// Norm maps a standardized residual to an observation weight in [0, 1].
type Norm interface {
	Name() string
	Weight(u float64) float64
}

// Huber downweights residuals beyond C scale units in proportion to their size.
type Huber struct {
	C float64 // defaults to 1.345
}

func (Huber) Name() string { return MethodHuber }

func (h Huber) Weight(u float64) float64 {
	c := h.C
	if c == 0 {
		c = 1.345
	}
	if a := math.Abs(u); a > c {
		return c / a
	}
	return 1
}

// Bisquare (Tukey's biweight) gives zero weight to residuals beyond C scale units.
type Bisquare struct {
	C float64 // defaults to 4.685
}

func (Bisquare) Name() string { return MethodBisquare }

func (b Bisquare) Weight(u float64) float64 {
	c := b.C
	if c == 0 {
		c = 4.685
	}
	if math.Abs(u) >= c {
		return 0
	}
	t := 1 - (u/c)*(u/c)
	return t * t
}

// IRLS fits a robust line by iteratively reweighted least squares.
// Each step is a weighted least-squares fit with weights from Norm applied to
// residuals standardized by their MAD scale.
type IRLS struct {
	Norm      Norm
	MaxIter   int
	Tolerance float64
}

func (r *IRLS) Name() string { return r.Norm.Name() }

// Fit regresses y on x. It returns ErrNotConverged when the coefficients are still
// moving after MaxIter reweighting steps.
func (r *IRLS) Fit(x, y []float64) (Fit, error) {
	if err := checkInput(x, y); err != nil {
		return Fit{}, err
	}
	maxIter := r.MaxIter
	if maxIter <= 0 {
		maxIter = DefaultMaxIter
	}
	tol := r.Tolerance
	if tol <= 0 {
		tol = DefaultTolerance
	}

	a, b := stat.LinearRegression(x, y, nil, false)
	weights := make([]float64, len(x))
	for i := range weights {
		weights[i] = 1
	}

	for iter := 1; iter <= maxIter; iter++ {
		res := residuals(x, y, a, b)
		scale, err := madScale(res)
		if err != nil {
			return Fit{}, fmt.Errorf("estimate scale: %w", err)
		}
		if scale < 1e-12 {
			// at least half of the samples lie on the line
			return Fit{Intercept: a, Slope: b, Residuals: res, Weights: weights, Iterations: iter - 1}, nil
		}

		for i, e := range res {
			weights[i] = r.Norm.Weight(e / scale)
		}
		if floats.Sum(weights) == 0 {
			return Fit{}, fmt.Errorf("%w: every observation has zero weight", ErrDegenerate)
		}

		na, nb := stat.LinearRegression(x, y, weights, false)
		if math.IsNaN(na) || math.IsNaN(nb) {
			return Fit{}, fmt.Errorf("%w: weighted fit is undefined", ErrDegenerate)
		}

		done := math.Abs(na-a) <= tol*(1+math.Abs(a)) && math.Abs(nb-b) <= tol*(1+math.Abs(b))
		a, b = na, nb
		if done {
			return Fit{Intercept: a, Slope: b, Residuals: residuals(x, y, a, b), Weights: weights, Iterations: iter}, nil
		}
	}

	return Fit{}, fmt.Errorf("%w after %d iterations", ErrNotConverged, maxIter)
}

// madScale returns median(|r|)/0.6745.
func madScale(res []float64) (float64, error) {
	abs := make([]float64, len(res))
	for i, e := range res {
		abs[i] = math.Abs(e)
	}
	m, err := stats.Median(abs)
	if err != nil {
		return 0, err
	}
	return m / madNormal, nil
}
