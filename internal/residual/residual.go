// Package residual scores how consistently a gene follows the cross-species and
// cross-dataset expression trends (the F3 factor).
//
// Each configured ComparisonPair is fitted with a robust line, residuals are
// expressed as a fraction of the fitted value and their absolute values are
// summed per gene. F3 is the inverse of that sum.
package residual

import (
	"context"
	"fmt"
	"math"
	"slices"

	"go.uber.org/zap"

	"github.com/inodb/stagerank/internal/numeric"
	"github.com/inodb/stagerank/internal/ortholog"
	"github.com/inodb/stagerank/internal/regress"
	"github.com/inodb/stagerank/internal/summary"
)

// ComparisonPair is one correlation to fit: response ≈ a + b·predictor.
type ComparisonPair struct {
	Label     string      `mapstructure:"label" yaml:"label"`
	Predictor summary.Ref `mapstructure:"predictor" yaml:"predictor"`
	Response  summary.Ref `mapstructure:"response" yaml:"response"`
}

// Lookup resolves a dataset statistic to per-gene values.
type Lookup func(summary.Ref) (map[ortholog.GeneKey]float64, bool)

// FitResult is the fitted model of one pair and its per-gene residuals.
type FitResult struct {
	Pair       ComparisonPair
	Samples    int
	Intercept  float64
	Slope      float64
	Iterations int
	Residuals  map[ortholog.GeneKey]float64
	Normalized map[ortholog.GeneKey]float64
	Undefined  []ortholog.GeneKey // fitted value made the normalized residual undefined
}

// PairFailure records a pair excluded from F3 for every gene.
type PairFailure struct {
	Pair ComparisonPair
	Err  error
}

// Result is the outcome of scoring all pairs.
type Result struct {
	F3       map[ortholog.GeneKey]float64
	R        map[ortholog.GeneKey]float64
	Fits     []FitResult   // successful fits in configured order
	Failures []PairFailure // in configured order
	ZeroSum  []ortholog.GeneKey
}

// Scorer fits comparison pairs and aggregates their residuals.
type Scorer struct {
	regressor regress.Regressor
	offset    float64
	workers   int
	logger    *zap.Logger
}

// NewScorer creates a scorer using the given regression capability.
func NewScorer(r regress.Regressor, offset float64) *Scorer {
	return &Scorer{
		regressor: r,
		offset:    offset,
		logger:    zap.NewNop(),
	}
}

// SetWorkers sets how many pairs are fitted concurrently. 0 uses runtime.NumCPU().
func (s *Scorer) SetWorkers(n int) {
	s.workers = n
}

// SetLogger sets the logger for run-level events.
func (s *Scorer) SetLogger(l *zap.Logger) {
	s.logger = l
}

// FitPair joins the predictor and response on GeneKey, fits the line and normalizes
// each residual by the fitted value.
func (s *Scorer) FitPair(pair ComparisonPair, lookup Lookup) (FitResult, error) {
	xs, ok := lookup(pair.Predictor)
	if !ok {
		return FitResult{}, fmt.Errorf("predictor %s not found", pair.Predictor)
	}
	ys, ok := lookup(pair.Response)
	if !ok {
		return FitResult{}, fmt.Errorf("response %s not found", pair.Response)
	}

	keys := make([]ortholog.GeneKey, 0, len(xs))
	for k := range xs {
		if _, ok := ys[k]; ok {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)

	x := make([]float64, len(keys))
	y := make([]float64, len(keys))
	for i, k := range keys {
		x[i] = xs[k]
		y[i] = ys[k]
	}

	fit, err := s.regressor.Fit(x, y)
	if err != nil {
		return FitResult{}, fmt.Errorf("fit %s: %w", pair.Label, err)
	}

	res := FitResult{
		Pair:       pair,
		Samples:    len(keys),
		Intercept:  fit.Intercept,
		Slope:      fit.Slope,
		Iterations: fit.Iterations,
		Residuals:  make(map[ortholog.GeneKey]float64, len(keys)),
		Normalized: make(map[ortholog.GeneKey]float64, len(keys)),
	}
	for i, k := range keys {
		r := fit.Residuals[i]
		res.Residuals[k] = r
		fitted := fit.Fitted(x[i])
		// the residual is scaled by the fitted value, which must be positive
		if fitted <= 0 {
			res.Undefined = append(res.Undefined, k)
			continue
		}
		nr, err := numeric.Ratio(r, fitted, s.offset)
		if err != nil {
			res.Undefined = append(res.Undefined, k)
			continue
		}
		res.Normalized[k] = nr
	}
	return res, nil
}

// Score fits every pair, concurrently, and merges the results in configured order.
// A pair that fails is excluded for all genes and reported in Failures.
// Cancelling ctx stops the merge and returns ctx's error.
func (s *Scorer) Score(ctx context.Context, pairs []ComparisonPair, lookup Lookup) (Result, error) {
	items := make(chan WorkItem, len(pairs))
	for i, p := range pairs {
		items <- WorkItem{Seq: i, Pair: p}
	}
	close(items)

	result := Result{
		F3: make(map[ortholog.GeneKey]float64),
		R:  make(map[ortholog.GeneKey]float64),
	}

	err := OrderedCollect(s.ParallelFit(ctx, items, lookup, s.workers), func(r WorkResult) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if r.Err != nil {
			s.logger.Warn("comparison pair excluded",
				zap.String("pair", r.Pair.Label),
				zap.Error(r.Err))
			result.Failures = append(result.Failures, PairFailure{Pair: r.Pair, Err: r.Err})
			return nil
		}
		s.logger.Debug("comparison pair fitted",
			zap.String("pair", r.Pair.Label),
			zap.Int("genes", r.Fit.Samples),
			zap.Float64("intercept", r.Fit.Intercept),
			zap.Float64("slope", r.Fit.Slope),
			zap.Int("undefined", len(r.Fit.Undefined)))
		result.Fits = append(result.Fits, r.Fit)
		return nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("fit comparison pairs: %w", err)
	}

	for _, fit := range result.Fits {
		keys := make([]ortholog.GeneKey, 0, len(fit.Normalized))
		for k := range fit.Normalized {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			result.R[k] += math.Abs(fit.Normalized[k])
		}
	}

	for k, r := range result.R {
		f3, ok := Invert(r)
		if !ok {
			result.ZeroSum = append(result.ZeroSum, k)
			continue
		}
		result.F3[k] = f3
	}
	slices.Sort(result.ZeroSum)

	return result, nil
}

// Invert returns 1/|r|. ok is false when r is zero or not finite.
func Invert(r float64) (f3 float64, ok bool) {
	a := math.Abs(r)
	if a == 0 || math.IsNaN(a) || math.IsInf(a, 0) {
		return 0, false
	}
	return 1 / a, true
}
