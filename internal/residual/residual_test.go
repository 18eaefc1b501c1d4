package residual

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/stagerank/internal/numeric"
	"github.com/inodb/stagerank/internal/ortholog"
	"github.com/inodb/stagerank/internal/regress"
	"github.com/inodb/stagerank/internal/summary"
)

// lineRegressor returns a fixed line so normalization can be checked exactly.
type lineRegressor struct{ a, b float64 }

func (l lineRegressor) Name() string { return "line" }

func (l lineRegressor) Fit(x, y []float64) (regress.Fit, error) {
	res := make([]float64, len(x))
	for i := range x {
		res[i] = y[i] - (l.a + l.b*x[i])
	}
	return regress.Fit{Intercept: l.a, Slope: l.b, Residuals: res, Iterations: 1}, nil
}

type values map[ortholog.GeneKey]float64

func lookupOf(data map[string]values) Lookup {
	return func(ref summary.Ref) (map[ortholog.GeneKey]float64, bool) {
		v, ok := data[ref.String()]
		return v, ok
	}
}

func mustScore(t *testing.T, s *Scorer, pairs []ComparisonPair, lookup Lookup) Result {
	t.Helper()
	res, err := s.Score(context.Background(), pairs, lookup)
	require.NoError(t, err)
	return res
}

func pair(label, predictor, response string) ComparisonPair {
	return ComparisonPair{
		Label:     label,
		Predictor: summary.Ref{Dataset: predictor, Statistic: "mean"},
		Response:  summary.Ref{Dataset: response, Statistic: "mean"},
	}
}

func TestFitPair_NormalizesByFittedValue(t *testing.T) {
	lookup := lookupOf(map[string]values{
		"pb.mean": {"G1": 1, "G2": 2, "G3": -0.001, "G4": 5},
		"pf.mean": {"G1": 2, "G2": 1, "G3": 7, "G5": 1},
	})
	s := NewScorer(lineRegressor{a: 0, b: 1}, numeric.DefaultOffset)

	fit, err := s.FitPair(pair("pf~pb", "pb", "pf"), lookup)
	require.NoError(t, err)

	assert.Equal(t, 3, fit.Samples, "inner join keeps G1..G3")
	assert.Equal(t, 1.0, fit.Residuals["G1"])
	assert.Equal(t, -1.0, fit.Residuals["G2"])

	assert.InDelta(t, 1.0, fit.Normalized["G1"], 1e-12)
	assert.InDelta(t, -0.999/2.001, fit.Normalized["G2"], 1e-12)

	assert.Equal(t, []ortholog.GeneKey{"G3"}, fit.Undefined, "negative fitted value")
	assert.NotContains(t, fit.Normalized, ortholog.GeneKey("G3"))
}

func TestFitPair_NegativeFittedValueIsUndefined(t *testing.T) {
	lookup := lookupOf(map[string]values{
		"pb.mean": {"G1": 0, "G2": 1, "G3": 2},
		"pf.mean": {"G1": 5, "G2": 5, "G3": 5},
	})
	// fitted values -0.0009, 0.9991, 1.9991. G1 is finite once the offset is
	// added but must still be excluded.
	s := NewScorer(lineRegressor{a: -0.0009, b: 1}, numeric.DefaultOffset)

	fit, err := s.FitPair(pair("pf~pb", "pb", "pf"), lookup)
	require.NoError(t, err)

	assert.Equal(t, []ortholog.GeneKey{"G1"}, fit.Undefined)
	assert.NotContains(t, fit.Normalized, ortholog.GeneKey("G1"))
	assert.InDelta(t, (5-0.9991+0.001)/(0.9991+0.001), fit.Normalized["G2"], 1e-9)
	assert.Len(t, fit.Normalized, 2)
}

func TestScore_Cancelled(t *testing.T) {
	lookup := lookupOf(map[string]values{
		"pb.mean": {"G1": 1, "G2": 2, "G3": 3},
		"pf.mean": {"G1": 3, "G2": 2, "G3": 3},
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewScorer(lineRegressor{a: 0, b: 1}, 0)
	_, err := s.Score(ctx, []ComparisonPair{pair("pf~pb", "pb", "pf")}, lookup)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFitPair_MissingInput(t *testing.T) {
	s := NewScorer(regress.OLS{}, numeric.DefaultOffset)
	_, err := s.FitPair(pair("x", "pb", "pv"), lookupOf(map[string]values{"pb.mean": {"G1": 1}}))
	assert.ErrorContains(t, err, "response pv.mean not found")
}

func TestScore_SumsAcrossPairs(t *testing.T) {
	lookup := lookupOf(map[string]values{
		"pb.mean": {"G1": 1, "G2": 2, "G3": 3},
		"pf.mean": {"G1": 3, "G2": 2, "G3": 3},
		"pv.mean": {"G1": 1, "G2": 2},
	})
	s := NewScorer(lineRegressor{a: 0, b: 1}, 0)

	res := mustScore(t, s, []ComparisonPair{
		pair("pf~pb", "pb", "pf"),
		pair("pv~pb", "pb", "pv"),
	}, lookup)

	require.Len(t, res.Fits, 2)
	assert.Equal(t, "pf~pb", res.Fits[0].Pair.Label)
	assert.Equal(t, "pv~pb", res.Fits[1].Pair.Label)
	assert.Empty(t, res.Failures)

	// pf~pb: G1 r=2 nr=2, G2 r=0 nr=0, G3 r=0 nr=0. pv~pb: all residuals 0.
	assert.Equal(t, 2.0, res.R["G1"])
	assert.Equal(t, 0.0, res.R["G2"])
	assert.Equal(t, 0.5, res.F3["G1"])

	assert.Equal(t, []ortholog.GeneKey{"G2", "G3"}, res.ZeroSum)
	assert.NotContains(t, res.F3, ortholog.GeneKey("G2"))
}

func TestScore_GeneAbsentFromPairIsNotZeroFilled(t *testing.T) {
	lookup := lookupOf(map[string]values{
		"a.mean": {"G1": 1, "G2": 1},
		"b.mean": {"G1": 2, "G2": 3},
		"c.mean": {"G1": 1},
		"d.mean": {"G1": 5},
		"e.mean": {"G9": 1},
	})
	s := NewScorer(lineRegressor{a: 0, b: 1}, 0)

	res := mustScore(t, s, []ComparisonPair{
		pair("b~a", "a", "b"),
		pair("d~c", "c", "d"),
		pair("e~a", "a", "e"),
	}, lookup)

	assert.Equal(t, 1.0+4.0, res.R["G1"])
	assert.Equal(t, 2.0, res.R["G2"])
	assert.Equal(t, 0.5, res.F3["G2"])
	assert.NotContains(t, res.R, ortholog.GeneKey("G9"), "G9 is in no fitted pair")
}

func TestScore_FailedPairExcluded(t *testing.T) {
	lookup := lookupOf(map[string]values{
		"pb.mean":   {"G1": 1, "G2": 2, "G3": 3, "G4": 4},
		"pf.mean":   {"G1": 2, "G2": 4, "G3": 6.5, "G4": 8},
		"flat.mean": {"G1": 7, "G2": 7, "G3": 7, "G4": 7},
	})
	s := NewScorer(regress.OLS{}, numeric.DefaultOffset)

	res := mustScore(t, s, []ComparisonPair{
		pair("constant", "flat", "pf"),
		pair("pf~pb", "pb", "pf"),
		pair("missing", "pb", "pv"),
	}, lookup)

	require.Len(t, res.Failures, 2)
	assert.Equal(t, "constant", res.Failures[0].Pair.Label)
	assert.True(t, errors.Is(res.Failures[0].Err, regress.ErrDegenerate))
	assert.Equal(t, "missing", res.Failures[1].Pair.Label)

	require.Len(t, res.Fits, 1)
	assert.Equal(t, "pf~pb", res.Fits[0].Pair.Label)
	assert.Len(t, res.F3, 4)
}

func TestScore_Deterministic(t *testing.T) {
	data := map[string]values{}
	var pairs []ComparisonPair
	for p := 0; p < 6; p++ {
		x, y := values{}, values{}
		for g := 0; g < 40; g++ {
			key := ortholog.GeneKey(fmt.Sprintf("G%02d", g))
			x[key] = float64(g + 1)
			y[key] = 3*float64(g+1) + 2 + float64((g*7+p)%5) - 2
		}
		px, py := fmt.Sprintf("x%d", p), fmt.Sprintf("y%d", p)
		data[px+".mean"], data[py+".mean"] = x, y
		pairs = append(pairs, pair(fmt.Sprintf("pair%d", p), px, py))
	}

	run := func(workers int) Result {
		s := NewScorer(regress.OLS{}, numeric.DefaultOffset)
		s.SetWorkers(workers)
		return mustScore(t, s, pairs, lookupOf(data))
	}

	first := run(4)
	require.Len(t, first.Fits, 6)
	for i := 0; i < 5; i++ {
		again := run(4)
		assert.Equal(t, first.F3, again.F3)
		assert.Equal(t, first.R, again.R)
	}
	assert.Equal(t, first.F3, run(1).F3)
}

func TestInvert_Monotonic(t *testing.T) {
	small, ok := Invert(0.1)
	require.True(t, ok)
	large, ok := Invert(10)
	require.True(t, ok)
	assert.Greater(t, small, large)

	neg, ok := Invert(-4)
	require.True(t, ok)
	assert.Equal(t, 0.25, neg)

	_, ok = Invert(0)
	assert.False(t, ok)
}
