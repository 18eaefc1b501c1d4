// Package normalize turns cumulative blood-stage expression into the F2 factor.
package normalize

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"

	"github.com/inodb/stagerank/internal/ortholog"
)

// Cumulative is the min-max normalized log10 cumulative expression of a gene set.
type Cumulative struct {
	Mu         map[ortholog.GeneKey]float64
	Min, Max   float64            // log10 range
	Degenerate []ortholog.GeneKey // cumulative expression <= 0, excluded
	FlatRange  bool               // Max == Min; every mu is 0
}

// Normalize computes mu = (log10(x) - min) / (max - min) over genes with x > 0.
// Genes with x <= 0 (or NaN) cannot be logged and are reported as Degenerate.
func Normalize(cumulative map[ortholog.GeneKey]float64) Cumulative {
	c := Cumulative{Mu: make(map[ortholog.GeneKey]float64, len(cumulative))}

	logs := make(map[ortholog.GeneKey]float64, len(cumulative))
	vals := make([]float64, 0, len(cumulative))
	for k, x := range cumulative {
		if !(x > 0) || math.IsInf(x, 0) {
			c.Degenerate = append(c.Degenerate, k)
			continue
		}
		logs[k] = math.Log10(x)
		vals = append(vals, logs[k])
	}
	slices.Sort(c.Degenerate)
	if len(vals) > 0 {
		c.Min, c.Max = floats.Min(vals), floats.Max(vals)
	}

	span := c.Max - c.Min
	c.FlatRange = len(logs) > 0 && span == 0
	for k, l := range logs {
		if c.FlatRange {
			c.Mu[k] = 0
			continue
		}
		c.Mu[k] = (l - c.Min) / span
	}
	return c
}

// F2 converts mu into the burden factor according to the sign of F1:
// 1-mu when F1 > 0, mu when F1 < 0 and 0 when F1 == 0.
func F2(f1, mu float64) float64 {
	switch {
	case f1 > 0:
		return 1 - mu
	case f1 < 0:
		return mu
	}
	return 0
}
