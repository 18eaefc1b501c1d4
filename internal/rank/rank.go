// Package rank computes the liver/blood rank divergence of genes within a species
// and combines it across species into the F1 factor.
package rank

import (
	"fmt"
	"math"
	"slices"
	"sort"

	"github.com/inodb/stagerank/internal/numeric"
	"github.com/inodb/stagerank/internal/ortholog"
)

// Rank converts values to ascending ranks starting at 1.
// Tied values receive the average rank of their group.
func Rank(values []float64) []float64 {
	n := len(values)
	if n == 0 {
		return []float64{}
	}

	type pair struct {
		value float64
		index int
	}
	pairs := make([]pair, n)
	for i, v := range values {
		pairs[i] = pair{value: v, index: i}
	}
	sort.SliceStable(pairs, func(i, j int) bool {
		return pairs[i].value < pairs[j].value
	})

	ranks := make([]float64, n)
	i := 0
	for i < n {
		j := i + 1
		for j < n && pairs[j].value == pairs[i].value {
			j++
		}
		// positions i..j-1 hold ranks i+1..j
		avg := float64(i+1+j) / 2
		for k := i; k < j; k++ {
			ranks[pairs[k].index] = avg
		}
		i = j
	}
	return ranks
}

// Divergence is the rank divergence of one gene in one species.
type Divergence struct {
	GeneKey      ortholog.GeneKey
	LiverRank    float64
	BloodRank    float64
	RankDiff     float64 // |LiverRank - BloodRank|
	LogRankRatio float64 // log2(LiverRank / BloodRank), offset-protected
}

// Term is the gene's contribution to F1.
func (d Divergence) Term() float64 {
	return d.LogRankRatio * d.RankDiff
}

// Species ranks the genes that have both a liver and a blood value and returns their
// divergence in ascending GeneKey order. missing counts genes present in only one input.
func Species(liver, blood map[ortholog.GeneKey]float64, offset float64) (divs []Divergence, missing int, err error) {
	keys := make([]ortholog.GeneKey, 0, len(liver))
	for k, v := range liver {
		if math.IsNaN(v) {
			missing++
			continue
		}
		if b, ok := blood[k]; ok && !math.IsNaN(b) {
			keys = append(keys, k)
		} else {
			missing++
		}
	}
	for k := range blood {
		if _, ok := liver[k]; !ok {
			missing++
		}
	}
	slices.Sort(keys)

	lv := make([]float64, len(keys))
	bv := make([]float64, len(keys))
	for i, k := range keys {
		lv[i] = liver[k]
		bv[i] = blood[k]
	}
	lr := Rank(lv)
	br := Rank(bv)

	divs = make([]Divergence, len(keys))
	for i, k := range keys {
		lrr, err := numeric.Log2Ratio(lr[i], br[i], offset)
		if err != nil {
			return nil, missing, fmt.Errorf("log rank ratio of %s: %w", k, err)
		}
		divs[i] = Divergence{
			GeneKey:      k,
			LiverRank:    lr[i],
			BloodRank:    br[i],
			RankDiff:     math.Abs(lr[i] - br[i]),
			LogRankRatio: lrr,
		}
	}
	return divs, missing, nil
}

// Combine computes F1 = Σ_species LogRankRatio × RankDiff.
// Only genes ranked in every species receive a value. Terms are summed in species
// order so the result does not depend on map iteration.
func Combine(perSpecies [][]Divergence) map[ortholog.GeneKey]float64 {
	f1 := make(map[ortholog.GeneKey]float64)
	if len(perSpecies) == 0 {
		return f1
	}

	counts := make(map[ortholog.GeneKey]int)
	for _, divs := range perSpecies {
		for _, d := range divs {
			counts[d.GeneKey]++
		}
	}
	for _, divs := range perSpecies {
		for _, d := range divs {
			if counts[d.GeneKey] == len(perSpecies) {
				f1[d.GeneKey] += d.Term()
			}
		}
	}
	return f1
}
