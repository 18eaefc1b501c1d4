// Package score combines the three factors into the final ranking.
package score

import (
	"cmp"
	"slices"

	"github.com/inodb/stagerank/internal/ortholog"
)

// FinalScore is one ranked gene.
type FinalScore struct {
	GeneKey ortholog.GeneKey
	Label   string
	F1      float64
	F2      float64
	F3      float64
	Score   float64
}

// Components are the per-gene factor tables to combine.
type Components struct {
	F1     map[ortholog.GeneKey]float64
	F2     map[ortholog.GeneKey]float64
	F3     map[ortholog.GeneKey]float64
	Labels map[ortholog.GeneKey]string
}

// Compose computes Score = F1·F2·F3 for every gene holding all three factors and
// returns the genes ordered by Score descending. Equal scores keep ascending GeneKey
// order. ineligible counts genes that appear in some factor but not all of them.
func Compose(c Components) (scores []FinalScore, ineligible int) {
	seen := make(map[ortholog.GeneKey]bool, len(c.F1))
	for _, m := range []map[ortholog.GeneKey]float64{c.F1, c.F2, c.F3} {
		for k := range m {
			seen[k] = true
		}
	}

	keys := make([]ortholog.GeneKey, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	scores = make([]FinalScore, 0, len(keys))
	for _, k := range keys {
		f1, ok1 := c.F1[k]
		f2, ok2 := c.F2[k]
		f3, ok3 := c.F3[k]
		if !ok1 || !ok2 || !ok3 {
			ineligible++
			continue
		}
		label := c.Labels[k]
		if label == "" {
			label = string(k)
		}
		scores = append(scores, FinalScore{
			GeneKey: k,
			Label:   label,
			F1:      f1,
			F2:      f2,
			F3:      f3,
			Score:   f1 * f2 * f3,
		})
	}

	slices.SortStableFunc(scores, func(a, b FinalScore) int {
		return cmp.Compare(b.Score, a.Score)
	})
	return scores, ineligible
}
