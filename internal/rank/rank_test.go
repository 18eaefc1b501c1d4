package rank

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/stagerank/internal/numeric"
	"github.com/inodb/stagerank/internal/ortholog"
)

func TestRank(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   []float64
	}{
		{"ties averaged", []float64{5, 5, 10}, []float64{1.5, 1.5, 3}},
		{"unsorted input", []float64{30, 10, 20}, []float64{3, 1, 2}},
		{"all tied", []float64{7, 7, 7, 7}, []float64{2.5, 2.5, 2.5, 2.5}},
		{"tie in the middle", []float64{1, 4, 4, 4, 9}, []float64{1, 3, 3, 3, 5}},
		{"single", []float64{42}, []float64{1}},
		{"empty", nil, []float64{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Rank(tt.values))
		})
	}
}

func TestSpecies_ThreeGeneScenario(t *testing.T) {
	liver := map[ortholog.GeneKey]float64{"G1": 100, "G2": 1, "G3": 50}
	blood := map[ortholog.GeneKey]float64{"G1": 1, "G2": 100, "G3": 50}

	divs, missing, err := Species(liver, blood, numeric.DefaultOffset)
	require.NoError(t, err)
	assert.Equal(t, 0, missing)
	require.Len(t, divs, 3)

	byKey := make(map[ortholog.GeneKey]Divergence)
	for _, d := range divs {
		byKey[d.GeneKey] = d
	}

	g1, g2, g3 := byKey["G1"], byKey["G2"], byKey["G3"]

	assert.Equal(t, 3.0, g1.LiverRank)
	assert.Equal(t, 1.0, g1.BloodRank)
	assert.Equal(t, 1.0, g2.LiverRank)
	assert.Equal(t, 3.0, g2.BloodRank)
	assert.Equal(t, 2.0, g3.LiverRank)
	assert.Equal(t, 2.0, g3.BloodRank)

	assert.Equal(t, 2.0, g1.RankDiff)
	assert.Equal(t, 2.0, g2.RankDiff)
	assert.Equal(t, 0.0, g3.RankDiff)

	want := math.Log2(3.001 / 1.001)
	assert.InDelta(t, want, g1.LogRankRatio, 1e-12)
	assert.InDelta(t, -want, g2.LogRankRatio, 1e-12)
	assert.Equal(t, 0.0, g3.LogRankRatio)

	f1 := Combine([][]Divergence{divs})
	assert.InDelta(t, 2*want, f1["G1"], 1e-12)
	assert.InDelta(t, -2*want, f1["G2"], 1e-12)
	assert.Equal(t, 0.0, f1["G3"])

	assert.Greater(t, math.Abs(f1["G1"]), math.Abs(f1["G3"]))
	assert.Greater(t, math.Abs(f1["G2"]), math.Abs(f1["G3"]))
	assert.True(t, f1["G1"] > 0 && f1["G2"] < 0, "G1 and G2 diverge in opposite directions")
}

func TestSpecies_OrderedAndMissing(t *testing.T) {
	liver := map[ortholog.GeneKey]float64{"B": 1, "A": 2, "C": 3, "D": math.NaN()}
	blood := map[ortholog.GeneKey]float64{"A": 1, "B": 2, "E": 5}

	divs, missing, err := Species(liver, blood, numeric.DefaultOffset)
	require.NoError(t, err)
	assert.Equal(t, 3, missing, "C and D lack blood, E lacks liver")
	require.Len(t, divs, 2)
	assert.Equal(t, ortholog.GeneKey("A"), divs[0].GeneKey)
	assert.Equal(t, ortholog.GeneKey("B"), divs[1].GeneKey)
}

func TestCombine_RequiresEverySpecies(t *testing.T) {
	pb := []Divergence{
		{GeneKey: "G1", RankDiff: 2, LogRankRatio: 1},
		{GeneKey: "G2", RankDiff: 1, LogRankRatio: -1},
	}
	pf := []Divergence{
		{GeneKey: "G1", RankDiff: 1, LogRankRatio: -0.5},
	}

	f1 := Combine([][]Divergence{pb, pf})
	assert.Equal(t, map[ortholog.GeneKey]float64{"G1": 1.5}, f1)

	assert.Empty(t, Combine(nil))
}

func TestCombine_SignFollowsDominantSpecies(t *testing.T) {
	a := []Divergence{{GeneKey: "G", RankDiff: 10, LogRankRatio: 1}}
	b := []Divergence{{GeneKey: "G", RankDiff: 1, LogRankRatio: -0.1}}
	f1 := Combine([][]Divergence{a, b})
	assert.InDelta(t, 9.9, f1["G"], 1e-12)
}
