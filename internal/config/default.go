package config

import (
	"github.com/inodb/stagerank/internal/numeric"
	"github.com/inodb/stagerank/internal/pipeline"
	"github.com/inodb/stagerank/internal/regress"
	"github.com/inodb/stagerank/internal/residual"
	"github.com/inodb/stagerank/internal/summary"
)

// Default returns the reference layout: P. berghei as the reference species,
// P. falciparum and P. vivax mapped onto it, and six cross-species comparisons.
func Default() *File {
	mean := []summary.Spec{{Name: "mean", Kind: summary.Mean}}
	ref := func(dataset string) summary.Ref {
		return summary.Ref{Dataset: dataset, Statistic: "mean"}
	}
	pair := func(label, predictor, response string) residual.ComparisonPair {
		return residual.ComparisonPair{Label: label, Predictor: ref(predictor), Response: ref(response)}
	}

	return &File{
		Offset: numeric.DefaultOffset,
		Regression: pipeline.RegressionConfig{
			Method:    regress.MethodHuber,
			MaxIter:   regress.DefaultMaxIter,
			Tolerance: regress.DefaultTolerance,
		},
		ReferenceSpecies: "pberghei",
		Orthologs: []Ortholog{
			{Species: "pfalciparum", Path: "orthologs/pf_pb.tsv", NativeColumn: "pf_id", KeyColumn: "pb_id", SymbolColumn: "symbol"},
			{Species: "pvivax", Path: "orthologs/pv_pb.tsv", NativeColumn: "pv_id", KeyColumn: "pb_id", SymbolColumn: "symbol"},
		},
		Datasets: []Dataset{
			{Name: "pb_liver", Species: "pberghei", Path: "data/pb_liver.tsv", Statistics: mean},
			{Name: "pb_blood", Species: "pberghei", Path: "data/pb_blood.tsv", Statistics: mean},
			{Name: "pb_timecourse", Species: "pberghei", Path: "data/pb_timecourse.tsv", Statistics: []summary.Spec{
				{Name: "cumsum", Kind: summary.CumSum},
			}},
			{Name: "pf_liver", Species: "pfalciparum", Path: "data/pf_liver.tsv", Statistics: mean},
			{Name: "pf_blood", Species: "pfalciparum", Path: "data/pf_blood.tsv", Statistics: mean},
			{Name: "pv_liver", Species: "pvivax", Path: "data/pv_liver.tsv", Statistics: mean},
			{Name: "pv_blood", Species: "pvivax", Path: "data/pv_blood.tsv", Statistics: mean},
		},
		Species: []pipeline.SpeciesConfig{
			{Name: "pberghei", Liver: ref("pb_liver"), Blood: ref("pb_blood")},
			{Name: "pfalciparum", Liver: ref("pf_liver"), Blood: ref("pf_blood")},
			{Name: "pvivax", Liver: ref("pv_liver"), Blood: ref("pv_blood")},
		},
		Cumulative: summary.Ref{Dataset: "pb_timecourse", Statistic: "cumsum"},
		Pairs: []residual.ComparisonPair{
			pair("pf_pb_liver", "pb_liver", "pf_liver"),
			pair("pf_pb_blood", "pb_blood", "pf_blood"),
			pair("pv_pb_liver", "pb_liver", "pv_liver"),
			pair("pv_pb_blood", "pb_blood", "pv_blood"),
			pair("pv_pf_liver", "pf_liver", "pv_liver"),
			pair("pv_pf_blood", "pf_blood", "pv_blood"),
		},
		Output: Output{Path: "scores.tsv", Fits: "fits.tsv"},
	}
}
