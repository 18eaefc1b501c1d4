package pipeline

import (
	"maps"
	"slices"

	"github.com/inodb/stagerank/internal/ortholog"
	"github.com/inodb/stagerank/internal/residual"
	"github.com/inodb/stagerank/internal/summary"
)

// Diagnostics counts the genes and pairs excluded during a run.
// None of these conditions abort the run.
type Diagnostics struct {
	OrthologRecords        map[string]int                  // mapped records per species
	Rekey                  map[string]ortholog.RekeyReport // per dataset
	Summaries              map[string]summary.Report       // per dataset
	RankMissing            map[string]int                  // genes lacking a liver or blood value, per species
	DegenerateLog          int                             // cumulative expression <= 0
	FlatRange              bool
	UndefinedNormalization map[string]int // per pair label
	FailedPairs            []residual.PairFailure
	ZeroResidualSum        int
	NoScoreEligible        int
	Scored                 int
}

func newDiagnostics() Diagnostics {
	return Diagnostics{
		OrthologRecords:        make(map[string]int),
		Rekey:                  make(map[string]ortholog.RekeyReport),
		Summaries:              make(map[string]summary.Report),
		RankMissing:            make(map[string]int),
		UndefinedNormalization: make(map[string]int),
	}
}

// MissingOrtholog returns the dataset rows dropped because their gene has no
// reference counterpart.
func (d *Diagnostics) MissingOrtholog() int {
	n := 0
	for _, r := range d.Rekey {
		n += r.Unmapped
	}
	return n
}

// MissingSummaryInput returns the (gene, statistic) values not computed because a
// required column was empty, plus genes not ranked for lack of a liver or blood value.
func (d *Diagnostics) MissingSummaryInput() int {
	n := 0
	for _, r := range d.Summaries {
		for _, c := range r.Missing {
			n += c
		}
	}
	for _, c := range d.RankMissing {
		n += c
	}
	return n
}

// NonPositiveGeometricMean returns the geometric means skipped over values <= 0.
func (d *Diagnostics) NonPositiveGeometricMean() int {
	n := 0
	for _, r := range d.Summaries {
		for _, c := range r.NonPositive {
			n += c
		}
	}
	return n
}

// UndefinedNormalizationTotal sums UndefinedNormalization over all pairs.
func (d *Diagnostics) UndefinedNormalizationTotal() int {
	n := 0
	for _, c := range d.UndefinedNormalization {
		n += c
	}
	return n
}

// Datasets returns the dataset names in sorted order.
func (d *Diagnostics) Datasets() []string {
	return slices.Sorted(maps.Keys(d.Rekey))
}
