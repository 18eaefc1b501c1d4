// Package summary reduces per-replicate and per-timepoint expression tables to
// per-gene summary statistics.
package summary

import (
	"errors"
	"fmt"
	"maps"
	"math"

	"github.com/montanaflynn/stats"

	"github.com/inodb/stagerank/internal/ortholog"
	"github.com/inodb/stagerank/internal/table"
)

// Kind is a supported summary statistic.
type Kind string

const (
	Mean    Kind = "mean"
	GeoMean Kind = "geomean"
	Max     Kind = "max"
	CumSum  Kind = "cumsum"
)

// ParseKind validates a statistic kind name.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case Mean, GeoMean, Max, CumSum:
		return k, nil
	}
	return "", fmt.Errorf("unknown statistic kind %q", s)
}

// ErrNonPositive is returned by GeometricMean for inputs containing a value <= 0.
var ErrNonPositive = errors.New("geometric mean requires positive values")

// Spec configures one named statistic over a subset of columns.
// Empty Columns means every column of the table.
type Spec struct {
	Name    string   `mapstructure:"name" yaml:"name"`
	Kind    Kind     `mapstructure:"kind" yaml:"kind"`
	Columns []string `mapstructure:"columns" yaml:"columns,omitempty"`
}

// Ref addresses one statistic of one dataset.
type Ref struct {
	Dataset   string `mapstructure:"dataset" yaml:"dataset"`
	Statistic string `mapstructure:"statistic" yaml:"statistic"`
}

func (r Ref) String() string { return r.Dataset + "." + r.Statistic }

// Row is one long-form summary value.
type Row struct {
	GeneKey   ortholog.GeneKey
	Dataset   string
	Statistic string
	Value     float64
}

// Summary holds the statistics computed for one dataset.
type Summary struct {
	dataset string
	rows    []Row
	values  map[string]map[ortholog.GeneKey]float64
}

// Report counts rows excluded per statistic.
type Report struct {
	Dataset     string
	Rows        int
	Missing     map[string]int // a required column had no value
	NonPositive map[string]int // geometric mean over a value <= 0
}

// Summarize computes every spec for each row of t. Row IDs must already be GeneKeys.
// A row lacking a value in a spec's columns is excluded from that statistic only.
func Summarize(t *table.Table, specs []Spec) (*Summary, Report, error) {
	rep := Report{
		Dataset:     t.Name(),
		Rows:        t.Len(),
		Missing:     make(map[string]int),
		NonPositive: make(map[string]int),
	}

	cols := make([][]string, len(specs))
	for i, sp := range specs {
		if _, err := ParseKind(string(sp.Kind)); err != nil {
			return nil, rep, fmt.Errorf("dataset %s statistic %s: %w", t.Name(), sp.Name, err)
		}
		cols[i] = sp.Columns
		if len(cols[i]) == 0 {
			cols[i] = t.Columns()
		}
		for _, c := range cols[i] {
			if !t.HasColumn(c) {
				return nil, rep, fmt.Errorf("dataset %s statistic %s: unknown column %q", t.Name(), sp.Name, c)
			}
		}
	}

	s := &Summary{
		dataset: t.Name(),
		values:  make(map[string]map[ortholog.GeneKey]float64, len(specs)),
	}
	for _, sp := range specs {
		s.values[sp.Name] = make(map[ortholog.GeneKey]float64, t.Len())
	}

	buf := make([]float64, 0, len(t.Columns()))
	for i := 0; i < t.Len(); i++ {
		key := ortholog.GeneKey(t.ID(i))
		for j, sp := range specs {
			buf = buf[:0]
			complete := true
			for _, c := range cols[j] {
				v, ok := t.Value(i, c)
				if !ok {
					complete = false
					break
				}
				buf = append(buf, v)
			}
			if !complete || len(buf) == 0 {
				rep.Missing[sp.Name]++
				continue
			}

			v, err := compute(sp.Kind, buf)
			if errors.Is(err, ErrNonPositive) {
				rep.NonPositive[sp.Name]++
				continue
			}
			if err != nil {
				return nil, rep, fmt.Errorf("dataset %s statistic %s gene %s: %w", t.Name(), sp.Name, key, err)
			}

			s.values[sp.Name][key] = v
			s.rows = append(s.rows, Row{GeneKey: key, Dataset: t.Name(), Statistic: sp.Name, Value: v})
		}
	}

	return s, rep, nil
}

func compute(kind Kind, xs []float64) (float64, error) {
	switch kind {
	case Mean:
		return stats.Mean(xs)
	case GeoMean:
		return GeometricMean(xs)
	case Max:
		return stats.Max(xs)
	case CumSum:
		return stats.Sum(xs)
	}
	return 0, fmt.Errorf("unknown statistic kind %q", kind)
}

// GeometricMean returns exp(mean(log(x))). Every value must be > 0.
func GeometricMean(xs []float64) (float64, error) {
	logs := make([]float64, len(xs))
	for i, x := range xs {
		if x <= 0 {
			return 0, ErrNonPositive
		}
		logs[i] = math.Log(x)
	}
	m, err := stats.Mean(logs)
	if err != nil {
		return 0, err
	}
	return math.Exp(m), nil
}

// Dataset returns the dataset name.
func (s *Summary) Dataset() string { return s.dataset }

// Rows returns the long-form rows in table order.
func (s *Summary) Rows() []Row {
	return append([]Row(nil), s.rows...)
}

// Values returns a copy of one statistic keyed by GeneKey.
func (s *Summary) Values(statistic string) (map[ortholog.GeneKey]float64, bool) {
	v, ok := s.values[statistic]
	if !ok {
		return nil, false
	}
	return maps.Clone(v), true
}

// Set indexes summaries by dataset name.
type Set map[string]*Summary

// Lookup resolves a Ref against the set.
func (s Set) Lookup(ref Ref) (map[ortholog.GeneKey]float64, bool) {
	sum, ok := s[ref.Dataset]
	if !ok {
		return nil, false
	}
	return sum.Values(ref.Statistic)
}
