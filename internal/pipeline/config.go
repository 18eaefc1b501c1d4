package pipeline

import (
	"errors"
	"fmt"

	"github.com/inodb/stagerank/internal/numeric"
	"github.com/inodb/stagerank/internal/regress"
	"github.com/inodb/stagerank/internal/residual"
	"github.com/inodb/stagerank/internal/summary"
)

// DatasetConfig declares which statistics to compute for a dataset.
type DatasetConfig struct {
	Name       string         `mapstructure:"name" yaml:"name"`
	Species    string         `mapstructure:"species" yaml:"species"`
	Statistics []summary.Spec `mapstructure:"statistics" yaml:"statistics"`
}

// SpeciesConfig names the liver and blood statistics of one species for F1.
type SpeciesConfig struct {
	Name  string      `mapstructure:"name" yaml:"name"`
	Liver summary.Ref `mapstructure:"liver" yaml:"liver"`
	Blood summary.Ref `mapstructure:"blood" yaml:"blood"`
}

// RegressionConfig selects the regression capability used for F3.
type RegressionConfig struct {
	Method    string  `mapstructure:"method" yaml:"method"`
	MaxIter   int     `mapstructure:"max_iter" yaml:"max_iter"`
	Tolerance float64 `mapstructure:"tolerance" yaml:"tolerance"`
}

// Config is the scoring configuration.
type Config struct {
	Offset           float64                   `mapstructure:"offset" yaml:"offset"`
	ReferenceSpecies string                    `mapstructure:"reference_species" yaml:"reference_species"`
	Datasets         []DatasetConfig           `mapstructure:"datasets" yaml:"datasets"`
	Species          []SpeciesConfig           `mapstructure:"species" yaml:"species"`
	Cumulative       summary.Ref               `mapstructure:"cumulative" yaml:"cumulative"`
	Pairs            []residual.ComparisonPair `mapstructure:"pairs" yaml:"pairs"`
	Regression       RegressionConfig          `mapstructure:"regression" yaml:"regression"`
	Workers          int                       `mapstructure:"workers" yaml:"workers"`
}

// Defaults fills unset numeric settings.
func (c *Config) Defaults() {
	if c.Offset == 0 {
		c.Offset = numeric.DefaultOffset
	}
	if c.Regression.Method == "" {
		c.Regression.Method = regress.MethodHuber
	}
	if c.Regression.MaxIter == 0 {
		c.Regression.MaxIter = regress.DefaultMaxIter
	}
	if c.Regression.Tolerance == 0 {
		c.Regression.Tolerance = regress.DefaultTolerance
	}
}

// Validate reports every inconsistency in the configuration.
// orthologSpecies lists the non-reference species that have an ortholog table.
func (c *Config) Validate(orthologSpecies []string) error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if c.Offset <= 0 {
		add("offset must be positive, got %g", c.Offset)
	}
	if c.ReferenceSpecies == "" {
		add("reference_species is required")
	}
	if _, err := regress.New(c.Regression.Method, regress.Options{}); err != nil {
		errs = append(errs, err)
	}
	if c.Workers < 0 {
		add("workers must not be negative")
	}

	known := map[string]bool{c.ReferenceSpecies: true}
	for _, s := range orthologSpecies {
		known[s] = true
	}

	stats := make(map[summary.Ref]bool)
	seenDataset := make(map[string]bool)
	for _, d := range c.Datasets {
		if d.Name == "" {
			add("dataset without a name")
			continue
		}
		if seenDataset[d.Name] {
			add("dataset %s declared twice", d.Name)
		}
		seenDataset[d.Name] = true
		if !known[d.Species] {
			add("dataset %s: species %q is neither the reference nor mapped by an ortholog table", d.Name, d.Species)
		}
		for _, sp := range d.Statistics {
			if _, err := summary.ParseKind(string(sp.Kind)); err != nil {
				add("dataset %s statistic %s: %v", d.Name, sp.Name, err)
			}
			stats[summary.Ref{Dataset: d.Name, Statistic: sp.Name}] = true
		}
	}

	checkRef := func(where string, r summary.Ref) {
		if !stats[r] {
			add("%s: statistic %s is not computed by any dataset", where, r)
		}
	}

	if len(c.Species) == 0 {
		add("at least one species stage pair is required")
	}
	for _, s := range c.Species {
		checkRef("species "+s.Name+" liver", s.Liver)
		checkRef("species "+s.Name+" blood", s.Blood)
	}
	checkRef("cumulative", c.Cumulative)

	if len(c.Pairs) == 0 {
		add("at least one comparison pair is required")
	}
	labels := make(map[string]bool)
	for _, p := range c.Pairs {
		if p.Label == "" {
			add("comparison pair %s~%s has no label", p.Response, p.Predictor)
		} else if labels[p.Label] {
			add("comparison pair label %s used twice", p.Label)
		}
		labels[p.Label] = true
		checkRef("pair "+p.Label+" predictor", p.Predictor)
		checkRef("pair "+p.Label+" response", p.Response)
	}

	return errors.Join(errs...)
}
