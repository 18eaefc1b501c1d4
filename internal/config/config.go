// Package config reads the stagerank configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/inodb/stagerank/internal/numeric"
	"github.com/inodb/stagerank/internal/pipeline"
	"github.com/inodb/stagerank/internal/regress"
	"github.com/inodb/stagerank/internal/residual"
	"github.com/inodb/stagerank/internal/summary"
)

// Name is the base name of the configuration file.
const Name = "stagerank"

// EnvPrefix prefixes environment variables overriding file settings.
const EnvPrefix = "STAGERANK"

// Ortholog locates the ortholog table of one non-reference species.
type Ortholog struct {
	Species      string `mapstructure:"species" yaml:"species"`
	Path         string `mapstructure:"path" yaml:"path"`
	Via          string `mapstructure:"via" yaml:"via,omitempty"`
	NativeColumn string `mapstructure:"native_column" yaml:"native_column"`
	KeyColumn    string `mapstructure:"key_column" yaml:"key_column"`
	SymbolColumn string `mapstructure:"symbol_column" yaml:"symbol_column,omitempty"`
	Sheet        string `mapstructure:"sheet" yaml:"sheet,omitempty"`
}

// Dataset locates an expression table and the statistics computed from it.
type Dataset struct {
	Name       string         `mapstructure:"name" yaml:"name"`
	Species    string         `mapstructure:"species" yaml:"species"`
	Path       string         `mapstructure:"path" yaml:"path"`
	IDColumn   string         `mapstructure:"id_column" yaml:"id_column,omitempty"`
	Sheet      string         `mapstructure:"sheet" yaml:"sheet,omitempty"`
	Statistics []summary.Spec `mapstructure:"statistics" yaml:"statistics"`
}

// Output names the files written by a run. Empty entries are skipped.
type Output struct {
	Path string `mapstructure:"path" yaml:"path"`
	Fits string `mapstructure:"fits" yaml:"fits,omitempty"`
	DB   string `mapstructure:"db" yaml:"db,omitempty"`
}

// File is the schema of the configuration file.
type File struct {
	Offset           float64                   `mapstructure:"offset" yaml:"offset"`
	Regression       pipeline.RegressionConfig `mapstructure:"regression" yaml:"regression"`
	Workers          int                       `mapstructure:"workers" yaml:"workers"`
	ReferenceSpecies string                    `mapstructure:"reference_species" yaml:"reference_species"`
	Orthologs        []Ortholog                `mapstructure:"orthologs" yaml:"orthologs"`
	Datasets         []Dataset                 `mapstructure:"datasets" yaml:"datasets"`
	Species          []pipeline.SpeciesConfig  `mapstructure:"species" yaml:"species"`
	Cumulative       summary.Ref               `mapstructure:"cumulative" yaml:"cumulative"`
	Pairs            []residual.ComparisonPair `mapstructure:"pairs" yaml:"pairs"`
	Output           Output                    `mapstructure:"output" yaml:"output"`
}

// NewViper returns a viper instance reading path, or stagerank.yaml in the working
// directory, or ~/.stagerank.yaml. A missing file is not an error when path is empty.
func NewViper(path string) (*viper.Viper, error) {
	v := viper.New()
	v.SetDefault("offset", numeric.DefaultOffset)
	v.SetDefault("regression.method", regress.MethodHuber)
	v.SetDefault("regression.max_iter", regress.DefaultMaxIter)
	v.SetDefault("regression.tolerance", regress.DefaultTolerance)
	v.SetDefault("workers", 0)
	v.SetDefault("output.path", "scores.tsv")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
		return v, nil
	}

	v.SetConfigName(Name)
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(home)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		// fall back to the hidden file in the home directory
		if home, herr := os.UserHomeDir(); herr == nil {
			hidden := filepath.Join(home, "."+Name+".yaml")
			if _, serr := os.Stat(hidden); serr == nil {
				v.SetConfigFile(hidden)
				if err := v.ReadInConfig(); err != nil {
					return nil, fmt.Errorf("reading config %s: %w", hidden, err)
				}
			}
		}
	}
	return v, nil
}

// Decode unmarshals the settings of v. Relative input and output paths are
// resolved against the directory of the configuration file.
func Decode(v *viper.Viper) (*File, error) {
	var f File
	if err := v.Unmarshal(&f); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if used := v.ConfigFileUsed(); used != "" {
		f.resolvePaths(filepath.Dir(used))
	}
	return &f, nil
}

// Load reads and decodes a configuration file.
func Load(path string) (*File, error) {
	v, err := NewViper(path)
	if err != nil {
		return nil, err
	}
	return Decode(v)
}

func (f *File) resolvePaths(dir string) {
	abs := func(p string) string {
		if p == "" || p == "-" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(dir, p)
	}
	for i := range f.Orthologs {
		f.Orthologs[i].Path = abs(f.Orthologs[i].Path)
	}
	for i := range f.Datasets {
		f.Datasets[i].Path = abs(f.Datasets[i].Path)
	}
	f.Output.Path = abs(f.Output.Path)
	f.Output.Fits = abs(f.Output.Fits)
	f.Output.DB = abs(f.Output.DB)
}

// Pipeline returns the scoring configuration.
func (f *File) Pipeline() pipeline.Config {
	c := pipeline.Config{
		Offset:           f.Offset,
		ReferenceSpecies: f.ReferenceSpecies,
		Species:          f.Species,
		Cumulative:       f.Cumulative,
		Pairs:            f.Pairs,
		Regression:       f.Regression,
		Workers:          f.Workers,
	}
	for _, d := range f.Datasets {
		c.Datasets = append(c.Datasets, pipeline.DatasetConfig{
			Name:       d.Name,
			Species:    d.Species,
			Statistics: d.Statistics,
		})
	}
	return c
}

// Validate reports every problem in the file at once.
func (f *File) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	species := make([]string, 0, len(f.Orthologs))
	seen := make(map[string]bool)
	for _, o := range f.Orthologs {
		switch {
		case o.Species == "":
			add("ortholog table without a species")
		case o.Species == f.ReferenceSpecies:
			add("ortholog table given for the reference species %s", o.Species)
		case seen[o.Species]:
			add("ortholog table for %s given twice", o.Species)
		}
		seen[o.Species] = true
		species = append(species, o.Species)

		if o.Path == "" {
			add("ortholog table %s: path is required", o.Species)
		}
		if o.NativeColumn == "" || o.KeyColumn == "" {
			add("ortholog table %s: native_column and key_column are required", o.Species)
		}
		if o.Via != "" && o.Via != f.ReferenceSpecies && !seen[o.Via] {
			add("ortholog table %s: via species %s must be listed before it", o.Species, o.Via)
		}
	}
	for _, d := range f.Datasets {
		if d.Path == "" {
			add("dataset %s: path is required", d.Name)
		}
	}
	if f.Output.Path == "" {
		add("output.path is required")
	}

	pc := f.Pipeline()
	if err := pc.Validate(species); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Write stores the file as YAML.
func (f *File) Write(path string) error {
	out, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, out, 0644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}
