package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/inodb/stagerank/internal/config"
	"github.com/inodb/stagerank/internal/duckdb"
	"github.com/inodb/stagerank/internal/output"
	"github.com/inodb/stagerank/internal/pipeline"
)

func newScoreCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Compute composite scores for every gene",
		Long: `Load the configured ortholog tables and expression datasets, compute F1, F2 and F3
and write genes ranked by Score = F1 x F2 x F3.`,
		Example: `  stagerank score                         # use ./stagerank.yaml
  stagerank score -c malaria.yaml -o -     # write scores to stdout
  stagerank score --method bisquare --db runs.duckdb`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScore(cmd, a)
		},
	}

	cmd.Flags().StringP("output", "o", "", "Scores TSV file, '-' for stdout (overrides output.path)")
	cmd.Flags().String("fits", "", "Fit report TSV file (overrides output.fits)")
	cmd.Flags().String("db", "", "DuckDB file to store the run in (overrides output.db)")
	cmd.Flags().String("method", "", "Regression method: huber, bisquare, ols (overrides regression.method)")
	cmd.Flags().Int("workers", 0, "Parallel workers, 0 for all CPUs (overrides workers)")

	return cmd
}

func runScore(cmd *cobra.Command, a *app) error {
	for key, flag := range map[string]string{
		"output.path":       "output",
		"output.fits":       "fits",
		"output.db":         "db",
		"regression.method": "method",
		"workers":           "workers",
	} {
		if err := a.v.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return fmt.Errorf("bind flag %s: %w", flag, err)
		}
	}

	f, err := config.Decode(a.v)
	if err != nil {
		return err
	}
	// paths given on the command line are relative to the working directory
	for flag, dst := range map[string]*string{
		"output": &f.Output.Path,
		"fits":   &f.Output.Fits,
		"db":     &f.Output.DB,
	} {
		if !cmd.Flags().Changed(flag) {
			continue
		}
		p, _ := cmd.Flags().GetString(flag)
		if p != "" && p != "-" {
			if p, err = filepath.Abs(p); err != nil {
				return fmt.Errorf("resolve --%s: %w", flag, err)
			}
		}
		*dst = p
	}
	if used := a.v.ConfigFileUsed(); used != "" {
		fmt.Fprintf(os.Stderr, "Using config %s\n", used)
	}
	if err := f.Validate(); err != nil {
		return fmt.Errorf("invalid configuration:\n%w", err)
	}

	fmt.Fprintf(os.Stderr, "Loading %d ortholog tables and %d datasets\n", len(f.Orthologs), len(f.Datasets))
	in, err := f.LoadInputs(cmd.Context())
	if err != nil {
		return err
	}
	for _, o := range in.Orthologs {
		fmt.Fprintf(os.Stderr, "  %s: %d ortholog rows\n", o.Species, len(o.Pairs))
	}

	p, err := pipeline.New(f.Pipeline())
	if err != nil {
		return err
	}
	p.SetLogger(a.logger)

	res, err := p.Run(cmd.Context(), in)
	if errors.Is(err, pipeline.ErrNoUsableInput) {
		fmt.Fprintf(os.Stderr, "Hint: check that dataset ID columns and ortholog native columns use the same gene IDs\n")
	}
	if err != nil {
		return err
	}

	if err := writeScores(f.Output.Path, res); err != nil {
		return err
	}
	if f.Output.Fits != "" {
		if err := writeFits(f.Output.Fits, res); err != nil {
			return err
		}
	}
	output.WriteDiagnostics(os.Stderr, res.Diagnostics)

	if f.Output.DB != "" {
		id, err := storeRun(a, f, p.Config(), res)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Stored run %s in %s\n", id, f.Output.DB)
	}
	return nil
}

func createOutput(path string) (io.WriteCloser, error) {
	if path == "-" {
		return nopCloser{os.Stdout}, nil
	}
	out, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating output file: %w", err)
	}
	return out, nil
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

func writeScores(path string, res *pipeline.Result) error {
	out, err := createOutput(path)
	if err != nil {
		return err
	}
	defer out.Close()

	if err := output.NewScoreWriter(out).WriteAll(res.Scores); err != nil {
		return fmt.Errorf("writing scores: %w", err)
	}
	if path != "-" {
		fmt.Fprintf(os.Stderr, "Wrote %d scores to %s\n", len(res.Scores), path)
	}
	return out.Close()
}

func writeFits(path string, res *pipeline.Result) error {
	out, err := createOutput(path)
	if err != nil {
		return err
	}
	defer out.Close()

	w := output.NewFitWriter(out)
	if err := w.WriteHeader(); err != nil {
		return fmt.Errorf("writing fits: %w", err)
	}
	for _, fit := range res.Fits {
		if err := w.WriteFit(fit); err != nil {
			return fmt.Errorf("writing fits: %w", err)
		}
	}
	for _, fail := range res.Diagnostics.FailedPairs {
		if err := w.WriteFailure(fail); err != nil {
			return fmt.Errorf("writing fits: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("writing fits: %w", err)
	}
	return out.Close()
}

func storeRun(a *app, f *config.File, pc pipeline.Config, res *pipeline.Result) (string, error) {
	inputs, err := duckdb.StatFiles(f.Files())
	if err != nil {
		return "", err
	}

	store, err := duckdb.Open(f.Output.DB)
	if err != nil {
		return "", err
	}
	defer store.Close()

	id, err := store.WriteRun(duckdb.RunResult{
		Run: duckdb.Run{
			ConfigPath:       a.v.ConfigFileUsed(),
			ReferenceSpecies: pc.ReferenceSpecies,
			Offset:           pc.Offset,
			Method:           pc.Regression.Method,
			Scored:           res.Diagnostics.Scored,
			Ineligible:       res.Diagnostics.NoScoreEligible,
			Inputs:           inputs,
		},
		Scores:   res.Scores,
		Fits:     res.Fits,
		Failures: res.Diagnostics.FailedPairs,
	})
	if err != nil {
		return "", fmt.Errorf("storing run: %w", err)
	}
	a.logger.Debug("run stored", zap.String("run", id), zap.String("db", f.Output.DB))
	return id, nil
}
