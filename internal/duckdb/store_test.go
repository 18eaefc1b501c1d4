package duckdb

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/stagerank/internal/residual"
	"github.com/inodb/stagerank/internal/score"
	"github.com/inodb/stagerank/internal/summary"
)

func openInMemory(t *testing.T) *Store {
	t.Helper()
	s, err := Open("")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleResult() RunResult {
	pair := residual.ComparisonPair{
		Label:     "pf_pb_blood",
		Predictor: summary.Ref{Dataset: "pb_blood", Statistic: "mean"},
		Response:  summary.Ref{Dataset: "pf_blood", Statistic: "mean"},
	}
	return RunResult{
		Run: Run{
			ConfigPath:       "/data/stagerank.yaml",
			ReferenceSpecies: "pberghei",
			Offset:           0.001,
			Method:           "huber",
			Scored:           3,
			Ineligible:       2,
			Inputs: []FileFingerprint{
				{Path: "/data/pb_blood.tsv", Size: 1000, ModTime: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)},
				{Path: "/data/pf_blood.tsv", Size: 2000, ModTime: time.Date(2026, 1, 3, 3, 4, 5, 0, time.UTC)},
			},
		},
		Scores: []score.FinalScore{
			{GeneKey: "PBANKA_0100100", Label: "AMA1", F1: 4, F2: 0.5, F3: 10, Score: 20},
			{GeneKey: "PBANKA_0100300", Label: "PBANKA_0100300", F1: 0, F2: 0, F3: 2, Score: 0},
			{GeneKey: "PBANKA_0100200", Label: "CSP", F1: -2, F2: 1, F3: 3, Score: -6},
		},
		Fits: []residual.FitResult{
			{Pair: pair, Samples: 120, Intercept: 0.5, Slope: 1.25, Iterations: 6},
		},
		Failures: []residual.PairFailure{
			{Pair: residual.ComparisonPair{Label: "pv_pb_liver"}, Err: errors.New("degenerate regression input")},
		},
	}
}

func TestOpenClose(t *testing.T) {
	s := openInMemory(t)
	assert.NotNil(t, s.DB())
	assert.Equal(t, "", s.Path())
}

func TestOpen_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "runs.duckdb")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestWriteRunAndTopScores(t *testing.T) {
	s := openInMemory(t)

	id, err := s.WriteRun(sampleResult())
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	top, err := s.TopScores(id, 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "AMA1", top[0].Label)
	assert.Equal(t, 20.0, top[0].Score)
	assert.Equal(t, "PBANKA_0100300", string(top[1].GeneKey))

	all, err := s.TopScores(id, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	none, err := s.TopScores("unknown", 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestLatestRun(t *testing.T) {
	s := openInMemory(t)

	_, err := s.LatestRun()
	assert.ErrorIs(t, err, ErrNoRuns)

	first, err := s.WriteRun(sampleResult())
	require.NoError(t, err)
	res := sampleResult()
	res.Run.Method = "bisquare"
	second, err := s.WriteRun(res)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	run, err := s.LatestRun()
	require.NoError(t, err)
	assert.Equal(t, second, run.ID)
	assert.Equal(t, "bisquare", run.Method)
	assert.Equal(t, "pberghei", run.ReferenceSpecies)
	assert.Equal(t, 0.001, run.Offset)
	assert.Equal(t, 3, run.Scored)
	assert.Equal(t, 2, run.Ineligible)
	require.Len(t, run.Inputs, 2)
	assert.Equal(t, "/data/pb_blood.tsv", run.Inputs[0].Path)
	assert.Equal(t, int64(2000), run.Inputs[1].Size)
	assert.WithinDuration(t, res.Run.Inputs[0].ModTime, run.Inputs[0].ModTime, time.Second)
}

func TestWriteRun_KeepsGivenID(t *testing.T) {
	s := openInMemory(t)
	res := sampleResult()
	res.Run.ID = "run-1"

	id, err := s.WriteRun(res)
	require.NoError(t, err)
	assert.Equal(t, "run-1", id)

	_, err = s.GetRun("run-2")
	assert.ErrorContains(t, err, "run run-2 not found")
}

func TestLookupGene(t *testing.T) {
	s := openInMemory(t)
	id, err := s.WriteRun(sampleResult())
	require.NoError(t, err)

	sc, rank, ok, err := s.LookupGene(id, "PBANKA_0100200")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 3, rank)
	assert.Equal(t, "CSP", sc.Label)
	assert.Equal(t, -6.0, sc.Score)

	_, _, ok, err = s.LookupGene(id, "PBANKA_9999999")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFits(t *testing.T) {
	s := openInMemory(t)
	id, err := s.WriteRun(sampleResult())
	require.NoError(t, err)

	fits, err := s.Fits(id)
	require.NoError(t, err)
	require.Len(t, fits, 2)

	assert.Equal(t, FitRecord{
		Label:      "pf_pb_blood",
		Predictor:  "pb_blood.mean",
		Response:   "pf_blood.mean",
		Samples:    120,
		Intercept:  0.5,
		Slope:      1.25,
		Iterations: 6,
	}, fits[0])
	assert.Equal(t, "pv_pb_liver", fits[1].Label)
	assert.Equal(t, "degenerate regression input", fits[1].Err)
}

func TestStatFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.tsv")
	require.NoError(t, os.WriteFile(path, []byte("gene\tx\n"), 0644))

	fps, err := StatFiles([]string{path})
	require.NoError(t, err)
	require.Len(t, fps, 1)
	assert.Equal(t, int64(7), fps[0].Size)
	assert.Equal(t, path, fps[0].Path)

	_, err = StatFiles([]string{filepath.Join(dir, "missing.tsv")})
	assert.ErrorIs(t, err, os.ErrNotExist)
}
