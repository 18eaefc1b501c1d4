// Package output writes ranked scores, fit reports and run diagnostics.
package output

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/inodb/stagerank/internal/residual"
	"github.com/inodb/stagerank/internal/score"
)

// ScoreWriter writes final scores in tab-delimited format.
type ScoreWriter struct {
	w       *bufio.Writer
	columns []string
	rank    int
}

// NewScoreWriter creates a new tab-delimited score writer.
func NewScoreWriter(w io.Writer) *ScoreWriter {
	return &ScoreWriter{
		w: bufio.NewWriter(w),
		columns: []string{
			"rank",
			"gene_key",
			"label",
			"f1",
			"f2",
			"f3",
			"score",
		},
	}
}

// WriteHeader writes the header line.
func (sw *ScoreWriter) WriteHeader() error {
	_, err := sw.w.WriteString(strings.Join(sw.columns, "\t") + "\n")
	return err
}

// Write writes the next score. Rows are numbered in call order starting at 1.
func (sw *ScoreWriter) Write(s score.FinalScore) error {
	sw.rank++
	values := []string{
		strconv.Itoa(sw.rank),
		string(s.GeneKey),
		s.Label,
		formatFloat(s.F1),
		formatFloat(s.F2),
		formatFloat(s.F3),
		formatFloat(s.Score),
	}
	_, err := sw.w.WriteString(strings.Join(values, "\t") + "\n")
	return err
}

// WriteAll writes the header and every score, then flushes.
func (sw *ScoreWriter) WriteAll(scores []score.FinalScore) error {
	if err := sw.WriteHeader(); err != nil {
		return err
	}
	for _, s := range scores {
		if err := sw.Write(s); err != nil {
			return err
		}
	}
	return sw.Flush()
}

// Flush flushes any buffered data to the underlying writer.
func (sw *ScoreWriter) Flush() error {
	return sw.w.Flush()
}

// FitWriter writes one row per comparison pair: its fitted line or the reason it failed.
type FitWriter struct {
	w *bufio.Writer
}

// NewFitWriter creates a new tab-delimited fit report writer.
func NewFitWriter(w io.Writer) *FitWriter {
	return &FitWriter{w: bufio.NewWriter(w)}
}

// WriteHeader writes the header line.
func (fw *FitWriter) WriteHeader() error {
	_, err := fw.w.WriteString("label\tpredictor\tresponse\tsamples\tintercept\tslope\titerations\tundefined\tstatus\n")
	return err
}

// WriteFit writes a successful fit.
func (fw *FitWriter) WriteFit(f residual.FitResult) error {
	values := []string{
		f.Pair.Label,
		f.Pair.Predictor.String(),
		f.Pair.Response.String(),
		strconv.Itoa(f.Samples),
		formatFloat(f.Intercept),
		formatFloat(f.Slope),
		strconv.Itoa(f.Iterations),
		strconv.Itoa(len(f.Undefined)),
		"ok",
	}
	_, err := fw.w.WriteString(strings.Join(values, "\t") + "\n")
	return err
}

// WriteFailure writes a pair excluded from F3.
func (fw *FitWriter) WriteFailure(p residual.PairFailure) error {
	values := []string{
		p.Pair.Label,
		p.Pair.Predictor.String(),
		p.Pair.Response.String(),
		"-",
		"-",
		"-",
		"-",
		"-",
		"failed: " + sanitize(p.Err.Error()),
	}
	_, err := fw.w.WriteString(strings.Join(values, "\t") + "\n")
	return err
}

// Flush flushes any buffered data to the underlying writer.
func (fw *FitWriter) Flush() error {
	return fw.w.Flush()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// sanitize keeps free text on one TSV cell.
func sanitize(s string) string {
	return strings.NewReplacer("\t", " ", "\n", " ").Replace(s)
}
