package output

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/inodb/stagerank/internal/ortholog"
	"github.com/inodb/stagerank/internal/pipeline"
	"github.com/inodb/stagerank/internal/residual"
	"github.com/inodb/stagerank/internal/summary"
)

func TestWriteDiagnostics(t *testing.T) {
	d := pipeline.Diagnostics{
		Rekey: map[string]ortholog.RekeyReport{
			"pf_blood": {Rows: 10, Mapped: 7, Unmapped: 3},
			"pb_blood": {Rows: 8, Mapped: 8},
		},
		Summaries: map[string]summary.Report{
			"pf_blood": {Missing: map[string]int{"mean": 2}, NonPositive: map[string]int{"geo": 1}},
		},
		RankMissing:            map[string]int{"pf": 1},
		DegenerateLog:          4,
		UndefinedNormalization: map[string]int{"a": 1, "b": 2},
		FailedPairs: []residual.PairFailure{
			{Pair: residual.ComparisonPair{Label: "pv_pb_liver"}, Err: errors.New("degenerate regression input")},
		},
		NoScoreEligible: 5,
		Scored:          6,
		FlatRange:       true,
	}

	var buf bytes.Buffer
	WriteDiagnostics(&buf, d)
	out := buf.String()

	assert.Contains(t, out, "Scored genes:              6")
	assert.Contains(t, out, "Missing ortholog (rows):   3")
	assert.Contains(t, out, "Missing summary input:     3")
	assert.Contains(t, out, "Non-positive geo. mean:    1")
	assert.Contains(t, out, "Degenerate log (cumul<=0): 4")
	assert.Contains(t, out, "Undefined normalization:   3")
	assert.Contains(t, out, "Not score eligible:        5")
	assert.Contains(t, out, "range is flat")
	assert.Contains(t, out, "pv_pb_liver: degenerate regression input")
	assert.Regexp(t, `pf_blood\s+10\s+7\s+3\s+0`, out)
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("pb_blood")), bytes.Index(buf.Bytes(), []byte("pf_blood")))
}
