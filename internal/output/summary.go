package output

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/inodb/stagerank/internal/pipeline"
)

// WriteDiagnostics writes a summary of the genes and pairs excluded during a run.
func WriteDiagnostics(w io.Writer, d pipeline.Diagnostics) {
	fmt.Fprintf(w, "\nRun Summary:\n")
	fmt.Fprintf(w, "  Scored genes:              %d\n", d.Scored)
	fmt.Fprintf(w, "  Missing ortholog (rows):   %d\n", d.MissingOrtholog())
	fmt.Fprintf(w, "  Missing summary input:     %d\n", d.MissingSummaryInput())
	fmt.Fprintf(w, "  Non-positive geo. mean:    %d\n", d.NonPositiveGeometricMean())
	fmt.Fprintf(w, "  Degenerate log (cumul<=0): %d\n", d.DegenerateLog)
	fmt.Fprintf(w, "  Undefined normalization:   %d\n", d.UndefinedNormalizationTotal())
	fmt.Fprintf(w, "  Zero residual sum:         %d\n", d.ZeroResidualSum)
	fmt.Fprintf(w, "  Not score eligible:        %d\n", d.NoScoreEligible)
	if d.FlatRange {
		fmt.Fprintf(w, "  Warning: cumulative expression range is flat, F2 is 0 or 1 for every gene\n")
	}

	if len(d.Rekey) > 0 {
		fmt.Fprintf(w, "\nDatasets:\n")
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "  Dataset\tRows\tMapped\tUnmapped\tCollisions")
		for _, name := range d.Datasets() {
			r := d.Rekey[name]
			fmt.Fprintf(tw, "  %s\t%d\t%d\t%d\t%d\n", name, r.Rows, r.Mapped, r.Unmapped, r.Collisions)
		}
		tw.Flush()
	}

	if len(d.FailedPairs) > 0 {
		fmt.Fprintf(w, "\nFailed comparison pairs:\n")
		for _, f := range d.FailedPairs {
			fmt.Fprintf(w, "  %s: %v\n", f.Pair.Label, f.Err)
		}
	}
}
