package main

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/inodb/stagerank/internal/duckdb"
	"github.com/inodb/stagerank/internal/ortholog"
)

func newTopCmd(a *app) *cobra.Command {
	var (
		dbPath string
		runID  string
		n      int
		gene   string
	)

	cmd := &cobra.Command{
		Use:   "top",
		Short: "List the best-scoring genes of a stored run",
		Example: `  stagerank top --db runs.duckdb              # top 20 of the latest run
  stagerank top --db runs.duckdb -n 100 --run <id>
  stagerank top --db runs.duckdb --gene PBANKA_0100100`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if dbPath == "" {
				dbPath = a.v.GetString("output.db")
			}
			if dbPath == "" {
				return usageError{"--db is required (or set output.db in the config)"}
			}
			return runTop(dbPath, runID, n, gene)
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "DuckDB file written by 'stagerank score --db'")
	cmd.Flags().StringVar(&runID, "run", "", "Run ID (default: latest run)")
	cmd.Flags().IntVarP(&n, "n", "n", 20, "Number of genes to list, 0 for all")
	cmd.Flags().StringVar(&gene, "gene", "", "Show a single gene by GeneKey")

	return cmd
}

func runTop(dbPath, runID string, n int, gene string) error {
	if _, err := os.Stat(dbPath); err != nil {
		return fmt.Errorf("open results database: %w", err)
	}
	store, err := duckdb.Open(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	var run duckdb.Run
	if runID == "" {
		run, err = store.LatestRun()
	} else {
		run, err = store.GetRun(runID)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Run %s (%s, method %s, offset %g, %d scored)\n",
		run.ID, run.CreatedAt.Format("2006-01-02 15:04:05"), run.Method, run.Offset, run.Scored)

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "Rank\tGeneKey\tLabel\tF1\tF2\tF3\tScore")

	if gene != "" {
		sc, rank, ok, err := store.LookupGene(run.ID, ortholog.GeneKey(gene))
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("gene %s was not scored in run %s", gene, run.ID)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%.4g\t%.4g\t%.4g\t%.6g\n", rank, sc.GeneKey, sc.Label, sc.F1, sc.F2, sc.F3, sc.Score)
		return tw.Flush()
	}

	scores, err := store.TopScores(run.ID, n)
	if err != nil {
		return err
	}
	for i, sc := range scores {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.4g\t%.4g\t%.4g\t%.6g\n",
			strconv.Itoa(i+1), sc.GeneKey, sc.Label, sc.F1, sc.F2, sc.F3, sc.Score)
	}
	return tw.Flush()
}
