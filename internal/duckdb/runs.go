package duckdb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goduckdb "github.com/marcboeker/go-duckdb"

	"github.com/inodb/stagerank/internal/ortholog"
	"github.com/inodb/stagerank/internal/residual"
	"github.com/inodb/stagerank/internal/score"
)

// ErrNoRuns is returned when the database holds no run.
var ErrNoRuns = errors.New("no runs stored")

// Run describes one scoring run.
type Run struct {
	ID               string
	CreatedAt        time.Time
	ConfigPath       string
	ReferenceSpecies string
	Offset           float64
	Method           string
	Scored           int
	Ineligible       int
	Inputs           []FileFingerprint
}

// RunResult is everything persisted for a run.
type RunResult struct {
	Run      Run
	Scores   []score.FinalScore
	Fits     []residual.FitResult
	Failures []residual.PairFailure
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// WriteRun stores a run with its scores and fits. An empty Run.ID is replaced by
// a new identifier, which is returned.
func (s *Store) WriteRun(res RunResult) (string, error) {
	run := res.Run
	if run.ID == "" {
		run.ID = NewRunID()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}

	var seq int64
	if err := s.db.QueryRow(`SELECT COALESCE(MAX(seq), 0) + 1 FROM runs`).Scan(&seq); err != nil {
		return "", fmt.Errorf("next run sequence: %w", err)
	}
	if _, err := s.db.Exec(`INSERT INTO runs VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, seq, run.CreatedAt, run.ConfigPath, run.ReferenceSpecies,
		run.Offset, run.Method, int64(run.Scored), int64(run.Ineligible),
	); err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	conn, err := s.db.Conn(context.Background())
	if err != nil {
		return "", fmt.Errorf("get connection: %w", err)
	}
	defer conn.Close()

	err = withAppender(conn, "run_inputs", func(a *goduckdb.Appender) error {
		for _, fp := range run.Inputs {
			if err := a.AppendRow(run.ID, fp.Path, fp.Size, fp.ModTime); err != nil {
				return fmt.Errorf("append run input: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	err = withAppender(conn, "scores", func(a *goduckdb.Appender) error {
		for i, sc := range res.Scores {
			if err := a.AppendRow(
				run.ID, int64(i+1), string(sc.GeneKey), sc.Label,
				sc.F1, sc.F2, sc.F3, sc.Score,
			); err != nil {
				return fmt.Errorf("append score: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	err = withAppender(conn, "fits", func(a *goduckdb.Appender) error {
		for _, f := range res.Fits {
			if err := a.AppendRow(
				run.ID, f.Pair.Label, f.Pair.Predictor.String(), f.Pair.Response.String(),
				int64(f.Samples), f.Intercept, f.Slope, int64(f.Iterations),
				int64(len(f.Undefined)), nil,
			); err != nil {
				return fmt.Errorf("append fit: %w", err)
			}
		}
		for _, p := range res.Failures {
			if err := a.AppendRow(
				run.ID, p.Pair.Label, p.Pair.Predictor.String(), p.Pair.Response.String(),
				nil, nil, nil, nil, nil, p.Err.Error(),
			); err != nil {
				return fmt.Errorf("append failed fit: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	return run.ID, nil
}

func withAppender(conn *sql.Conn, table string, fn func(*goduckdb.Appender) error) error {
	var appender *goduckdb.Appender
	if err := conn.Raw(func(driverConn any) error {
		var err error
		appender, err = goduckdb.NewAppenderFromConn(driverConn.(driver.Conn), "", table)
		return err
	}); err != nil {
		return fmt.Errorf("create %s appender: %w", table, err)
	}
	defer appender.Close()

	if err := fn(appender); err != nil {
		return err
	}
	return appender.Flush()
}

// LatestRun returns the most recently written run.
func (s *Store) LatestRun() (Run, error) {
	var id string
	err := s.db.QueryRow(`SELECT id FROM runs ORDER BY seq DESC LIMIT 1`).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrNoRuns
	}
	if err != nil {
		return Run{}, fmt.Errorf("query latest run: %w", err)
	}
	return s.GetRun(id)
}

// GetRun returns a run and its input fingerprints.
func (s *Store) GetRun(id string) (Run, error) {
	var run Run
	var scored, ineligible int64
	err := s.db.QueryRow(`SELECT id, created_at, config_path, reference_species, "offset", method, scored, ineligible
		FROM runs WHERE id=?`, id).Scan(
		&run.ID, &run.CreatedAt, &run.ConfigPath, &run.ReferenceSpecies,
		&run.Offset, &run.Method, &scored, &ineligible,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("run %s not found", id)
	}
	if err != nil {
		return Run{}, fmt.Errorf("query run: %w", err)
	}
	run.Scored = int(scored)
	run.Ineligible = int(ineligible)

	rows, err := s.db.Query(`SELECT path, size, mod_time FROM run_inputs WHERE run_id=? ORDER BY rowid`, id)
	if err != nil {
		return Run{}, fmt.Errorf("query run inputs: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var fp FileFingerprint
		if err := rows.Scan(&fp.Path, &fp.Size, &fp.ModTime); err != nil {
			return Run{}, fmt.Errorf("scan run input: %w", err)
		}
		run.Inputs = append(run.Inputs, fp)
	}
	if err := rows.Err(); err != nil {
		return Run{}, fmt.Errorf("iterate run inputs: %w", err)
	}
	return run, nil
}

// TopScores returns the n best-ranked genes of a run. n <= 0 returns all of them.
func (s *Store) TopScores(runID string, n int) ([]score.FinalScore, error) {
	query := `SELECT gene_key, label, f1, f2, f3, score FROM scores WHERE run_id=? ORDER BY gene_rank`
	args := []any{runID}
	if n > 0 {
		query += ` LIMIT ?`
		args = append(args, n)
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query top scores: %w", err)
	}
	defer rows.Close()

	return scanScores(rows)
}

// LookupGene returns the score of one gene in a run. ok is false when the gene was
// not scored.
func (s *Store) LookupGene(runID string, key ortholog.GeneKey) (sc score.FinalScore, rank int, ok bool, err error) {
	var r int64
	var k string
	err = s.db.QueryRow(`SELECT gene_rank, gene_key, label, f1, f2, f3, score FROM scores
		WHERE run_id=? AND gene_key=?`, runID, string(key)).Scan(
		&r, &k, &sc.Label, &sc.F1, &sc.F2, &sc.F3, &sc.Score,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return score.FinalScore{}, 0, false, nil
	}
	if err != nil {
		return score.FinalScore{}, 0, false, fmt.Errorf("query gene: %w", err)
	}
	sc.GeneKey = ortholog.GeneKey(k)
	return sc, int(r), true, nil
}

// FitRecord is a stored fit row. Err is empty for successful fits.
type FitRecord struct {
	Label      string
	Predictor  string
	Response   string
	Samples    int
	Intercept  float64
	Slope      float64
	Iterations int
	Undefined  int
	Err        string
}

// Fits returns the stored fits of a run in write order.
func (s *Store) Fits(runID string) ([]FitRecord, error) {
	rows, err := s.db.Query(`SELECT label, predictor, response,
		COALESCE(samples, 0), COALESCE(intercept, 0), COALESCE(slope, 0),
		COALESCE(iterations, 0), COALESCE(undefined, 0), COALESCE(error, '')
		FROM fits WHERE run_id=? ORDER BY rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("query fits: %w", err)
	}
	defer rows.Close()

	var fits []FitRecord
	for rows.Next() {
		var f FitRecord
		var samples, iterations, undefined int64
		if err := rows.Scan(&f.Label, &f.Predictor, &f.Response,
			&samples, &f.Intercept, &f.Slope, &iterations, &undefined, &f.Err); err != nil {
			return nil, fmt.Errorf("scan fit: %w", err)
		}
		f.Samples = int(samples)
		f.Iterations = int(iterations)
		f.Undefined = int(undefined)
		fits = append(fits, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate fits: %w", err)
	}
	return fits, nil
}

// scanScores scans score rows in query order.
func scanScores(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}) ([]score.FinalScore, error) {
	var scores []score.FinalScore
	for rows.Next() {
		var sc score.FinalScore
		var k string
		if err := rows.Scan(&k, &sc.Label, &sc.F1, &sc.F2, &sc.F3, &sc.Score); err != nil {
			return nil, fmt.Errorf("scan score: %w", err)
		}
		sc.GeneKey = ortholog.GeneKey(k)
		scores = append(scores, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scores: %w", err)
	}
	return scores, nil
}
