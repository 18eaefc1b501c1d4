// Package pipeline runs the full scoring computation: ortholog mapping,
// summarizing, the three factors and the final ranking.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/inodb/stagerank/internal/normalize"
	"github.com/inodb/stagerank/internal/ortholog"
	"github.com/inodb/stagerank/internal/rank"
	"github.com/inodb/stagerank/internal/regress"
	"github.com/inodb/stagerank/internal/residual"
	"github.com/inodb/stagerank/internal/score"
	"github.com/inodb/stagerank/internal/summary"
	"github.com/inodb/stagerank/internal/table"
)

// ErrNoUsableInput is returned when no gene survives the ortholog join.
var ErrNoUsableInput = errors.New("no usable input: no gene survived the ortholog join")

// OrthologInput is the ortholog table of one non-reference species.
// When Via names another non-reference species, each pair's GeneKey holds that
// species' native ID and is resolved through its index.
type OrthologInput struct {
	Species string
	Via     string
	Pairs   []ortholog.Pair
}

// Inputs are the loaded tables of a run.
type Inputs struct {
	Datasets  map[string]*table.Table // by dataset name, keyed by native IDs
	Orthologs []OrthologInput
}

// Result is the outcome of a run.
type Result struct {
	Scores      []score.FinalScore
	Fits        []residual.FitResult
	Divergence  map[string][]rank.Divergence // per species
	Cumulative  normalize.Cumulative
	Diagnostics Diagnostics
}

// Pipeline computes composite scores for a configuration.
type Pipeline struct {
	cfg       Config
	regressor regress.Regressor
	logger    *zap.Logger
}

// New creates a pipeline. Unset numeric settings take their defaults.
func New(cfg Config) (*Pipeline, error) {
	cfg.Defaults()
	r, err := regress.New(cfg.Regression.Method, regress.Options{
		MaxIter:   cfg.Regression.MaxIter,
		Tolerance: cfg.Regression.Tolerance,
	})
	if err != nil {
		return nil, fmt.Errorf("create regressor: %w", err)
	}
	return &Pipeline{cfg: cfg, regressor: r, logger: zap.NewNop()}, nil
}

// SetLogger sets the logger for run-level events.
func (p *Pipeline) SetLogger(l *zap.Logger) {
	p.logger = l
}

// SetRegressor replaces the regression capability used for F3.
func (p *Pipeline) SetRegressor(r regress.Regressor) {
	p.regressor = r
}

// Config returns the effective configuration.
func (p *Pipeline) Config() Config {
	return p.cfg
}

func (p *Pipeline) workers() int {
	if p.cfg.Workers > 0 {
		return p.cfg.Workers
	}
	return runtime.NumCPU()
}

// Run executes the pipeline. Per-gene and per-pair problems are counted in the
// result's Diagnostics. The only fatal data condition is ErrNoUsableInput.
func (p *Pipeline) Run(ctx context.Context, in Inputs) (*Result, error) {
	diag := newDiagnostics()

	indexes, err := p.buildIndexes(ctx, in.Orthologs)
	if err != nil {
		return nil, err
	}
	for _, x := range indexes {
		diag.OrthologRecords[x.Species()] = x.Len()
	}

	set, err := p.summarize(ctx, in.Datasets, indexes, &diag)
	if err != nil {
		return nil, err
	}

	mapped := 0
	for _, rep := range diag.Rekey {
		mapped += rep.Mapped
	}
	if mapped == 0 {
		p.logger.Warn("no usable input", zap.Int("datasets", len(p.cfg.Datasets)))
		return nil, ErrNoUsableInput
	}

	result := &Result{Divergence: make(map[string][]rank.Divergence, len(p.cfg.Species))}

	// F1
	perSpecies := make([][]rank.Divergence, 0, len(p.cfg.Species))
	for _, sc := range p.cfg.Species {
		liver, ok := set.Lookup(sc.Liver)
		if !ok {
			return nil, fmt.Errorf("species %s: liver statistic %s not computed", sc.Name, sc.Liver)
		}
		blood, ok := set.Lookup(sc.Blood)
		if !ok {
			return nil, fmt.Errorf("species %s: blood statistic %s not computed", sc.Name, sc.Blood)
		}
		divs, missing, err := rank.Species(liver, blood, p.cfg.Offset)
		if err != nil {
			return nil, fmt.Errorf("rank species %s: %w", sc.Name, err)
		}
		diag.RankMissing[sc.Name] = missing
		result.Divergence[sc.Name] = divs
		perSpecies = append(perSpecies, divs)
	}
	f1 := rank.Combine(perSpecies)

	// F2
	cumul, ok := set.Lookup(p.cfg.Cumulative)
	if !ok {
		return nil, fmt.Errorf("cumulative statistic %s not computed", p.cfg.Cumulative)
	}
	result.Cumulative = normalize.Normalize(cumul)
	diag.DegenerateLog = len(result.Cumulative.Degenerate)
	diag.FlatRange = result.Cumulative.FlatRange
	if result.Cumulative.FlatRange {
		p.logger.Warn("cumulative expression range is flat, mu is 0 for every gene",
			zap.String("statistic", p.cfg.Cumulative.String()),
			zap.Int("genes", len(result.Cumulative.Mu)))
	}
	f2 := make(map[ortholog.GeneKey]float64, len(f1))
	for k, v := range f1 {
		if mu, ok := result.Cumulative.Mu[k]; ok {
			f2[k] = normalize.F2(v, mu)
		}
	}

	// F3
	scorer := residual.NewScorer(p.regressor, p.cfg.Offset)
	scorer.SetWorkers(p.workers())
	scorer.SetLogger(p.logger)
	res, err := scorer.Score(ctx, p.cfg.Pairs, set.Lookup)
	if err != nil {
		return nil, err
	}
	result.Fits = res.Fits
	for _, fit := range res.Fits {
		diag.UndefinedNormalization[fit.Pair.Label] = len(fit.Undefined)
	}
	diag.FailedPairs = res.Failures
	diag.ZeroResidualSum = len(res.ZeroSum)

	labelIndexes := make([]*ortholog.Index, 0, len(in.Orthologs))
	for _, o := range in.Orthologs {
		if x, ok := indexes[o.Species]; ok {
			labelIndexes = append(labelIndexes, x)
		}
	}

	scores, ineligible := score.Compose(score.Components{
		F1:     f1,
		F2:     f2,
		F3:     res.F3,
		Labels: ortholog.Labels(labelIndexes...),
	})
	result.Scores = scores
	diag.NoScoreEligible = ineligible
	diag.Scored = len(scores)
	result.Diagnostics = diag

	if len(scores) == 0 {
		p.logger.Warn("no gene has all three factors", zap.Int("ineligible", ineligible))
	}
	p.logger.Info("scoring complete",
		zap.Int("scored", len(scores)),
		zap.Int("ineligible", ineligible),
		zap.Int("fits", len(res.Fits)),
		zap.Int("failed_pairs", len(res.Failures)))

	return result, nil
}

// buildIndexes maps every ortholog table. Direct tables are mapped concurrently,
// chained tables afterwards in input order.
func (p *Pipeline) buildIndexes(ctx context.Context, inputs []OrthologInput) (map[string]*ortholog.Index, error) {
	indexes := map[string]*ortholog.Index{
		p.cfg.ReferenceSpecies: ortholog.Identity(p.cfg.ReferenceSpecies),
	}

	direct := make([]*ortholog.Index, len(inputs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers())
	for i, o := range inputs {
		if o.Via != "" && o.Via != p.cfg.ReferenceSpecies {
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			direct[i] = ortholog.NewIndex(o.Species, ortholog.Map(o.Species, o.Pairs))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("map orthologs: %w", err)
	}

	for i, o := range inputs {
		if _, dup := indexes[o.Species]; dup {
			return nil, fmt.Errorf("ortholog table for %s given twice", o.Species)
		}
		if direct[i] != nil {
			indexes[o.Species] = direct[i]
			continue
		}
		via, ok := indexes[o.Via]
		if !ok {
			return nil, fmt.Errorf("ortholog table for %s: intermediate species %s not mapped before it", o.Species, o.Via)
		}
		indexes[o.Species] = ortholog.NewIndex(o.Species, ortholog.Chain(o.Species, o.Pairs, via))
	}
	return indexes, nil
}

type summarized struct {
	summary *summary.Summary
	rekey   ortholog.RekeyReport
	report  summary.Report
}

// summarize re-keys every dataset onto GeneKeys and computes its statistics.
// Datasets are independent and processed concurrently.
func (p *Pipeline) summarize(ctx context.Context, tables map[string]*table.Table, indexes map[string]*ortholog.Index, diag *Diagnostics) (summary.Set, error) {
	for _, d := range p.cfg.Datasets {
		if _, ok := tables[d.Name]; !ok {
			return nil, fmt.Errorf("dataset %s not loaded", d.Name)
		}
		if _, ok := indexes[d.Species]; !ok {
			return nil, fmt.Errorf("dataset %s: no ortholog table for species %s", d.Name, d.Species)
		}
	}

	out := make([]summarized, len(p.cfg.Datasets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers())
	for i, d := range p.cfg.Datasets {
		t, x := tables[d.Name], indexes[d.Species]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			keyed, rep, err := x.Rekey(t)
			if err != nil {
				return err
			}
			s, srep, err := summary.Summarize(keyed, d.Statistics)
			if err != nil {
				return fmt.Errorf("summarize dataset %s: %w", d.Name, err)
			}
			out[i] = summarized{summary: s, rekey: rep, report: srep}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	set := make(summary.Set, len(out))
	for i, d := range p.cfg.Datasets {
		set[d.Name] = out[i].summary
		diag.Rekey[d.Name] = out[i].rekey
		diag.Summaries[d.Name] = out[i].report
		p.logger.Debug("dataset summarized",
			zap.String("dataset", d.Name),
			zap.String("species", d.Species),
			zap.Int("rows", out[i].rekey.Rows),
			zap.Int("mapped", out[i].rekey.Mapped),
			zap.Int("unmapped", out[i].rekey.Unmapped))
	}
	return set, nil
}
