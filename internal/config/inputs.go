package config

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/inodb/stagerank/internal/ortholog"
	"github.com/inodb/stagerank/internal/pipeline"
	"github.com/inodb/stagerank/internal/table"
)

// Files returns every input path in configuration order: ortholog tables first.
func (f *File) Files() []string {
	paths := make([]string, 0, len(f.Orthologs)+len(f.Datasets))
	for _, o := range f.Orthologs {
		paths = append(paths, o.Path)
	}
	for _, d := range f.Datasets {
		paths = append(paths, d.Path)
	}
	return paths
}

// LoadInputs reads every ortholog table and dataset concurrently.
func (f *File) LoadInputs(ctx context.Context) (pipeline.Inputs, error) {
	orth := make([]pipeline.OrthologInput, len(f.Orthologs))
	tables := make([]*table.Table, len(f.Datasets))

	workers := f.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, o := range f.Orthologs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			pairs, err := ortholog.LoadPairs(o.Path, ortholog.LoadOptions{
				NativeColumn: o.NativeColumn,
				KeyColumn:    o.KeyColumn,
				SymbolColumn: o.SymbolColumn,
				Sheet:        o.Sheet,
			})
			if err != nil {
				return fmt.Errorf("loading orthologs for %s: %w", o.Species, err)
			}
			orth[i] = pipeline.OrthologInput{Species: o.Species, Via: o.Via, Pairs: pairs}
			return nil
		})
	}
	for i, d := range f.Datasets {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			t, err := table.LoadFile(d.Path, table.Options{
				Name:     d.Name,
				IDColumn: d.IDColumn,
				Sheet:    d.Sheet,
			})
			if err != nil {
				return fmt.Errorf("loading dataset %s: %w", d.Name, err)
			}
			tables[i] = t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return pipeline.Inputs{}, err
	}

	in := pipeline.Inputs{
		Datasets:  make(map[string]*table.Table, len(tables)),
		Orthologs: orth,
	}
	for i, d := range f.Datasets {
		in.Datasets[d.Name] = tables[i]
	}
	return in, nil
}
