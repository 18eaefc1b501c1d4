package residual

import (
	"context"
	"runtime"
	"sync"
)

// WorkItem is a comparison pair queued for fitting.
type WorkItem struct {
	Seq  int
	Pair ComparisonPair
}

// WorkResult holds the fit of a single pair.
type WorkResult struct {
	Seq  int
	Pair ComparisonPair
	Fit  FitResult
	Err  error
}

// ParallelFit fits work items using a pool of workers.
// Results are sent to the returned channel in arrival order (not sequence order).
// Use OrderedCollect to consume results in sequence-number order.
// If workers is 0, runtime.NumCPU() is used. Once ctx is done, remaining items are
// returned unfitted with ctx's error.
func (s *Scorer) ParallelFit(ctx context.Context, items <-chan WorkItem, lookup Lookup, workers int) <-chan WorkResult {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	results := make(chan WorkResult, 2*workers)

	var wg sync.WaitGroup
	wg.Add(workers)

	for range workers {
		go func() {
			defer wg.Done()
			for item := range items {
				if err := ctx.Err(); err != nil {
					results <- WorkResult{Seq: item.Seq, Pair: item.Pair, Err: err}
					continue
				}
				fit, err := s.FitPair(item.Pair, lookup)
				results <- WorkResult{
					Seq:  item.Seq,
					Pair: item.Pair,
					Fit:  fit,
					Err:  err,
				}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	return results
}

// OrderedCollect calls fn for each result in sequence-number order.
// Out-of-order results wait in a pending map until the next expected
// sequence number arrives. Blocks until the results channel is closed.
func OrderedCollect(results <-chan WorkResult, fn func(WorkResult) error) error {
	pending := make(map[int]WorkResult)
	nextSeq := 0

	for r := range results {
		pending[r.Seq] = r

		for {
			rr, ok := pending[nextSeq]
			if !ok {
				break
			}
			delete(pending, nextSeq)
			nextSeq++
			if err := fn(rr); err != nil {
				// Drain remaining results to unblock workers.
				for range results {
				}
				return err
			}
		}
	}

	return nil
}
