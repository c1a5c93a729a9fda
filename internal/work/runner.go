// Package work runs per-symbol recompute jobs across a bounded worker
// pool. Symbols are isolated from each other: one symbol failing (bad
// data, missing FX) never aborts the batch.
package work

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Job recomputes a single symbol. Implementations must be safe for
// concurrent calls with distinct symbols.
type Job func(ctx context.Context, symbol string) (rows int, err error)

// Result is the outcome of one symbol's job.
type Result struct {
	Symbol   string
	Rows     int
	Err      error
	Duration time.Duration
}

// Runner fans symbols out over a fixed number of workers.
type Runner struct {
	workers int
	log     zerolog.Logger
}

// NewRunner creates a runner with the given worker count (minimum 1).
func NewRunner(workers int, log zerolog.Logger) *Runner {
	if workers < 1 {
		workers = 1
	}
	return &Runner{
		workers: workers,
		log:     log.With().Str("service", "work_runner").Logger(),
	}
}

// Run executes the job for every symbol and returns one Result per
// symbol, in input order. Cancelling the context stops the dispatch of
// new symbols; symbols never dispatched are reported with the context's
// error. In-flight jobs see the cancellation through their own context.
func (r *Runner) Run(ctx context.Context, symbols []string, job Job) []Result {
	results := make([]Result, len(symbols))
	indexes := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < r.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				results[i] = r.runOne(ctx, symbols[i], job)
			}
		}()
	}

	dispatched := 0
dispatch:
	for i := range symbols {
		select {
		case <-ctx.Done():
			break dispatch
		case indexes <- i:
			dispatched++
		}
	}
	close(indexes)
	wg.Wait()

	for i := dispatched; i < len(symbols); i++ {
		results[i] = Result{Symbol: symbols[i], Err: ctx.Err()}
	}

	failed := 0
	for _, res := range results {
		if res.Err != nil {
			failed++
		}
	}
	r.log.Info().Int("symbols", len(symbols)).Int("failed", failed).
		Int("workers", r.workers).Msg("Batch recompute finished")
	return results
}

func (r *Runner) runOne(ctx context.Context, symbol string, job Job) Result {
	start := time.Now()
	rows, err := job(ctx, symbol)
	res := Result{Symbol: symbol, Rows: rows, Err: err, Duration: time.Since(start)}

	if err != nil {
		r.log.Error().Err(err).Str("symbol", symbol).Msg("Symbol recompute failed")
	} else {
		r.log.Debug().Str("symbol", symbol).Int("rows", rows).
			Dur("took", res.Duration).Msg("Symbol recompute done")
	}
	return res
}
