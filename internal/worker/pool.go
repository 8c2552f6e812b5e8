// Package worker downloads map tiles in parallel ahead of assembly.
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/MeKo-Tech/gpx2png/internal/tile"
)

// Loader fetches one tile, typically into a cache.
// datasource.TileSource satisfies it.
type Loader interface {
	Bytes(ctx context.Context, c tile.Coords) ([]byte, error)
}

// Result represents the outcome of loading one tile.
type Result struct {
	Coords  tile.Coords
	Size    int // bytes
	Err     error
	Elapsed time.Duration
}

// ProgressFunc is called after each tile completes.
type ProgressFunc func(completed, total, failed int)

// Config configures the worker pool.
type Config struct {
	Workers    int
	Loader     Loader
	OnProgress ProgressFunc
}

// Pool loads tiles with a fixed number of goroutines.
type Pool struct {
	workers    int
	loader     Loader
	onProgress ProgressFunc
}

// New creates a new worker pool.
func New(cfg Config) *Pool {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}

	return &Pool{
		workers:    workers,
		loader:     cfg.Loader,
		onProgress: cfg.OnProgress,
	}
}

// Run loads every tile and returns one result per tile that was started.
// It blocks until all workers finish or the context is cancelled; tiles
// picked up after cancellation report ctx.Err().
func (p *Pool) Run(ctx context.Context, tiles []tile.Coords) []Result {
	if len(tiles) == 0 {
		return nil
	}

	taskCh := make(chan tile.Coords)
	resultCh := make(chan Result, len(tiles))

	var wg sync.WaitGroup
	for i := 0; i < min(p.workers, len(tiles)); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.worker(ctx, taskCh, resultCh)
		}()
	}

	go func() {
		defer close(taskCh)
		for _, c := range tiles {
			select {
			case taskCh <- c:
			case <-ctx.Done():
				return
			}
		}
	}()

	results := make([]Result, 0, len(tiles))
	done := make(chan struct{})
	go func() {
		defer close(done)
		failed := 0
		for r := range resultCh {
			results = append(results, r)
			if r.Err != nil {
				failed++
			}
			if p.onProgress != nil {
				p.onProgress(len(results), len(tiles), failed)
			}
		}
	}()

	wg.Wait()
	close(resultCh)
	<-done

	return results
}

func (p *Pool) worker(ctx context.Context, tasks <-chan tile.Coords, results chan<- Result) {
	for c := range tasks {
		if err := ctx.Err(); err != nil {
			results <- Result{Coords: c, Err: err}
			continue
		}

		start := time.Now()
		data, err := p.loader.Bytes(ctx, c)
		results <- Result{
			Coords:  c,
			Size:    len(data),
			Err:     err,
			Elapsed: time.Since(start),
		}
	}
}

// Failed returns the results that carry an error.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if r.Err != nil {
			out = append(out, r)
		}
	}
	return out
}
