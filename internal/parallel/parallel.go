// Package parallel runs independent indexed jobs with bounded concurrency.
package parallel

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Config controls parallel execution behavior.
type Config struct {
	Workers  int // Concurrent jobs; 0 means GOMAXPROCS.
	MinItems int // Below this many jobs everything runs on the caller's goroutine.
}

// DefaultConfig returns defaults based on GOMAXPROCS.
func DefaultConfig() Config {
	return Config{
		Workers:  runtime.GOMAXPROCS(0),
		MinItems: 8,
	}
}

func (c Config) workers() int {
	if c.Workers <= 0 {
		return runtime.GOMAXPROCS(0)
	}
	return c.Workers
}

// For runs f(ctx, i) for i in [0, n). The first error cancels ctx for the
// remaining jobs and is returned. Jobs must write to disjoint state.
func For(ctx context.Context, n int, cfg Config, f func(ctx context.Context, i int) error) error {
	if cfg.workers() == 1 || n < cfg.MinItems {
		for i := 0; i < n; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := f(ctx, i); err != nil {
				return err
			}
		}
		return nil
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.workers())
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return f(ctx, i)
		})
	}
	return g.Wait()
}
