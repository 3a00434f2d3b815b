// Package batch runs indexed tasks on a bounded worker pool and collects
// their results in submission order.
package batch

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/semaphore"
)

// DefaultWorkers is the default number of concurrent tasks.
const DefaultWorkers = 20

// Task produces the result for position i.
type Task func(ctx context.Context, i int) ([]byte, error)

// Pool runs tasks with bounded concurrency.
type Pool struct {
	workers int
	logger  *slog.Logger
}

// log returns the logger, falling back to a discard logger if nil.
func (p *Pool) log() *slog.Logger {
	if p.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return p.logger
}

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithWorkers sets the maximum number of tasks in flight.
// Values < 1 use DefaultWorkers.
func WithWorkers(n int) PoolOption {
	return func(p *Pool) {
		if n < 1 {
			n = DefaultWorkers
		}
		p.workers = n
	}
}

// WithLogger sets the logger for pool operations.
// If not set, logging is disabled.
func WithLogger(logger *slog.Logger) PoolOption {
	return func(p *Pool) {
		p.logger = logger
	}
}

// NewPool creates a pool.
func NewPool(opts ...PoolOption) *Pool {
	p := &Pool{workers: DefaultWorkers}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Workers returns the pool capacity.
func (p *Pool) Workers() int {
	return p.workers
}

// Run executes task for every index in [0, n) and returns the results
// ordered by index, independent of completion order.
//
// Run fails fast: on the first task error it cancels the context passed to
// tasks, stops dispatching, and returns that error without waiting for
// tasks still in flight. Their results are discarded. No partial result is
// ever returned.
func (p *Pool) Run(ctx context.Context, n int, task Task) ([][]byte, error) {
	if n == 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	workers := min(p.workers, n)
	sem := semaphore.NewWeighted(int64(workers))
	results := make([][]byte, n)
	errCh := make(chan error, 1)
	done := make(chan struct{})

	var wg sync.WaitGroup
	go func() {
		defer close(done)
		defer wg.Wait()
		for i := range n {
			if err := sem.Acquire(ctx, 1); err != nil {
				return
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer sem.Release(1)
				data, err := task(ctx, i)
				if err != nil {
					select {
					case errCh <- err:
						cancel(err)
					default:
					}
					return
				}
				results[i] = data
			}()
		}
	}()

	p.log().Debug("batch dispatch", "tasks", n, "workers", workers)

	select {
	case err := <-errCh:
		p.log().Debug("batch failed, discarding in-flight tasks", "error", err)
		return nil, err
	case <-done:
		// A task may have failed after the last dispatch.
		select {
		case err := <-errCh:
			return nil, err
		default:
		}
		if err := context.Cause(ctx); err != nil {
			return nil, err
		}
		return results, nil
	}
}
