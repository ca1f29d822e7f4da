package pool

import (
	"context"
	"runtime"
	"sync"
)

// TaskFunc represents a function executed for a single work item.
type TaskFunc[T any] func(ctx context.Context, item string) (T, error)

// Result contains the outcome of a task for one item.
type Result[T any] struct {
	Item  string
	Value T
	Err   error
}

// Pool controls bounded concurrent execution of item-scoped tasks.
// It exists to keep the number of simultaneous external tool invocations
// (aapt dumps, getprop round-trips) small.
type Pool[T any] struct {
	workerLimit int
}

// Option configures a Pool.
type Option[T any] func(*Pool[T])

// WithWorkerLimit sets the maximum number of concurrent workers.
func WithWorkerLimit[T any](limit int) Option[T] {
	return func(p *Pool[T]) {
		p.workerLimit = limit
	}
}

// New creates a Pool with optional configuration.
func New[T any](opts ...Option[T]) *Pool[T] {
	p := &Pool[T]{
		workerLimit: runtime.NumCPU(),
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.workerLimit <= 0 {
		p.workerLimit = runtime.NumCPU()
	}

	return p
}

// Run executes the task for each item with bounded concurrency and returns
// the results in input order. Items not started before ctx is cancelled are
// reported with ctx.Err().
func (p *Pool[T]) Run(ctx context.Context, items []string, task TaskFunc[T]) []Result[T] {
	results := make([]Result[T], len(items))
	if len(items) == 0 {
		return nil
	}

	workerCount := p.workerLimit
	if workerCount > len(items) {
		workerCount = len(items)
	}

	type job struct {
		index int
		item  string
	}

	jobCh := make(chan job)

	var wg sync.WaitGroup
	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobCh {
				value, err := task(ctx, j.item)
				results[j.index] = Result[T]{
					Item:  j.item,
					Value: value,
					Err:   err,
				}
			}
		}()
	}

	dispatched := 0
dispatch:
	for i, item := range items {
		select {
		case <-ctx.Done():
			break dispatch
		case jobCh <- job{index: i, item: item}:
			dispatched++
		}
	}
	close(jobCh)
	wg.Wait()

	// Mark undispatched items as cancelled.
	for i := dispatched; i < len(items); i++ {
		results[i] = Result[T]{Item: items[i], Err: ctx.Err()}
	}

	return results
}
