// Package workpool bounds the number of blocking remote calls in flight
// across all users.
package workpool

import (
	"context"
	"fmt"

	"golang.org/x/sync/semaphore"
)

// Pool runs functions on worker goroutines, at most size at a time.
type Pool struct {
	sem  *semaphore.Weighted
	size int64
}

// New returns a pool of the given size; sizes below one are raised to one.
func New(size int) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{sem: semaphore.NewWeighted(int64(size)), size: int64(size)}
}

// Size reports the configured number of workers.
func (p *Pool) Size() int {
	return int(p.size)
}

// Do waits for a free worker, runs fn on it and blocks the caller until fn
// returns or ctx is done. fn receives ctx and must honor its cancellation; a
// panic inside fn is returned as an error.
func (p *Pool) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	done := make(chan error, 1)
	go func() {
		defer p.sem.Release(1)
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("workpool: panic: %v", r)
			}
		}()
		done <- fn(ctx)
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Call is Do for functions that produce a value.
func Call[T any](ctx context.Context, p *Pool, fn func(ctx context.Context) (T, error)) (T, error) {
	results := make(chan T, 1)
	err := p.Do(ctx, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		results <- v
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return <-results, nil
}
