package worker

import (
	"context"
	"errors"
	"fmt"
)

// ErrJobPanicked wraps the value recovered from a job submitted with SubmitFuture.
var ErrJobPanicked = errors.New("job panicked")

// Future is a single-resolution handle on the outcome of a job.
type Future[T any] struct {
	done  chan struct{}
	value T
	err   error
}

// SubmitFuture submits fn to p and returns a Future resolved with fn's result.
// A panic in fn resolves the future with an error wrapping ErrJobPanicked
// instead of reaching the worker. Backpressure is the same as Submit.
func SubmitFuture[T any](p *WorkerPool, fn func() (T, error)) (*Future[T], error) {
	if fn == nil {
		validateJob(nil)
	}

	f := &Future[T]{done: make(chan struct{})}
	err := p.Submit(func() {
		defer close(f.done)
		defer func() {
			if r := recover(); r != nil {
				f.err = fmt.Errorf("%w: %v", ErrJobPanicked, r)
			}
		}()
		f.value, f.err = fn()
	})
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Done is closed once the future is resolved.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the job has run or ctx ends.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
