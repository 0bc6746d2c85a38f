package worker

import (
	"time"

	"github.com/fluxorio/threadpool/pkg/core"
	"github.com/fluxorio/threadpool/pkg/core/fsm"
)

// Observer receives pool events, typically to export them as metrics.
// Methods are called from producer and worker goroutines and must be safe
// for concurrent use.
type Observer interface {
	// JobSubmitted is called once a job is enqueued, with the time the
	// producer spent blocked on a full queue.
	JobSubmitted(wait time.Duration)
	// JobFinished is called after a job returns or panics.
	JobFinished(workerID int, elapsed time.Duration, panicked bool)
	// WorkerTransition is called on every worker lifecycle transition.
	WorkerTransition(workerID int, from, to fsm.State)
}

type noopObserver struct{}

func (noopObserver) JobSubmitted(time.Duration) {}
func (noopObserver) JobFinished(int, time.Duration, bool) {}
func (noopObserver) WorkerTransition(int, fsm.State, fsm.State) {}

// PanicHandler is called with the value recovered from a panicking job.
type PanicHandler func(workerID int, recovered interface{})

// Option configures a WorkerPool.
type Option func(*WorkerPool)

// WithName sets the pool name used in logs, metrics and spans.
func WithName(name string) Option {
	return func(p *WorkerPool) {
		if name != "" {
			p.name = name
		}
	}
}

// WithLogger sets the logger. Defaults to core.DefaultLogger().
func WithLogger(l core.Logger) Option {
	return func(p *WorkerPool) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithObserver registers an observer for pool events.
func WithObserver(o Observer) Option {
	return func(p *WorkerPool) {
		if o != nil {
			p.observer = o
		}
	}
}

// WithPanicHandler registers a handler for panics raised by jobs.
// The worker keeps running after the handler returns.
func WithPanicHandler(h PanicHandler) Option {
	return func(p *WorkerPool) {
		p.onPanic = h
	}
}

// WithTracing records an OpenTelemetry span around every job execution.
func WithTracing() Option {
	return func(p *WorkerPool) {
		p.tracing = true
	}
}
