package worker

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"time"

	"github.com/fluxorio/threadpool/pkg/core"
	"github.com/fluxorio/threadpool/pkg/core/fsm"
	"github.com/google/uuid"
)

var (
	ErrWorkerPoolClosed = errors.New("worker pool is closed")
	ErrQueueFull        = errors.New("worker pool queue is full")
)

// Job represents a task to be executed by a worker.
type Job func()

// Config holds pool sizing.
type Config struct {
	// Workers is the number of worker goroutines. Must be positive.
	Workers int `yaml:"workers" json:"workers" mapstructure:"workers"`
	// QueueSize is the capacity of the job queue. Zero means one slot per worker.
	QueueSize int `yaml:"queue-size" json:"queue_size" mapstructure:"queue-size"`
}

// DefaultConfig returns one worker per CPU and a queue slot per worker.
func DefaultConfig() Config {
	return Config{
		Workers: runtime.NumCPU(),
	}
}

// WorkerPool is a fixed-size pool of goroutines draining a bounded job queue.
//
// Submit blocks while the queue is full, so producers can run at most
// Capacity() jobs ahead of the workers. Jobs are dequeued in FIFO order and
// each job is delivered to exactly one worker.
type WorkerPool struct {
	id      string
	name    string
	jobs    chan Job
	quit    chan struct{}
	done    chan struct{}
	workers []*Worker
	wg      sync.WaitGroup

	// senders hold the read lock, Shutdown holds the write lock to close jobs
	mu       sync.RWMutex
	stopOnce sync.Once

	logger   core.Logger
	observer Observer
	onPanic  PanicHandler
	tracing  bool
}

// New creates a pool of size workers with a queue of capacity size and starts
// the workers. It panics if size is not positive.
func New(size int, opts ...Option) *WorkerPool {
	return NewWithConfig(Config{Workers: size, QueueSize: size}, opts...)
}

// NewWithConfig creates and starts a pool sized by cfg.
func NewWithConfig(cfg Config, opts ...Option) *WorkerPool {
	// Fail-fast: a pool without workers accepts jobs it can never drain
	core.FailFast(core.ValidatePoolSize(cfg.Workers))
	core.FailFast(core.ValidateQueueSize(cfg.QueueSize))

	queueSize := cfg.QueueSize
	if queueSize == 0 {
		queueSize = cfg.Workers
	}

	p := &WorkerPool{
		id:       uuid.NewString(),
		name:     "pool",
		jobs:     make(chan Job, queueSize),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
		logger:   core.DefaultLogger(),
		observer: noopObserver{},
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.WithFields(map[string]interface{}{
		"pool":    p.name,
		"pool_id": p.id,
	})

	p.workers = make([]*Worker, cfg.Workers)
	p.wg.Add(cfg.Workers)
	for i := range p.workers {
		p.workers[i] = newWorker(i, p)
		go p.workers[i].run()
	}
	go func() {
		p.wg.Wait()
		close(p.done)
	}()

	p.logger.WithFields(map[string]interface{}{
		"workers":  cfg.Workers,
		"capacity": queueSize,
	}).Info("worker pool started")
	return p
}

// Submit sends a job to the worker pool for execution.
// It blocks while the queue is full and returns ErrWorkerPoolClosed once the
// pool has been shut down. It does not wait for the job to run.
func (p *WorkerPool) Submit(job Job) error {
	return p.submit(context.Background(), job)
}

// SubmitCtx is Submit that gives up with ctx.Err() when ctx ends before a
// queue slot frees up.
func (p *WorkerPool) SubmitCtx(ctx context.Context, job Job) error {
	return p.submit(ctx, job)
}

// TrySubmit enqueues job only if a slot is free right now.
func (p *WorkerPool) TrySubmit(job Job) error {
	validateJob(job)

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.isClosed() {
		return ErrWorkerPoolClosed
	}

	select {
	case p.jobs <- job:
		p.observer.JobSubmitted(0)
		return nil
	default:
		return ErrQueueFull
	}
}

func (p *WorkerPool) submit(ctx context.Context, job Job) error {
	validateJob(job)

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.isClosed() {
		return ErrWorkerPoolClosed
	}

	start := time.Now()
	select {
	case p.jobs <- job:
		p.observer.JobSubmitted(time.Since(start))
		return nil
	case <-p.quit:
		return ErrWorkerPoolClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func validateJob(job Job) {
	if job == nil {
		core.FailFast(&core.Error{Code: core.CodeInvalidJob, Message: "job cannot be nil"})
	}
}

func (p *WorkerPool) isClosed() bool {
	select {
	case <-p.quit:
		return true
	default:
		return false
	}
}

// Shutdown stops accepting jobs and closes the queue. Workers finish the jobs
// already queued and then stop. Producers blocked in Submit are released with
// ErrWorkerPoolClosed. Shutdown does not wait; use Wait or Stop for that.
func (p *WorkerPool) Shutdown() {
	p.stopOnce.Do(func() {
		close(p.quit)

		p.mu.Lock()
		close(p.jobs)
		p.mu.Unlock()

		p.logger.WithFields(map[string]interface{}{
			"pending": len(p.jobs),
		}).Info("worker pool shutting down")
	})
}

// Closed reports whether Shutdown has been called.
func (p *WorkerPool) Closed() bool {
	return p.isClosed()
}

// Wait blocks until every worker has stopped.
func (p *WorkerPool) Wait() {
	<-p.done
}

// Done is closed once every worker has stopped.
func (p *WorkerPool) Done() <-chan struct{} {
	return p.done
}

// Stop shuts the pool down and waits for the workers, up to ctx's deadline.
func (p *WorkerPool) Stop(ctx context.Context) error {
	p.Shutdown()

	select {
	case <-p.done:
		p.logger.Info("worker pool stopped")
		return nil
	case <-ctx.Done():
		p.logger.Error("timed out waiting for workers to stop: ", ctx.Err())
		return ctx.Err()
	}
}

// ID returns the unique id assigned to the pool at construction.
func (p *WorkerPool) ID() string {
	return p.id
}

// Name returns the pool name used in logs and metrics.
func (p *WorkerPool) Name() string {
	return p.name
}

// Workers returns the number of worker goroutines.
func (p *WorkerPool) Workers() int {
	return len(p.workers)
}

// Capacity returns the size of the job queue.
func (p *WorkerPool) Capacity() int {
	return cap(p.jobs)
}

// QueueLen returns the number of jobs waiting for a worker.
func (p *WorkerPool) QueueLen() int {
	return len(p.jobs)
}

// WorkerStates returns a snapshot of each worker's lifecycle state, by id.
func (p *WorkerPool) WorkerStates() []fsm.State {
	states := make([]fsm.State, len(p.workers))
	for i, w := range p.workers {
		states[i] = w.State()
	}
	return states
}
