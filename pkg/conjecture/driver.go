package conjecture

import (
	"context"
	"errors"
	"fmt"

	"github.com/fluxorio/threadpool/pkg/core"
	"github.com/fluxorio/threadpool/pkg/worker"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// Config controls how the driver walks the integers.
type Config struct {
	// Start is the first value checked.
	Start uint64 `yaml:"start" json:"start" mapstructure:"start"`
	// BatchSize is the number of values handed to one job.
	BatchSize uint64 `yaml:"batch-size" json:"batch_size" mapstructure:"batch-size"`
	// MaxBatches stops the driver after that many submissions. Zero means no limit.
	MaxBatches int `yaml:"max-batches" json:"max_batches" mapstructure:"max-batches"`
	// SubmitRate caps submissions per second. Zero means no limit.
	SubmitRate float64 `yaml:"submit-rate" json:"submit_rate" mapstructure:"submit-rate"`
	// Resume starts from the store's checkpoint when it is past Start.
	Resume bool `yaml:"resume" json:"resume" mapstructure:"resume"`
}

// DefaultConfig starts at 1 with batches of 10000 and no limits.
func DefaultConfig() Config {
	return Config{
		Start:     1,
		BatchSize: 10000,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if err := core.ValidateBatchSize(c.BatchSize); err != nil {
		return err
	}
	if c.MaxBatches < 0 {
		return &core.Error{Code: core.CodeInvalidConfig, Message: "max batches cannot be negative"}
	}
	if c.SubmitRate < 0 {
		return &core.Error{Code: core.CodeInvalidConfig, Message: "submit rate cannot be negative"}
	}
	return nil
}

// Submitter accepts jobs, blocking while its queue is full.
type Submitter interface {
	SubmitCtx(ctx context.Context, job worker.Job) error
}

// Recorder receives progress counters.
type Recorder interface {
	BatchSubmitted(end uint64)
	BatchProcessed(checked uint64, counterexample bool)
}

// ResultStore persists batch outcomes.
type ResultStore interface {
	RecordBatch(ctx context.Context, runID string, res BatchResult) error
	Checkpoint(ctx context.Context) (uint64, bool, error)
}

// Publisher announces batch outcomes to other processes.
type Publisher interface {
	PublishBatch(ctx context.Context, runID string, res BatchResult) error
}

type nopRecorder struct{}

func (nopRecorder) BatchSubmitted(uint64) {}
func (nopRecorder) BatchProcessed(uint64, bool) {}

type nopStore struct{}

func (nopStore) RecordBatch(context.Context, string, BatchResult) error { return nil }
func (nopStore) Checkpoint(context.Context) (uint64, bool, error) { return 0, false, nil }

type nopPublisher struct{}

func (nopPublisher) PublishBatch(context.Context, string, BatchResult) error { return nil }

// Driver partitions the integers into batches and submits one job per batch.
type Driver struct {
	cfg       Config
	pool      Submitter
	runID     string
	logger    core.Logger
	recorder  Recorder
	store     ResultStore
	publisher Publisher
	limiter   *rate.Limiter
	onBatch   func(BatchResult)
	check     func(Batch) BatchResult
}

// DriverOption configures a Driver.
type DriverOption func(*Driver)

// WithLogger sets the logger. Defaults to core.DefaultLogger().
func WithLogger(l core.Logger) DriverOption {
	return func(d *Driver) { d.logger = l }
}

// WithRecorder sets where progress counters go.
func WithRecorder(r Recorder) DriverOption {
	return func(d *Driver) { d.recorder = r }
}

// WithStore persists every batch result and enables Resume.
func WithStore(s ResultStore) DriverOption {
	return func(d *Driver) { d.store = s }
}

// WithPublisher announces every batch result.
func WithPublisher(p Publisher) DriverOption {
	return func(d *Driver) { d.publisher = p }
}

// WithRunID overrides the generated run id.
func WithRunID(id string) DriverOption {
	return func(d *Driver) { d.runID = id }
}

// WithBatchHook calls f on the worker after each batch is processed.
func WithBatchHook(f func(BatchResult)) DriverOption {
	return func(d *Driver) { d.onBatch = f }
}

// NewDriver validates cfg and builds a driver submitting to pool.
func NewDriver(cfg Config, pool Submitter, opts ...DriverOption) (*Driver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if pool == nil {
		return nil, &core.Error{Code: core.CodeInvalidConfig, Message: "driver needs a pool"}
	}

	d := &Driver{
		cfg:       cfg,
		pool:      pool,
		runID:     uuid.NewString(),
		logger:    core.DefaultLogger(),
		recorder:  nopRecorder{},
		store:     nopStore{},
		publisher: nopPublisher{},
		check:     CheckBatch,
	}
	for _, opt := range opts {
		opt(d)
	}
	if cfg.SubmitRate > 0 {
		d.limiter = rate.NewLimiter(rate.Limit(cfg.SubmitRate), 1)
	}
	return d, nil
}

// RunID identifies this driver's run in logs, the store and published events.
func (d *Driver) RunID() string {
	return d.runID
}

// Run submits batches until ctx is cancelled, MaxBatches is reached or the
// integers are exhausted. It returns once the last batch has been submitted,
// not when it has been processed. Cancellation is a normal stop and yields nil.
func (d *Driver) Run(ctx context.Context) error {
	ctx = core.WithRunID(ctx, d.runID)
	log := d.logger.WithContext(ctx)

	begin, err := d.startingPoint(ctx)
	if err != nil {
		return err
	}
	log.WithFields(map[string]interface{}{
		"start":      begin,
		"batch_size": d.cfg.BatchSize,
	}).Info("conjecture driver started")

	// jobs outlive cancellation so queued batches still persist their results
	jobCtx := context.WithoutCancel(ctx)

	for submitted := 0; d.cfg.MaxBatches == 0 || submitted < d.cfg.MaxBatches; submitted++ {
		if Exhausted(begin) {
			log.Info("search space exhausted at ", begin)
			return nil
		}
		if d.limiter != nil {
			if err := d.limiter.Wait(ctx); err != nil {
				return d.stopped(ctx, log, err)
			}
		}

		b := NextBatch(begin, d.cfg.BatchSize)
		if err := d.pool.SubmitCtx(ctx, d.job(jobCtx, log, b)); err != nil {
			return d.stopped(ctx, log, fmt.Errorf("submit batch %s: %w", b, err))
		}
		d.recorder.BatchSubmitted(b.End)
		begin = b.End
	}

	log.Info("submitted ", d.cfg.MaxBatches, " batches, stopping")
	return nil
}

func (d *Driver) startingPoint(ctx context.Context) (uint64, error) {
	begin := d.cfg.Start
	if !d.cfg.Resume {
		return begin, nil
	}
	checkpoint, ok, err := d.store.Checkpoint(ctx)
	if err != nil {
		return 0, fmt.Errorf("read checkpoint: %w", err)
	}
	if ok && checkpoint > begin {
		begin = checkpoint
	}
	return begin, nil
}

func (d *Driver) stopped(ctx context.Context, log core.Logger, err error) error {
	if ctx.Err() != nil {
		log.Info("conjecture driver cancelled")
		return nil
	}
	if errors.Is(err, worker.ErrWorkerPoolClosed) {
		log.Info("worker pool closed, conjecture driver stopping")
		return nil
	}
	return err
}

func (d *Driver) job(ctx context.Context, log core.Logger, b Batch) worker.Job {
	return func() {
		log.Info("Starting batch ", b)
		res := d.check(b)

		d.recorder.BatchProcessed(res.Checked, res.Counterexample != nil)
		if res.Counterexample != nil {
			log.WithFields(map[string]interface{}{
				"n":     *res.Counterexample,
				"batch": b.String(),
			}).Error("conjecture does not hold")
		}
		if err := d.store.RecordBatch(ctx, d.runID, res); err != nil {
			log.Error("record batch ", b, ": ", err)
		}
		if err := d.publisher.PublishBatch(ctx, d.runID, res); err != nil {
			log.Error("publish batch ", b, ": ", err)
		}
		log.Info("Processed batch ", b, " in ", res.Duration)

		if d.onBatch != nil {
			d.onBatch(res)
		}
	}
}
