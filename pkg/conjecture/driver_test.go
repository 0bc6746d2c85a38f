package conjecture

import (
	"bytes"
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/fluxorio/threadpool/pkg/core"
	"github.com/fluxorio/threadpool/pkg/worker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	mu         sync.Mutex
	results    []BatchResult
	runIDs     []string
	checkpoint uint64
	hasCP      bool
	cpErr      error
}

func (s *memoryStore) RecordBatch(_ context.Context, runID string, res BatchResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, res)
	s.runIDs = append(s.runIDs, runID)
	return nil
}

func (s *memoryStore) Checkpoint(context.Context) (uint64, bool, error) {
	return s.checkpoint, s.hasCP, s.cpErr
}

func (s *memoryStore) batches() []Batch {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Batch, len(s.results))
	for i, r := range s.results {
		out[i] = r.Batch
	}
	return out
}

type memoryPublisher struct {
	mu     sync.Mutex
	events []BatchResult
}

func (p *memoryPublisher) PublishBatch(_ context.Context, _ string, res BatchResult) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, res)
	return nil
}

type countingRecorder struct {
	mu              sync.Mutex
	submitted       []uint64
	checked         uint64
	counterexamples int
}

func (r *countingRecorder) BatchSubmitted(end uint64) {
	r.mu.Lock()
	r.submitted = append(r.submitted, end)
	r.mu.Unlock()
}

func (r *countingRecorder) BatchProcessed(checked uint64, counterexample bool) {
	r.mu.Lock()
	r.checked += checked
	if counterexample {
		r.counterexamples++
	}
	r.mu.Unlock()
}

func quietLogger() core.Logger {
	return core.NewLogger(core.LoggerConfig{Level: "ERROR", Output: &bytes.Buffer{}})
}

func newPool(t *testing.T, workers int) *worker.WorkerPool {
	t.Helper()
	p := worker.New(workers, worker.WithLogger(quietLogger()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = p.Stop(ctx)
	})
	return p
}

func drain(t *testing.T, p *worker.WorkerPool) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, p.Stop(ctx))
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"default", DefaultConfig(), false},
		{"zero batch", Config{Start: 1}, true},
		{"negative max batches", Config{Start: 1, BatchSize: 10, MaxBatches: -1}, true},
		{"negative rate", Config{Start: 1, BatchSize: 10, SubmitRate: -1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewDriver_Invalid(t *testing.T) {
	_, err := NewDriver(Config{Start: 1}, newPool(t, 1))
	assert.True(t, errors.Is(err, &core.Error{Code: core.CodeInvalidBatch}))

	_, err = NewDriver(DefaultConfig(), nil)
	assert.Error(t, err)
}

func TestDriver_RunSubmitsConsecutiveBatches(t *testing.T) {
	pool := newPool(t, 2)
	store := &memoryStore{}
	pub := &memoryPublisher{}
	rec := &countingRecorder{}

	d, err := NewDriver(Config{Start: 1, BatchSize: 10, MaxBatches: 3}, pool,
		WithLogger(quietLogger()),
		WithStore(store),
		WithPublisher(pub),
		WithRecorder(rec),
		WithRunID("run-1"),
	)
	require.NoError(t, err)
	assert.Equal(t, "run-1", d.RunID())

	require.NoError(t, d.Run(context.Background()))
	drain(t, pool)

	assert.ElementsMatch(t, []Batch{{1, 11}, {11, 21}, {21, 31}}, store.batches())
	assert.Equal(t, []string{"run-1", "run-1", "run-1"}, store.runIDs)
	assert.Len(t, pub.events, 3)
	assert.Equal(t, []uint64{11, 21, 31}, rec.submitted)
	assert.Equal(t, uint64(30), rec.checked)
	assert.Zero(t, rec.counterexamples)
}

func TestDriver_LogsBatchProgressAtInfo(t *testing.T) {
	pool := newPool(t, 1)
	var logs bytes.Buffer
	logger := core.NewLogger(core.LoggerConfig{Level: "INFO", Output: &logs})

	d, err := NewDriver(Config{Start: 1, BatchSize: 10, MaxBatches: 2}, pool, WithLogger(logger))
	require.NoError(t, err)
	require.NoError(t, d.Run(context.Background()))
	drain(t, pool)

	out := logs.String()
	assert.Contains(t, out, "Starting batch 1-11")
	assert.Contains(t, out, "Processed batch 1-11")
	assert.Contains(t, out, "Starting batch 11-21")
	assert.Contains(t, out, "Processed batch 11-21")
}

func TestDriver_ResumeFromCheckpoint(t *testing.T) {
	tests := []struct {
		name   string
		resume bool
		cp     uint64
		want   Batch
	}{
		{"resume past start", true, 101, Batch{101, 111}},
		{"checkpoint behind start", true, 0, Batch{1, 11}},
		{"resume disabled", false, 101, Batch{1, 11}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pool := newPool(t, 1)
			store := &memoryStore{checkpoint: tt.cp, hasCP: true}

			d, err := NewDriver(Config{Start: 1, BatchSize: 10, MaxBatches: 1, Resume: tt.resume}, pool,
				WithLogger(quietLogger()), WithStore(store))
			require.NoError(t, err)

			require.NoError(t, d.Run(context.Background()))
			drain(t, pool)

			assert.Equal(t, []Batch{tt.want}, store.batches())
		})
	}
}

func TestDriver_CheckpointError(t *testing.T) {
	store := &memoryStore{cpErr: errors.New("db down")}
	d, err := NewDriver(Config{Start: 1, BatchSize: 10, Resume: true}, newPool(t, 1),
		WithLogger(quietLogger()), WithStore(store))
	require.NoError(t, err)

	assert.ErrorContains(t, d.Run(context.Background()), "db down")
}

func TestDriver_ReportsCounterexample(t *testing.T) {
	pool := newPool(t, 1)
	rec := &countingRecorder{}
	pub := &memoryPublisher{}

	var hooked []BatchResult
	d, err := NewDriver(Config{Start: 1, BatchSize: 10, MaxBatches: 1}, pool,
		WithLogger(quietLogger()),
		WithRecorder(rec),
		WithPublisher(pub),
		WithBatchHook(func(res BatchResult) { hooked = append(hooked, res) }),
	)
	require.NoError(t, err)
	d.check = func(b Batch) BatchResult {
		return checkBatch(b, func(n uint64) bool { return n != 5 })
	}

	require.NoError(t, d.Run(context.Background()))
	drain(t, pool)

	require.Len(t, hooked, 1)
	require.NotNil(t, hooked[0].Counterexample)
	assert.Equal(t, uint64(5), *hooked[0].Counterexample)
	assert.Equal(t, 1, rec.counterexamples)
	assert.Equal(t, uint64(5), rec.checked)
	require.Len(t, pub.events, 1)
}

func TestDriver_StopsWhenExhausted(t *testing.T) {
	pool := newPool(t, 1)
	store := &memoryStore{}

	d, err := NewDriver(Config{Start: math.MaxUint64 - 5, BatchSize: 10}, pool,
		WithLogger(quietLogger()), WithStore(store))
	require.NoError(t, err)
	d.check = func(b Batch) BatchResult {
		return BatchResult{Batch: b, Checked: b.Len()}
	}

	require.NoError(t, d.Run(context.Background()))
	drain(t, pool)

	assert.Equal(t, []Batch{{math.MaxUint64 - 5, math.MaxUint64}}, store.batches())
}

func TestDriver_CancellationIsNotAnError(t *testing.T) {
	pool := newPool(t, 1)
	release := make(chan struct{})

	d, err := NewDriver(Config{Start: 1, BatchSize: 10}, pool, WithLogger(quietLogger()))
	require.NoError(t, err)
	d.check = func(b Batch) BatchResult {
		<-release
		return BatchResult{Batch: b, Checked: b.Len()}
	}

	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan error, 1)
	go func() { result <- d.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-result:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("driver did not return after cancellation")
	}
	close(release)
}

func TestDriver_ClosedPoolStopsRun(t *testing.T) {
	pool := newPool(t, 1)
	drain(t, pool)

	d, err := NewDriver(DefaultConfig(), pool, WithLogger(quietLogger()))
	require.NoError(t, err)

	assert.NoError(t, d.Run(context.Background()))
}

func TestDriver_SubmitRate(t *testing.T) {
	pool := newPool(t, 2)
	d, err := NewDriver(Config{Start: 1, BatchSize: 1, MaxBatches: 3, SubmitRate: 20}, pool,
		WithLogger(quietLogger()))
	require.NoError(t, err)

	start := time.Now()
	require.NoError(t, d.Run(context.Background()))

	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}
