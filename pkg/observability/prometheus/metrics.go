package prometheus

import (
	"time"

	"github.com/fluxorio/threadpool/pkg/core/fsm"
	"github.com/fluxorio/threadpool/pkg/worker"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "threadpool"

// NewRegistry returns a registry holding the Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	r := prometheus.NewRegistry()
	r.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// PoolMetrics exports WorkerPool events. It implements worker.Observer.
type PoolMetrics struct {
	submitted   prometheus.Counter
	completed   prometheus.Counter
	panicked    prometheus.Counter
	busy        prometheus.Gauge
	stopped     prometheus.Gauge
	jobDuration prometheus.Histogram
	submitWait  prometheus.Histogram
}

var _ worker.Observer = (*PoolMetrics)(nil)

// NewPoolMetrics creates pool collectors labelled with pool and registers
// them on registerer.
func NewPoolMetrics(registerer prometheus.Registerer, pool string) (*PoolMetrics, error) {
	labels := prometheus.Labels{"pool": pool}
	m := &PoolMetrics{
		submitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "pool", Name: "jobs_submitted_total",
			Help: "Jobs accepted onto the queue", ConstLabels: labels,
		}),
		completed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "pool", Name: "jobs_completed_total",
			Help: "Jobs that returned normally", ConstLabels: labels,
		}),
		panicked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "pool", Name: "jobs_panicked_total",
			Help: "Jobs that panicked", ConstLabels: labels,
		}),
		busy: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "pool", Name: "busy_workers",
			Help: "Workers currently running a job", ConstLabels: labels,
		}),
		stopped: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "pool", Name: "stopped_workers",
			Help: "Workers that have exited", ConstLabels: labels,
		}),
		jobDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "pool", Name: "job_duration_seconds",
			Help: "Job execution time", ConstLabels: labels,
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
		submitWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "pool", Name: "submit_wait_seconds",
			Help: "Time producers spent blocked on a full queue", ConstLabels: labels,
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
		}),
	}

	for _, c := range []prometheus.Collector{
		m.submitted, m.completed, m.panicked, m.busy, m.stopped, m.jobDuration, m.submitWait,
	} {
		if err := registerer.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// TrackQueue exports the queue depth and capacity of p.
func TrackQueue(registerer prometheus.Registerer, p *worker.WorkerPool) error {
	labels := prometheus.Labels{"pool": p.Name()}
	depth := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace, Subsystem: "pool", Name: "queue_depth",
		Help: "Jobs waiting for a worker", ConstLabels: labels,
	}, func() float64 { return float64(p.QueueLen()) })
	capacity := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace, Subsystem: "pool", Name: "queue_capacity",
		Help: "Size of the job queue", ConstLabels: labels,
	}, func() float64 { return float64(p.Capacity()) })

	if err := registerer.Register(depth); err != nil {
		return err
	}
	return registerer.Register(capacity)
}

func (m *PoolMetrics) JobSubmitted(wait time.Duration) {
	m.submitted.Inc()
	m.submitWait.Observe(wait.Seconds())
}

func (m *PoolMetrics) JobFinished(_ int, elapsed time.Duration, panicked bool) {
	if panicked {
		m.panicked.Inc()
	} else {
		m.completed.Inc()
	}
	m.jobDuration.Observe(elapsed.Seconds())
}

func (m *PoolMetrics) WorkerTransition(_ int, from, to fsm.State) {
	switch {
	case to == worker.StateRunning:
		m.busy.Inc()
	case from == worker.StateRunning:
		m.busy.Dec()
	}
	if to == worker.StateStopped {
		m.stopped.Inc()
	}
}

// ConjectureMetrics counts the work done by the conjecture driver.
type ConjectureMetrics struct {
	batches         prometheus.Counter
	checked         prometheus.Counter
	counterexamples prometheus.Counter
	frontier        prometheus.Gauge
}

// NewConjectureMetrics creates and registers the driver collectors.
func NewConjectureMetrics(registerer prometheus.Registerer) (*ConjectureMetrics, error) {
	m := &ConjectureMetrics{
		batches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "conjecture", Name: "batches_total",
			Help: "Batches fully processed",
		}),
		checked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "conjecture", Name: "numbers_checked_total",
			Help: "Numbers tested against the conjecture",
		}),
		counterexamples: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "conjecture", Name: "counterexamples_total",
			Help: "Numbers for which the conjecture failed",
		}),
		frontier: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "conjecture", Name: "submitted_frontier",
			Help: "Exclusive upper bound of the last submitted batch",
		}),
	}
	for _, c := range []prometheus.Collector{m.batches, m.checked, m.counterexamples, m.frontier} {
		if err := registerer.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// BatchSubmitted records the upper bound of a batch handed to the pool.
func (m *ConjectureMetrics) BatchSubmitted(end uint64) {
	m.frontier.Set(float64(end))
}

// BatchProcessed records a finished batch.
func (m *ConjectureMetrics) BatchProcessed(checked uint64, counterexample bool) {
	m.batches.Inc()
	m.checked.Add(float64(checked))
	if counterexample {
		m.counterexamples.Inc()
	}
}
