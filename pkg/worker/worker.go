package worker

import (
	"runtime/debug"
	"time"

	"github.com/fluxorio/threadpool/pkg/core/fsm"
)

// Worker lifecycle states
const (
	StateIdle    fsm.State = "IDLE"
	StateRunning fsm.State = "RUNNING"
	StateStopped fsm.State = "STOPPED"
)

// Worker lifecycle events
const (
	EventDequeue fsm.Event = "DEQUEUE"
	EventFinish  fsm.Event = "FINISH"
	EventStop    fsm.Event = "STOP"
)

var lifecycle = []fsm.Transition{
	{From: StateIdle, Event: EventDequeue, To: StateRunning},
	{From: StateRunning, Event: EventFinish, To: StateIdle},
	{From: StateIdle, Event: EventStop, To: StateStopped},
}

// Worker is one goroutine of a WorkerPool. It receives one job at a time
// from the shared queue and runs it to completion before receiving the next.
type Worker struct {
	id    int
	pool  *WorkerPool
	state *fsm.FSM
}

func newWorker(id int, p *WorkerPool) *Worker {
	w := &Worker{
		id:    id,
		pool:  p,
		state: fsm.NewFSM(StateIdle, lifecycle...),
	}
	w.state.Observe(func(from, to fsm.State, _ fsm.Event) {
		p.observer.WorkerTransition(id, from, to)
	})
	return w
}

// ID returns the ordinal of the worker within its pool.
func (w *Worker) ID() int {
	return w.id
}

// State returns the current lifecycle state.
func (w *Worker) State() fsm.State {
	return w.state.CurrentState()
}

// run is the worker's execution loop. It returns once the queue is closed
// and every job buffered before the close has been executed.
func (w *Worker) run() {
	defer w.pool.wg.Done()

	for job := range w.pool.jobs {
		w.state.MustTrigger(EventDequeue)
		w.execute(job)
		w.state.MustTrigger(EventFinish)
	}

	w.state.MustTrigger(EventStop)
	w.pool.logger.Debug("worker ", w.id, " stopped")
}

// execute runs a single job. A panic is contained to the job that raised it.
func (w *Worker) execute(job Job) {
	if w.pool.tracing {
		job = traceJob(w.pool, w.id, job)
	}

	start := time.Now()
	panicked := false
	defer func() {
		if r := recover(); r != nil {
			panicked = true
			w.pool.logger.WithFields(map[string]interface{}{
				"worker_id": w.id,
				"panic":     r,
				"stack":     string(debug.Stack()),
			}).Error("job panicked")
			if w.pool.onPanic != nil {
				w.pool.onPanic(w.id, r)
			}
		}
		w.pool.observer.JobFinished(w.id, time.Since(start), panicked)
	}()

	job()
}
