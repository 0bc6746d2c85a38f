package health

import (
	"context"
	"errors"
	"time"

	"github.com/fluxorio/threadpool/pkg/worker"
)

// Pinger is satisfied by *sql.DB and *store.Store.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PingCheck reports whether p answers a ping within two seconds.
func PingCheck(p Pinger) Checker {
	return func(ctx context.Context) error {
		if p == nil {
			return errors.New("database is nil")
		}

		checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()

		if err := p.PingContext(checkCtx); err != nil {
			return errors.New("database ping failed: " + err.Error())
		}
		return nil
	}
}

// Connection is satisfied by *sink.NATSPublisher.
type Connection interface {
	Connected() bool
}

// ConnectionCheck reports whether c is currently connected.
func ConnectionCheck(c Connection) Checker {
	return func(context.Context) error {
		if c == nil || !c.Connected() {
			return errors.New("not connected")
		}
		return nil
	}
}

// PoolCheck is down once p stops accepting jobs.
func PoolCheck(p *worker.WorkerPool) Checker {
	return func(context.Context) error {
		if p.Closed() {
			return worker.ErrWorkerPoolClosed
		}
		return nil
	}
}

// PoolStatus is a snapshot of a worker pool.
type PoolStatus struct {
	Name     string         `json:"name"`
	ID       string         `json:"id"`
	Workers  int            `json:"workers"`
	Capacity int            `json:"capacity"`
	Queued   int            `json:"queued"`
	Closed   bool           `json:"closed"`
	States   map[string]int `json:"states"`
}

// SnapshotPool counts p's workers by lifecycle state.
func SnapshotPool(p *worker.WorkerPool) PoolStatus {
	states := make(map[string]int)
	for _, s := range p.WorkerStates() {
		states[string(s)]++
	}
	return PoolStatus{
		Name:     p.Name(),
		ID:       p.ID(),
		Workers:  p.Workers(),
		Capacity: p.Capacity(),
		Queued:   p.QueueLen(),
		Closed:   p.Closed(),
		States:   states,
	}
}
