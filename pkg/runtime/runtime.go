// Package runtime starts process components in order and stops them in reverse.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/fluxorio/threadpool/pkg/core"
)

var (
	ErrRuntimeAlreadyStarted = errors.New("runtime has already been started")
	ErrRuntimeNotStarted     = errors.New("runtime is not started")
)

const (
	runtimeStateIdle uint32 = iota
	runtimeStateStarting
	runtimeStateStarted
	runtimeStateStopping
	runtimeStateStopped
)

// Runtime owns the lifecycle of a fixed list of components.
type Runtime struct {
	state   uint32
	comps   []Component
	started int
	mu      sync.Mutex
	logger  core.Logger
}

// NewRuntime creates an idle runtime.
func NewRuntime(logger core.Logger) *Runtime {
	if logger == nil {
		logger = core.DefaultLogger()
	}
	return &Runtime{logger: logger}
}

// Register appends comp. Components start in registration order.
func (r *Runtime) Register(comp Component) error {
	if comp == nil {
		return &core.Error{Code: core.CodeInvalidConfig, Message: "component cannot be nil"}
	}
	if atomic.LoadUint32(&r.state) != runtimeStateIdle {
		return ErrRuntimeAlreadyStarted
	}
	r.mu.Lock()
	r.comps = append(r.comps, comp)
	r.mu.Unlock()
	return nil
}

// Start starts every component in order. If one fails, the ones already
// started are stopped and the error is returned.
func (r *Runtime) Start(ctx context.Context) error {
	if !atomic.CompareAndSwapUint32(&r.state, runtimeStateIdle, runtimeStateStarting) {
		return ErrRuntimeAlreadyStarted
	}

	r.mu.Lock()
	for _, comp := range r.comps {
		if err := comp.Start(ctx); err != nil {
			r.mu.Unlock()
			err = fmt.Errorf("start %s: %w", comp.Name(), err)
			r.logger.Error(err)
			atomic.StoreUint32(&r.state, runtimeStateStarted)
			if stopErr := r.Stop(ctx); stopErr != nil {
				err = errors.Join(err, stopErr)
			}
			return err
		}
		r.started++
		r.logger.Debug("component ", comp.Name(), " started")
	}
	r.mu.Unlock()

	atomic.StoreUint32(&r.state, runtimeStateStarted)
	return nil
}

// Stop stops the started components in reverse order. Every component is
// given a chance to stop; their errors are joined.
func (r *Runtime) Stop(ctx context.Context) error {
	if !atomic.CompareAndSwapUint32(&r.state, runtimeStateStarted, runtimeStateStopping) {
		return ErrRuntimeNotStarted
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for i := r.started - 1; i >= 0; i-- {
		comp := r.comps[i]
		if err := comp.Stop(ctx); err != nil {
			r.logger.Error("stop ", comp.Name(), ": ", err)
			errs = append(errs, fmt.Errorf("stop %s: %w", comp.Name(), err))
			continue
		}
		r.logger.Debug("component ", comp.Name(), " stopped")
	}
	r.started = 0

	atomic.StoreUint32(&r.state, runtimeStateStopped)
	return errors.Join(errs...)
}
