package runtime

import (
	"context"
)

// Component is a long-lived resource started before the driver runs and
// stopped after it returns.
type Component interface {
	// Name identifies the component in logs and errors.
	Name() string

	// Start acquires the resource. A failed Start stops every component
	// started before it.
	Start(ctx context.Context) error

	// Stop releases the resource. ctx bounds how long it may take.
	Stop(ctx context.Context) error
}

// Hooks adapts a pair of functions to Component. Either may be nil.
type Hooks struct {
	ComponentName string
	OnStart       func(ctx context.Context) error
	OnStop        func(ctx context.Context) error
}

func (h Hooks) Name() string {
	return h.ComponentName
}

func (h Hooks) Start(ctx context.Context) error {
	if h.OnStart == nil {
		return nil
	}
	return h.OnStart(ctx)
}

func (h Hooks) Stop(ctx context.Context) error {
	if h.OnStop == nil {
		return nil
	}
	return h.OnStop(ctx)
}
