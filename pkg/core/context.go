package core

import (
	"context"
)

type contextKey string

const runIDKey contextKey = "run_id"

// WithRunID returns a copy of ctx carrying the id of the current run.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// GetRunID extracts the run id from ctx, or "" if none was set.
func GetRunID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(runIDKey).(string); ok {
		return id
	}
	return ""
}
