package otel

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// WrapJob returns a function that runs job inside a span named name.
// A panic is recorded on the span and then re-raised to the caller.
func WrapJob(ctx context.Context, name string, job func(), attrs ...attribute.KeyValue) func() {
	if !IsInitialized() {
		return job
	}

	return func() {
		_, span := StartSpan(ctx, name,
			trace.WithSpanKind(trace.SpanKindConsumer),
			trace.WithAttributes(attrs...),
		)
		defer span.End()

		defer func() {
			if r := recover(); r != nil {
				span.RecordError(fmt.Errorf("panic: %v", r))
				span.SetStatus(codes.Error, "job panicked")
				panic(r)
			}
		}()

		job()
		span.SetStatus(codes.Ok, "OK")
	}
}
