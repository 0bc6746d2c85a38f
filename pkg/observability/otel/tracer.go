package otel

import (
	"context"
	"fmt"
	"os"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

var (
	globalTracer   trace.Tracer
	globalProvider *sdktrace.TracerProvider
	mu             sync.RWMutex
	initialized    bool
)

// Initialize initializes OpenTelemetry with the given configuration
func Initialize(ctx context.Context, config Config) error {
	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid OpenTelemetry config: %w", err)
	}

	exporter, err := newExporter(config, os.Stdout)
	if err != nil {
		return err
	}
	return InitializeWithExporter(ctx, config, exporter)
}

// InitializeWithExporter initializes OpenTelemetry with a caller-provided exporter.
// config.Exporter is ignored.
func InitializeWithExporter(ctx context.Context, config Config, exporter sdktrace.SpanExporter) error {
	mu.Lock()
	defer mu.Unlock()

	if initialized {
		return fmt.Errorf("OpenTelemetry already initialized")
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(config.ServiceName),
			semconv.ServiceVersion(config.ServiceVersion),
			attribute.String("environment", config.Environment),
		),
	)
	if err != nil {
		return fmt.Errorf("failed to create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(config.SampleRate)),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	globalProvider = tp
	globalTracer = tp.Tracer(config.ServiceName)
	initialized = true
	return nil
}

// Tracer returns the global tracer, or a noop tracer before Initialize
func Tracer() trace.Tracer {
	mu.RLock()
	defer mu.RUnlock()
	if globalTracer == nil {
		return noop.NewTracerProvider().Tracer("noop")
	}
	return globalTracer
}

// StartSpan starts a new span
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, opts...)
}

// IsInitialized returns whether OpenTelemetry has been initialized
func IsInitialized() bool {
	mu.RLock()
	defer mu.RUnlock()
	return initialized
}

// Flush exports every span ended so far
func Flush(ctx context.Context) error {
	mu.RLock()
	defer mu.RUnlock()
	if globalProvider == nil {
		return nil
	}
	return globalProvider.ForceFlush(ctx)
}

// Shutdown flushes and shuts down the tracer provider. Initialize may be
// called again afterwards.
func Shutdown(ctx context.Context) error {
	mu.Lock()
	defer mu.Unlock()

	if !initialized {
		return nil
	}

	err := globalProvider.Shutdown(ctx)
	globalProvider = nil
	globalTracer = nil
	initialized = false
	return err
}
