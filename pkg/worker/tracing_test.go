package worker_test

import (
	"context"
	"testing"

	"github.com/fluxorio/threadpool/pkg/observability/otel"
	"github.com/fluxorio/threadpool/pkg/worker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestWithTracing_SpanPerJob(t *testing.T) {
	ctx := context.Background()
	exporter := tracetest.NewInMemoryExporter()
	require.NoError(t, otel.InitializeWithExporter(ctx, otel.DefaultConfig(), exporter))
	defer otel.Shutdown(ctx)

	p := worker.New(2, worker.WithName("traced"), worker.WithTracing(), worker.WithLogger(quietLogger()))
	for i := 0; i < 3; i++ {
		require.NoError(t, p.Submit(func() {}))
	}
	require.NoError(t, p.Submit(func() { panic("traced panic") }))
	stop(t, p)

	require.NoError(t, otel.Flush(ctx))
	spans := exporter.GetSpans()
	require.Len(t, spans, 4)
	for _, s := range spans {
		assert.Equal(t, "traced.job", s.Name)
	}
}
