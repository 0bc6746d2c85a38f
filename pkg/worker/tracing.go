package worker

import (
	"context"

	"github.com/fluxorio/threadpool/pkg/observability/otel"
	"go.opentelemetry.io/otel/attribute"
)

func traceJob(p *WorkerPool, workerID int, job Job) Job {
	return otel.WrapJob(context.Background(), p.name+".job", job,
		attribute.String("pool.id", p.id),
		attribute.Int("worker.id", workerID),
	)
}
