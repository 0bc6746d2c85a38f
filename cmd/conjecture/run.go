package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/fluxorio/threadpool/pkg/conjecture"
	"github.com/fluxorio/threadpool/pkg/config"
	"github.com/fluxorio/threadpool/pkg/core"
	"github.com/fluxorio/threadpool/pkg/health"
	"github.com/fluxorio/threadpool/pkg/observability/otel"
	metrics "github.com/fluxorio/threadpool/pkg/observability/prometheus"
	"github.com/fluxorio/threadpool/pkg/runtime"
	"github.com/fluxorio/threadpool/pkg/sink"
	"github.com/fluxorio/threadpool/pkg/store"
	"github.com/fluxorio/threadpool/pkg/worker"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
)

// services holds what the runtime components create on start.
type services struct {
	pool      *worker.WorkerPool
	store     *store.Store
	publisher *sink.NATSPublisher
}

// run starts every component, drives the conjecture until ctx is cancelled or
// the configured batches are submitted, then drains the pool and stops.
func run(ctx context.Context, cfg config.Config) (err error) {
	logger := core.NewLogger(cfg.Logging)
	defer core.CloseLogger(logger)
	core.SetDefaultLogger(logger)

	registry := metrics.NewRegistry()
	poolMetrics, err := metrics.NewPoolMetrics(registry, "conjecture")
	if err != nil {
		return fmt.Errorf("register pool metrics: %w", err)
	}
	conjMetrics, err := metrics.NewConjectureMetrics(registry)
	if err != nil {
		return fmt.Errorf("register conjecture metrics: %w", err)
	}

	svc := &services{}
	rt := runtime.NewRuntime(logger)
	for _, comp := range components(cfg, logger, registry, poolMetrics, svc) {
		if err := rt.Register(comp); err != nil {
			return err
		}
	}
	if err := rt.Start(ctx); err != nil {
		return err
	}
	defer func() {
		// ctx may already be cancelled; shutdown gets its own deadline
		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.ShutdownTimeout)
		defer cancel()
		err = errors.Join(err, rt.Stop(stopCtx))
	}()

	opts := []conjecture.DriverOption{
		conjecture.WithLogger(logger),
		conjecture.WithRecorder(conjMetrics),
	}
	if svc.store != nil {
		opts = append(opts, conjecture.WithStore(svc.store))
	}
	if svc.publisher != nil {
		opts = append(opts, conjecture.WithPublisher(svc.publisher))
	}
	driver, err := conjecture.NewDriver(cfg.Conjecture, svc.pool, opts...)
	if err != nil {
		return err
	}
	logger.WithFields(map[string]interface{}{
		"run_id":  driver.RunID(),
		"workers": svc.pool.Workers(),
	}).Info("Starting conjecture run")

	g, gctx := errgroup.WithContext(ctx)
	serveCtx, stopServing := context.WithCancel(gctx)
	defer stopServing()

	if cfg.Metrics.Enabled {
		handler := metrics.FastHTTPHandler(registry, health.Handler(
			healthChecks(svc),
			func() interface{} { return health.SnapshotPool(svc.pool) },
			nil,
		))
		g.Go(func() error {
			return metrics.ListenAndServe(serveCtx, cfg.Metrics.Addr, handler)
		})
	}
	g.Go(func() error {
		defer stopServing()
		if err := driver.Run(gctx); err != nil {
			return err
		}
		// metrics stay up while the queued batches drain
		drainCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.ShutdownTimeout)
		defer cancel()
		return svc.pool.Stop(drainCtx)
	})

	return g.Wait()
}

func healthChecks(svc *services) *health.Registry {
	checks := health.NewRegistry()
	checks.Register("pool", health.PoolCheck(svc.pool))
	if svc.store != nil {
		checks.Register("store", health.PingCheck(svc.store))
	}
	if svc.publisher != nil {
		checks.Register("nats", health.ConnectionCheck(svc.publisher))
	}
	return checks
}

func components(cfg config.Config, logger core.Logger, registry prometheus.Registerer,
	observer worker.Observer, svc *services) []runtime.Component {
	tracing := cfg.Tracing.Exporter != "none"

	comps := []runtime.Component{
		runtime.Hooks{
			ComponentName: "tracing",
			OnStart: func(ctx context.Context) error {
				if !tracing {
					return nil
				}
				return otel.Initialize(ctx, cfg.Tracing)
			},
			OnStop: otel.Shutdown,
		},
	}

	if cfg.Store.Driver != "" {
		comps = append(comps, runtime.Hooks{
			ComponentName: "store",
			OnStart: func(ctx context.Context) error {
				s, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DSN, logger)
				if err != nil {
					return err
				}
				if err := s.Migrate(ctx); err != nil {
					s.Close()
					return err
				}
				svc.store = s
				return nil
			},
			OnStop: func(context.Context) error {
				return svc.store.Close()
			},
		})
	}

	if cfg.NATS.URL != "" {
		comps = append(comps, runtime.Hooks{
			ComponentName: "nats",
			OnStart: func(context.Context) error {
				p, err := sink.Connect(cfg.NATS, logger)
				if err != nil {
					return err
				}
				svc.publisher = p
				return nil
			},
			OnStop: func(context.Context) error {
				return svc.publisher.Close()
			},
		})
	}

	// registered last so it is stopped first, before the store and sink
	// its jobs write to
	comps = append(comps, runtime.Hooks{
		ComponentName: "pool",
		OnStart: func(context.Context) error {
			opts := []worker.Option{
				worker.WithName("conjecture"),
				worker.WithLogger(logger),
				worker.WithObserver(observer),
			}
			if tracing {
				opts = append(opts, worker.WithTracing())
			}
			svc.pool = worker.NewWithConfig(cfg.Pool, opts...)
			if err := metrics.TrackQueue(registry, svc.pool); err != nil {
				svc.pool.Shutdown()
				return err
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return svc.pool.Stop(ctx)
		},
	})
	return comps
}
