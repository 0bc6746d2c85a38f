package prometheus

import (
	"context"
	"net"
	"net/http"

	"github.com/fluxorio/threadpool/pkg/core"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

// MetricsPath is where Serve exposes the registry.
const MetricsPath = "/metrics"

// HandlerFor returns an HTTP handler for a custom registry
func HandlerFor(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// FastHTTPHandler returns a fasthttp handler serving MetricsPath from registry
// and a liveness probe on /healthz. Other paths go to next, or get a 404 when
// next is nil.
func FastHTTPHandler(registry *prometheus.Registry, next fasthttp.RequestHandler) fasthttp.RequestHandler {
	metrics := fasthttpadaptor.NewFastHTTPHandler(HandlerFor(registry))

	return func(ctx *fasthttp.RequestCtx) {
		switch string(ctx.Path()) {
		case MetricsPath:
			metrics(ctx)
		case "/healthz":
			ctx.SetStatusCode(fasthttp.StatusOK)
			ctx.SetBodyString("ok")
		default:
			if next != nil {
				next(ctx)
				return
			}
			ctx.Error("not found", fasthttp.StatusNotFound)
		}
	}
}

// Serve runs handler on ln until ctx is cancelled.
func Serve(ctx context.Context, ln net.Listener, handler fasthttp.RequestHandler) error {
	srv := &fasthttp.Server{
		Handler: handler,
		Name:    "threadpool-metrics",
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	core.Info("metrics server listening on ", ln.Addr().String())

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		if err := srv.Shutdown(); err != nil {
			return err
		}
		return nil
	}
}

// ListenAndServe listens on addr and calls Serve.
func ListenAndServe(ctx context.Context, addr string, handler fasthttp.RequestHandler) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return Serve(ctx, ln, handler)
}
