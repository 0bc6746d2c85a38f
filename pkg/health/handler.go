package health

import (
	"context"
	"encoding/json"
	"time"

	"github.com/valyala/fasthttp"
)

// HealthResponse represents the /health response
type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp string                 `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// Handler serves /health from registry and, when status is not nil, /status
// with the JSON encoding of status(). Other paths go to next, or get a 404.
func Handler(registry *Registry, status func() interface{}, next fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		switch string(ctx.Path()) {
		case "/health":
			// checks carry their own timeouts
			overall, results := registry.Status(context.Background())
			code := fasthttp.StatusOK
			if overall == StatusDown {
				code = fasthttp.StatusServiceUnavailable
			}
			writeJSON(ctx, code, HealthResponse{
				Status:    string(overall),
				Timestamp: time.Now().UTC().Format(time.RFC3339),
				Checks:    results,
			})
		case "/status":
			if status == nil {
				ctx.Error("not found", fasthttp.StatusNotFound)
				return
			}
			writeJSON(ctx, fasthttp.StatusOK, status())
		default:
			if next != nil {
				next(ctx)
				return
			}
			ctx.Error("not found", fasthttp.StatusNotFound)
		}
	}
}

func writeJSON(ctx *fasthttp.RequestCtx, code int, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		ctx.Error(err.Error(), fasthttp.StatusInternalServerError)
		return
	}
	ctx.SetStatusCode(code)
	ctx.SetContentType("application/json")
	ctx.SetBody(data)
}
