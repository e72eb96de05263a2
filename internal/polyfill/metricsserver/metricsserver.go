// Package metricsserver runs the Prometheus scrape endpoint on its own
// listener, separate from the polyfill-serving port, adapted from the
// teacher's internal/common/metricsserver.
package metricsserver

import (
	"context"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

// Handler is the subset of metrics.Collector this package depends on.
type Handler interface {
	ServeHTTP(ctx *fasthttp.RequestCtx)
}

// Lifecycle wraps the running metrics fasthttp.Server for graceful
// shutdown from main.
type Lifecycle struct {
	server *fasthttp.Server
	logger *zap.Logger
}

// Start launches the metrics server in the background on listen,
// serving handler at /metrics.
func Start(listen string, handler Handler, logger *zap.Logger) (*Lifecycle, error) {
	server := &fasthttp.Server{
		Handler:            buildHandler(handler),
		Name:               "polyfill-metrics",
		ReadTimeout:        10 * time.Second,
		WriteTimeout:       10 * time.Second,
		MaxRequestBodySize: 1 * 1024,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(listen); err != nil {
			logger.Error("metrics server stopped", zap.String("listen", listen), zap.Error(err))
			select {
			case errCh <- err:
			default:
			}
		}
	}()

	time.Sleep(50 * time.Millisecond)
	select {
	case err := <-errCh:
		return nil, err
	default:
	}

	logger.Info("metrics server listening", zap.String("listen", listen))
	return &Lifecycle{server: server, logger: logger}, nil
}

func buildHandler(handler Handler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		if string(ctx.Path()) == "/metrics" {
			handler.ServeHTTP(ctx)
			return
		}
		ctx.SetStatusCode(fasthttp.StatusNotFound)
		ctx.SetBodyString("not found")
	}
}

// Shutdown gracefully stops the metrics server.
func (l *Lifecycle) Shutdown(ctx context.Context) error {
	if l == nil {
		return nil
	}
	return l.server.ShutdownWithContext(ctx)
}
