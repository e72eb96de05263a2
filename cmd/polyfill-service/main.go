// Command polyfill-service runs the polyfill bundling HTTP server.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/polyfillsrv/service/internal/polyfill/cache"
	"github.com/polyfillsrv/service/internal/polyfill/catalogue"
	"github.com/polyfillsrv/service/internal/polyfill/env"
	"github.com/polyfillsrv/service/internal/polyfill/logging"
	"github.com/polyfillsrv/service/internal/polyfill/metrics"
	"github.com/polyfillsrv/service/internal/polyfill/metricsserver"
	polyfillserver "github.com/polyfillsrv/service/internal/polyfill/server"
)

const requestTimeout = 30 * time.Second

func main() {
	cfg := env.Load()

	logger, err := logging.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	cat := catalogue.NewReader(cfg.PolyfillBase, logger)
	store := cache.NewStore(cfg.CacheDir, logger)
	collector := metrics.New("polyfill")

	srv := polyfillserver.New(cat, store, collector, logger)

	httpServer := newFastHTTPServer(srv.Handle, requestTimeout)
	httpLifecycle := &serverLifecycle{
		server:  httpServer,
		name:    "polyfill-http",
		address: fmt.Sprintf(":%d", cfg.Port),
		logger:  logger,
	}

	serverErrors := make(chan error, 2)
	httpLifecycle.StartWithErrorChan(serverErrors)

	metricsLifecycle, err := metricsserver.Start(cfg.MetricsListen, collector, logger)
	if err != nil {
		logger.Fatal("metrics server failed to start", zap.Error(err))
	}

	time.Sleep(100 * time.Millisecond)
	select {
	case err := <-serverErrors:
		logger.Fatal("server failed to start", zap.Error(err))
	default:
	}

	logger.Info("polyfill-service started",
		zap.String("http_addr", httpLifecycle.address),
		zap.String("metrics_addr", cfg.MetricsListen),
		zap.String("polyfill_base", cfg.PolyfillBase))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		logger.Info("shutting down polyfill-service")
	case err := <-serverErrors:
		logger.Error("server error, initiating shutdown", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := metricsLifecycle.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown error", zap.Error(err))
	}
	if err := httpLifecycle.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", zap.Error(err))
	}
}

const serverName = "polyfill-service/1.0"

func newFastHTTPServer(handler fasthttp.RequestHandler, timeout time.Duration) *fasthttp.Server {
	return &fasthttp.Server{
		Handler:                      handler,
		Name:                         serverName,
		ReadTimeout:                  timeout,
		WriteTimeout:                 timeout,
		IdleTimeout:                  timeout,
		DisablePreParseMultipartForm: true,
		NoDefaultServerHeader:        true,
	}
}

type serverLifecycle struct {
	server   *fasthttp.Server
	listener net.Listener
	name     string
	address  string
	logger   *zap.Logger
}

func (s *serverLifecycle) StartWithErrorChan(errChan chan<- error) {
	go func() {
		var err error
		if s.listener != nil {
			err = s.server.Serve(s.listener)
		} else {
			err = s.server.ListenAndServe(s.address)
		}
		if err != nil {
			s.logger.Error("server error", zap.String("name", s.name), zap.Error(err))
			if errChan != nil {
				errChan <- fmt.Errorf("%s server failed: %w", s.name, err)
			}
		}
	}()
	s.logger.Info("server started", zap.String("name", s.name), zap.String("address", s.address))
}

func (s *serverLifecycle) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server", zap.String("name", s.name))
	return s.server.ShutdownWithContext(ctx)
}
