package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/harliandi/go-convert/internal/config"
	"github.com/harliandi/go-convert/internal/converter"
	"github.com/harliandi/go-convert/internal/handler"
	"github.com/harliandi/go-convert/internal/history"
	"github.com/harliandi/go-convert/internal/middleware"
	"github.com/harliandi/go-convert/internal/storage"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg := config.Load()
	logger := cfg.NewLogger(os.Stderr)

	a, err := newApp(cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Startup failed")
	}
	defer a.pool.Stop()

	// Configure server with timeouts to prevent slowloris and hanging connections
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      a.handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.WithFields(logrus.Fields{
			"addr":           server.Addr,
			"codec":          a.converter.Codec(),
			"max_upload_mb":  cfg.MaxUploadMB,
			"max_concurrent": cfg.MaxConcurrent,
			"rate_limit":     cfg.RateLimitPerSec,
			"workers":        cfg.WorkerCount,
			"upload_dir":     cfg.UploadDir,
			"history_file":   cfg.HistoryFile,
		}).Info("Starting image tools API")
		if !a.converter.OptimizedHuffman() {
			logger.Warn(handler.NoHuffmanNote)
		}
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("Server error")
			a.pool.Stop()
			os.Exit(1)
		}
	case <-ctx.Done():
		logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("Graceful shutdown failed")
		}
	}
}

type app struct {
	converter *converter.Converter
	pool      *converter.WorkerPool
	handler   http.Handler
}

// newApp wires storage, the activity log, the worker pool and the HTTP stack.
func newApp(cfg *config.Config, logger *logrus.Logger) (*app, error) {
	store, err := storage.New(cfg.UploadDir)
	if err != nil {
		return nil, err
	}
	hist, err := history.Open(cfg.HistoryFile, logger)
	if err != nil {
		return nil, err
	}

	conv := converter.New(
		converter.WithMaxFileSize(cfg.MaxUploadBytes()),
		converter.WithLogger(logger),
	)
	pool := converter.NewWorkerPool(cfg.WorkerCount, logger)
	pool.Start()

	h := handler.New(handler.Deps{
		Converter:      conv,
		Pool:           pool,
		Store:          store,
		History:        hist,
		MaxUploadBytes: cfg.MaxUploadBytes(),
		Logger:         logger,
	})

	mux := http.NewServeMux()
	h.Register(mux)
	mux.Handle("/metrics", promhttp.Handler())

	return &app{
		converter: conv,
		pool:      pool,
		handler:   chain(mux, cfg, logger),
	}, nil
}

// chain applies middlewares in order (outermost first):
// security headers, CORS, per-IP rate limit, global concurrency limit,
// panic recovery and request logging.
func chain(next http.Handler, cfg *config.Config, logger *logrus.Logger) http.Handler {
	return middleware.Security(
		middleware.CORS(cfg.AllowedOrigins)(
			middleware.RateLimit(cfg.RateLimitPerSec, cfg.RateLimitBurst, cfg.TrustProxyHeaders, logger)(
				middleware.ConcurrencyLimit(cfg.MaxConcurrent, logger)(
					middleware.Recovery(logger)(
						middleware.Logger(logger)(next),
					),
				),
			),
		),
	)
}
