package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/target/analysis-api/config"
	httpx "github.com/target/analysis-api/internal/http"
)

// HTTPServerConfig contains configuration for the HTTP server.
type HTTPServerConfig struct {
	Config   *config.AppConfig
	Services *ServiceContainer
	Logger   *slog.Logger
}

// BuildHTTPServer assembles the HTTP server with its middleware stack.
// WriteTimeout stays zero so event streams can outlive any fixed deadline;
// per-request cancellation rides the client connection instead.
func BuildHTTPServer(cfg *HTTPServerConfig) *http.Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	appCfg := cfg.Config

	router := httpx.NewRouter(httpx.RouterServices{
		JobService:  cfg.Services.Jobs,
		Notifier:    cfg.Services.Notifier,
		StorageRoot: appCfg.Storage.Root,
		Heartbeat:   appCfg.Stream.HeartbeatInterval,
		Poll:        appCfg.Stream.PollInterval,
		Logger:      logger,
	})

	// Order: Recover -> Logging -> Router
	handler := httpx.Logging(logger)(router)
	handler = httpx.Recover(logger)(handler)

	addr := appCfg.HTTP.Addr
	if addr == "" {
		addr = ":8080"
	}

	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: appCfg.HTTP.ReadHeaderTimeout,
		IdleTimeout:       120 * time.Second,
	}
}

// Run starts the worker pool and HTTP server and blocks until SIGINT or
// SIGTERM, then shuts both down in order: stop accepting HTTP traffic,
// close stream subscribers, drain the pool.
func Run(cfg *HTTPServerConfig) error {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg.Services.Pool.Start(ctx)
	server := BuildHTTPServer(cfg)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting HTTP server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Config.HTTP.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown", "error", err)
		}

		cfg.Services.Notifier.StopAll()
		cfg.Services.Pool.Shutdown()

		if cfg.Services.Redis != nil {
			if err := cfg.Services.Redis.Close(); err != nil {
				logger.Error("close redis", "error", err)
			}
		}
		return nil
	})

	return g.Wait()
}
