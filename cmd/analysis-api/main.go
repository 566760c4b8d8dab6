package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/target/analysis-api/internal/bootstrap"
)

func main() {
	ctx := context.Background()
	logger := bootstrap.InitLogger()
	if err := run(ctx, logger); err != nil {
		logger.ErrorContext(ctx, "fatal error", "error", err)
		os.Exit(1) //nolint:forbidigo // Main entrypoint should exit with non-zero status on fatal errors.
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		return err
	}
	if cfg.IsDev {
		logger = bootstrap.InitDevLogger()
	}

	logger.InfoContext(ctx, "starting analysis service",
		"addr", cfg.HTTP.Addr,
		"storage_root", cfg.Storage.Root,
		"worker_width", cfg.Worker.Width,
		"queue_depth", cfg.Worker.QueueDepth,
		"redis_mirror", cfg.Redis.Enabled())

	services, err := bootstrap.NewServices(&bootstrap.ServiceDeps{
		Config: &cfg,
		Logger: logger,
	})
	if err != nil {
		return err
	}

	return bootstrap.Run(&bootstrap.HTTPServerConfig{
		Config:   &cfg,
		Services: services,
		Logger:   logger,
	})
}
