package bootstrap

import (
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/target/analysis-api/config"
	"github.com/target/analysis-api/internal/adapters/redisevents"
	"github.com/target/analysis-api/internal/archive"
	"github.com/target/analysis-api/internal/core"
	"github.com/target/analysis-api/internal/domain/stream"
	"github.com/target/analysis-api/internal/pipeline"
	"github.com/target/analysis-api/internal/runner"
	"github.com/target/analysis-api/internal/scheduler"
	"github.com/target/analysis-api/internal/service"
	"github.com/target/analysis-api/internal/store"
)

// ServiceContainer holds the constructed runtime collaborators.
type ServiceContainer struct {
	Notifier *stream.Notifier
	Store    *store.Store
	Pool     *scheduler.Pool
	Jobs     *service.JobService

	// Redis is non-nil only when the event mirror is enabled.
	Redis redis.UniversalClient
}

// ServiceDeps groups inputs for NewServices.
type ServiceDeps struct {
	Config *config.AppConfig
	Logger *slog.Logger

	// Factory overrides the pipeline factory; the demo pipeline is used
	// when nil.
	Factory core.PipelineFactory
}

// NewServices constructs and wires the service graph.
func NewServices(deps *ServiceDeps) (*ServiceContainer, error) {
	cfg := deps.Config
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	notifier := stream.NewNotifier()

	var sinks []core.EventSink
	var redisClient redis.UniversalClient
	if cfg.Redis.Enabled() {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		publisher, err := redisevents.NewPublisher(redisevents.Options{
			Client: redisClient,
			Logger: logger,
		})
		if err != nil {
			return nil, fmt.Errorf("init redis event mirror: %w", err)
		}
		sinks = append(sinks, publisher)
		logger.Info("redis event mirror enabled", "addr", cfg.Redis.Addr)
	}

	jobStore := store.New(store.Options{
		Notifier: notifier,
		Sinks:    sinks,
		Logger:   logger,
	})

	factory := deps.Factory
	if factory == nil {
		factory = pipeline.DemoFactory(cfg.Pipeline.DemoStepDelay)
	}

	builder := archive.NewBuilder(archive.Options{
		Root:   cfg.Storage.Root,
		Logger: logger,
	})

	jobRunner, err := runner.New(runner.Options{
		Store:   jobStore,
		Factory: factory,
		Archive: builder,
		Root:    cfg.Storage.Root,
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("init runner: %w", err)
	}

	pool := scheduler.NewPool(scheduler.Options{
		Width:      cfg.Worker.Width,
		QueueDepth: cfg.Worker.QueueDepth,
		Logger:     logger,
	})

	jobs, err := service.NewJobService(service.JobServiceOptions{
		Store:  jobStore,
		Pool:   pool,
		Runner: jobRunner,
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("init job service: %w", err)
	}

	return &ServiceContainer{
		Notifier: notifier,
		Store:    jobStore,
		Pool:     pool,
		Jobs:     jobs,
		Redis:    redisClient,
	}, nil
}
