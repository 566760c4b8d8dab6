// Package service provides the business logic layer for the analysis job system.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/target/analysis-api/internal/domain/model"
	"github.com/target/analysis-api/internal/runner"
	"github.com/target/analysis-api/internal/scheduler"
	"github.com/target/analysis-api/internal/store"
)

// ErrJobNotFound indicates the requested job is not registered.
var ErrJobNotFound = errors.New("job not found")

// ErrQueueFull indicates admission was rejected because the scheduler queue
// is at capacity.
var ErrQueueFull = errors.New("job queue full")

// JobServiceOptions groups dependencies for JobService.
type JobServiceOptions struct {
	Store  *store.Store     // Required: job registry
	Pool   *scheduler.Pool  // Required: worker pool
	Runner *runner.Runner   // Required: pipeline runner
	Logger *slog.Logger     // Optional: structured logger
}

// JobService coordinates job creation, lookup and event replay. It binds
// each created job to exactly one run task for the task's entire lifetime.
type JobService struct {
	store  *store.Store
	pool   *scheduler.Pool
	runner *runner.Runner
	logger *slog.Logger
}

// NewJobService constructs a new JobService.
func NewJobService(opts JobServiceOptions) (*JobService, error) {
	if opts.Store == nil {
		return nil, errors.New("store is required")
	}
	if opts.Pool == nil {
		return nil, errors.New("pool is required")
	}
	if opts.Runner == nil {
		return nil, errors.New("runner is required")
	}
	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "job_service")
	}
	return &JobService{
		store:  opts.Store,
		pool:   opts.Pool,
		runner: opts.Runner,
		logger: logger,
	}, nil
}

// Create validates the request, registers a job in queued status and submits
// its run task. It returns immediately; pipeline execution happens on a
// worker. When the queue is full the job is recorded as failed and
// ErrQueueFull is returned so the transport can reject with a 503.
func (s *JobService) Create(ctx context.Context, req model.AnalysisRequest) (model.Job, error) {
	if err := req.Validate(); err != nil {
		return model.Job{}, fmt.Errorf("validate request: %w", err)
	}
	req.Normalize()

	job := s.store.Create(req)
	task := scheduler.Task{
		JobID: job.ID,
		Run: func(taskCtx context.Context) {
			s.runner.Run(taskCtx, job.ID)
		},
		Fail: func(msg string) {
			s.store.Fail(job.ID, msg)
		},
	}
	if err := s.pool.Submit(task); err != nil {
		s.store.Fail(job.ID, "admission rejected: "+err.Error())
		if s.logger != nil {
			s.logger.WarnContext(ctx, "job admission rejected", "id", job.ID, "error", err)
		}
		return model.Job{}, fmt.Errorf("%w: %s", ErrQueueFull, job.ID)
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "job accepted",
			"id", job.ID,
			"ticker", req.Ticker,
			"trade_date", req.TradeDate(),
			"provider", req.LLMProvider)
	}
	return job, nil
}

// Get returns a consistent snapshot of the job.
func (s *JobService) Get(id string) (model.Job, error) {
	job, ok := s.store.Get(id)
	if !ok {
		return model.Job{}, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	return job, nil
}

// EventsSince returns all events with seq greater than the cursor, in
// ascending order. Unknown jobs yield an empty slice.
func (s *JobService) EventsSince(id string, after int64) []model.Event {
	return s.store.EventsSince(id, after)
}

// LiveReportDir resolves the job's live output directory from its request.
func (s *JobService) LiveReportDir(root string, job *model.Job) string {
	return runner.LiveReportDir(root, job.Request.Ticker, job.Request.TradeDate())
}
