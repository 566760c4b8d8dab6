package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/analysis-api/internal/archive"
	"github.com/target/analysis-api/internal/domain/model"
	"github.com/target/analysis-api/internal/pipeline"
	"github.com/target/analysis-api/internal/runner"
	"github.com/target/analysis-api/internal/scheduler"
	"github.com/target/analysis-api/internal/store"
)

type testHarness struct {
	svc   *JobService
	store *store.Store
	pool  *scheduler.Pool
}

func newHarness(t *testing.T, poolOpts scheduler.Options) *testHarness {
	t.Helper()
	root := t.TempDir()
	s := store.New(store.Options{})
	builder := archive.NewBuilder(archive.Options{Root: root})
	r, err := runner.New(runner.Options{
		Store:   s,
		Factory: pipeline.DemoFactory(0),
		Archive: builder,
		Root:    root,
	})
	require.NoError(t, err)

	pool := scheduler.NewPool(poolOpts)
	svc, err := NewJobService(JobServiceOptions{Store: s, Pool: pool, Runner: r})
	require.NoError(t, err)
	return &testHarness{svc: svc, store: s, pool: pool}
}

func TestNewJobService_RequiresDependencies(t *testing.T) {
	_, err := NewJobService(JobServiceOptions{})
	assert.Error(t, err)
}

func TestJobService_CreateRejectsInvalidRequest(t *testing.T) {
	h := newHarness(t, scheduler.Options{Width: 1, QueueDepth: 4})

	_, err := h.svc.Create(context.Background(), model.AnalysisRequest{AnalysisDate: "2026-08-01"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ticker is required")
}

func TestJobService_CreateQueuesJob(t *testing.T) {
	// Pool intentionally not started: the job must stay queued.
	h := newHarness(t, scheduler.Options{Width: 1, QueueDepth: 4})

	job, err := h.svc.Create(context.Background(), model.AnalysisRequest{Ticker: "nvda", AnalysisDate: "2026-08-01"})
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusQueued, job.Status)
	assert.Equal(t, "NVDA", job.Request.Ticker)

	got, err := h.svc.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusQueued, got.Status)
}

func TestJobService_CreateRunsJobToCompletion(t *testing.T) {
	h := newHarness(t, scheduler.Options{Width: 1, QueueDepth: 4})
	h.pool.Start(context.Background())
	defer h.pool.Shutdown()

	job, err := h.svc.Create(context.Background(), model.AnalysisRequest{Ticker: "NVDA", AnalysisDate: "2026-08-01"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		got, err := h.svc.Get(job.ID)
		return err == nil && got.Status.Terminal()
	}, 5*time.Second, 10*time.Millisecond)

	got, err := h.svc.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusSucceeded, got.Status)
	assert.NotEmpty(t, got.Reports)
	assert.NotEmpty(t, got.ArchiveDir)
}

func TestJobService_QueueFullMarksJobFailed(t *testing.T) {
	// Width 1, depth 1, not started: the first submission occupies the
	// queue, the second is rejected.
	h := newHarness(t, scheduler.Options{Width: 1, QueueDepth: 1})

	first, err := h.svc.Create(context.Background(), model.AnalysisRequest{Ticker: "NVDA", AnalysisDate: "2026-08-01"})
	require.NoError(t, err)

	_, err = h.svc.Create(context.Background(), model.AnalysisRequest{Ticker: "AAPL", AnalysisDate: "2026-08-01"})
	require.ErrorIs(t, err, ErrQueueFull)
	// The error message carries the rejected job id.
	rejectedID := strings.TrimPrefix(err.Error(), ErrQueueFull.Error()+": ")

	// The first job is untouched; the rejected one is recorded as failed so
	// its record and event log remain queryable.
	got, err := h.svc.Get(first.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusQueued, got.Status)

	failed, err := h.svc.Get(rejectedID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusFailed, failed.Status)
	assert.Contains(t, failed.Error, "admission rejected")
}

func TestJobService_GetUnknownJob(t *testing.T) {
	h := newHarness(t, scheduler.Options{Width: 1, QueueDepth: 1})

	_, err := h.svc.Get("missing")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestJobService_EventsSince(t *testing.T) {
	h := newHarness(t, scheduler.Options{Width: 1, QueueDepth: 4})

	job, err := h.svc.Create(context.Background(), model.AnalysisRequest{Ticker: "NVDA", AnalysisDate: "2026-08-01"})
	require.NoError(t, err)

	events := h.svc.EventsSince(job.ID, 0)
	require.Len(t, events, 1)
	assert.Equal(t, model.EventTypeStatus, events[0].Type)
	assert.Empty(t, h.svc.EventsSince(job.ID, events[0].Seq))
}
