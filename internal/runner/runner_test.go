package runner

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/analysis-api/internal/archive"
	"github.com/target/analysis-api/internal/core"
	"github.com/target/analysis-api/internal/domain/model"
	"github.com/target/analysis-api/internal/pipeline"
	"github.com/target/analysis-api/internal/store"
)

func testClock() time.Time {
	return time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
}

func newTestRunner(t *testing.T, s *store.Store, factory core.PipelineFactory) (*Runner, string) {
	t.Helper()
	root := t.TempDir()
	builder := archive.NewBuilder(archive.Options{Root: root, Now: testClock})
	r, err := New(Options{Store: s, Factory: factory, Archive: builder, Root: root})
	require.NoError(t, err)
	return r, root
}

func createJob(t *testing.T, s *store.Store) model.Job {
	t.Helper()
	req := model.AnalysisRequest{Ticker: "NVDA", AnalysisDate: "2026-08-01"}
	require.NoError(t, req.Validate())
	req.Normalize()
	return s.Create(req)
}

func scriptedFactory(steps []pipeline.Step) core.PipelineFactory {
	return core.PipelineFactoryFunc(func(context.Context, model.AnalysisRequest) (core.Pipeline, error) {
		return pipeline.NewScripted(steps, 0), nil
	})
}

func eventTypes(events []model.Event) []model.EventType {
	out := make([]model.EventType, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.Type)
	}
	return out
}

func TestRunner_SuccessfulRun(t *testing.T) {
	s := store.New(store.Options{})
	steps := []pipeline.Step{
		{
			Snapshot: model.Snapshot{
				Reports: map[string]string{model.ReportKeyMarket: "market v1"},
				Message: &model.AgentMessage{Agent: "market_analyst", Content: "working"},
			},
			Usage: model.UsageStats{LLMCalls: 1, TokensIn: 100},
		},
		{
			Snapshot: model.Snapshot{
				Reports: map[string]string{
					model.ReportKeyMarket:   "market v1",
					model.ReportKeyDecision: "FINAL DECISION: BUY.",
				},
			},
			Usage: model.UsageStats{LLMCalls: 2, TokensIn: 250},
		},
	}
	r, root := newTestRunner(t, s, scriptedFactory(steps))
	job := createJob(t, s)

	r.Run(context.Background(), job.ID)

	got, ok := s.Get(job.ID)
	require.True(t, ok)
	assert.Equal(t, model.JobStatusSucceeded, got.Status)
	assert.Equal(t, model.UsageStats{LLMCalls: 2, TokensIn: 250}, got.Usage)
	assert.NotEmpty(t, got.ArchiveDir)
	assert.Contains(t, got.ArchiveFiles, "complete_report.md")

	liveDir := LiveReportDir(root, "NVDA", "2026-08-01")
	content, err := os.ReadFile(filepath.Join(liveDir, "market_report.md"))
	require.NoError(t, err)
	assert.Equal(t, "market v1", string(content))
	_, err = os.Stat(filepath.Join(liveDir, "final_trade_decision.md"))
	require.NoError(t, err)

	events := s.EventsSince(job.ID, 0)
	assert.Equal(t, []model.EventType{
		model.EventTypeStatus,      // queued
		model.EventTypeStatus,      // running
		model.EventTypeMessage,     // market_analyst
		model.EventTypeReportReady, // market_report
		model.EventTypeReportReady, // final_trade_decision
		model.EventTypeCompleted,
		model.EventTypeStatus, // succeeded, always last
	}, eventTypes(events))

	var done model.CompletedEventData
	require.NoError(t, json.Unmarshal(events[5].Data, &done))
	assert.Equal(t, liveDir, done.ReportDir)
	assert.Equal(t, []string{"final_trade_decision.md", "market_report.md"}, done.Reports)
	assert.Equal(t, "FINAL DECISION: BUY.", done.Decision)
	assert.Equal(t, int64(2), done.LLMCalls)
}

func TestRunner_ContentDiffSkipsUnchangedReports(t *testing.T) {
	s := store.New(store.Options{})
	// Same content twice, then a change: exactly two report_ready events.
	steps := []pipeline.Step{
		{Snapshot: model.Snapshot{Reports: map[string]string{model.ReportKeyMarket: "A"}}},
		{Snapshot: model.Snapshot{Reports: map[string]string{model.ReportKeyMarket: "A"}}},
		{Snapshot: model.Snapshot{Reports: map[string]string{model.ReportKeyMarket: "B"}}},
	}
	r, _ := newTestRunner(t, s, scriptedFactory(steps))
	job := createJob(t, s)

	r.Run(context.Background(), job.ID)

	ready := 0
	for _, ev := range s.EventsSince(job.ID, 0) {
		if ev.Type == model.EventTypeReportReady {
			ready++
		}
	}
	assert.Equal(t, 2, ready)
}

func TestRunner_PipelineErrorFailsJobKeepingPartialOutput(t *testing.T) {
	s := store.New(store.Options{})
	steps := []pipeline.Step{
		{Snapshot: model.Snapshot{Reports: map[string]string{model.ReportKeyMarket: "partial market take"}}},
		{Err: errors.New("provider timeout")},
	}
	r, root := newTestRunner(t, s, scriptedFactory(steps))
	job := createJob(t, s)

	r.Run(context.Background(), job.ID)

	got, _ := s.Get(job.ID)
	assert.Equal(t, model.JobStatusFailed, got.Status)
	assert.Equal(t, "provider timeout", got.Error)
	assert.Empty(t, got.ArchiveDir)

	// Partial live output written before the failure stays on disk.
	liveDir := LiveReportDir(root, "NVDA", "2026-08-01")
	content, err := os.ReadFile(filepath.Join(liveDir, "market_report.md"))
	require.NoError(t, err)
	assert.Equal(t, "partial market take", string(content))

	events := s.EventsSince(job.ID, 0)
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	require.Equal(t, model.EventTypeStatus, last.Type)
	var status model.StatusEventData
	require.NoError(t, json.Unmarshal(last.Data, &status))
	assert.Equal(t, model.JobStatusFailed, status.Status)

	var errData model.ErrorEventData
	require.Equal(t, model.EventTypeError, events[len(events)-2].Type)
	require.NoError(t, json.Unmarshal(events[len(events)-2].Data, &errData))
	assert.Equal(t, "provider timeout", errData.Message)
}

func TestRunner_FactoryErrorFailsJob(t *testing.T) {
	s := store.New(store.Options{})
	factory := core.PipelineFactoryFunc(func(context.Context, model.AnalysisRequest) (core.Pipeline, error) {
		return nil, errors.New("no credentials")
	})
	r, _ := newTestRunner(t, s, factory)
	job := createJob(t, s)

	r.Run(context.Background(), job.ID)

	got, _ := s.Get(job.ID)
	assert.Equal(t, model.JobStatusFailed, got.Status)
	assert.Contains(t, got.Error, "no credentials")
}

func TestRunner_UnknownJobIsNoOp(t *testing.T) {
	s := store.New(store.Options{})
	r, _ := newTestRunner(t, s, pipeline.DemoFactory(0))

	// Must not panic or create records.
	r.Run(context.Background(), "missing")
	_, ok := s.Get("missing")
	assert.False(t, ok)
}

func TestLiveReportDir(t *testing.T) {
	assert.Equal(t,
		filepath.Join("/data", "results", "NVDA", "2026-08-01", "reports"),
		LiveReportDir("/data", "NVDA", "2026-08-01"))
}
