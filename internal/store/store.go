// Package store implements the in-memory job registry.
//
// The store is the single point of truth for all readers. Job records are
// owned by the store for the lifetime of the process and are never deleted;
// readers only ever receive deep-copied snapshots, so a reader is never
// blocked behind pipeline I/O and a writer never behind a slow reader.
package store

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/target/analysis-api/internal/core"
	"github.com/target/analysis-api/internal/domain/model"
	"github.com/target/analysis-api/internal/domain/stream"
)

// maxMessageChars bounds message event content; longer stage output is
// tail-truncated at append time.
const maxMessageChars = 2000

// Options groups dependencies for the Store.
type Options struct {
	Notifier *stream.Notifier // Optional: wakes event stream subscribers on append
	Sinks    []core.EventSink // Optional: best-effort event mirrors
	Logger   *slog.Logger     // Optional: structured logger
	Now      func() time.Time // Optional: clock override for tests
}

// Store is the concurrency-safe registry mapping job identifiers to records.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*model.Job

	notifier *stream.Notifier
	sinks    []core.EventSink
	logger   *slog.Logger
	now      func() time.Time
}

// New constructs an empty Store.
func New(opts Options) *Store {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "job_store")
	}
	return &Store{
		jobs:     make(map[string]*model.Job),
		notifier: opts.Notifier,
		sinks:    opts.Sinks,
		logger:   logger,
		now:      now,
	}
}

// Create registers a new job in queued status with its initial status event
// and returns a snapshot. It never blocks on pipeline execution; submitting
// the run task to the scheduler is the caller's responsibility.
func (s *Store) Create(req model.AnalysisRequest) model.Job {
	now := s.now()
	rec := &model.Job{
		ID:           uuid.New().String(),
		Request:      req,
		Status:       model.JobStatusQueued,
		CreatedAt:    now,
		UpdatedAt:    now,
		Reports:      []string{},
		Artifacts:    []string{},
		ArchiveFiles: []string{},
	}

	s.mu.Lock()
	ev := s.appendLocked(rec, model.EventTypeStatus, model.StatusEventData{Status: model.JobStatusQueued})
	s.jobs[rec.ID] = rec
	snap := rec.Clone()
	s.mu.Unlock()

	s.publish(rec.ID, ev)
	if s.logger != nil {
		s.logger.Debug("job created", "id", rec.ID, "ticker", req.Ticker, "trade_date", req.TradeDate())
	}
	return snap
}

// Get returns a consistent deep-copied snapshot of the job, if known.
func (s *Store) Get(id string) (model.Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.jobs[id]
	if !ok {
		return model.Job{}, false
	}
	return rec.Clone(), true
}

// EventsSince returns all events with seq > after, in ascending order.
// Unknown jobs yield an empty slice rather than an error, which simplifies
// stream termination handling.
func (s *Store) EventsSince(id string, after int64) []model.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.jobs[id]
	if !ok {
		return nil
	}
	// Events are appended in seq order, so a binary scan is unnecessary at
	// this scale; copy the tail beyond the cursor.
	var out []model.Event
	for _, ev := range rec.Events {
		if ev.Seq > after {
			out = append(out, ev)
		}
	}
	return out
}

// MarkRunning transitions a queued job to running.
func (s *Store) MarkRunning(id string) {
	s.setStatus(id, model.JobStatusRunning, "")
}

// Fail records the failure message, appends an error event and transitions
// the job to its terminal failed status. The terminal status event is always
// the last event of the log.
func (s *Store) Fail(id, msg string) {
	s.mu.Lock()
	rec, ok := s.jobs[id]
	if !ok || rec.Status.Terminal() {
		s.mu.Unlock()
		return
	}
	errEv := s.appendLocked(rec, model.EventTypeError, model.ErrorEventData{Message: msg})
	rec.Error = msg
	rec.Status = model.JobStatusFailed
	statusEv := s.appendLocked(rec, model.EventTypeStatus, model.StatusEventData{
		Status: model.JobStatusFailed,
		Error:  msg,
	})
	s.mu.Unlock()

	s.publish(id, errEv, statusEv)
	if s.logger != nil {
		s.logger.Debug("job failed", "id", id, "error", msg)
	}
}

// Complete finalizes a succeeded job: output listings, the completed event,
// then the terminal succeeded status event.
func (s *Store) Complete(id string, result model.CompletedEventData) {
	s.mu.Lock()
	rec, ok := s.jobs[id]
	if !ok || rec.Status.Terminal() {
		s.mu.Unlock()
		return
	}
	rec.Reports = append([]string(nil), result.Reports...)
	rec.Artifacts = append([]string(nil), result.Artifacts...)
	rec.ArchiveDir = result.ArchiveDir
	rec.ArchiveFiles = append([]string(nil), result.ArchiveFiles...)
	result.LLMCalls = rec.Usage.LLMCalls
	result.ToolCalls = rec.Usage.ToolCalls
	result.TokensIn = rec.Usage.TokensIn
	result.TokensOut = rec.Usage.TokensOut
	doneEv := s.appendLocked(rec, model.EventTypeCompleted, result)
	rec.Status = model.JobStatusSucceeded
	statusEv := s.appendLocked(rec, model.EventTypeStatus, model.StatusEventData{Status: model.JobStatusSucceeded})
	s.mu.Unlock()

	s.publish(id, doneEv, statusEv)
	if s.logger != nil {
		s.logger.Debug("job completed", "id", id, "reports", len(result.Reports), "archive_dir", result.ArchiveDir)
	}
}

// UpdateUsage raises the job's usage counters; counters never decrease.
func (s *Store) UpdateUsage(id string, usage model.UsageStats) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.jobs[id]
	if !ok || rec.Status.Terminal() {
		return
	}
	rec.Usage.Merge(usage)
	rec.UpdatedAt = s.now()
}

// AppendMessage appends a message event with the producing agent name.
// Content is tail-truncated to keep the event log bounded.
func (s *Store) AppendMessage(id, agent, content string) {
	if content == "" {
		return
	}
	if runes := []rune(content); len(runes) > maxMessageChars {
		content = string(runes[len(runes)-maxMessageChars:])
	}

	s.mu.Lock()
	rec, ok := s.jobs[id]
	if !ok || rec.Status.Terminal() {
		s.mu.Unlock()
		return
	}
	ev := s.appendLocked(rec, model.EventTypeMessage, model.MessageEventData{Agent: agent, Content: content})
	s.mu.Unlock()

	s.publish(id, ev)
}

// ReportReady records a new or changed report output: the file name joins the
// reports listing if newly seen and a report_ready event is appended.
func (s *Store) ReportReady(id, reportKey, fileName string, length int) {
	s.mu.Lock()
	rec, ok := s.jobs[id]
	if !ok || rec.Status.Terminal() {
		s.mu.Unlock()
		return
	}
	if !containsString(rec.Reports, fileName) {
		rec.Reports = insertSorted(rec.Reports, fileName)
	}
	ev := s.appendLocked(rec, model.EventTypeReportReady, model.ReportReadyEventData{
		ReportKey: reportKey,
		Length:    length,
	})
	s.mu.Unlock()

	s.publish(id, ev)
}

func (s *Store) setStatus(id string, status model.JobStatus, errMsg string) {
	s.mu.Lock()
	rec, ok := s.jobs[id]
	if !ok || rec.Status.Terminal() {
		s.mu.Unlock()
		return
	}
	rec.Status = status
	if errMsg != "" {
		rec.Error = errMsg
	}
	ev := s.appendLocked(rec, model.EventTypeStatus, model.StatusEventData{Status: status, Error: errMsg})
	s.mu.Unlock()

	s.publish(id, ev)
}

// appendLocked assigns the next sequence number and appends the event.
// Callers must hold s.mu.
func (s *Store) appendLocked(rec *model.Job, typ model.EventType, data any) model.Event {
	payload, err := json.Marshal(data)
	if err != nil {
		// Payload structs are plain values; marshal failure would be a
		// programming error. Record the event anyway with an empty payload.
		payload = json.RawMessage(`{}`)
		if s.logger != nil {
			s.logger.Error("marshal event payload", "type", typ, "error", err)
		}
	}
	rec.EventSeq++
	ev := model.Event{
		Seq:       rec.EventSeq,
		Type:      typ,
		Timestamp: s.now(),
		Data:      payload,
	}
	rec.Events = append(rec.Events, ev)
	rec.UpdatedAt = ev.Timestamp
	return ev
}

// publish fans appended events out to the notifier and sinks outside the
// store lock.
func (s *Store) publish(jobID string, events ...model.Event) {
	if s.notifier != nil {
		s.notifier.Broadcast(jobID)
	}
	if len(s.sinks) == 0 {
		return
	}
	ctx := context.Background()
	for _, sink := range s.sinks {
		for _, ev := range events {
			sink.Publish(ctx, jobID, ev)
		}
	}
}

func containsString(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func insertSorted(list []string, v string) []string {
	out := append(list, v)
	for i := len(out) - 1; i > 0 && out[i] < out[i-1]; i-- {
		out[i], out[i-1] = out[i-1], out[i]
	}
	return out
}
