package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/target/analysis-api/internal/domain/model"
	"github.com/target/analysis-api/internal/domain/stream"
	"github.com/target/analysis-api/internal/service"
)

const (
	defaultHeartbeatInterval = 10 * time.Second
	defaultPollInterval      = 500 * time.Millisecond
)

// StreamHandlers serves the live job event stream over server-sent events.
// Subscribers wake on the notifier when events append; the poll interval is
// only a safety net against missed wakeups.
type StreamHandlers struct {
	Svc       *service.JobService
	Notifier  *stream.Notifier
	Heartbeat time.Duration
	Poll      time.Duration
	Logger    *slog.Logger
}

// StreamEvents handles GET /api/jobs/{id}/stream. The after_seq query cursor
// selects replay position: all events with seq greater than the cursor are
// delivered first, then live events as they append. The stream closes after
// the terminal status event has been delivered.
func (h *StreamHandlers) StreamEvents(w http.ResponseWriter, r *http.Request) {
	after, ok := parseInt64Query(r, "after_seq", 0)
	if !ok {
		WriteError(
			w,
			ErrorParams{
				Code:    http.StatusBadRequest,
				ErrCode: "invalid_cursor",
				Err:     errors.New("after_seq must be a non-negative integer"),
			},
		)
		return
	}

	jobID := r.PathValue("id")
	if _, err := h.Svc.Get(jobID); err != nil {
		WriteError(
			w,
			ErrorParams{Code: http.StatusNotFound, ErrCode: "job_not_found", Err: errors.New("job not found")},
		)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		WriteError(
			w,
			ErrorParams{
				Code:    http.StatusInternalServerError,
				ErrCode: "streaming_unsupported",
				Err:     errors.New("response writer does not support streaming"),
			},
		)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	unsub, wake := h.Notifier.Subscribe(jobID)
	defer unsub()

	heartbeat := h.Heartbeat
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeatInterval
	}
	poll := h.Poll
	if poll <= 0 {
		poll = defaultPollInterval
	}

	heartbeatTimer := time.NewTimer(heartbeat)
	defer heartbeatTimer.Stop()
	pollTimer := time.NewTimer(poll)
	defer pollTimer.Stop()

	cursor := after
	for {
		events := h.Svc.EventsSince(jobID, cursor)
		terminal := false
		for _, ev := range events {
			if err := writeEventFrame(w, ev); err != nil {
				return
			}
			cursor = ev.Seq
			terminal = isTerminalStatusEvent(ev)
		}
		if len(events) > 0 {
			flusher.Flush()
			resetTimer(heartbeatTimer, heartbeat)
		}
		if terminal {
			return
		}
		// The record may only vanish across a restart; close so the client
		// reconnects and observes the 404.
		job, err := h.Svc.Get(jobID)
		if err != nil {
			return
		}
		// The job may have reached a terminal status with its final events
		// already behind the cursor, e.g. a client attaching after the fact.
		if job.Status.Terminal() {
			for _, ev := range h.Svc.EventsSince(jobID, cursor) {
				if err := writeEventFrame(w, ev); err != nil {
					return
				}
				cursor = ev.Seq
			}
			flusher.Flush()
			return
		}

		resetTimer(pollTimer, poll)
		select {
		case <-r.Context().Done():
			return
		case _, open := <-wake:
			if !open {
				return
			}
		case <-pollTimer.C:
		case <-heartbeatTimer.C:
			if _, err := fmt.Fprint(w, ": heartbeat\n\n"); err != nil {
				return
			}
			flusher.Flush()
			resetTimer(heartbeatTimer, heartbeat)
		}
	}
}

// writeEventFrame writes one SSE frame. The data line carries the full event
// object so a reconnecting client can rebuild its cursor from any frame.
func writeEventFrame(w http.ResponseWriter, ev model.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event %d: %w", ev.Seq, err)
	}
	_, err = fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", ev.Seq, ev.Type, payload)
	return err
}

// isTerminalStatusEvent reports whether the event is a status event carrying
// a terminal status. Such an event is always the last one of a job's log.
func isTerminalStatusEvent(ev model.Event) bool {
	if ev.Type != model.EventTypeStatus {
		return false
	}
	var data model.StatusEventData
	if err := json.Unmarshal(ev.Data, &data); err != nil {
		return false
	}
	return data.Status.Terminal()
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}
