package model

import (
	"encoding/json"
	"time"
)

// EventType classifies an event log entry.
type EventType string

const (
	// EventTypeStatus records a job status transition.
	EventTypeStatus EventType = "status"
	// EventTypeMessage records a progress message from a pipeline stage.
	EventTypeMessage EventType = "message"
	// EventTypeReportReady records a new or changed report output.
	EventTypeReportReady EventType = "report_ready"
	// EventTypeCompleted records the final output listing for a succeeded job.
	EventTypeCompleted EventType = "completed"
	// EventTypeError records the failure message of a failed job.
	EventTypeError EventType = "error"
)

// Event is one entry of a job's append-only event log. Events are immutable
// once appended; Seq is strictly increasing per job, starting at 1.
type Event struct {
	Seq       int64           `json:"seq"`
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// StatusEventData is the payload of a status event.
type StatusEventData struct {
	Status JobStatus `json:"status"`
	Error  string    `json:"error,omitempty"`
}

// MessageEventData is the payload of a message event. Content is tail-truncated
// at append time to bound event log growth from verbose stages.
type MessageEventData struct {
	Agent   string `json:"agent,omitempty"`
	Content string `json:"content"`
}

// ReportReadyEventData is the payload of a report_ready event.
type ReportReadyEventData struct {
	ReportKey string `json:"report_key"`
	Length    int    `json:"length"`
}

// CompletedEventData is the payload of the completed event.
type CompletedEventData struct {
	ReportDir    string   `json:"report_dir"`
	Reports      []string `json:"reports"`
	Artifacts    []string `json:"artifacts"`
	ArchiveDir   string   `json:"archive_dir"`
	ArchiveFiles []string `json:"archive_files"`
	LLMCalls     int64    `json:"llm_calls"`
	ToolCalls    int64    `json:"tool_calls"`
	TokensIn     int64    `json:"tokens_in"`
	TokensOut    int64    `json:"tokens_out"`
	Decision     string   `json:"decision"`
}

// ErrorEventData is the payload of an error event.
type ErrorEventData struct {
	Message string `json:"message"`
}
