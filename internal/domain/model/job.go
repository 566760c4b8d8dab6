// Package model defines the core data types and structures used throughout the analysis job system.
package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// JobStatus represents the current status of an analysis job.
type JobStatus string

const (
	// JobStatusQueued indicates a job is waiting for a worker.
	JobStatusQueued JobStatus = "queued"
	// JobStatusRunning indicates a job is currently being processed.
	JobStatusRunning JobStatus = "running"
	// JobStatusSucceeded indicates a job has finished successfully.
	JobStatusSucceeded JobStatus = "succeeded"
	// JobStatusFailed indicates a job has failed to complete.
	JobStatusFailed JobStatus = "failed"
	// JobStatusCancelled is a reserved terminal status with no trigger path yet.
	JobStatusCancelled JobStatus = "cancelled"
)

// Valid returns true if the JobStatus is valid.
func (s JobStatus) Valid() bool {
	return s == JobStatusQueued || s == JobStatusRunning || s == JobStatusSucceeded ||
		s == JobStatusFailed || s == JobStatusCancelled
}

// Terminal returns true if no further status transitions are possible.
func (s JobStatus) Terminal() bool {
	return s == JobStatusSucceeded || s == JobStatusFailed || s == JobStatusCancelled
}

// AnalystName identifies one analyst stage of the pipeline.
type AnalystName string

// Known analyst stages.
const (
	AnalystMarket       AnalystName = "market"
	AnalystSocial       AnalystName = "social"
	AnalystNews         AnalystName = "news"
	AnalystFundamentals AnalystName = "fundamentals"
	AnalystQuant        AnalystName = "quant"
)

// Valid returns true if the AnalystName is one of the known stages.
func (a AnalystName) Valid() bool {
	switch a {
	case AnalystMarket, AnalystSocial, AnalystNews, AnalystFundamentals, AnalystQuant:
		return true
	}
	return false
}

// DefaultAnalysts returns the full analyst stage set used when a request names none.
func DefaultAnalysts() []AnalystName {
	return []AnalystName{AnalystMarket, AnalystSocial, AnalystNews, AnalystFundamentals, AnalystQuant}
}

// MasterName identifies an investment-master persona the pipeline may consult.
type MasterName string

// Known masters.
const (
	MasterBuffett       MasterName = "buffett"
	MasterLarryWilliams MasterName = "larry_williams"
	MasterLivermore     MasterName = "livermore"
)

// Valid returns true if the MasterName is one of the known masters.
func (m MasterName) Valid() bool {
	switch m {
	case MasterBuffett, MasterLarryWilliams, MasterLivermore:
		return true
	}
	return false
}

// ProviderName identifies the LLM backend the pipeline should use.
// Provider resolution happens entirely inside the pipeline collaborator.
type ProviderName string

// Known providers.
const (
	ProviderOpenAI      ProviderName = "openai"
	ProviderOpenAICodex ProviderName = "openai-codex"
	ProviderAnthropic   ProviderName = "anthropic"
	ProviderGoogle      ProviderName = "google"
	ProviderXAI         ProviderName = "xai"
	ProviderOpenRouter  ProviderName = "openrouter"
	ProviderOllama      ProviderName = "ollama"
)

// Valid returns true if the ProviderName is one of the known providers.
func (p ProviderName) Valid() bool {
	switch p {
	case ProviderOpenAI, ProviderOpenAICodex, ProviderAnthropic, ProviderGoogle,
		ProviderXAI, ProviderOpenRouter, ProviderOllama:
		return true
	}
	return false
}

const (
	maxTickerLength = 16
	minDebateRounds = 1
	maxDebateRounds = 10
)

// AnalysisRequest holds the immutable creation parameters for a job.
// Beyond validation the core treats it as opaque and hands it to the pipeline.
type AnalysisRequest struct {
	Ticker               string        `json:"ticker"`
	AnalysisDate         string        `json:"analysis_date"`
	Timeframe            string        `json:"timeframe,omitempty"`
	StartDate            string        `json:"start_date,omitempty"`
	EndDate              string        `json:"end_date,omitempty"`
	Analysts             []AnalystName `json:"analysts,omitempty"`
	SelectedMasters      []MasterName  `json:"selected_masters,omitempty"`
	LLMProvider          ProviderName  `json:"llm_provider,omitempty"`
	BackendURL           string        `json:"backend_url,omitempty"`
	QuickThinkLLM        string        `json:"quick_think_llm,omitempty"`
	DeepThinkLLM         string        `json:"deep_think_llm,omitempty"`
	MaxDebateRounds      int           `json:"max_debate_rounds,omitempty"`
	MaxRiskDiscussRounds int           `json:"max_risk_discuss_rounds,omitempty"`
}

// Normalize applies defaults for optional fields. Call after a successful Validate.
func (r *AnalysisRequest) Normalize() {
	r.Ticker = strings.ToUpper(strings.TrimSpace(r.Ticker))
	if r.Timeframe == "" {
		r.Timeframe = "1d"
	}
	if len(r.Analysts) == 0 {
		r.Analysts = DefaultAnalysts()
	}
	if r.LLMProvider == "" {
		r.LLMProvider = ProviderOpenAI
	}
	if r.MaxDebateRounds == 0 {
		r.MaxDebateRounds = minDebateRounds
	}
	if r.MaxRiskDiscussRounds == 0 {
		r.MaxRiskDiscussRounds = minDebateRounds
	}
}

// Validate validates the AnalysisRequest fields.
func (r *AnalysisRequest) Validate() error {
	ticker := strings.TrimSpace(r.Ticker)
	if ticker == "" {
		return errors.New("ticker is required")
	}
	if len(ticker) > maxTickerLength {
		return fmt.Errorf("ticker must be at most %d characters", maxTickerLength)
	}
	if strings.TrimSpace(r.AnalysisDate) == "" {
		return errors.New("analysis date is required")
	}
	for _, a := range r.Analysts {
		if !a.Valid() {
			return fmt.Errorf("invalid analyst: %q", a)
		}
	}
	for _, m := range r.SelectedMasters {
		if !m.Valid() {
			return fmt.Errorf("invalid master: %q", m)
		}
	}
	if r.LLMProvider != "" && !r.LLMProvider.Valid() {
		return fmt.Errorf("invalid llm provider: %q", r.LLMProvider)
	}
	if r.MaxDebateRounds != 0 &&
		(r.MaxDebateRounds < minDebateRounds || r.MaxDebateRounds > maxDebateRounds) {
		return fmt.Errorf("max debate rounds must be between %d and %d", minDebateRounds, maxDebateRounds)
	}
	if r.MaxRiskDiscussRounds != 0 &&
		(r.MaxRiskDiscussRounds < minDebateRounds || r.MaxRiskDiscussRounds > maxDebateRounds) {
		return fmt.Errorf("max risk discuss rounds must be between %d and %d", minDebateRounds, maxDebateRounds)
	}
	return nil
}

// TradeDate returns the effective trade date for output paths:
// the end date when set, otherwise the analysis date.
func (r *AnalysisRequest) TradeDate() string {
	if r.EndDate != "" {
		return r.EndDate
	}
	return r.AnalysisDate
}

// UsageStats holds the pipeline's cumulative usage counters.
// All counters are monotonically non-decreasing for the lifetime of a job.
type UsageStats struct {
	LLMCalls  int64 `json:"llm_calls"`
	ToolCalls int64 `json:"tool_calls"`
	TokensIn  int64 `json:"tokens_in"`
	TokensOut int64 `json:"tokens_out"`
}

// Merge raises each counter to the corresponding value in other, never lowering any.
func (u *UsageStats) Merge(other UsageStats) {
	if other.LLMCalls > u.LLMCalls {
		u.LLMCalls = other.LLMCalls
	}
	if other.ToolCalls > u.ToolCalls {
		u.ToolCalls = other.ToolCalls
	}
	if other.TokensIn > u.TokensIn {
		u.TokensIn = other.TokensIn
	}
	if other.TokensOut > u.TokensOut {
		u.TokensOut = other.TokensOut
	}
}

// Job represents an analysis job with its full lifecycle record.
// The job store owns every Job for the lifetime of the process; readers
// only ever see deep-copied snapshots.
type Job struct {
	ID           string          `json:"job_id"`
	Request      AnalysisRequest `json:"request"`
	Status       JobStatus       `json:"status"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	Error        string          `json:"error,omitempty"`
	Reports      []string        `json:"reports"`
	Artifacts    []string        `json:"artifacts"`
	ArchiveDir   string          `json:"archive_dir,omitempty"`
	ArchiveFiles []string        `json:"archive_files"`
	Usage        UsageStats      `json:"usage"`

	Events   []Event `json:"-"`
	EventSeq int64   `json:"-"`
}

// Clone returns an independent deep copy of the job.
func (j *Job) Clone() Job {
	out := *j
	out.Reports = append([]string(nil), j.Reports...)
	out.Artifacts = append([]string(nil), j.Artifacts...)
	out.ArchiveFiles = append([]string(nil), j.ArchiveFiles...)
	out.Request.Analysts = append([]AnalystName(nil), j.Request.Analysts...)
	out.Request.SelectedMasters = append([]MasterName(nil), j.Request.SelectedMasters...)
	out.Events = append([]Event(nil), j.Events...)
	return out
}

// CreateJobResponse is the payload returned when a job is accepted.
type CreateJobResponse struct {
	JobID  string    `json:"job_id"`
	Status JobStatus `json:"status"`
}

// JobStatusResponse is the full status view of a job.
type JobStatusResponse struct {
	JobID        string    `json:"job_id"`
	Status       JobStatus `json:"status"`
	Ticker       string    `json:"ticker"`
	AnalysisDate string    `json:"analysis_date"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	Error        string    `json:"error,omitempty"`
	Reports      []string  `json:"reports"`
	Artifacts    []string  `json:"artifacts"`
	ArchiveDir   string    `json:"archive_dir,omitempty"`
	ArchiveFiles []string  `json:"archive_files"`
	LLMCalls     int64     `json:"llm_calls"`
	ToolCalls    int64     `json:"tool_calls"`
	TokensIn     int64     `json:"tokens_in"`
	TokensOut    int64     `json:"tokens_out"`
}

// StatusView maps a job snapshot to its HTTP status representation.
func (j *Job) StatusView() JobStatusResponse {
	return JobStatusResponse{
		JobID:        j.ID,
		Status:       j.Status,
		Ticker:       j.Request.Ticker,
		AnalysisDate: j.Request.AnalysisDate,
		CreatedAt:    j.CreatedAt,
		UpdatedAt:    j.UpdatedAt,
		Error:        j.Error,
		Reports:      j.Reports,
		Artifacts:    j.Artifacts,
		ArchiveDir:   j.ArchiveDir,
		ArchiveFiles: j.ArchiveFiles,
		LLMCalls:     j.Usage.LLMCalls,
		ToolCalls:    j.Usage.ToolCalls,
		TokensIn:     j.Usage.TokensIn,
		TokensOut:    j.Usage.TokensOut,
	}
}
