// Package httpx provides HTTP handlers and utilities for the analysis job system API.
package httpx

import (
	"errors"
	"net/http"

	"github.com/target/analysis-api/internal/domain/model"
	"github.com/target/analysis-api/internal/service"
)

// JobHandlers provides HTTP handlers for job-related operations.
type JobHandlers struct {
	Svc *service.JobService
}

// CreateJob handles HTTP requests to create a new analysis job.
func (h *JobHandlers) CreateJob(w http.ResponseWriter, r *http.Request) {
	var req model.AnalysisRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	job, err := h.Svc.Create(r.Context(), req)
	if err != nil {
		if errors.Is(err, service.ErrQueueFull) {
			WriteError(w, ErrorParams{Code: http.StatusServiceUnavailable, ErrCode: "queue_full", Err: err})
			return
		}
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "create_failed", Err: err})
		return
	}

	WriteJSON(w, http.StatusCreated, model.CreateJobResponse{JobID: job.ID, Status: job.Status})
}

// GetJob handles HTTP requests to retrieve the status of a specific job.
func (h *JobHandlers) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	if jobID == "" {
		WriteError(
			w,
			ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_path", Err: errors.New("job id is required")},
		)
		return
	}

	job, err := h.Svc.Get(jobID)
	if err != nil {
		WriteError(
			w,
			ErrorParams{Code: http.StatusNotFound, ErrCode: "job_not_found", Err: errors.New("job not found")},
		)
		return
	}
	WriteJSON(w, http.StatusOK, job.StatusView())
}

// healthHandler reports liveness.
func healthHandler(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
