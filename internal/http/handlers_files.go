package httpx

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/target/analysis-api/internal/archive"
	"github.com/target/analysis-api/internal/domain/model"
	"github.com/target/analysis-api/internal/service"
)

// FileHandlers serves job output files: live reports, artifacts and the
// archived report tree. All reads go through the filesystem so consumers
// see files as soon as the runner persists them.
type FileHandlers struct {
	Svc  *service.JobService
	Root string // Storage root containing results/ and reports/
}

// isReportName reports whether a file name is a text report output. Matching
// is case-insensitive so outputs like REPORT.MD resolve the same way the
// runner's completed-event listing does.
func isReportName(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".md")
}

// contentTypeFor maps output file extensions to response content types.
func contentTypeFor(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".md":
		return "text/plain; charset=utf-8"
	case ".csv":
		return "text/csv"
	case ".png":
		return "image/png"
	default:
		return "application/octet-stream"
	}
}

func (h *FileHandlers) lookupJob(w http.ResponseWriter, r *http.Request) (model.Job, bool) {
	job, err := h.Svc.Get(r.PathValue("id"))
	if err != nil {
		WriteError(
			w,
			ErrorParams{Code: http.StatusNotFound, ErrCode: "job_not_found", Err: errors.New("job not found")},
		)
		return model.Job{}, false
	}
	return job, true
}

// listDirFiles returns sorted file names in dir that pass the filter.
// A missing directory yields an empty list, not an error.
func listDirFiles(dir string, keep func(string) bool) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !keep(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// ListReports handles GET /api/jobs/{id}/reports.
func (h *FileHandlers) ListReports(w http.ResponseWriter, r *http.Request) {
	job, ok := h.lookupJob(w, r)
	if !ok {
		return
	}
	dir := h.Svc.LiveReportDir(h.Root, &job)
	names, err := listDirFiles(dir, isReportName)
	if err != nil {
		WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: "list_failed", Err: err})
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"job_id": job.ID, "reports": names})
}

// GetReport handles GET /api/jobs/{id}/reports/{name}.
func (h *FileHandlers) GetReport(w http.ResponseWriter, r *http.Request) {
	job, ok := h.lookupJob(w, r)
	if !ok {
		return
	}
	name := r.PathValue("name")
	if err := safeName(name); err != nil {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_name", Err: err})
		return
	}
	if !isReportName(name) {
		WriteError(
			w,
			ErrorParams{Code: http.StatusNotFound, ErrCode: "report_not_found", Err: errors.New("report not found")},
		)
		return
	}
	h.serveFile(w, filepath.Join(h.Svc.LiveReportDir(h.Root, &job), name), "report_not_found")
}

// ListArtifacts handles GET /api/jobs/{id}/artifacts.
func (h *FileHandlers) ListArtifacts(w http.ResponseWriter, r *http.Request) {
	job, ok := h.lookupJob(w, r)
	if !ok {
		return
	}
	dir := h.Svc.LiveReportDir(h.Root, &job)
	names, err := listDirFiles(dir, archive.IsArtifactName)
	if err != nil {
		WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: "list_failed", Err: err})
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"job_id": job.ID, "artifacts": names})
}

// GetArtifact handles GET /api/jobs/{id}/artifacts/{name}.
func (h *FileHandlers) GetArtifact(w http.ResponseWriter, r *http.Request) {
	job, ok := h.lookupJob(w, r)
	if !ok {
		return
	}
	name := r.PathValue("name")
	if err := safeName(name); err != nil {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_name", Err: err})
		return
	}
	if !archive.IsArtifactName(name) {
		WriteError(
			w,
			ErrorParams{
				Code:    http.StatusNotFound,
				ErrCode: "artifact_not_found",
				Err:     errors.New("artifact not found"),
			},
		)
		return
	}
	h.serveFile(w, filepath.Join(h.Svc.LiveReportDir(h.Root, &job), name), "artifact_not_found")
}

// GetArchive handles GET /api/jobs/{id}/archive and returns the archive
// listing recorded at completion time.
func (h *FileHandlers) GetArchive(w http.ResponseWriter, r *http.Request) {
	job, ok := h.lookupJob(w, r)
	if !ok {
		return
	}
	if job.ArchiveDir == "" {
		WriteError(
			w,
			ErrorParams{
				Code:    http.StatusNotFound,
				ErrCode: "archive_not_found",
				Err:     errors.New("archive not available"),
			},
		)
		return
	}
	files := job.ArchiveFiles
	if files == nil {
		files = []string{}
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"job_id":      job.ID,
		"archive_dir": job.ArchiveDir,
		"files":       files,
	})
}

// GetArchiveFile handles GET /api/jobs/{id}/archive/{path...} and serves one
// file from the job's archive directory.
func (h *FileHandlers) GetArchiveFile(w http.ResponseWriter, r *http.Request) {
	job, ok := h.lookupJob(w, r)
	if !ok {
		return
	}
	if job.ArchiveDir == "" {
		WriteError(
			w,
			ErrorParams{
				Code:    http.StatusNotFound,
				ErrCode: "archive_not_found",
				Err:     errors.New("archive not available"),
			},
		)
		return
	}
	target, err := resolveWithinRoot(job.ArchiveDir, r.PathValue("path"))
	if err != nil {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_name", Err: err})
		return
	}
	h.serveFile(w, target, "file_not_found")
}

// GetLatestArchive handles GET /api/archive/{ticker} and lists the most
// recently built archive bundle for a ticker by scanning the reports
// directory. This is the recovery path when the in-memory registry has no
// record for a job, e.g. after a restart.
func (h *FileHandlers) GetLatestArchive(w http.ResponseWriter, r *http.Request) {
	ticker := strings.ToUpper(r.PathValue("ticker"))
	if err := safeName(ticker); err != nil {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_name", Err: err})
		return
	}
	dir, ok := archive.LatestDir(h.Root, ticker)
	if !ok {
		WriteError(
			w,
			ErrorParams{
				Code:    http.StatusNotFound,
				ErrCode: "archive_not_found",
				Err:     errors.New("no archive for ticker"),
			},
		)
		return
	}
	files, err := archive.ListFiles(dir)
	if err != nil {
		WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: "list_failed", Err: err})
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"ticker":      ticker,
		"archive_dir": dir,
		"files":       files,
	})
}

// GetLatestArchiveFile handles GET /api/archive/{ticker}/{path...} and serves
// one file from the ticker's most recent archive bundle.
func (h *FileHandlers) GetLatestArchiveFile(w http.ResponseWriter, r *http.Request) {
	ticker := strings.ToUpper(r.PathValue("ticker"))
	if err := safeName(ticker); err != nil {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_name", Err: err})
		return
	}
	dir, ok := archive.LatestDir(h.Root, ticker)
	if !ok {
		WriteError(
			w,
			ErrorParams{
				Code:    http.StatusNotFound,
				ErrCode: "archive_not_found",
				Err:     errors.New("no archive for ticker"),
			},
		)
		return
	}
	target, err := resolveWithinRoot(dir, r.PathValue("path"))
	if err != nil {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_name", Err: err})
		return
	}
	h.serveFile(w, target, "file_not_found")
}

// serveFile streams a single regular file with a content type derived from
// its extension. Missing or non-regular paths map to a 404.
func (h *FileHandlers) serveFile(w http.ResponseWriter, path, notFoundCode string) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		WriteError(
			w,
			ErrorParams{Code: http.StatusNotFound, ErrCode: notFoundCode, Err: errors.New("file not found")},
		)
		return
	}
	data, err := os.ReadFile(path)
	if err != nil {
		WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: "read_failed", Err: err})
		return
	}
	w.Header().Set("Content-Type", contentTypeFor(path))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
