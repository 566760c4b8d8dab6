package httpx

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/target/analysis-api/internal/domain/stream"
	"github.com/target/analysis-api/internal/service"
)

// RouterServices groups the dependencies the router wires into handlers.
type RouterServices struct {
	JobService  *service.JobService
	Notifier    *stream.Notifier
	StorageRoot string
	Heartbeat   time.Duration
	Poll        time.Duration
	Logger      *slog.Logger
}

// NewRouter builds the HTTP route table.
func NewRouter(services RouterServices) *http.ServeMux {
	jobs := &JobHandlers{Svc: services.JobService}
	files := &FileHandlers{Svc: services.JobService, Root: services.StorageRoot}
	streams := &StreamHandlers{
		Svc:       services.JobService,
		Notifier:  services.Notifier,
		Heartbeat: services.Heartbeat,
		Poll:      services.Poll,
		Logger:    services.Logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", healthHandler)
	mux.HandleFunc("GET /api/health", healthHandler)

	mux.HandleFunc("POST /api/jobs", jobs.CreateJob)
	mux.HandleFunc("GET /api/jobs/{id}", jobs.GetJob)
	mux.HandleFunc("GET /api/jobs/{id}/stream", streams.StreamEvents)

	mux.HandleFunc("GET /api/jobs/{id}/reports", files.ListReports)
	mux.HandleFunc("GET /api/jobs/{id}/reports/{name}", files.GetReport)
	mux.HandleFunc("GET /api/jobs/{id}/artifacts", files.ListArtifacts)
	mux.HandleFunc("GET /api/jobs/{id}/artifacts/{name}", files.GetArtifact)
	mux.HandleFunc("GET /api/jobs/{id}/archive", files.GetArchive)
	mux.HandleFunc("GET /api/jobs/{id}/archive/{path...}", files.GetArchiveFile)

	// Registry-independent archive discovery, keyed by ticker. Serves
	// completed runs whose jobs are no longer in memory.
	mux.HandleFunc("GET /api/archive/{ticker}", files.GetLatestArchive)
	mux.HandleFunc("GET /api/archive/{ticker}/{path...}", files.GetLatestArchiveFile)

	return mux
}
