package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"rewrite-moment/internal/domain"
	"rewrite-moment/internal/infra"
	"rewrite-moment/internal/pipeline"
	"rewrite-moment/internal/storage"
)

// Submitter starts generation jobs. Satisfied by pipeline.Orchestrator.
type Submitter interface {
	Submit(ctx context.Context, req domain.GenerationRequest) (domain.JobHandle, error)
}

// StatusPoller reads job status. Satisfied by pipeline.Poller.
type StatusPoller interface {
	Poll(ctx context.Context, jobID string) (domain.JobStatus, error)
	Wait(ctx context.Context, jobID string, opts pipeline.WaitOptions) (domain.JobStatus, error)
	Provider(jobID string) string
}

// App bundles handler dependencies. Store is optional: without it uploads are
// echoed back pass-through instead of persisted.
type App struct {
	Submitter     Submitter
	Poller        StatusPoller
	Store         *storage.FileStore
	StaticBaseURL string
	WaitOpts      pipeline.WaitOptions
	WaitBudget    time.Duration
	Logger        infra.Logger
}

func NewApp(submitter Submitter, poller StatusPoller, logger infra.Logger) *App {
	return &App{Submitter: submitter, Poller: poller, Logger: logger}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, message, details string) {
	body := map[string]any{"error": message}
	if details != "" {
		body["details"] = details
	}
	a.json(w, code, body)
}
