package handlers

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"rewrite-moment/internal/domain"
	"rewrite-moment/internal/middleware"
	"rewrite-moment/internal/pipeline"
)

type statusResponse struct {
	ID       string  `json:"id"`
	Status   string  `json:"status"`
	Output   *string `json:"output"`
	Error    *string `json:"error"`
	Provider string  `json:"provider"`
}

// Status polls the provider that owns the job id and answers the normalized
// view. The route is a wildcard because Veo job ids contain slashes.
func (a *App) Status(w http.ResponseWriter, r *http.Request) {
	locale := middleware.LocaleFromContext(r.Context())

	jobID := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if decoded, err := url.PathUnescape(jobID); err == nil {
		jobID = decoded
	}
	if jobID == "" {
		a.error(w, http.StatusBadRequest, "Job ID is required", "")
		return
	}

	status, err := a.pollOrWait(r, jobID)
	if err != nil {
		if errors.Is(err, domain.ErrValidation) {
			a.error(w, http.StatusBadRequest, "Unrecognized job ID", "")
			return
		}
		a.Logger.Error().Err(err).
			Str("job_id", jobID).
			Str("request_id", middleware.RequestIDFromContext(r.Context())).
			Msg("status poll failed")
		a.error(w, http.StatusInternalServerError, "Failed to check video status", submitFailureDetail(locale, err))
		return
	}

	resp := statusResponse{
		ID:       jobID,
		Status:   string(status.State),
		Provider: a.Poller.Provider(jobID),
	}
	if status.ArtifactURL != "" {
		resp.Output = &status.ArtifactURL
	}
	if status.State == domain.JobFailed {
		detail := userFacingFailure(locale, status)
		resp.Error = &detail
	}
	a.json(w, http.StatusOK, resp)
}

// pollOrWait does a single poll unless the caller asked to block with
// ?wait=true, in which case it polls until terminal or the configured
// ceiling. Hitting the ceiling is not an error for the caller: the last
// observed status goes back as-is.
func (a *App) pollOrWait(r *http.Request, jobID string) (domain.JobStatus, error) {
	wait := r.URL.Query().Get("wait")
	if wait != "true" && wait != "1" {
		return a.Poller.Poll(r.Context(), jobID)
	}
	status, err := a.Poller.Wait(r.Context(), jobID, a.httpWaitOpts())
	if err != nil && errors.Is(err, domain.ErrTransient) && !status.State.Terminal() {
		return status, nil
	}
	return status, err
}

// httpWaitOpts trims the configured wait loop so it finishes inside the
// server's write budget. A blocking wait that outlives the write timeout
// would have its connection killed before any response goes out.
func (a *App) httpWaitOpts() pipeline.WaitOptions {
	opts := a.WaitOpts
	if opts.Interval <= 0 {
		opts.Interval = pipeline.DefaultWaitOptions().Interval
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = pipeline.DefaultWaitOptions().MaxAttempts
	}
	if a.WaitBudget <= 0 {
		return opts
	}
	max := int(a.WaitBudget / opts.Interval)
	if max < 1 {
		max = 1
	}
	if opts.MaxAttempts > max {
		opts.MaxAttempts = max
	}
	return opts
}

// userFacingFailure translates a normalized failure into something safe to
// show. Moderation gets the localized message; other details pass through
// because the normalizer already stripped vendor bodies.
func userFacingFailure(locale string, status domain.JobStatus) string {
	if status.Reason == domain.ReasonModerationRejected {
		return msg(locale, "moderation_rejected")
	}
	if status.ErrorDetail != "" {
		return status.ErrorDetail
	}
	return msg(locale, "provider_unavailable")
}
