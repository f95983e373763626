package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"rewrite-moment/internal/domain"
	"rewrite-moment/internal/media"
	"rewrite-moment/internal/middleware"
)

type generateRequest struct {
	Image       string         `json:"image"`
	ImageURL    string         `json:"imageUrl"`
	SecondImage string         `json:"secondImage"`
	Prompt      string         `json:"prompt"`
	Stage       string         `json:"stage"`
	Genre       string         `json:"genre"`
	Mode        string         `json:"mode"`
	Distance    string         `json:"distance"`
	Ending      string         `json:"ending"`
	MovieTheme  string         `json:"movieTheme"`
	RewriteText string         `json:"rewriteText"`
	AspectRatio string         `json:"aspectRatio"`
	Sliders     domain.Sliders `json:"sliders"`
}

type generateResponse struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	Provider string `json:"provider"`
	Message  string `json:"message"`
}

// maxBodyBytes bounds JSON request bodies. Two base64 photos fit comfortably;
// anything bigger is rejected before it gets buffered.
const maxBodyBytes = 10 << 20

// Generate validates the payload, runs the submission pipeline synchronously
// (including composition when a second photo is present), and answers with
// the job handle the client will poll.
func (a *App) Generate(w http.ResponseWriter, r *http.Request) {
	locale := middleware.LocaleFromContext(r.Context())

	var req generateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			a.error(w, http.StatusRequestEntityTooLarge, msg(locale, "payload_too_large"), "")
			return
		}
		a.error(w, http.StatusBadRequest, msg(locale, "invalid_payload"), "")
		return
	}

	rawImage := strings.TrimSpace(req.Image)
	if rawImage == "" {
		rawImage = strings.TrimSpace(req.ImageURL)
	}
	if rawImage == "" {
		a.error(w, http.StatusBadRequest, msg(locale, "image_required"), "")
		return
	}

	primary, err := media.ParseImage(rawImage)
	if err != nil {
		a.error(w, http.StatusBadRequest, msg(locale, "invalid_image"), "")
		return
	}
	var secondary *domain.ImageBlob
	if raw := strings.TrimSpace(req.SecondImage); raw != "" {
		secondary, err = media.ParseImage(raw)
		if err != nil {
			a.error(w, http.StatusBadRequest, msg(locale, "invalid_image"), "")
			return
		}
	}

	genReq := domain.GenerationRequest{
		PrimaryImage:   primary,
		SecondaryImage: secondary,
		Creative: domain.CreativeParams{
			Stage:       req.Stage,
			Genre:       req.Genre,
			Mode:        req.Mode,
			Distance:    req.Distance,
			Ending:      req.Ending,
			MovieTheme:  req.MovieTheme,
			RewriteText: req.RewriteText,
			Prompt:      req.Prompt,
			AspectRatio: req.AspectRatio,
			Sliders:     req.Sliders,
		},
	}

	handle, err := a.Submitter.Submit(r.Context(), genReq)
	if err != nil {
		if errors.Is(err, domain.ErrValidation) {
			a.error(w, http.StatusBadRequest, msg(locale, "invalid_payload"), "")
			return
		}
		a.Logger.Error().Err(err).
			Str("request_id", middleware.RequestIDFromContext(r.Context())).
			Msg("generation submission failed")
		a.error(w, http.StatusInternalServerError, msg(locale, "start_failed"), submitFailureDetail(locale, err))
		return
	}

	a.json(w, http.StatusOK, generateResponse{
		ID:       handle.JobID,
		Status:   string(domain.JobProcessing),
		Provider: handle.Provider,
		Message:  msg(locale, "generation_started"),
	})
}
