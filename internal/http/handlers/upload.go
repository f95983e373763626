package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"rewrite-moment/internal/media"
	"rewrite-moment/internal/middleware"
)

type uploadRequest struct {
	Image    string `json:"image"`
	Filename string `json:"filename"`
}

type uploadResponse struct {
	Success  bool   `json:"success"`
	ImageURL string `json:"imageUrl"`
	Message  string `json:"message"`
}

// Upload validates a photo out-of-band of generation. With a configured
// store the photo is persisted and a static URL returned; otherwise the data
// URL is echoed back for the client to reuse in the generate call.
func (a *App) Upload(w http.ResponseWriter, r *http.Request) {
	locale := middleware.LocaleFromContext(r.Context())

	var req uploadRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			a.error(w, http.StatusRequestEntityTooLarge, msg(locale, "payload_too_large"), "")
			return
		}
		a.error(w, http.StatusBadRequest, msg(locale, "invalid_payload"), "")
		return
	}
	image := strings.TrimSpace(req.Image)
	if image == "" {
		a.error(w, http.StatusBadRequest, msg(locale, "image_required"), "")
		return
	}
	if !strings.HasPrefix(image, "data:image/") {
		a.error(w, http.StatusBadRequest, msg(locale, "invalid_image"), "")
		return
	}

	blob, err := media.ParseImage(image)
	if err != nil {
		a.error(w, http.StatusBadRequest, msg(locale, "invalid_image"), "")
		return
	}

	imageURL := image
	if a.Store != nil {
		key, err := a.Store.SaveUpload(r.Context(), blob)
		if err != nil {
			a.Logger.Error().Err(err).Msg("upload persistence failed")
			a.error(w, http.StatusInternalServerError, "Failed to store image", "")
			return
		}
		imageURL = strings.TrimRight(a.StaticBaseURL, "/") + "/" + key
	}

	a.json(w, http.StatusOK, uploadResponse{
		Success:  true,
		ImageURL: imageURL,
		Message:  msg(locale, "upload_ready"),
	})
}
