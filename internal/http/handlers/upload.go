package handlers

import (
	"net/http"
	"path/filepath"
	"strings"
)

// Upload stores a portrait without analyzing it. The returned image_id
// feeds the quick generate flow.
func (a *App) Upload(w http.ResponseWriter, r *http.Request) {
	data, filename, ok := a.readPortrait(w, r)
	if !ok {
		return
	}
	img, err := a.Uploads.Save(r.Context(), data, extOf(filename))
	if err != nil {
		a.Logger.Error().Err(err).Msg("handlers: upload failed")
		a.error(w, http.StatusInternalServerError, "upload_failed", "could not store the image")
		return
	}
	a.json(w, http.StatusOK, map[string]string{
		"message":  "upload successful",
		"image_id": img.Name,
		"url":      img.URL,
	})
}

type generateRequest struct {
	ImageID string `json:"image_id"`
	Style   string `json:"style"`
	Gender  string `json:"gender"`
}

// Generate is the quick fitting flow: one style by display name, one
// result URL. A failed generation answers the original upload URL so the
// client always has an image to show.
func (a *App) Generate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if !a.decode(w, r, &req) {
		return
	}
	if req.ImageID == "" || req.Style == "" {
		a.error(w, http.StatusBadRequest, "missing_fields", "image_id and style are required")
		return
	}
	url, err := a.Consultant.QuickFitting(r.Context(), req.ImageID, req.Style)
	if err != nil {
		a.respondConsultantError(w, err)
		return
	}
	a.json(w, http.StatusOK, map[string]string{"result_image": url})
}

func extOf(filename string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	if ext == "" {
		return "jpg"
	}
	return ext
}
