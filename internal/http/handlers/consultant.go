package handlers

import (
	"errors"
	"io"
	"net/http"

	"server/internal/consultant"
	"server/internal/domain"
	"server/internal/middleware"
)

const maxUploadBytes = 15 << 20

// readPortrait pulls the multipart "file" field and returns its bytes plus
// the reported file name.
func (a *App) readPortrait(w http.ResponseWriter, r *http.Request) ([]byte, string, bool) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		a.error(w, http.StatusBadRequest, "invalid_upload", "expected a multipart form with a file field")
		return nil, "", false
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		a.error(w, http.StatusBadRequest, "missing_file", "file field is required")
		return nil, "", false
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		a.error(w, http.StatusBadRequest, "unreadable_file", "could not read uploaded file")
		return nil, "", false
	}
	if len(data) == 0 || len(data) > maxUploadBytes {
		a.error(w, http.StatusBadRequest, "invalid_upload", "uploaded file is empty or too large")
		return nil, "", false
	}
	return data, header.Filename, true
}

// Analyze stores the uploaded portrait and answers with the structured
// face and hair analysis. The file_id in the response is the handle for
// every follow-up call.
func (a *App) Analyze(w http.ResponseWriter, r *http.Request) {
	data, filename, ok := a.readPortrait(w, r)
	if !ok {
		return
	}
	analysis, err := a.Consultant.Analyze(r.Context(), data, extOf(filename))
	if err != nil {
		a.Logger.Error().Err(err).Msg("handlers: analyze failed")
		a.error(w, http.StatusInternalServerError, "analyze_failed", "could not store or analyze the image")
		return
	}
	a.json(w, http.StatusOK, analysis)
}

// Recommend answers up to three catalog styles for the posted analysis.
func (a *App) Recommend(w http.ResponseWriter, r *http.Request) {
	var analysis domain.AnalysisResult
	if !a.decode(w, r, &analysis) {
		return
	}
	genderFilter := r.URL.Query().Get("gender_filter")
	locale := middleware.LocaleFromContext(r.Context())

	res, err := a.Consultant.Recommend(r.Context(), analysis, genderFilter, locale)
	if err != nil {
		a.Logger.Error().Err(err).Msg("handlers: recommend failed")
		a.error(w, http.StatusInternalServerError, "recommend_failed", "could not produce recommendations")
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"analysis":           res.Analysis,
		"recommendations":    res.Styles,
		"consultant_comment": res.Comment,
	})
}

type fittingRequest struct {
	StyleID       string `json:"style_id"`
	UserImagePath string `json:"user_image_path"`
}

// Fitting generates a single restyled portrait for one catalog style.
func (a *App) Fitting(w http.ResponseWriter, r *http.Request) {
	var req fittingRequest
	if !a.decode(w, r, &req) {
		return
	}
	if req.StyleID == "" || req.UserImagePath == "" {
		a.error(w, http.StatusBadRequest, "missing_fields", "style_id and user_image_path are required")
		return
	}
	url, err := a.Consultant.Fitting(r.Context(), req.StyleID, req.UserImagePath)
	if err != nil {
		a.respondConsultantError(w, err)
		return
	}
	a.json(w, http.StatusOK, map[string]string{"generated_image_url": url})
}

type timeChangeRequest struct {
	UserImagePath string `json:"user_image_path"`
	StyleName     string `json:"style_name"`
	BaseImageURL  string `json:"base_image_url"`
	Seed          *int64 `json:"seed"`
}

// TimeChange renders the growth stages of a style as three images.
func (a *App) TimeChange(w http.ResponseWriter, r *http.Request) {
	var req timeChangeRequest
	if !a.decode(w, r, &req) {
		return
	}
	if req.UserImagePath == "" || req.StyleName == "" {
		a.error(w, http.StatusBadRequest, "missing_fields", "user_image_path and style_name are required")
		return
	}
	urls, err := a.Consultant.TimeLapse(r.Context(), req.UserImagePath, req.StyleName, req.BaseImageURL, req.Seed)
	if err != nil {
		a.respondConsultantError(w, err)
		return
	}
	a.json(w, http.StatusOK, urls)
}

type multiAngleRequest struct {
	UserImagePath string `json:"user_image_path"`
	StyleName     string `json:"style_name"`
	Seed          *int64 `json:"seed"`
}

// MultiAngle renders the four viewpoints of the restyled person.
func (a *App) MultiAngle(w http.ResponseWriter, r *http.Request) {
	var req multiAngleRequest
	if !a.decode(w, r, &req) {
		return
	}
	if req.UserImagePath == "" || req.StyleName == "" {
		a.error(w, http.StatusBadRequest, "missing_fields", "user_image_path and style_name are required")
		return
	}
	urls, err := a.Consultant.MultiAngle(r.Context(), req.UserImagePath, req.StyleName, req.Seed)
	if err != nil {
		a.respondConsultantError(w, err)
		return
	}
	a.json(w, http.StatusOK, urls)
}

type poseRequest struct {
	UserImagePath string `json:"user_image_path"`
	StyleName     string `json:"style_name"`
	SceneType     string `json:"scene_type"`
	Seed          *int64 `json:"seed"`
}

// Pose renders a six-frame photoshoot in the requested scene.
func (a *App) Pose(w http.ResponseWriter, r *http.Request) {
	var req poseRequest
	if !a.decode(w, r, &req) {
		return
	}
	if req.UserImagePath == "" || req.StyleName == "" {
		a.error(w, http.StatusBadRequest, "missing_fields", "user_image_path and style_name are required")
		return
	}
	scene, err := consultant.ParseScene(req.SceneType)
	if err != nil {
		a.error(w, http.StatusBadRequest, "invalid_scene", "scene_type must be studio, outdoor or runway")
		return
	}
	images, err := a.Consultant.Pose(r.Context(), req.UserImagePath, req.StyleName, scene, req.Seed)
	if err != nil {
		a.respondConsultantError(w, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"images": images})
}

type photoBoothRequest struct {
	ImageURLs []string `json:"image_urls"`
	StyleName string   `json:"style_name"`
}

// PhotoBooth composes three generated images into a vertical strip.
func (a *App) PhotoBooth(w http.ResponseWriter, r *http.Request) {
	var req photoBoothRequest
	if !a.decode(w, r, &req) {
		return
	}
	if len(req.ImageURLs) != 3 {
		a.error(w, http.StatusBadRequest, "invalid_image_count", "exactly 3 images required")
		return
	}
	url, err := a.Compositor.Compose(r.Context(), req.ImageURLs, req.StyleName)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			a.error(w, http.StatusBadRequest, "invalid_image_count", "exactly 3 images required")
			return
		}
		a.Logger.Error().Err(err).Msg("handlers: photo booth failed")
		a.error(w, http.StatusInternalServerError, "photo_booth_failed", "could not compose the photo strip")
		return
	}
	a.json(w, http.StatusOK, map[string]string{"photo_booth_url": url})
}

func (a *App) respondConsultantError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "style_not_found", "unknown style")
	case errors.Is(err, domain.ErrSourceMissing):
		a.error(w, http.StatusNotFound, "image_not_found", "source image not found")
	case errors.Is(err, domain.ErrInvalidInput):
		a.error(w, http.StatusBadRequest, "invalid_input", err.Error())
	default:
		a.Logger.Error().Err(err).Msg("handlers: consultant operation failed")
		a.error(w, http.StatusInternalServerError, "internal_error", "operation failed")
	}
}
