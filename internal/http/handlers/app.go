package handlers

import (
	"encoding/json"
	"net/http"

	"server/internal/catalog"
	"server/internal/consultant"
	"server/internal/infra"
	"server/internal/photobooth"
	"server/internal/storage"
)

type App struct {
	Consultant *consultant.Service
	Compositor *photobooth.Compositor
	Catalog    *catalog.Catalog
	Uploads    *storage.FileStore
	Logger     *infra.Logger
}

func NewApp(svc *consultant.Service, comp *photobooth.Compositor, cat *catalog.Catalog, uploads *storage.FileStore, logger *infra.Logger) *App {
	return &App{
		Consultant: svc,
		Compositor: comp,
		Catalog:    cat,
		Uploads:    uploads,
		Logger:     logger,
	}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, status int, code, message string) {
	a.json(w, status, map[string]any{
		"error": map[string]string{"code": code, "message": message},
	})
}

func (a *App) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		a.error(w, http.StatusBadRequest, "invalid_json", "request body is not valid JSON")
		return false
	}
	return true
}
