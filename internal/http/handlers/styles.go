package handlers

import "net/http"

type styleSummary struct {
	Name     string `json:"name"`
	ImageURL string `json:"image_url"`
}

// Styles lists the catalog grouped by gender for the style picker.
func (a *App) Styles(w http.ResponseWriter, r *http.Request) {
	grouped := map[string][]styleSummary{
		"male":   {},
		"female": {},
	}
	for _, filter := range []string{"male", "female"} {
		for _, s := range a.Catalog.FilterGender(filter) {
			grouped[filter] = append(grouped[filter], styleSummary{Name: s.Name, ImageURL: s.ImageURL})
		}
	}
	a.json(w, http.StatusOK, grouped)
}
