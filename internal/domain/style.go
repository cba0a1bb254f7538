package domain

import "strings"

// StyleRecord is one entry of the curated hairstyle catalog. Records are
// loaded once at startup and never mutated afterwards.
type StyleRecord struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Gender         string   `json:"gender"`
	Description    string   `json:"description,omitempty"`
	Tags           []string `json:"tags"`
	FaceShapeMatch []string `json:"face_shape_match"`
	PromptModifier string   `json:"prompt_modifier,omitempty"`
	ImageURL       string   `json:"image_url"`
}

// Prompt returns the text used to describe the style to the generation
// model. The explicit modifier wins over the display name.
func (s StyleRecord) Prompt() string {
	if m := strings.TrimSpace(s.PromptModifier); m != "" {
		return m
	}
	return s.Name
}

// MatchesGender reports whether the record belongs to the given filter
// ("male", "female" or "all"). The gender tag is authoritative; the id
// prefix ("m_"/"w_") is the fallback for records without one.
func (s StyleRecord) MatchesGender(filter string) bool {
	switch strings.ToLower(strings.TrimSpace(filter)) {
	case "", "all":
		return true
	case "male":
		return s.Gender == "male" || (s.Gender == "" && strings.HasPrefix(s.ID, "m_"))
	case "female":
		return s.Gender == "female" || (s.Gender == "" && strings.HasPrefix(s.ID, "w_"))
	default:
		return true
	}
}
