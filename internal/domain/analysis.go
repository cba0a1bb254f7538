package domain

// AnalysisResult is the structured output of the face/hair analysis step.
// It is a plain transfer value; FileID ties it back to the stored upload so
// follow-up fitting calls can reuse the same source image.
type AnalysisResult struct {
	FaceShape      string `json:"face_shape"`
	SkinTone       string `json:"skin_tone"`
	HairLength     string `json:"hair_length"`
	HairTexture    string `json:"hair_texture"`
	HairColor      string `json:"hair_color"`
	FeatureSummary string `json:"feature_summary"`
	FileID         string `json:"file_id,omitempty"`
}

// SentinelAnalysis is returned whenever the analysis call fails. Every field
// carries a non-empty default so downstream recommendation logic always has
// a well-typed input to work with.
func SentinelAnalysis() AnalysisResult {
	return AnalysisResult{
		FaceShape:      "Unknown",
		SkinTone:       "Unknown",
		HairLength:     "Medium",
		HairTexture:    "Unknown",
		HairColor:      "Black",
		FeatureSummary: "Could not analyze image due to an error.",
	}
}
