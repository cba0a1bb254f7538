package genai

import (
	"encoding/json"
	"fmt"
	"strings"

	"server/internal/domain"
)

// analysisPrompt asks for the exact keys analysisPayload decodes. Keys are
// English, values Korean, matching how the catalog stores face shapes.
const analysisPrompt = `당신은 전문 헤어 컨설턴트입니다. 이 인물 사진을 분석하고 아래 JSON 형식으로만 답하세요.
{
  "face_shape": "계란형/둥근형/각진형/긴형/하트형 중 하나",
  "skin_tone": "웜톤/쿨톤/중성톤 중 하나",
  "hair_length": "Short/Medium/Long 중 하나",
  "hair_texture": "직모/곱슬/반곱슬 중 하나",
  "hair_color": "현재 머리 색",
  "feature_summary": "얼굴 특징을 한 문장으로 요약"
}
JSON 외의 텍스트는 출력하지 마세요.`

// buildRecommendPrompt lists the candidate styles with their matching hints
// so the model picks ids that actually exist.
func buildRecommendPrompt(analysis domain.AnalysisResult, candidates []domain.StyleRecord, locale string) string {
	type candidate struct {
		ID             string   `json:"id"`
		Name           string   `json:"name"`
		Description    string   `json:"description,omitempty"`
		Tags           []string `json:"tags,omitempty"`
		FaceShapeMatch []string `json:"face_shape_match,omitempty"`
	}
	list := make([]candidate, 0, len(candidates))
	for _, s := range candidates {
		list = append(list, candidate{
			ID:             s.ID,
			Name:           s.Name,
			Description:    s.Description,
			Tags:           s.Tags,
			FaceShapeMatch: s.FaceShapeMatch,
		})
	}
	catalogJSON, _ := json.Marshal(list)

	language := "한국어"
	if normalizeLocale(locale) == "en" {
		language = "English"
	}

	var b strings.Builder
	b.WriteString("당신은 전문 헤어 컨설턴트입니다. 고객 분석 결과와 스타일 카탈로그를 보고 가장 잘 어울리는 스타일을 최대 3개 추천하세요.\n\n")
	fmt.Fprintf(&b, "고객 분석: 얼굴형=%s, 피부톤=%s, 머리 길이=%s, 모질=%s, 머리색=%s, 특징=%s\n\n",
		analysis.FaceShape, analysis.SkinTone, analysis.HairLength,
		analysis.HairTexture, analysis.HairColor, analysis.FeatureSummary)
	b.WriteString("스타일 카탈로그:\n")
	b.Write(catalogJSON)
	b.WriteString("\n\n아래 JSON 형식으로만 답하세요. recommended_style_ids는 반드시 카탈로그에 있는 id만 사용하세요.\n")
	fmt.Fprintf(&b, `{"recommended_style_ids": ["id1", "id2", "id3"], "comment": "%s로 쓴 추천 이유 한두 문장"}`, language)
	return b.String()
}

// fallbackRecommendation takes the first entries in catalog order. It is
// used whenever the model call fails or returns nothing usable.
func fallbackRecommendation(candidates []domain.StyleRecord, locale string) Recommendation {
	n := len(candidates)
	if n > maxRecommendations {
		n = maxRecommendations
	}
	ids := make([]string, 0, n)
	for _, s := range candidates[:n] {
		ids = append(ids, s.ID)
	}
	return Recommendation{StyleIDs: ids, Comment: fallbackComment(locale)}
}

func fallbackComment(locale string) string {
	if normalizeLocale(locale) == "en" {
		return "These are our standard picks for you."
	}
	return "기본 추천 스타일입니다."
}

func normalizeLocale(locale string) string {
	locale = strings.ToLower(strings.TrimSpace(locale))
	if i := strings.IndexAny(locale, "-_"); i > 0 {
		locale = locale[:i]
	}
	return locale
}

// parsePayload decodes a model answer that is supposed to be JSON but may
// arrive wrapped in a markdown code fence or surrounded by prose.
func parsePayload[T any](text string) (T, error) {
	var out T
	fragment := extractJSONFragment(text)
	if fragment == "" {
		return out, fmt.Errorf("no JSON object in model output")
	}
	if err := json.Unmarshal([]byte(fragment), &out); err != nil {
		return out, fmt.Errorf("decode model output: %w", err)
	}
	return out, nil
}

// extractJSONFragment returns the outermost balanced {...} object found in
// text, after stripping any code fence.
func extractJSONFragment(text string) string {
	text = trimCodeFence(strings.TrimSpace(text))
	start := strings.Index(text, "{")
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		ch := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}

func trimCodeFence(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if i := strings.Index(text, "\n"); i >= 0 {
		text = text[i+1:]
	}
	if i := strings.LastIndex(text, "```"); i >= 0 {
		text = text[:i]
	}
	return strings.TrimSpace(text)
}
