package genai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"server/internal/domain"
	"server/internal/infra"
)

// Options controls how the Gemini client is configured.
type Options struct {
	APIKey            string
	BaseURL           string
	AnalysisModel     string
	ImageModel        string
	HTTPClient        *http.Client
	Logger            *infra.Logger
	RequestsPerMinute int
}

// Client is the single boundary to the external multimodal capability. All
// three operations degrade to a safe local default instead of propagating
// transport or decoding errors: analysis falls back to a fixed sentinel,
// recommendation to the first catalog entries, and image editing to a typed
// EditFailure the caller converts into a placeholder. When no API key is
// configured every operation serves deterministic synthetic output so the
// full pipeline stays exercisable in local and CI environments.
type Client struct {
	apiKey        string
	baseURL       string
	analysisModel string
	imageModel    string
	httpClient    *http.Client
	logger        *infra.Logger
	limiter       *rate.Limiter
}

// SourceImage is the raw image handed to the capability.
type SourceImage struct {
	Data     []byte
	MIMEType string
}

// Recommendation is the style selection returned by RecommendStyles.
type Recommendation struct {
	StyleIDs []string
	Comment  string
}

// EditFailure is the typed outcome of a failed image edit. It never crosses
// the orchestrator boundary as an error; callers substitute a placeholder.
type EditFailure struct {
	Reason string
	Err    error
}

func (f *EditFailure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("genai: edit failed (%s): %v", f.Reason, f.Err)
	}
	return fmt.Sprintf("genai: edit failed (%s)", f.Reason)
}

func (f *EditFailure) Unwrap() error { return f.Err }

const (
	maxRecommendations = 3

	defaultAnalysisModel = "gemini-2.5-flash"
	defaultImageModel    = "gemini-2.5-flash-image"
)

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts,omitempty"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mimeType,omitempty"`
	Data     string `json:"data,omitempty"`
}

type geminiGenerationConfig struct {
	Temperature        float64  `json:"temperature,omitempty"`
	CandidateCount     int      `json:"candidateCount,omitempty"`
	ResponseMimeType   string   `json:"responseMimeType,omitempty"`
	ResponseModalities []string `json:"responseModalities,omitempty"`
}

type geminiGenerateContentRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason,omitempty"`
}

type geminiGenerateContentResponse struct {
	Candidates []geminiCandidate `json:"candidates"`
}

type geminiErrorResponse struct {
	Error struct {
		Code    int    `json:"code,omitempty"`
		Message string `json:"message,omitempty"`
	} `json:"error"`
}

type analysisPayload struct {
	FaceShape      string `json:"face_shape"`
	SkinTone       string `json:"skin_tone"`
	HairLength     string `json:"hair_length"`
	HairTexture    string `json:"hair_texture"`
	HairColor      string `json:"hair_color"`
	FeatureSummary string `json:"feature_summary"`
}

type recommendationPayload struct {
	RecommendedStyleIDs []string `json:"recommended_style_ids"`
	Comment             string   `json:"comment"`
}

// NewClient constructs a Gemini client with sane defaults. A nil HTTP client
// is replaced with a reusable one sized for image generation latency.
func NewClient(opts Options) (*Client, error) {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 90 * time.Second}
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}

	analysisModel := opts.AnalysisModel
	if analysisModel == "" {
		analysisModel = defaultAnalysisModel
	}
	imageModel := opts.ImageModel
	if imageModel == "" {
		imageModel = defaultImageModel
	}

	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := infra.Logger(zerolog.New(io.Discard))
		logger = &discard
	}

	perMinute := opts.RequestsPerMinute
	if perMinute <= 0 {
		perMinute = 30
	}
	limiter := rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute)

	return &Client{
		apiKey:        strings.TrimSpace(opts.APIKey),
		baseURL:       baseURL,
		analysisModel: analysisModel,
		imageModel:    imageModel,
		httpClient:    client,
		logger:        logger,
		limiter:       limiter,
	}, nil
}

// AnalyzeFace asks the vision model for structured face and hair attributes.
// Any failure along the way yields the sentinel result; callers can rely on
// every field being populated.
func (c *Client) AnalyzeFace(ctx context.Context, img SourceImage) domain.AnalysisResult {
	if c.apiKey == "" {
		return syntheticAnalysis(img)
	}

	payload := geminiGenerateContentRequest{
		Contents: []geminiContent{{
			Role: "user",
			Parts: []geminiPart{
				{Text: analysisPrompt},
				{InlineData: inlineImage(img)},
			},
		}},
		GenerationConfig: &geminiGenerationConfig{
			CandidateCount:   1,
			ResponseMimeType: "application/json",
		},
	}

	var response geminiGenerateContentResponse
	if err := c.invoke(ctx, c.analysisModel, payload, &response); err != nil {
		c.logger.Warn().Err(err).Str("model", c.analysisModel).
			Msg("genai: analysis call failed; returning sentinel result")
		return domain.SentinelAnalysis()
	}
	text := extractText(response)
	if text == "" {
		c.logger.Warn().Str("model", c.analysisModel).
			Msg("genai: analysis response had no text; returning sentinel result")
		return domain.SentinelAnalysis()
	}
	parsed, err := parsePayload[analysisPayload](text)
	if err != nil {
		c.logger.Warn().Err(err).Msg("genai: analysis payload unparseable; returning sentinel result")
		return domain.SentinelAnalysis()
	}

	sentinel := domain.SentinelAnalysis()
	return domain.AnalysisResult{
		FaceShape:      coalesce(parsed.FaceShape, sentinel.FaceShape),
		SkinTone:       coalesce(parsed.SkinTone, sentinel.SkinTone),
		HairLength:     coalesce(parsed.HairLength, sentinel.HairLength),
		HairTexture:    coalesce(parsed.HairTexture, sentinel.HairTexture),
		HairColor:      coalesce(parsed.HairColor, sentinel.HairColor),
		FeatureSummary: coalesce(parsed.FeatureSummary, sentinel.FeatureSummary),
	}
}

// RecommendStyles selects up to three candidate styles for the analyzed
// face. The returned ids are always a subset of the candidates and never
// empty while candidates is non-empty; on any failure the first entries in
// catalog order are used.
func (c *Client) RecommendStyles(ctx context.Context, analysis domain.AnalysisResult, candidates []domain.StyleRecord, locale string) Recommendation {
	if len(candidates) == 0 {
		return Recommendation{Comment: fallbackComment(locale)}
	}
	if c.apiKey == "" {
		return fallbackRecommendation(candidates, locale)
	}

	payload := geminiGenerateContentRequest{
		Contents: []geminiContent{{
			Role:  "user",
			Parts: []geminiPart{{Text: buildRecommendPrompt(analysis, candidates, locale)}},
		}},
		GenerationConfig: &geminiGenerationConfig{
			Temperature:      0.5,
			CandidateCount:   1,
			ResponseMimeType: "application/json",
		},
	}

	var response geminiGenerateContentResponse
	if err := c.invoke(ctx, c.analysisModel, payload, &response); err != nil {
		c.logger.Warn().Err(err).Msg("genai: recommendation call failed; using default selection")
		return fallbackRecommendation(candidates, locale)
	}
	parsed, err := parsePayload[recommendationPayload](extractText(response))
	if err != nil {
		c.logger.Warn().Err(err).Msg("genai: recommendation payload unparseable; using default selection")
		return fallbackRecommendation(candidates, locale)
	}

	known := make(map[string]struct{}, len(candidates))
	for _, s := range candidates {
		known[s.ID] = struct{}{}
	}
	var ids []string
	for _, id := range parsed.RecommendedStyleIDs {
		if _, ok := known[id]; !ok {
			continue
		}
		ids = append(ids, id)
		if len(ids) == maxRecommendations {
			break
		}
	}
	if len(ids) == 0 {
		return fallbackRecommendation(candidates, locale)
	}
	return Recommendation{
		StyleIDs: ids,
		Comment:  coalesce(strings.TrimSpace(parsed.Comment), fallbackComment(locale)),
	}
}

// EditImage sends one source image and one edit instruction and returns the
// generated image bytes, or a typed failure when the capability produced
// nothing usable.
func (c *Client) EditImage(ctx context.Context, img SourceImage, instruction string) ([]byte, *EditFailure) {
	if c.apiKey == "" {
		return syntheticEdit(img, instruction), nil
	}

	payload := geminiGenerateContentRequest{
		Contents: []geminiContent{{
			Role: "user",
			Parts: []geminiPart{
				{Text: instruction},
				{InlineData: inlineImage(img)},
			},
		}},
		GenerationConfig: &geminiGenerationConfig{
			ResponseModalities: []string{"IMAGE", "TEXT"},
		},
	}

	var response geminiGenerateContentResponse
	if err := c.invoke(ctx, c.imageModel, payload, &response); err != nil {
		return nil, &EditFailure{Reason: "http_request", Err: err}
	}
	if len(response.Candidates) == 0 {
		return nil, &EditFailure{Reason: "no_candidates"}
	}
	for _, candidate := range response.Candidates {
		for _, part := range candidate.Content.Parts {
			if part.InlineData == nil || part.InlineData.Data == "" {
				continue
			}
			data, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
			if err != nil {
				return nil, &EditFailure{Reason: "decode_inline_data", Err: err}
			}
			if len(data) > 0 {
				return data, nil
			}
		}
	}
	return nil, &EditFailure{Reason: "no_inline_image"}
}

func (c *Client) invoke(ctx context.Context, model string, payload any, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	endpoint := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, url.PathEscape(model))
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("invoke gemini: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		var apiErr geminiErrorResponse
		if err := json.Unmarshal(data, &apiErr); err == nil && apiErr.Error.Message != "" {
			return fmt.Errorf("gemini status %d: %s", resp.StatusCode, apiErr.Error.Message)
		}
		if len(bytes.TrimSpace(data)) > 0 {
			return fmt.Errorf("gemini status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
		}
		return fmt.Errorf("gemini status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode gemini response: %w", err)
	}
	return nil
}

func inlineImage(img SourceImage) *geminiInlineData {
	mime := img.MIMEType
	if mime == "" {
		mime = "image/jpeg"
	}
	return &geminiInlineData{
		MimeType: mime,
		Data:     base64.StdEncoding.EncodeToString(img.Data),
	}
}

func extractText(resp geminiGenerateContentResponse) string {
	for _, cand := range resp.Candidates {
		for _, part := range cand.Content.Parts {
			if strings.TrimSpace(part.Text) != "" {
				return part.Text
			}
		}
	}
	return ""
}

func coalesce(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
