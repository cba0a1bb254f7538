package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"server/internal/catalog"
	"server/internal/consultant"
	"server/internal/domain"
	"server/internal/http/handlers"
	httpapi "server/internal/http/httpapi"
	"server/internal/infra"
	"server/internal/photobooth"
	"server/internal/providers/genai"
	"server/internal/storage"
)

type fakeAdapter struct {
	analysis  domain.AnalysisResult
	recommend genai.Recommendation
	editData  []byte
	editFail  *genai.EditFailure
}

func (f *fakeAdapter) AnalyzeFace(ctx context.Context, img genai.SourceImage) domain.AnalysisResult {
	return f.analysis
}

func (f *fakeAdapter) RecommendStyles(ctx context.Context, analysis domain.AnalysisResult, candidates []domain.StyleRecord, locale string) genai.Recommendation {
	return f.recommend
}

func (f *fakeAdapter) EditImage(ctx context.Context, img genai.SourceImage, instruction string) ([]byte, *genai.EditFailure) {
	if f.editFail != nil {
		return nil, f.editFail
	}
	return f.editData, nil
}

const catalogJSON = `[
  {"id": "m_01", "name": "댄디컷", "gender": "male", "image_url": "/static/m_01.jpg"},
  {"id": "m_02", "name": "리젠트컷", "gender": "male", "image_url": "/static/m_02.jpg"},
  {"id": "w_01", "name": "레이어드컷", "gender": "female", "image_url": "/static/w_01.jpg"}
]`

type testServer struct {
	handler http.Handler
	uploads *storage.FileStore
	results *storage.FileStore
}

func newTestServer(t *testing.T, adapter consultant.Adapter) *testServer {
	t.Helper()
	uploads, err := storage.NewFileStore(t.TempDir(), "/uploads")
	if err != nil {
		t.Fatalf("uploads store: %v", err)
	}
	results, err := storage.NewFileStore(t.TempDir(), "/results")
	if err != nil {
		t.Fatalf("results store: %v", err)
	}
	cat, err := catalog.Parse([]byte(catalogJSON))
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	logger := infra.Logger(zerolog.New(io.Discard))
	svc := consultant.NewService(adapter, uploads, results, cat, &logger)
	comp := photobooth.New(uploads, results, &logger)
	app := handlers.NewApp(svc, comp, cat, uploads, &logger)

	handler := httpapi.NewRouter(app, httpapi.Options{
		Logger:        logger,
		DefaultLocale: "ko",
		UploadsDir:    uploads.BasePath(),
		ResultsDir:    results.BasePath(),
	})
	return &testServer{handler: handler, uploads: uploads, results: results}
}

func (s *testServer) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) postJSON(t *testing.T, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return s.do(t, req)
}

func (s *testServer) uploadPortrait(t *testing.T, path string) map[string]any {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "portrait.jpg")
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	if _, err := part.Write([]byte("fake-jpeg-bytes")); err != nil {
		t.Fatalf("write part: %v", err)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := s.do(t, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("upload to %s: status %d, body %s", path, rec.Code, rec.Body.String())
	}
	return decodeBody(t, rec)
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestAnalyzeRecommendFittingFlow(t *testing.T) {
	adapter := &fakeAdapter{
		analysis: domain.AnalysisResult{
			FaceShape: "둥근형", SkinTone: "웜톤", HairLength: "Short",
			HairTexture: "직모", HairColor: "Black", FeatureSummary: "테스트 요약",
		},
		recommend: genai.Recommendation{StyleIDs: []string{"m_01", "m_02"}, Comment: "잘 어울려요"},
		editData:  []byte("generated-image"),
	}
	srv := newTestServer(t, adapter)

	analysis := srv.uploadPortrait(t, "/api/consultant/analyze")
	fileID, _ := analysis["file_id"].(string)
	if fileID == "" {
		t.Fatalf("analyze response missing file_id: %v", analysis)
	}
	if analysis["face_shape"] != "둥근형" {
		t.Fatalf("face_shape = %v", analysis["face_shape"])
	}

	rec := srv.postJSON(t, "/api/consultant/recommend?gender_filter=male", analysis)
	if rec.Code != http.StatusOK {
		t.Fatalf("recommend status %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	recs, _ := body["recommendations"].([]any)
	if len(recs) != 2 {
		t.Fatalf("recommendations = %v", body["recommendations"])
	}
	if body["consultant_comment"] != "잘 어울려요" {
		t.Fatalf("consultant_comment = %v", body["consultant_comment"])
	}

	rec = srv.postJSON(t, "/api/consultant/fitting", map[string]string{
		"style_id":        "m_01",
		"user_image_path": "/uploads/" + fileID,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("fitting status %d: %s", rec.Code, rec.Body.String())
	}
	url, _ := decodeBody(t, rec)["generated_image_url"].(string)
	if !strings.HasPrefix(url, "/results/") {
		t.Fatalf("generated_image_url = %q", url)
	}
}

func TestFittingUnknownStyleIs404(t *testing.T) {
	srv := newTestServer(t, &fakeAdapter{editData: []byte("x")})
	up := srv.uploadPortrait(t, "/api/upload")

	rec := srv.postJSON(t, "/api/consultant/fitting", map[string]string{
		"style_id":        "no_such_style",
		"user_image_path": up["url"].(string),
	})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestFittingMissingSourceIs404(t *testing.T) {
	srv := newTestServer(t, &fakeAdapter{editData: []byte("x")})
	rec := srv.postJSON(t, "/api/consultant/fitting", map[string]string{
		"style_id":        "m_01",
		"user_image_path": "/uploads/does-not-exist.jpg",
	})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestTimeChangeReturnsAllStages(t *testing.T) {
	srv := newTestServer(t, &fakeAdapter{editData: []byte("generated")})
	up := srv.uploadPortrait(t, "/api/upload")

	rec := srv.postJSON(t, "/api/consultant/time-change", map[string]string{
		"user_image_path": up["url"].(string),
		"style_name":      "레이어드컷",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	for _, slot := range []string{"1month", "3months", "1year"} {
		url, _ := body[slot].(string)
		if !strings.HasPrefix(url, "/results/") {
			t.Fatalf("slot %q = %v", slot, body[slot])
		}
	}
}

func TestPoseAllFailuresStill200WithPlaceholders(t *testing.T) {
	srv := newTestServer(t, &fakeAdapter{editFail: &genai.EditFailure{Reason: "http_request"}})
	up := srv.uploadPortrait(t, "/api/upload")

	rec := srv.postJSON(t, "/api/consultant/pose", map[string]any{
		"user_image_path": up["url"],
		"style_name":      "댄디컷",
		"scene_type":      "studio",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	images, _ := decodeBody(t, rec)["images"].([]any)
	if len(images) != 6 {
		t.Fatalf("images = %v", images)
	}
	for _, img := range images {
		if img != consultant.PlaceholderGenerationFailed {
			t.Fatalf("image = %v, want placeholder", img)
		}
	}
}

func TestPoseInvalidSceneIs400(t *testing.T) {
	srv := newTestServer(t, &fakeAdapter{editData: []byte("x")})
	up := srv.uploadPortrait(t, "/api/upload")

	rec := srv.postJSON(t, "/api/consultant/pose", map[string]any{
		"user_image_path": up["url"],
		"style_name":      "댄디컷",
		"scene_type":      "underwater",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestPhotoBoothWrongCountIs400(t *testing.T) {
	srv := newTestServer(t, &fakeAdapter{editData: []byte("x")})
	rec := srv.postJSON(t, "/api/consultant/photo-booth", map[string]any{
		"image_urls": []string{"/results/a.png", "/results/b.png"},
		"style_name": "댄디컷",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	body := decodeBody(t, rec)
	errObj, _ := body["error"].(map[string]any)
	msg, _ := errObj["message"].(string)
	if !strings.Contains(msg, "exactly 3 images required") {
		t.Fatalf("message = %q", msg)
	}
}

func TestQuickGenerateFallsBackToUpload(t *testing.T) {
	srv := newTestServer(t, &fakeAdapter{editFail: &genai.EditFailure{Reason: "no_inline_image"}})
	up := srv.uploadPortrait(t, "/api/upload")

	rec := srv.postJSON(t, "/api/generate", map[string]string{
		"image_id": up["image_id"].(string),
		"style":    "댄디컷",
		"gender":   "male",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	if got := decodeBody(t, rec)["result_image"]; got != up["url"] {
		t.Fatalf("result_image = %v, want original upload %v", got, up["url"])
	}
}

func TestStylesGroupedByGender(t *testing.T) {
	srv := newTestServer(t, &fakeAdapter{})
	req := httptest.NewRequest(http.MethodGet, "/api/styles", nil)
	rec := srv.do(t, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decodeBody(t, rec)
	male, _ := body["male"].([]any)
	female, _ := body["female"].([]any)
	if len(male) != 2 || len(female) != 1 {
		t.Fatalf("male=%d female=%d", len(male), len(female))
	}
}

func TestStaticUploadsAreServed(t *testing.T) {
	srv := newTestServer(t, &fakeAdapter{})
	img, err := srv.uploads.Save(context.Background(), []byte("raw-bytes"), "jpg")
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, img.URL, nil)
	rec := srv.do(t, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Body.String() != "raw-bytes" {
		t.Fatalf("body = %q", rec.Body.String())
	}
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, &fakeAdapter{})
	rec := srv.do(t, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if decodeBody(t, rec)["status"] != "ok" {
		t.Fatalf("body = %s", rec.Body.String())
	}
}
