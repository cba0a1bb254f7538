package consultant

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"server/internal/catalog"
	"server/internal/domain"
	"server/internal/infra"
	"server/internal/providers/genai"
	"server/internal/storage"
)

type fakeAdapter struct {
	mu           sync.Mutex
	instructions []string
	analyzed     []domain.AnalysisResult

	analysis  domain.AnalysisResult
	recommend genai.Recommendation
	editData  []byte
	editFail  *genai.EditFailure
}

func (f *fakeAdapter) AnalyzeFace(ctx context.Context, img genai.SourceImage) domain.AnalysisResult {
	return f.analysis
}

func (f *fakeAdapter) RecommendStyles(ctx context.Context, analysis domain.AnalysisResult, candidates []domain.StyleRecord, locale string) genai.Recommendation {
	f.mu.Lock()
	f.analyzed = append(f.analyzed, analysis)
	f.mu.Unlock()
	return f.recommend
}

func (f *fakeAdapter) EditImage(ctx context.Context, img genai.SourceImage, instruction string) ([]byte, *genai.EditFailure) {
	f.mu.Lock()
	f.instructions = append(f.instructions, instruction)
	f.mu.Unlock()
	if f.editFail != nil {
		return nil, f.editFail
	}
	return f.editData, nil
}

const testCatalogJSON = `[
  {"id": "m_01", "name": "댄디컷", "gender": "male", "prompt_modifier": "a neat dandy cut"},
  {"id": "m_02", "name": "리젠트컷", "gender": "male"},
  {"id": "w_01", "name": "레이어드컷", "gender": "female"}
]`

func newTestService(t *testing.T, adapter Adapter) (*Service, *storage.FileStore) {
	t.Helper()
	uploads, err := storage.NewFileStore(t.TempDir(), "/uploads")
	if err != nil {
		t.Fatalf("uploads store: %v", err)
	}
	results, err := storage.NewFileStore(t.TempDir(), "/results")
	if err != nil {
		t.Fatalf("results store: %v", err)
	}
	cat, err := catalog.Parse([]byte(testCatalogJSON))
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	logger := infra.Logger(zerolog.New(io.Discard))
	return NewService(adapter, uploads, results, cat, &logger), uploads
}

func uploadSource(t *testing.T, uploads *storage.FileStore) storage.StoredImage {
	t.Helper()
	img, err := uploads.Save(context.Background(), []byte("portrait-bytes"), "jpg")
	if err != nil {
		t.Fatalf("seed upload: %v", err)
	}
	return img
}

func TestFittingUnknownStyle(t *testing.T) {
	svc, _ := newTestService(t, &fakeAdapter{editData: []byte("img")})
	_, err := svc.Fitting(context.Background(), "ghost", "whatever.jpg")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestFittingMissingSourceAborts(t *testing.T) {
	svc, _ := newTestService(t, &fakeAdapter{editData: []byte("img")})
	_, err := svc.Fitting(context.Background(), "m_01", "/uploads/nope.jpg")
	if !errors.Is(err, domain.ErrSourceMissing) {
		t.Fatalf("err = %v, want ErrSourceMissing", err)
	}
}

func TestFittingSuccessStoresResult(t *testing.T) {
	fake := &fakeAdapter{editData: []byte("generated")}
	svc, uploads := newTestService(t, fake)
	src := uploadSource(t, uploads)

	url, err := svc.Fitting(context.Background(), "m_01", src.URL)
	if err != nil {
		t.Fatalf("Fitting returned error: %v", err)
	}
	if !strings.HasPrefix(url, "/results/") {
		t.Fatalf("url = %q, want /results/ prefix", url)
	}
	if len(fake.instructions) != 1 || !strings.Contains(fake.instructions[0], "a neat dandy cut") {
		t.Fatalf("instructions = %v", fake.instructions)
	}
	if !strings.Contains(fake.instructions[0], "identity") {
		t.Fatalf("instruction lacks identity constraint: %q", fake.instructions[0])
	}
}

func TestFittingFailureReturnsPlaceholder(t *testing.T) {
	fake := &fakeAdapter{editFail: &genai.EditFailure{Reason: "no_candidates"}}
	svc, uploads := newTestService(t, fake)
	src := uploadSource(t, uploads)

	url, err := svc.Fitting(context.Background(), "m_01", src.URL)
	if err != nil {
		t.Fatalf("Fitting returned error: %v", err)
	}
	if url != PlaceholderServiceUnavailable {
		t.Fatalf("url = %q, want service unavailable placeholder", url)
	}
}

func TestTimeLapseCoversAllSlots(t *testing.T) {
	fake := &fakeAdapter{editData: []byte("generated")}
	svc, uploads := newTestService(t, fake)
	src := uploadSource(t, uploads)

	urls, err := svc.TimeLapse(context.Background(), src.URL, "레이어드컷", "", nil)
	if err != nil {
		t.Fatalf("TimeLapse returned error: %v", err)
	}
	if len(urls) != len(TimeLapseSlots) {
		t.Fatalf("got %d slots, want %d", len(urls), len(TimeLapseSlots))
	}
	for _, slot := range TimeLapseSlots {
		if !strings.HasPrefix(urls[slot], "/results/") {
			t.Fatalf("slot %q = %q", slot, urls[slot])
		}
	}
	joined := strings.Join(fake.instructions, "\n")
	for _, want := range []string{"2 centimeters", "5 centimeters", "after a year"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("instructions missing growth stage %q:\n%s", want, joined)
		}
	}
}

func TestMultiAngleAppendsSeedToEverySlot(t *testing.T) {
	fake := &fakeAdapter{editData: []byte("generated")}
	svc, uploads := newTestService(t, fake)
	src := uploadSource(t, uploads)

	seed := int64(42)
	urls, err := svc.MultiAngle(context.Background(), src.URL, "댄디컷", &seed)
	if err != nil {
		t.Fatalf("MultiAngle returned error: %v", err)
	}
	if len(urls) != len(AngleSlots) {
		t.Fatalf("got %d slots, want %d", len(urls), len(AngleSlots))
	}
	if len(fake.instructions) != len(AngleSlots) {
		t.Fatalf("adapter saw %d instructions", len(fake.instructions))
	}
	for _, ins := range fake.instructions {
		if !strings.Contains(ins, "seed 42") {
			t.Fatalf("instruction missing seed hint: %q", ins)
		}
	}
}

func TestPoseAllFailuresReturnsSixPlaceholders(t *testing.T) {
	fake := &fakeAdapter{editFail: &genai.EditFailure{Reason: "http_request"}}
	svc, uploads := newTestService(t, fake)
	src := uploadSource(t, uploads)

	images, err := svc.Pose(context.Background(), src.URL, "리젠트컷", SceneStudio, nil)
	if err != nil {
		t.Fatalf("Pose returned error: %v", err)
	}
	if len(images) != 6 {
		t.Fatalf("got %d images, want 6", len(images))
	}
	for i, url := range images {
		if url != PlaceholderGenerationFailed {
			t.Fatalf("image %d = %q, want placeholder", i, url)
		}
	}
}

func TestPoseInstructionsVaryPerSlot(t *testing.T) {
	fake := &fakeAdapter{editData: []byte("generated")}
	svc, uploads := newTestService(t, fake)
	src := uploadSource(t, uploads)

	if _, err := svc.Pose(context.Background(), src.URL, "댄디컷", SceneRunway, nil); err != nil {
		t.Fatalf("Pose returned error: %v", err)
	}
	seen := make(map[string]bool)
	for _, ins := range fake.instructions {
		if !strings.Contains(ins, "runway") {
			t.Fatalf("instruction missing scene: %q", ins)
		}
		seen[ins] = true
	}
	if len(seen) != 6 {
		t.Fatalf("got %d distinct pose instructions, want 6", len(seen))
	}
}

func TestRecommendResolvesIDsAgainstCatalog(t *testing.T) {
	fake := &fakeAdapter{recommend: genai.Recommendation{
		StyleIDs: []string{"m_02", "m_01"},
		Comment:  "둘 다 잘 어울립니다",
	}}
	svc, _ := newTestService(t, fake)

	res, err := svc.Recommend(context.Background(), domain.SentinelAnalysis(), "male", "ko")
	if err != nil {
		t.Fatalf("Recommend returned error: %v", err)
	}
	if len(res.Styles) != 2 || res.Styles[0].ID != "m_02" {
		t.Fatalf("styles = %+v", res.Styles)
	}
	if res.Comment != "둘 다 잘 어울립니다" {
		t.Fatalf("comment = %q", res.Comment)
	}
}

func TestRecommendUsesCachedAnalysisByFileID(t *testing.T) {
	fake := &fakeAdapter{
		analysis:  domain.AnalysisResult{FaceShape: "둥근형", SkinTone: "웜톤", HairLength: "Short", HairTexture: "직모", HairColor: "Brown", FeatureSummary: "테스트"},
		recommend: genai.Recommendation{StyleIDs: []string{"m_01"}, Comment: "ok"},
	}
	svc, _ := newTestService(t, fake)

	analysis, err := svc.Analyze(context.Background(), []byte("portrait"), "jpg")
	if err != nil {
		t.Fatalf("Analyze returned error: %v", err)
	}
	if analysis.FileID == "" {
		t.Fatal("Analyze did not assign a file id")
	}

	_, err = svc.Recommend(context.Background(), domain.AnalysisResult{FileID: analysis.FileID}, "male", "ko")
	if err != nil {
		t.Fatalf("Recommend returned error: %v", err)
	}
	if len(fake.analyzed) != 1 || fake.analyzed[0].FaceShape != "둥근형" {
		t.Fatalf("adapter saw analysis %+v, want cached one", fake.analyzed)
	}
}

func TestQuickFittingFallsBackToUploadURL(t *testing.T) {
	fake := &fakeAdapter{editFail: &genai.EditFailure{Reason: "no_inline_image"}}
	svc, uploads := newTestService(t, fake)
	src := uploadSource(t, uploads)

	url, err := svc.QuickFitting(context.Background(), src.Name, "댄디컷")
	if err != nil {
		t.Fatalf("QuickFitting returned error: %v", err)
	}
	if url != src.URL {
		t.Fatalf("url = %q, want original upload %q", url, src.URL)
	}
}

func TestParseScene(t *testing.T) {
	for _, valid := range []string{"studio", "Outdoor", " runway "} {
		if _, err := ParseScene(valid); err != nil {
			t.Fatalf("ParseScene(%q) returned error: %v", valid, err)
		}
	}
	if _, err := ParseScene("beach"); err == nil {
		t.Fatal("ParseScene accepted an unknown scene")
	}
}
