package consultant

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	cache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/errgroup"

	"server/internal/catalog"
	"server/internal/domain"
	"server/internal/infra"
	"server/internal/providers/genai"
	"server/internal/storage"
)

// Adapter is the slice of the generation capability the orchestrator needs.
// The concrete implementation lives in providers/genai; tests inject fakes.
type Adapter interface {
	AnalyzeFace(ctx context.Context, img genai.SourceImage) domain.AnalysisResult
	RecommendStyles(ctx context.Context, analysis domain.AnalysisResult, candidates []domain.StyleRecord, locale string) genai.Recommendation
	EditImage(ctx context.Context, img genai.SourceImage, instruction string) ([]byte, *genai.EditFailure)
}

const (
	// PlaceholderGenerationFailed stands in for a slot whose generation
	// failed; batch responses still answer 200 with the full slot set.
	PlaceholderGenerationFailed = "https://placehold.co/400x600?text=Generation+Failed"
	// PlaceholderServiceUnavailable stands in for a single fitting that
	// could not be generated at all.
	PlaceholderServiceUnavailable = "https://placehold.co/400x600?text=Fitting+Service+Unavailable"

	slotConcurrency  = 2
	analysisCacheTTL = 30 * time.Minute
)

// Service orchestrates the consulting workflows: it resolves source images
// from the stores, normalizes orientation once per operation, fans slot
// plans out to the adapter with bounded concurrency and persists results.
type Service struct {
	adapter  Adapter
	uploads  *storage.FileStore
	results  *storage.FileStore
	catalog  *catalog.Catalog
	analyses *cache.Cache
	logger   *infra.Logger
}

// RecommendationResult pairs the echoed analysis with resolved style
// records and the consultant's comment.
type RecommendationResult struct {
	Analysis domain.AnalysisResult
	Styles   []domain.StyleRecord
	Comment  string
}

func NewService(adapter Adapter, uploads, results *storage.FileStore, cat *catalog.Catalog, logger *infra.Logger) *Service {
	return &Service{
		adapter:  adapter,
		uploads:  uploads,
		results:  results,
		catalog:  cat,
		analyses: cache.New(analysisCacheTTL, 10*time.Minute),
		logger:   logger,
	}
}

// Analyze stores the uploaded portrait and returns its structured analysis.
// The raw upload is persisted as received; the adapter sees the
// orientation-normalized pixels. Results are cached by file id so a later
// recommend call can reuse them.
func (s *Service) Analyze(ctx context.Context, data []byte, ext string) (domain.AnalysisResult, error) {
	img, err := s.uploads.Save(ctx, data, ext)
	if err != nil {
		return domain.AnalysisResult{}, fmt.Errorf("store upload: %w", err)
	}
	source := s.normalize(data, img.Name)
	analysis := s.adapter.AnalyzeFace(ctx, source)
	analysis.FileID = img.Name
	s.analyses.Set(img.Name, analysis, cache.DefaultExpiration)
	return analysis, nil
}

// Recommend selects up to three styles from the gender-filtered catalog.
// An analysis carrying only a file id is resolved from the cache; the
// selection is never empty while the catalog has records.
func (s *Service) Recommend(ctx context.Context, analysis domain.AnalysisResult, genderFilter, locale string) (RecommendationResult, error) {
	if strings.TrimSpace(analysis.FaceShape) == "" && analysis.FileID != "" {
		if cached, ok := s.analyses.Get(analysis.FileID); ok {
			analysis = cached.(domain.AnalysisResult)
		}
	}
	candidates := s.catalog.FilterGender(genderFilter)
	if len(candidates) == 0 {
		candidates = s.catalog.All()
	}
	if len(candidates) == 0 {
		return RecommendationResult{}, fmt.Errorf("style catalog is empty: %w", domain.ErrNotFound)
	}

	rec := s.adapter.RecommendStyles(ctx, analysis, candidates, locale)
	styles := make([]domain.StyleRecord, 0, len(rec.StyleIDs))
	for _, id := range rec.StyleIDs {
		if style, ok := s.catalog.ByID(id); ok {
			styles = append(styles, style)
		}
	}
	if len(styles) == 0 {
		n := min(3, len(candidates))
		styles = append(styles, candidates[:n]...)
	}
	return RecommendationResult{Analysis: analysis, Styles: styles, Comment: rec.Comment}, nil
}

// Fitting generates a single restyled portrait for a catalog style. A
// failed generation yields the placeholder URL, not an error; only an
// unknown style or a missing source aborts.
func (s *Service) Fitting(ctx context.Context, styleID, userImageRef string) (string, error) {
	style, ok := s.catalog.ByID(styleID)
	if !ok {
		return "", fmt.Errorf("style %q: %w", styleID, domain.ErrNotFound)
	}
	source, err := s.loadSource(userImageRef)
	if err != nil {
		return "", err
	}
	urls := s.runBatch(ctx, source, []slotJob{
		{slot: SlotResult, instruction: FittingInstruction(style.Prompt())},
	}, PlaceholderServiceUnavailable)
	return urls[SlotResult], nil
}

// TimeLapse renders the growth stages of a style. When baseImageURL names
// an already generated fitting, growth continues from that image instead of
// the raw upload.
func (s *Service) TimeLapse(ctx context.Context, userImageRef, styleName, baseImageURL string, seed *int64) (map[string]string, error) {
	ref := userImageRef
	if strings.TrimSpace(baseImageURL) != "" {
		ref = baseImageURL
	}
	source, err := s.loadSource(ref)
	if err != nil {
		return nil, err
	}
	jobs := make([]slotJob, 0, len(TimeLapseSlots))
	for _, slot := range TimeLapseSlots {
		jobs = append(jobs, slotJob{slot: slot, instruction: appendSeed(TimeLapseInstruction(styleName, slot), seed)})
	}
	return s.runBatch(ctx, source, jobs, PlaceholderGenerationFailed), nil
}

// MultiAngle renders the four viewpoints of a restyled person.
func (s *Service) MultiAngle(ctx context.Context, userImageRef, styleName string, seed *int64) (map[string]string, error) {
	source, err := s.loadSource(userImageRef)
	if err != nil {
		return nil, err
	}
	jobs := make([]slotJob, 0, len(AngleSlots))
	for _, slot := range AngleSlots {
		jobs = append(jobs, slotJob{slot: slot, instruction: appendSeed(AngleInstruction(styleName, slot), seed)})
	}
	return s.runBatch(ctx, source, jobs, PlaceholderGenerationFailed), nil
}

// Pose renders a six-frame photoshoot in the given scene. The returned
// slice is always six entries long, in slot order.
func (s *Service) Pose(ctx context.Context, userImageRef, styleName string, scene Scene, seed *int64) ([]string, error) {
	source, err := s.loadSource(userImageRef)
	if err != nil {
		return nil, err
	}
	jobs := make([]slotJob, 0, len(PoseSlots))
	for i, slot := range PoseSlots {
		jobs = append(jobs, slotJob{slot: slot, instruction: appendSeed(PoseInstruction(styleName, scene, i), seed)})
	}
	urls := s.runBatch(ctx, source, jobs, PlaceholderGenerationFailed)
	out := make([]string, 0, len(PoseSlots))
	for _, slot := range PoseSlots {
		out = append(out, urls[slot])
	}
	return out, nil
}

// QuickFitting is the lightweight generate flow: the style is referenced by
// display name and a failed generation falls back to the original upload
// URL so the client always has something to show.
func (s *Service) QuickFitting(ctx context.Context, imageID, styleName string) (string, error) {
	name, ok := s.uploads.FromURL(imageID)
	if !ok || !s.uploads.Exists(name) {
		return "", fmt.Errorf("upload %q: %w", imageID, domain.ErrSourceMissing)
	}
	source, err := s.loadFrom(s.uploads, name)
	if err != nil {
		return "", err
	}
	prompt := styleName
	if style, found := s.catalog.ByName(styleName); found {
		prompt = style.Prompt()
	}
	data, fail := s.adapter.EditImage(ctx, source, FittingInstruction(prompt))
	if fail != nil {
		s.logger.Warn().Err(fail).Str("image_id", name).Str("style", styleName).
			Msg("consultant: quick fitting failed; falling back to original upload")
		return s.uploads.URL(name), nil
	}
	img, err := s.results.Save(ctx, data, "png")
	if err != nil {
		return "", fmt.Errorf("store result: %w", err)
	}
	return img.URL, nil
}

type slotJob struct {
	slot        string
	instruction string
}

// runBatch executes the slot plan with bounded concurrency. Per-slot
// failures become the placeholder URL; the returned map always covers every
// slot in the plan.
func (s *Service) runBatch(ctx context.Context, source genai.SourceImage, jobs []slotJob, placeholder string) map[string]string {
	results := make([]string, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(slotConcurrency)
	for i, job := range jobs {
		i, job := i, job
		g.Go(func() error {
			data, fail := s.adapter.EditImage(gctx, source, job.instruction)
			if fail != nil {
				s.logger.Warn().Err(fail).Str("slot", job.slot).
					Msg("consultant: slot generation failed; using placeholder")
				results[i] = placeholder
				return nil
			}
			img, err := s.results.Save(gctx, data, "png")
			if err != nil {
				s.logger.Error().Err(err).Str("slot", job.slot).
					Msg("consultant: could not persist generated image")
				results[i] = placeholder
				return nil
			}
			results[i] = img.URL
			return nil
		})
	}
	g.Wait()

	out := make(map[string]string, len(jobs))
	for i, job := range jobs {
		out[job.slot] = results[i]
	}
	return out
}

// loadSource resolves a client-supplied reference (public URL or bare file
// name) against the upload store first, then the result store, and returns
// the orientation-normalized image. An unresolvable reference is a client
// error that aborts the whole operation.
func (s *Service) loadSource(ref string) (genai.SourceImage, error) {
	if name, ok := s.uploads.FromURL(ref); ok && s.uploads.Exists(name) {
		return s.loadFrom(s.uploads, name)
	}
	if name, ok := s.results.FromURL(ref); ok && s.results.Exists(name) {
		return s.loadFrom(s.results, name)
	}
	return genai.SourceImage{}, fmt.Errorf("resolve image %q: %w", ref, domain.ErrSourceMissing)
}

func (s *Service) loadFrom(store *storage.FileStore, name string) (genai.SourceImage, error) {
	data, err := store.Read(name)
	if err != nil {
		return genai.SourceImage{}, fmt.Errorf("read image %q: %w", name, domain.ErrSourceMissing)
	}
	return s.normalize(data, name), nil
}

// normalize bakes the EXIF orientation in exactly once per load. A decode
// failure is not fatal; the adapter simply sees the original bytes.
func (s *Service) normalize(data []byte, name string) genai.SourceImage {
	normalized, err := NormalizeOrientation(data)
	if err != nil {
		s.logger.Warn().Err(err).Str("file", name).
			Msg("consultant: orientation normalization failed; using original bytes")
		return genai.SourceImage{Data: data, MIMEType: mimeForName(name)}
	}
	mime := mimeForName(name)
	if len(normalized) != len(data) {
		// Rotated images are re-encoded as JPEG regardless of input type.
		mime = "image/jpeg"
	}
	return genai.SourceImage{Data: normalized, MIMEType: mime}
}

func mimeForName(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	case ".gif":
		return "image/gif"
	default:
		return "image/jpeg"
	}
}
