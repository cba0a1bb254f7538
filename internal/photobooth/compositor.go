package photobooth

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"server/internal/domain"
	"server/internal/infra"
	"server/internal/storage"
)

// Strip layout. The canvas is a classic vertical photo strip: three cells
// stacked with even padding and a footer for the caption.
const (
	CellWidth    = 400
	CellHeight   = 500
	Padding      = 20
	FooterHeight = 120

	StripWidth  = CellWidth + 2*Padding
	StripHeight = 3*CellHeight + 4*Padding + FooterHeight
)

var (
	stripBackground = color.RGBA{24, 24, 28, 255}
	cellPlaceholder = color.RGBA{90, 90, 95, 255}
	captionColor    = image.White
)

// Compositor assembles generated fitting images into a photo strip. It is
// fully local: no generation capability is involved, so its output is
// deterministic apart from the date line.
type Compositor struct {
	uploads    *storage.FileStore
	results    *storage.FileStore
	logger     *infra.Logger
	httpClient *http.Client
	titleFace  font.Face
	dateFace   font.Face
	now        func() time.Time
}

func New(uploads, results *storage.FileStore, logger *infra.Logger) *Compositor {
	return &Compositor{
		uploads:    uploads,
		results:    results,
		logger:     logger,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		titleFace:  loadFace(28),
		dateFace:   loadFace(16),
		now:        time.Now,
	}
}

// Compose builds the strip from exactly three image references and stores
// it in the result store, returning the public URL. A reference that cannot
// be resolved or decoded becomes a neutral placeholder cell; only a wrong
// input count or a failed save is an error.
func (c *Compositor) Compose(ctx context.Context, imageURLs []string, styleName string) (string, error) {
	if len(imageURLs) != 3 {
		return "", fmt.Errorf("exactly 3 images required, got %d: %w", len(imageURLs), domain.ErrInvalidInput)
	}

	canvas := image.NewRGBA(image.Rect(0, 0, StripWidth, StripHeight))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(stripBackground), image.Point{}, draw.Src)

	for i, ref := range imageURLs {
		cell := image.Rect(
			Padding,
			Padding*(i+1)+CellHeight*i,
			Padding+CellWidth,
			Padding*(i+1)+CellHeight*(i+1),
		)
		img, err := c.loadImage(ctx, ref)
		if err != nil {
			c.logger.Warn().Err(err).Str("image", ref).Int("cell", i).
				Msg("photobooth: using placeholder cell")
			draw.Draw(canvas, cell, image.NewUniform(cellPlaceholder), image.Point{}, draw.Src)
			continue
		}
		fitted := imaging.Fit(img, CellWidth, CellHeight, imaging.Lanczos)
		offset := image.Pt(
			cell.Min.X+(CellWidth-fitted.Bounds().Dx())/2,
			cell.Min.Y+(CellHeight-fitted.Bounds().Dy())/2,
		)
		draw.Draw(canvas, fitted.Bounds().Add(offset), fitted, image.Point{}, draw.Over)
	}

	c.drawFooter(canvas, styleName)

	var buf bytes.Buffer
	if err := png.Encode(&buf, canvas); err != nil {
		return "", fmt.Errorf("encode strip: %w", err)
	}
	stored, err := c.results.Save(ctx, buf.Bytes(), "png")
	if err != nil {
		return "", fmt.Errorf("store strip: %w", err)
	}
	return stored.URL, nil
}

func (c *Compositor) drawFooter(canvas *image.RGBA, styleName string) {
	footerTop := 3*CellHeight + 4*Padding
	centerX := StripWidth / 2

	title := cases.Title(language.Und).String(styleName)
	drawCenteredText(canvas, c.titleFace, title, centerX, footerTop+50, captionColor)
	drawCenteredText(canvas, c.dateFace, c.now().Format("2006.01.02"), centerX, footerTop+85, captionColor)
}

// loadImage resolves a reference to pixel data. Local references are tried
// against the result store first (strips are almost always built from
// generated fittings), then the upload store; absolute http(s) URLs, such
// as placeholder images from a failed generation, are fetched remotely.
func (c *Compositor) loadImage(ctx context.Context, ref string) (image.Image, error) {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return c.fetchImage(ctx, ref)
	}
	for _, store := range []*storage.FileStore{c.results, c.uploads} {
		name, ok := store.FromURL(ref)
		if !ok || !store.Exists(name) {
			continue
		}
		data, err := store.Read(name)
		if err != nil {
			return nil, err
		}
		img, err := imaging.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", name, err)
		}
		return img, nil
	}
	return nil, fmt.Errorf("image %q: %w", ref, domain.ErrSourceMissing)
}

const maxRemoteImageBytes = 20 << 20

func (c *Compositor) fetchImage(ctx context.Context, url string) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}
	img, err := imaging.Decode(io.LimitReader(resp.Body, maxRemoteImageBytes))
	if err != nil {
		return nil, fmt.Errorf("decode remote %s: %w", url, err)
	}
	return img, nil
}
