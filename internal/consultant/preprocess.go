package consultant

import (
	"bytes"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"github.com/rwcarlsen/goexif/exif"
)

// NormalizeOrientation bakes the EXIF orientation flag into the pixel data
// so downstream edits never operate on a sideways portrait. Images without
// an orientation flag (or already upright) are returned unchanged, byte for
// byte, which makes the call idempotent: normalized output carries no flag
// and passes straight through.
func NormalizeOrientation(data []byte) ([]byte, error) {
	meta, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return data, nil
	}
	tag, err := meta.Get(exif.Orientation)
	if err != nil {
		return data, nil
	}
	orientation, err := tag.Int(0)
	if err != nil || orientation <= 1 || orientation > 8 {
		return data, nil
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	img = applyOrientation(img, orientation)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(92)); err != nil {
		return nil, fmt.Errorf("re-encode image: %w", err)
	}
	return buf.Bytes(), nil
}

func applyOrientation(img image.Image, orientation int) image.Image {
	switch orientation {
	case 2:
		return imaging.FlipH(img)
	case 3:
		return imaging.Rotate180(img)
	case 4:
		return imaging.FlipV(img)
	case 5:
		return imaging.Transpose(img)
	case 6:
		return imaging.Rotate270(img)
	case 7:
		return imaging.Transverse(img)
	case 8:
		return imaging.Rotate90(img)
	}
	return img
}
