package consultant

import (
	"bytes"
	"image"
	"testing"

	"github.com/disintegration/imaging"
)

func encodeJPEG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func TestNormalizeOrientationPassThrough(t *testing.T) {
	// Plain encodes carry no EXIF block, so the bytes must come back
	// untouched rather than re-encoded.
	data := encodeJPEG(t, imaging.New(80, 120, image.White.C))

	once, err := NormalizeOrientation(data)
	if err != nil {
		t.Fatalf("NormalizeOrientation returned error: %v", err)
	}
	if !bytes.Equal(once, data) {
		t.Fatal("bytes changed for an image without an orientation flag")
	}
	twice, err := NormalizeOrientation(once)
	if err != nil {
		t.Fatalf("second NormalizeOrientation returned error: %v", err)
	}
	if !bytes.Equal(twice, once) {
		t.Fatal("normalization is not idempotent")
	}
}

func TestNormalizeOrientationNonImageInput(t *testing.T) {
	data := []byte("not an image at all")
	out, err := NormalizeOrientation(data)
	if err != nil {
		t.Fatalf("NormalizeOrientation returned error: %v", err)
	}
	if !bytes.Equal(out, data) {
		t.Fatal("non-image input was modified")
	}
}

func TestApplyOrientationSwapsDimensions(t *testing.T) {
	img := imaging.New(80, 120, image.White.C)
	cases := []struct {
		orientation int
		wantW       int
		wantH       int
	}{
		{2, 80, 120},
		{3, 80, 120},
		{4, 80, 120},
		{5, 120, 80},
		{6, 120, 80},
		{7, 120, 80},
		{8, 120, 80},
	}
	for _, tc := range cases {
		got := applyOrientation(img, tc.orientation).Bounds()
		if got.Dx() != tc.wantW || got.Dy() != tc.wantH {
			t.Fatalf("orientation %d: got %dx%d, want %dx%d",
				tc.orientation, got.Dx(), got.Dy(), tc.wantW, tc.wantH)
		}
	}
}
