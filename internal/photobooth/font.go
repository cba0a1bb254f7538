package photobooth

import (
	"image"
	"os"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// fontCandidates lists on-disk faces in preference order. Containers based
// on common distro images carry at least one of these; when none resolve
// the fixed-size basicfont keeps the footer legible.
var fontCandidates = []string{
	"/usr/share/fonts/truetype/dejavu/DejaVuSans-Bold.ttf",
	"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/truetype/noto/NotoSans-Regular.ttf",
	"/usr/share/fonts/truetype/liberation/LiberationSans-Regular.ttf",
	"/System/Library/Fonts/Supplemental/Arial.ttf",
}

func loadFace(size float64) font.Face {
	for _, path := range fontCandidates {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		parsed, err := opentype.Parse(data)
		if err != nil {
			continue
		}
		face, err := opentype.NewFace(parsed, &opentype.FaceOptions{
			Size:    size,
			DPI:     72,
			Hinting: font.HintingFull,
		})
		if err != nil {
			continue
		}
		return face
	}
	return basicfont.Face7x13
}

// drawCenteredText draws text horizontally centered at baseline y.
func drawCenteredText(dst *image.RGBA, face font.Face, text string, centerX, baselineY int, col image.Image) {
	width := font.MeasureString(face, text)
	d := &font.Drawer{
		Dst:  dst,
		Src:  col,
		Face: face,
		Dot: fixed.Point26_6{
			X: fixed.I(centerX) - width/2,
			Y: fixed.I(baselineY),
		},
	}
	d.DrawString(text)
}
