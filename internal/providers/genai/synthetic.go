package genai

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"image"
	"image/color"
	"image/draw"
	"image/png"

	"server/internal/domain"
)

// Synthetic mode backs every operation when no API key is configured. The
// output is deterministic for a given input so tests and local demos see
// stable results without any network traffic.

var syntheticFaceShapes = []string{"계란형", "둥근형", "각진형", "긴형", "하트형"}
var syntheticSkinTones = []string{"웜톤", "쿨톤", "중성톤"}

func syntheticAnalysis(img SourceImage) domain.AnalysisResult {
	seed := deterministicSeed(img.Data)
	return domain.AnalysisResult{
		FaceShape:      syntheticFaceShapes[seed%uint64(len(syntheticFaceShapes))],
		SkinTone:       syntheticSkinTones[(seed>>8)%uint64(len(syntheticSkinTones))],
		HairLength:     "Medium",
		HairTexture:    "직모",
		HairColor:      "Black",
		FeatureSummary: "균형 잡힌 이목구비의 인상입니다.",
	}
}

// syntheticEdit renders a flat portrait-ratio PNG whose color derives from
// the instruction, so different edits are visually distinguishable.
func syntheticEdit(img SourceImage, instruction string) []byte {
	seed := deterministicSeed(append([]byte(instruction), img.Data...))
	const w, h = 400, 600
	canvas := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(colorFromSeed(seed)), image.Point{}, draw.Src)

	// A darker band near the bottom marks the frame as synthetic output.
	band := image.Rect(0, h-40, w, h)
	draw.Draw(canvas, band, image.NewUniform(color.RGBA{30, 30, 30, 255}), image.Point{}, draw.Src)

	var buf bytes.Buffer
	if err := png.Encode(&buf, canvas); err != nil {
		return nil
	}
	return buf.Bytes()
}

func deterministicSeed(data []byte) uint64 {
	sum := sha256.Sum256(data)
	return binary.BigEndian.Uint64(sum[:8])
}

func colorFromSeed(seed uint64) color.RGBA {
	return color.RGBA{
		R: uint8(96 + seed%128),
		G: uint8(96 + (seed>>16)%128),
		B: uint8(96 + (seed>>32)%128),
		A: 255,
	}
}
