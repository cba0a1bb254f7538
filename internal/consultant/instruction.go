package consultant

import (
	"fmt"
	"strings"
)

// Instruction builders compose one natural-language edit instruction per
// slot. Every instruction carries the identity constraints; lightweight
// image models drop constraints that come after long prose, so the edit
// itself always comes first.

const (
	constraintIdentity  = "Keep the person's face, identity, facial features and expression exactly the same"
	constraintColor     = "Keep the current hair color unless the style explicitly specifies a different color"
	constraintAccessory = "Keep glasses, earrings and other accessories unchanged"
	constraintPhoto     = "The result must look like a real photograph of the same person"
)

func joinInstruction(edit string, constraints ...string) string {
	parts := make([]string, 0, len(constraints)+1)
	parts = append(parts, strings.TrimSpace(edit))
	for _, c := range constraints {
		if c != "" {
			parts = append(parts, c)
		}
	}
	return strings.Join(parts, ". ") + "."
}

// FittingInstruction asks for a straight restyle of the portrait.
func FittingInstruction(stylePrompt string) string {
	return joinInstruction(
		fmt.Sprintf("Change the hairstyle of the person in this image to: %s", stylePrompt),
		constraintIdentity, constraintColor, constraintAccessory, constraintPhoto,
	)
}

var timeLapseGrowth = map[string]string{
	"1month":  "about 2 centimeters of natural regrowth, the shape slightly grown out but still recognizable",
	"3months": "clearly grown out, roughly 5 centimeters longer, the original shape softening",
	"1year":   "fully grown out after a year, noticeably longer hair that has outgrown the original cut",
}

// TimeLapseInstruction renders one growth stage of a style. Slots outside
// the known plan fall back to the 1month wording.
func TimeLapseInstruction(styleName, slot string) string {
	growth, ok := timeLapseGrowth[slot]
	if !ok {
		growth = timeLapseGrowth["1month"]
	}
	return joinInstruction(
		fmt.Sprintf("Show how the hairstyle %q on the person in this image would look after growing out: %s", styleName, growth),
		constraintIdentity,
		"Only the hair length and shape change with growth, nothing else",
		constraintColor, constraintAccessory, constraintPhoto,
	)
}

var angleViews = map[string]string{
	"front": "seen directly from the front",
	"left":  "seen from the left side in profile",
	"right": "seen from the right side in profile",
	"back":  "seen from behind, showing the back of the hairstyle",
}

// AngleInstruction renders one viewpoint of the restyled person.
func AngleInstruction(styleName, slot string) string {
	view, ok := angleViews[slot]
	if !ok {
		view = angleViews["front"]
	}
	return joinInstruction(
		fmt.Sprintf("Render the person in this image with the hairstyle %q, %s", styleName, view),
		"This must be the same person and the same hairstyle in every respect, only the camera angle differs",
		"Do not change the hair length or volume and do not add any accessories",
		constraintIdentity, constraintColor, constraintPhoto,
	)
}

var sceneSettings = map[Scene]string{
	SceneStudio:  "a professional photo studio with soft key lighting and a plain backdrop",
	SceneOutdoor: "an outdoor location with natural daylight and a softly blurred background",
	SceneRunway:  "a fashion runway with dramatic spotlights and an audience in the dark background",
}

var posePrompts = []string{
	"a relaxed head-and-shoulders portrait looking at the camera",
	"a three-quarter view with a slight smile",
	"looking over one shoulder toward the camera",
	"a candid laughing moment",
	"a confident pose with the chin slightly raised",
	"a side profile highlighting the hairline and silhouette",
}

// PoseInstruction renders one frame of a photoshoot. index addresses
// PoseSlots positionally.
func PoseInstruction(styleName string, scene Scene, index int) string {
	setting, ok := sceneSettings[scene]
	if !ok {
		setting = sceneSettings[SceneStudio]
	}
	pose := posePrompts[0]
	if index >= 0 && index < len(posePrompts) {
		pose = posePrompts[index]
	}
	return joinInstruction(
		fmt.Sprintf("Create a professional photoshoot image of the person in this photo with the hairstyle %q, in %s, posing as %s", styleName, setting, pose),
		constraintIdentity, constraintColor, constraintPhoto,
	)
}

// appendSeed attaches an advisory repeatability hint. The capability gives
// no hard determinism guarantee; the hint just nudges related slots toward
// a consistent rendition.
func appendSeed(instruction string, seed *int64) string {
	if seed == nil {
		return instruction
	}
	return fmt.Sprintf("%s Use generation seed %d for a consistent rendition.", instruction, *seed)
}
