package consultant

import (
	"fmt"
	"strings"
)

// Slot names are part of the HTTP contract: batch responses key generated
// image URLs by these exact strings, in this exact order.

const SlotResult = "result"

// TimeLapseSlots orders the growth stages of a time-change request.
var TimeLapseSlots = []string{"1month", "3months", "1year"}

// AngleSlots orders the viewpoints of a multi-angle request.
var AngleSlots = []string{"front", "left", "right", "back"}

// PoseSlots orders the frames of a photoshoot request.
var PoseSlots = []string{"pose_1", "pose_2", "pose_3", "pose_4", "pose_5", "pose_6"}

// Scene selects the photoshoot setting.
type Scene string

const (
	SceneStudio  Scene = "studio"
	SceneOutdoor Scene = "outdoor"
	SceneRunway  Scene = "runway"
)

// ParseScene validates a client-supplied scene type.
func ParseScene(s string) (Scene, error) {
	switch Scene(strings.ToLower(strings.TrimSpace(s))) {
	case SceneStudio:
		return SceneStudio, nil
	case SceneOutdoor:
		return SceneOutdoor, nil
	case SceneRunway:
		return SceneRunway, nil
	}
	return "", fmt.Errorf("unknown scene type %q", s)
}
