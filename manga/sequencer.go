package manga

import (
	"fmt"
	"strings"

	"mangabeat/config"
)

// styleDescriptions map a style name to the rendering instruction embedded
// in every panel prompt. Panels are video keyframes, so each style insists
// on clean illustrated output.
var styleDescriptions = map[string]string{
	"manga":   "ILLUSTRATED anime art style - hand-drawn appearance with clean linework, expressive anime eyes, FULL COLOR vibrant palette, cel-shaded lighting. NOT a photograph. NOT photorealistic. Must look like anime illustration.",
	"webtoon": "ILLUSTRATED Korean webtoon style - hand-drawn with soft pastel colors, clean digital illustration, emotional expressions. NOT a photograph.",
	"chibi":   "ILLUSTRATED chibi/super-deformed style - hand-drawn with oversized heads, cute pastel palette, clean cartoon appearance. NOT a photograph.",
	"ghibli":  "ILLUSTRATED Studio Ghibli style - hand-painted watercolor aesthetics, warm palette, detailed painted backgrounds. NOT a photograph.",
}

// ValidateRequest rejects out-of-range requests before any generation
// call. No clamping: a bad panel or character count is a caller error.
func ValidateRequest(req Request) error {
	panels := len(req.StoryBeats)
	if panels < config.MinPanelCount || panels > config.MaxPanelCount {
		return fmt.Errorf("panel count must be %d-%d, got %d", config.MinPanelCount, config.MaxPanelCount, panels)
	}
	if len(req.Characters) == 0 {
		return fmt.Errorf("at least 1 character required")
	}
	if len(req.Characters) > config.MaxCharacterCount {
		return fmt.Errorf("maximum %d characters per manga, got %d", config.MaxCharacterCount, len(req.Characters))
	}
	return nil
}

// CameraInstruction derives the camera direction from keywords in the
// story beat. Deterministic substring classification, not a model call.
func CameraInstruction(storyBeat string) string {
	beat := strings.ToLower(storyBeat)
	switch {
	case strings.Contains(beat, "close-up") || strings.Contains(beat, "closeup"):
		return "CAMERA: Tight close-up shot. Fill 80% of frame with subject."
	case strings.Contains(beat, "wide shot") || strings.Contains(beat, "wide-shot"):
		return "CAMERA: Wide establishing shot. Subject takes 30-40% of frame."
	case strings.Contains(beat, "medium shot"):
		return "CAMERA: Medium shot from waist up. Subject takes 50-60% of frame."
	case strings.Contains(beat, "low angle"):
		return "CAMERA: Low angle looking up at subject."
	case strings.Contains(beat, "high angle") || strings.Contains(beat, "bird"):
		return "CAMERA: High angle looking down."
	default:
		return "CAMERA: Dynamic angle for this moment."
	}
}

// maxDescriptionLen bounds character descriptions so panel prompts stay a
// reasonable size.
const maxDescriptionLen = 400

// TruncateDescription cuts an over-long character description at the last
// sentence boundary before the limit.
func TruncateDescription(desc string) string {
	runes := []rune(desc)
	if len(runes) <= maxDescriptionLen {
		return desc
	}
	cut := string(runes[:maxDescriptionLen])
	if idx := strings.LastIndex(cut, "."); idx > 0 {
		return cut[:idx] + "."
	}
	return cut
}

// BuildPanelPrompt assembles the generation prompt for one panel. The
// prompt carries the camera direction, position-dependent progression
// text, and, when a previous panel exists, both a style-continuity clause
// and an explicit angle-change clause.
func BuildPanelPrompt(characterNames []string, storyBeat, style string, panelIndex, totalPanels int, hasPreviousPanel bool, descriptions map[string]string) string {
	camera := CameraInstruction(storyBeat)
	styleDesc, ok := styleDescriptions[style]
	if !ok {
		styleDesc = styleDescriptions["manga"]
	}

	charLine := func(idx int, name string) string {
		line := fmt.Sprintf("- [IMAGE %d]: %s - Use this EXACT design for %s", idx, name, name)
		if desc := descriptions[name]; desc != "" {
			line += "\n  APPEARANCE: " + desc
		}
		return line
	}

	var charSection string
	if len(characterNames) == 1 {
		charSection = "CHARACTER REFERENCES:\n" + charLine(1, characterNames[0])
	} else {
		charSection = "CHARACTER REFERENCES (2 characters in this scene):\n" +
			charLine(1, characterNames[0]) + "\n" + charLine(2, characterNames[1]) + "\n\n" +
			"CRITICAL: Both characters must appear as described in the story beat. Match each character to their reference image AND appearance description by name."
	}

	var progression string
	switch {
	case panelIndex == 0:
		progression = "OPENING SHOT - Establish characters and setting.\nTRANSITION: This is the first shot, set the scene clearly."
	case panelIndex == totalPanels-1:
		progression = "FINAL SHOT - Payoff moment, emotional peak.\nTRANSITION: Close on character reaction or triumphant pose."
	case panelIndex == 1:
		progression = fmt.Sprintf("Shot %d/%d - Build momentum.\nTRANSITION: Cut to a different angle (if previous was wide, go medium or close-up).", panelIndex+1, totalPanels)
	default:
		progression = fmt.Sprintf("Shot %d/%d - Rising action.\nTRANSITION: Camera cut - change angle significantly from previous shot.", panelIndex+1, totalPanels)
	}

	continuity := ""
	if hasPreviousPanel {
		prevImageNum := len(characterNames) + 1
		continuity = fmt.Sprintf(`
VISUAL CONTINUITY (MANDATORY - HIGHEST PRIORITY):
- [IMAGE %d] is the PREVIOUS PANEL - COPY ITS ART STYLE EXACTLY
- SAME illustration style (if previous is anime drawing, this MUST be anime drawing)
- SAME rendering technique (linework, coloring, shading method)
- SAME environment: season, time of day, lighting, background elements
- DO NOT switch between illustrated and photorealistic - stay ILLUSTRATED

CINEMATIC FLOW (for video animation):
- This panel will be animated as a separate video clip
- Think of this as a CAMERA CUT from the previous shot
- Maintain scene continuity but CHANGE THE CAMERA ANGLE from the previous panel
- Characters should feel like they're in the same moment/scene`, prevImageNum)
	}

	return fmt.Sprintf(`Generate a SINGLE clean cinematic image featuring %s:

%s

ACTION: %s

%s

%s
%s

STYLE: %s

CRITICAL REQUIREMENTS:
- ILLUSTRATED/DRAWN style - NOT photorealistic, NOT a photograph
- Each character design matches their reference image AND their APPEARANCE description EXACTLY
- Characters MUST keep the same hair, clothing, accessories, and features as described above
- NEVER replace a character with a different person or animal - the SAME characters appear in EVERY panel
- Full color, vibrant, cinematic lighting
- This is a VIDEO KEYFRAME - must be clean for animation

========== ABSOLUTE RULES ==========
1. OUTPUT EXACTLY ONE (1) IMAGE - not 2, not 3, not a grid, not a sequence
2. ILLUSTRATED ANIME STYLE - hand-drawn appearance, NOT photorealistic
3. NO panel borders, NO frames, NO comic strip layouts
4. NO speed lines, NO motion blur, NO manga effects
5. NO text, NO speech bubbles, NO captions
========================================

If you generate multiple panels/frames in one image, you have FAILED.
If you generate a photorealistic image, you have FAILED.

Output: EXACTLY ONE clean, full-frame, ILLUSTRATED anime image`,
		strings.Join(characterNames, " and "), charSection, storyBeat, camera, progression, continuity, styleDesc)
}
