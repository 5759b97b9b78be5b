package story

import (
	"strings"

	"mangabeat/captions"
)

const lyricSpeaker = "♪"

// buildPanelLockedCaptions lays lyric lines onto the panel grid without
// any audio alignment: each panel's clip window gets an even share of the
// lines, with a margin of a tenth of the clip duration trimmed off both
// ends so text never straddles a cut. Words inside a line are spread
// evenly for the karaoke fill.
func buildPanelLockedCaptions(lines []string, clipCount, clipDurationMs, videoDurationMs int) []captions.CaptionSegment {
	if len(lines) == 0 || clipCount < 1 || clipDurationMs < 1 {
		return nil
	}

	linesPerPanel := len(lines) / clipCount
	if linesPerPanel < 1 {
		linesPerPanel = 1
	}
	margin := clipDurationMs / 10

	var segments []captions.CaptionSegment
	for pi := 0; pi < clipCount; pi++ {
		startLine := pi * linesPerPanel
		if startLine >= len(lines) {
			break
		}
		endLine := startLine + linesPerPanel
		if endLine > len(lines) {
			endLine = len(lines)
		}
		group := lines[startLine:endLine]

		panelStart := pi * clipDurationMs
		if panelStart >= videoDurationMs {
			break
		}
		panelEnd := (pi + 1) * clipDurationMs
		if panelEnd > videoDurationMs {
			panelEnd = videoDurationMs
		}

		capStart := panelStart + margin
		capEnd := panelEnd - margin
		if capEnd <= capStart {
			continue
		}

		lineDuration := (capEnd - capStart) / len(group)
		for li, line := range group {
			words := strings.Fields(line)
			if len(words) == 0 {
				continue
			}
			lineStart := capStart + li*lineDuration
			lineEnd := lineStart + lineDuration

			wordDuration := (lineEnd - lineStart) / len(words)
			segs := make([]captions.WordSegment, 0, len(words))
			for wi, w := range words {
				ws := lineStart + wi*wordDuration
				we := ws + wordDuration
				if wi == len(words)-1 {
					we = lineEnd
				}
				segs = append(segs, captions.WordSegment{Text: w, StartMs: ws, EndMs: we})
			}

			segments = append(segments, captions.CaptionSegment{
				Text:    line,
				StartMs: lineStart,
				EndMs:   lineEnd,
				Speaker: lyricSpeaker,
				Words:   segs,
			})
		}
	}
	return segments
}
