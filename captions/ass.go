package captions

import (
	"fmt"
	"strings"
)

const (
	assFontName = "Noto Sans"
	assFontSize = 56

	// BGR hex: gold sweep over white base
	assPrimaryColour   = "&H0000D7FF"
	assSecondaryColour = "&H00FFFFFF"
	assOutlineColour   = "&H00000000"
	assBackColour      = "&H80000000"
)

// GenerateASS renders caption segments as an ASS script with per-word
// karaoke sweep tags. PlayRes matches the output video so pixel margins
// line up with the burn-in filter.
func GenerateASS(segments []CaptionSegment, width, height int) string {
	var b strings.Builder

	b.WriteString("[Script Info]\n")
	b.WriteString("Title: mangabeat captions\n")
	b.WriteString("ScriptType: v4.00+\n")
	fmt.Fprintf(&b, "PlayResX: %d\n", width)
	fmt.Fprintf(&b, "PlayResY: %d\n", height)
	b.WriteString("WrapStyle: 0\n")
	b.WriteString("\n")
	b.WriteString("[V4+ Styles]\n")
	b.WriteString("Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, OutlineColour, BackColour, Bold, Italic, Underline, StrikeOut, ScaleX, ScaleY, Spacing, Angle, BorderStyle, Outline, Shadow, Alignment, MarginL, MarginR, MarginV, Encoding\n")
	fmt.Fprintf(&b, "Style: Karaoke,%s,%d,%s,%s,%s,%s,-1,0,0,0,100,100,0,0,1,3,1,2,60,60,180,1\n",
		assFontName, assFontSize, assPrimaryColour, assSecondaryColour, assOutlineColour, assBackColour)
	b.WriteString("\n")
	b.WriteString("[Events]\n")
	b.WriteString("Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text\n")

	for _, seg := range segments {
		text := karaokeText(seg)
		fmt.Fprintf(&b, "Dialogue: 0,%s,%s,Karaoke,%s,0,0,0,,%s\n",
			msToASSTime(seg.StartMs), msToASSTime(seg.EndMs), seg.Speaker, text)
	}

	return b.String()
}

// karaokeText builds the event text with a \k sweep tag per word. Segments
// without word timing fall back to plain text.
func karaokeText(seg CaptionSegment) string {
	if len(seg.Words) == 0 {
		return escapeASS(seg.Text)
	}
	var parts []string
	for _, w := range seg.Words {
		cs := (w.EndMs - w.StartMs) / 10
		if cs < 1 {
			cs = 1
		}
		parts = append(parts, fmt.Sprintf("{\\k%d}%s", cs, escapeASS(w.Text)))
	}
	return strings.Join(parts, " ")
}

func escapeASS(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "{", "\\{")
	s = strings.ReplaceAll(s, "}", "\\}")
	s = strings.ReplaceAll(s, "\n", "\\N")
	return s
}

// msToASSTime converts milliseconds to the H:MM:SS.cc timestamp ASS uses.
func msToASSTime(ms int) string {
	if ms < 0 {
		ms = 0
	}
	cs := ms / 10
	return fmt.Sprintf("%d:%02d:%02d.%02d", cs/360000, cs/6000%60, cs/100%60, cs%100)
}
