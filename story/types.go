package story

import (
	"strings"

	"mangabeat/manga"
	"mangabeat/media"
)

// DialogueLine is one panel's spoken line, parsed from "Speaker: text".
type DialogueLine struct {
	Speaker    string `json:"speaker"`
	Text       string `json:"text"`
	PanelIndex int    `json:"panel_index"`
}

// ParseDialogue splits a panel dialogue string into speaker and text.
// "Aiko: hello" yields speaker "Aiko"; a line without a speaker prefix
// keeps the whole string as text. Empty dialogue returns nil.
func ParseDialogue(dialogue string, panelIndex int) *DialogueLine {
	d := strings.TrimSpace(dialogue)
	if d == "" {
		return nil
	}
	if idx := strings.Index(d, ":"); idx > 0 {
		text := strings.TrimSpace(d[idx+1:])
		if text != "" {
			return &DialogueLine{
				Speaker:    strings.TrimSpace(d[:idx]),
				Text:       text,
				PanelIndex: panelIndex,
			}
		}
	}
	return &DialogueLine{Text: d, PanelIndex: panelIndex}
}

// ClipResult records one panel animation attempt. A failed attempt keeps
// its intended duration with an empty VideoPath.
type ClipResult struct {
	VideoPath       string  `json:"video_path"`
	DurationSeconds float64 `json:"duration_seconds"`
	PanelIndex      int     `json:"panel_index"`
}

// DialogueRequest animates panels with spoken dialogue, per-word karaoke
// captions, and optional background music mixed under the voices.
type DialogueRequest struct {
	StoryID string        `json:"story_id,omitempty"`
	Panels  []manga.Panel `json:"panels"`
	// Personas maps speaker name to a voice description used when a voice
	// is first designed for that speaker.
	Personas map[string]string `json:"personas,omitempty"`
	Language string            `json:"language,omitempty"`
	// MusicPath, when set, is mixed under the dialogue on the final video.
	MusicPath   string  `json:"music_path,omitempty"`
	MusicVolume float64 `json:"music_volume,omitempty"`
	// ClipDuration in seconds; zero estimates per panel from the dialogue.
	ClipDuration    int  `json:"clip_duration,omitempty"`
	DisableCaptions bool `json:"disable_captions,omitempty"`
}

// MusicRequest animates panels into a music video: a generated song with
// panel-locked lyric captions replaces the clips' audio.
type MusicRequest struct {
	StoryID string        `json:"story_id,omitempty"`
	Panels  []manga.Panel `json:"panels"`
	Lyrics  string        `json:"lyrics"`
	// StyleTags is a comma-separated list of global music style tags.
	StyleTags     string     `json:"style_tags,omitempty"`
	VocalStyle    string     `json:"vocal_style,omitempty"`
	NegativeTags  string     `json:"negative_tags,omitempty"`
	BPM           int        `json:"bpm,omitempty"`
	SectionStyles [][]string `json:"section_styles,omitempty"`
	// ClipDuration in seconds; zero means the default. Must be uniform so
	// lyric sections stay locked to panel boundaries.
	ClipDuration  int  `json:"clip_duration,omitempty"`
	DisableLyrics bool `json:"disable_lyrics,omitempty"`
}

// Result summarizes a finished story run.
type Result struct {
	StoryID        string                   `json:"story_id"`
	FinalVideoPath string                   `json:"final_video_path"`
	TotalDuration  float64                  `json:"total_duration"`
	ClipCount      int                      `json:"clip_count"`
	ClipsAttempted int                      `json:"clips_attempted"`
	ClipsFailed    int                      `json:"clips_failed"`
	HasAudio       bool                     `json:"has_audio"`
	HasCaptions    bool                     `json:"has_captions"`
	Verification   media.VerificationResult `json:"verification"`
}
