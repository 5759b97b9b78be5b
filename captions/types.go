package captions

// WordSegment is a single word with its spoken time range in milliseconds.
type WordSegment struct {
	Text    string `json:"text"`
	StartMs int    `json:"start_ms"`
	EndMs   int    `json:"end_ms"`
}

// CaptionSegment is a phrase-level caption with word-level timing for
// karaoke rendering. When Words is non-empty the segment span equals the
// first word's start and the last word's end.
type CaptionSegment struct {
	Text    string        `json:"text"`
	StartMs int           `json:"start_ms"`
	EndMs   int           `json:"end_ms"`
	Speaker string        `json:"speaker,omitempty"`
	Words   []WordSegment `json:"words,omitempty"`
}

// AlignedUnit is one unit returned by a forced aligner: a word for
// space-delimited languages, a single character for Chinese.
type AlignedUnit struct {
	Text     string  `json:"text"`
	StartSec float64 `json:"start_sec"`
	EndSec   float64 `json:"end_sec"`
}
