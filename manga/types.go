package manga

// Panel is one generated illustration, the seed image for one video clip.
// Index is 1-based to match user-facing progress reporting.
type Panel struct {
	Index     int    `json:"index"`
	StoryBeat string `json:"story_beat"`
	Dialogue  string `json:"dialogue,omitempty"`
	ImagePath string `json:"image_path"`
	ImageURL  string `json:"image_url"`
}

// CharacterRef names a character and points at its reference sheet image.
type CharacterRef struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// Request describes one manga generation run.
type Request struct {
	Characters []CharacterRef `json:"characters"`
	StoryBeats []string       `json:"story_beats"`
	Dialogues  []string       `json:"dialogues,omitempty"`
	Style      string         `json:"style,omitempty"`
}

// ReferenceImage is one labeled image passed to the image generator.
type ReferenceImage struct {
	Label    string
	Data     []byte
	MIMEType string
}

// EventKind identifies a streaming generation event.
type EventKind int

const (
	EventStart EventKind = iota
	EventProgress
	EventPanel
	EventPanelError
	EventComplete
	EventError
)

// Event is emitted over the generation channel as panels complete.
type Event struct {
	Kind           EventKind
	MangaID        string
	PanelIndex     int
	TotalPanels    int
	Message        string
	Panel          *Panel
	ElapsedSeconds float64
}
