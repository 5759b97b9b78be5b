package story

// EventKind identifies a streaming animation event.
type EventKind int

const (
	EventStart EventKind = iota
	EventTTSProgress
	EventAlignProgress
	EventVideoProgress
	EventMusicProgress
	EventLyricsProgress
	EventCaptionProgress
	EventCompose
	EventComplete
	EventError
)

var eventKindNames = map[EventKind]string{
	EventStart:           "start",
	EventTTSProgress:     "tts_progress",
	EventAlignProgress:   "align_progress",
	EventVideoProgress:   "video_progress",
	EventMusicProgress:   "music_progress",
	EventLyricsProgress:  "lyrics_progress",
	EventCaptionProgress: "caption_progress",
	EventCompose:         "compose",
	EventComplete:        "complete",
	EventError:           "error",
}

func (k EventKind) String() string {
	if name, ok := eventKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Event is emitted over the animation channel as pipeline stages advance.
type Event struct {
	Kind      EventKind
	StoryID   string
	ClipIndex int
	Total     int
	Message   string
	Result    *Result
}
