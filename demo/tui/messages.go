package tui

import "time"

// Messages for the tea program (polling-based)

// StatusUpdateMsg is sent when we receive run status from the API
type StatusUpdateMsg struct {
	Status *StatusResponse
	Err    error
}

// TickMsg is sent periodically to trigger polling
type TickMsg struct {
	Time time.Time
}

// RunStartedMsg is sent when the run has been submitted
type RunStartedMsg struct {
	StoryID string
	Err     error
}
