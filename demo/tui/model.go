package tui

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"mangabeat/story"
)

// State represents the application state machine
type State string

const (
	StateIdle     State = "idle"
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateComplete State = "complete"
	StateError    State = "error"
)

// StatusResponse is the JSON response from the animation API
type StatusResponse struct {
	StoryID string        `json:"story_id"`
	Mode    string        `json:"mode"`
	State   string        `json:"state"`
	Message string        `json:"message,omitempty"`
	Result  *story.Result `json:"result,omitempty"`
	Error   string        `json:"error,omitempty"`
}

// Model represents the TUI client state (thin client)
type Model struct {
	Client  *StoryClient
	Request story.MusicRequest

	// Local UI state (synced from the API)
	StoryID string
	State   State
	Message string
	Result  *story.Result
	Err     error

	// Connection status
	Connected bool

	Logs []string
}

// NewModel creates a new TUI model
func NewModel(apiURL string, req story.MusicRequest) Model {
	return Model{
		Client:  NewStoryClient(apiURL),
		Request: req,
		State:   StateIdle,
		Logs:    make([]string, 0),
	}
}

// Init implements tea.Model interface
func (m Model) Init() tea.Cmd {
	return tickCmd()
}

// AddLog appends a timestamped log line, keeping the last ten
func (m Model) AddLog(msg string) Model {
	m.Logs = append(m.Logs, fmt.Sprintf("[%s] %s", time.Now().Format("15:04:05"), msg))
	if len(m.Logs) > 10 {
		m.Logs = m.Logs[len(m.Logs)-10:]
	}
	return m
}

// getStateText returns the appropriate state message
func (m Model) getStateText() string {
	switch m.State {
	case StateIdle:
		return HighlightStyle.Render("👋 Ready to start!") + "\n\n" +
			InfoStyle.Render("Press 'd' to animate the demo story")
	case StateStarting:
		return StatusStyle.Render("📤 Submitting music video run...")
	case StateRunning:
		text := fmt.Sprintf("⏳ Animating story %s...", m.StoryID)
		if m.Message != "" {
			text += " " + m.Message
		}
		return StatusStyle.Render(text)
	case StateComplete:
		return HighlightStyle.Render("✅ COMPLETE")
	case StateError:
		errMsg := "Unknown error"
		if m.Err != nil {
			errMsg = m.Err.Error()
		}
		return ErrorStyle.Render(fmt.Sprintf("❌ Error: %v", errMsg))
	default:
		return ""
	}
}
