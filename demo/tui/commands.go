package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"mangabeat/story"
)

// pollStatus creates a command to poll the run status
func pollStatus(client *StoryClient, storyID string) tea.Cmd {
	return func() tea.Msg {
		status, err := client.GetStatus(storyID)
		return StatusUpdateMsg{
			Status: status,
			Err:    err,
		}
	}
}

// startRun creates a command to submit the music video run
func startRun(client *StoryClient, req story.MusicRequest) tea.Cmd {
	return func() tea.Msg {
		storyID, err := client.StartMusic(req)
		return RunStartedMsg{StoryID: storyID, Err: err}
	}
}

// tickCmd creates a command that ticks every 500ms for polling
func tickCmd() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg{Time: t}
	})
}
