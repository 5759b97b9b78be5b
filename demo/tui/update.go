package tui

import (
	"errors"

	tea "github.com/charmbracelet/bubbletea"
)

// Update implements tea.Model interface
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)
	case RunStartedMsg:
		return m.handleRunStarted(msg)
	case StatusUpdateMsg:
		return m.handleStatusUpdate(msg)
	case TickMsg:
		return m.handleTick()
	}
	return m, nil
}

// handleKeyPress processes keyboard input
func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "d", "D":
		if m.State == StateIdle {
			m.State = StateStarting
			m = m.AddLog("Submitting music video run...")
			return m, startRun(m.Client, m.Request)
		}
	}
	return m, nil
}

// handleRunStarted processes the submission response
func (m Model) handleRunStarted(msg RunStartedMsg) (tea.Model, tea.Cmd) {
	if msg.Err != nil {
		m.State = StateError
		m.Err = msg.Err
		return m, nil
	}
	m.StoryID = msg.StoryID
	m.State = StateRunning
	m = m.AddLog("Run started with story id " + msg.StoryID)
	return m, pollStatus(m.Client, m.StoryID)
}

// handleStatusUpdate syncs local state from the polled status
func (m Model) handleStatusUpdate(msg StatusUpdateMsg) (tea.Model, tea.Cmd) {
	if msg.Err != nil {
		m.Connected = false
		return m, nil
	}
	m.Connected = true

	status := msg.Status
	if status.Message != "" && status.Message != m.Message {
		m = m.AddLog(status.Message)
	}
	m.Message = status.Message

	switch status.State {
	case "complete":
		if m.State != StateComplete {
			m = m.AddLog("Animation complete")
		}
		m.State = StateComplete
		m.Result = status.Result
	case "error":
		m.State = StateError
		m.Err = errors.New(status.Error)
	}
	return m, nil
}

// handleTick polls the API while a run is in flight
func (m Model) handleTick() (tea.Model, tea.Cmd) {
	if m.StoryID == "" || m.State == StateComplete || m.State == StateError {
		return m, tickCmd()
	}
	return m, tea.Batch(pollStatus(m.Client, m.StoryID), tickCmd())
}
