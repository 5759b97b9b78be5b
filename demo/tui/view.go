package tui

import (
	"fmt"
	"strings"
)

// View implements tea.Model interface
func (m Model) View() string {
	var b strings.Builder

	// Title
	b.WriteString(TitleStyle.Render("🎬 MangaBeat Demo"))
	b.WriteString("\n\n")

	// Current state
	b.WriteString(m.getStateText())
	b.WriteString("\n\n")

	// Statistics
	if len(m.Request.Panels) > 0 {
		stats := fmt.Sprintf("📊 Panels in story: %d", len(m.Request.Panels))
		b.WriteString(InfoStyle.Render(stats))
		b.WriteString("\n")
	}

	if m.StoryID != "" && !m.Connected && m.State == StateRunning {
		b.WriteString(ErrorStyle.Render("❌ Not connected to animation API"))
		b.WriteString("\n")
	}

	// Logs
	if len(m.Logs) > 0 {
		b.WriteString("\n")
		b.WriteString(InfoStyle.Render("📝 Recent Activity:"))
		b.WriteString("\n")
		for _, logMsg := range m.Logs {
			b.WriteString(InfoStyle.Render("   " + logMsg))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	// Results
	if m.State == StateComplete && m.Result != nil {
		b.WriteString(BoxStyle.Render(m.formatResult()))
		b.WriteString("\n\n")
	}

	// Help text
	if m.State == StateIdle {
		b.WriteString(InfoStyle.Render("Press 'd' to start demo | Press 'q' or Ctrl+C to quit"))
	} else if m.State != StateComplete {
		b.WriteString(InfoStyle.Render("Press 'q' or Ctrl+C to quit"))
	} else {
		b.WriteString(HighlightStyle.Render("Press 'q' or Ctrl+C to exit"))
	}

	return b.String()
}

// formatResult formats the finished run for display
func (m Model) formatResult() string {
	result := m.Result
	var b strings.Builder

	b.WriteString(HighlightStyle.Render("Music Video Result"))
	b.WriteString("\n\n")

	b.WriteString(fmt.Sprintf("Story: %s\n", result.StoryID))
	b.WriteString(fmt.Sprintf("Video: %s\n", StatusStyle.Render(result.FinalVideoPath)))
	b.WriteString(fmt.Sprintf("Duration: %.1fs\n\n", result.TotalDuration))

	b.WriteString(fmt.Sprintf("Clips: %d/%d", result.ClipCount, result.ClipsAttempted))
	if result.ClipsFailed > 0 {
		b.WriteString(ErrorStyle.Render(fmt.Sprintf(" (%d failed)", result.ClipsFailed)))
	}
	b.WriteString("\n")

	if result.HasAudio {
		b.WriteString("Audio: yes\n")
	} else {
		b.WriteString(ErrorStyle.Render("Audio: missing\n"))
	}
	if result.HasCaptions {
		b.WriteString("Captions: yes\n")
	}

	if !result.Verification.Passed {
		b.WriteString("\n")
		b.WriteString(ErrorStyle.Render("Verification issues:"))
		b.WriteString("\n")
		for _, failure := range result.Verification.Failures {
			b.WriteString(ErrorStyle.Render("  " + failure))
			b.WriteString("\n")
		}
	}

	return b.String()
}
