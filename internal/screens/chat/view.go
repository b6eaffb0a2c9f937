package chat

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/abhisek/coursewell/internal/dialogue"
	"github.com/abhisek/coursewell/internal/ui/theme"
)

func (s *ChatScreen) View(width, height int) string {
	if s.fatal {
		return renderError(width, height, s.errMsg)
	}
	if s.view == nil {
		return lipgloss.NewStyle().
			Width(width).
			Align(lipgloss.Center).
			Foreground(theme.TextDim).
			Render("\n\n  Opening chapter...")
	}

	info := s.renderInfo(width)
	bottom := s.renderBottom(width)

	avail := height - lipgloss.Height(info) - lipgloss.Height(bottom) - 2
	transcript := renderTranscript(s.history, width-4, avail)

	return info + "\n" + transcript + "\n" + bottom
}

func (s *ChatScreen) renderInfo(width int) string {
	left := lipgloss.NewStyle().
		Foreground(theme.Secondary).
		Bold(true).
		Render(fmt.Sprintf("  Chapter %d of %d", s.view.ChapterNumber, s.view.ChapterCount))

	status := fmt.Sprintf("Step %d/%d", min(s.cursor.Step+1, s.view.Steps), s.view.Steps)
	if s.view.Preview {
		status = "PREVIEW  " + status
	}
	right := lipgloss.NewStyle().Foreground(theme.TextDim).Render(status)

	line := left
	if pad := width - lipgloss.Width(left) - lipgloss.Width(right) - 4; pad > 0 {
		line += strings.Repeat(" ", pad) + right
	}
	rule := lipgloss.NewStyle().Foreground(theme.Border).Render(strings.Repeat("─", max(width-4, 0)))
	return line + "\n" + rule
}

// renderTranscript renders the newest messages that fit in height lines.
func renderTranscript(history []dialogue.Message, width, height int) string {
	if height <= 0 {
		return ""
	}
	var lines []string
	for _, m := range history {
		label := theme.LearnerLabel.Render("You")
		if m.Role == dialogue.RoleTutor {
			label = theme.TutorLabel.Render("Tutor")
		}
		body := lipgloss.NewStyle().
			Width(width - 2).
			Foreground(theme.Text).
			Render(m.Text)
		lines = append(lines, "  "+label)
		for _, l := range strings.Split(body, "\n") {
			lines = append(lines, "  "+l)
		}
		lines = append(lines, "")
	}
	if len(lines) > height {
		lines = lines[len(lines)-height:]
	}
	return strings.Join(lines, "\n")
}

func (s *ChatScreen) renderBottom(width int) string {
	var b strings.Builder

	switch {
	case s.choice != nil && !s.asking:
		b.WriteString(indent(s.choice.View()))
	case s.question != "" && !s.asking:
		b.WriteString(indent(theme.Question.Render(s.question)))
		b.WriteString("\n")
	}

	if s.choice == nil || s.asking {
		b.WriteString("\n  " + s.input.View())
	}

	status := s.status()
	if status != "" {
		b.WriteString("\n\n  " + status)
	}
	return b.String()
}

func (s *ChatScreen) status() string {
	switch {
	case s.pending:
		return theme.Hint.Render("Thinking...")
	case s.errMsg != "":
		return theme.Incorrect.Render(s.errMsg)
	case s.note != "":
		return theme.Hint.Render(s.note)
	case s.ended && s.hasNext:
		return theme.Correct.Render("Chapter finished! Press Ctrl+N for the next one.")
	case s.ended:
		return theme.Correct.Render("Chapter finished!")
	}
	return ""
}

func indent(block string) string {
	lines := strings.Split(strings.TrimRight(block, "\n"), "\n")
	for i, l := range lines {
		lines[i] = "  " + l
	}
	return strings.Join(lines, "\n")
}

func renderError(width, height int, msg string) string {
	return lipgloss.NewStyle().
		Width(width).
		Height(height).
		Align(lipgloss.Center, lipgloss.Center).
		Render(theme.Incorrect.Render("Could not open this chapter") + "\n\n" +
			theme.Body.Render(msg))
}
