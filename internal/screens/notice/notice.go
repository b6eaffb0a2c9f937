package notice

import (
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/abhisek/coursewell/internal/screen"
	"github.com/abhisek/coursewell/internal/ui/theme"
)

// NoticeScreen shows a centered message, e.g. a finished course.
type NoticeScreen struct {
	title   string
	heading string
	body    string
}

var _ screen.Screen = (*NoticeScreen)(nil)

// New creates a NoticeScreen.
func New(title, heading, body string) *NoticeScreen {
	return &NoticeScreen{title: title, heading: heading, body: body}
}

func (n *NoticeScreen) Init() tea.Cmd {
	return nil
}

func (n *NoticeScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	return n, nil
}

func (n *NoticeScreen) View(width, height int) string {
	content := theme.Correct.Render(n.heading)
	if n.body != "" {
		content += "\n\n" + theme.Body.Render(n.body)
	}
	return lipgloss.NewStyle().
		Width(width).
		Height(height).
		Align(lipgloss.Center, lipgloss.Center).
		Render(content)
}

func (n *NoticeScreen) Title() string {
	return n.title
}
