package courses

import (
	"context"
	"fmt"
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/abhisek/coursewell/internal/dialogue"
	"github.com/abhisek/coursewell/internal/router"
	"github.com/abhisek/coursewell/internal/screen"
	"github.com/abhisek/coursewell/internal/screens/chat"
	"github.com/abhisek/coursewell/internal/store"
	"github.com/abhisek/coursewell/internal/ui/components"
	"github.com/abhisek/coursewell/internal/ui/layout"
	"github.com/abhisek/coursewell/internal/ui/theme"
)

// Deps are the data sources the course screens read.
type Deps struct {
	Courses     store.CourseRepo
	Lessons     store.LessonRepo
	Enrollments store.EnrollmentRepo
	Tutor       chat.Tutor
	Caller      dialogue.Caller
}

// Entry is one course the learner can open.
type Entry struct {
	Course   store.Course
	Chapters []store.Lesson

	// LastCompleted is 0 for previews.
	LastCompleted int
	Completed     bool
	Preview       bool
}

// ResumeChapter returns the chapter number the course resumes at.
func (e Entry) ResumeChapter() int {
	if e.Preview {
		return 1
	}
	return dialogue.EntryChapter(e.LastCompleted, len(e.Chapters))
}

// Load lists the caller's enrollments followed by the courses they
// created. Courses without chapters are skipped.
func Load(ctx context.Context, d Deps) ([]Entry, error) {
	var out []Entry

	enrollments, err := d.Enrollments.ListEnrollments(ctx, d.Caller.UserID)
	if err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}
	for _, e := range enrollments {
		c, err := d.Courses.GetCourse(ctx, e.CourseID)
		if err != nil {
			return nil, fmt.Errorf("get course %s: %w", e.CourseID, err)
		}
		entry, err := withChapters(ctx, d, Entry{
			Course:        *c,
			LastCompleted: e.LastCompletedChapterNumber,
			Completed:     e.CompletedAt != nil,
		})
		if err != nil {
			return nil, err
		}
		if len(entry.Chapters) > 0 {
			out = append(out, entry)
		}
	}

	own, err := d.Courses.ListCourses(ctx, store.CourseFilter{CreatorID: d.Caller.UserID})
	if err != nil {
		return nil, fmt.Errorf("list own courses: %w", err)
	}
	for _, c := range own {
		entry, err := withChapters(ctx, d, Entry{Course: c, Preview: true})
		if err != nil {
			return nil, err
		}
		if len(entry.Chapters) > 0 {
			out = append(out, entry)
		}
	}
	return out, nil
}

func withChapters(ctx context.Context, d Deps, e Entry) (Entry, error) {
	chapters, err := d.Lessons.ListLessons(ctx, e.Course.ID)
	if err != nil {
		return e, fmt.Errorf("list chapters of %s: %w", e.Course.ID, err)
	}
	e.Chapters = chapters
	return e, nil
}

// coursesLoadedMsg is sent when the course list has been read.
type coursesLoadedMsg struct {
	Entries []Entry
	Err     error
}

// CoursesScreen lists the learner's courses.
type CoursesScreen struct {
	deps    Deps
	entries []Entry
	menu    components.Menu
	loaded  bool
	errMsg  string
}

var _ screen.Screen = (*CoursesScreen)(nil)

// New creates a CoursesScreen.
func New(d Deps) *CoursesScreen {
	return &CoursesScreen{deps: d}
}

func (s *CoursesScreen) Init() tea.Cmd {
	d := s.deps
	return func() tea.Msg {
		entries, err := Load(context.Background(), d)
		return coursesLoadedMsg{Entries: entries, Err: err}
	}
}

func (s *CoursesScreen) Title() string {
	return "My Courses"
}

func (s *CoursesScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	if msg, ok := msg.(coursesLoadedMsg); ok {
		s.loaded = true
		if msg.Err != nil {
			s.errMsg = msg.Err.Error()
			return s, nil
		}
		s.setEntries(msg.Entries)
		return s, nil
	}

	var cmd tea.Cmd
	s.menu, cmd = s.menu.Update(msg)
	return s, cmd
}

func (s *CoursesScreen) setEntries(entries []Entry) {
	s.entries = entries
	items := make([]components.MenuItem, len(entries))
	for i, e := range entries {
		items[i] = components.MenuItem{
			Label:  e.Course.Title,
			Detail: courseDetail(e),
			Action: func() tea.Cmd {
				return func() tea.Msg {
					return router.PushScreenMsg{Screen: NewChapters(s.deps, e)}
				}
			},
		}
	}
	s.menu = components.NewMenu(items)
}

func courseDetail(e Entry) string {
	switch {
	case e.Preview:
		return fmt.Sprintf("preview · %d chapters", len(e.Chapters))
	case e.Completed:
		return "completed"
	}
	return fmt.Sprintf("chapter %d of %d", e.ResumeChapter(), len(e.Chapters))
}

func (s *CoursesScreen) View(width, height int) string {
	var body string
	switch {
	case !s.loaded:
		body = theme.Hint.Render("Loading courses...")
	case s.errMsg != "":
		body = theme.Incorrect.Render(s.errMsg)
	case len(s.entries) == 0:
		body = theme.Subtitle.Render("You are not enrolled in any course yet.\nEnroll with: coursewell enroll <course-id>")
	default:
		body = s.menu.View()
		if e := s.selected(); e != nil && !e.Preview {
			pct := float64(e.LastCompleted) / float64(len(e.Chapters))
			bar := components.NewProgressBar("Progress", pct, true, min(width-8, 50))
			body += "\n" + bar.View()
		}
	}

	title := theme.Title.Width(width).Render("Your Courses")
	return title + "\n\n" + lipgloss.NewStyle().Padding(0, 2).Render(body)
}

func (s *CoursesScreen) selected() *Entry {
	if s.menu.Selected < 0 || s.menu.Selected >= len(s.entries) {
		return nil
	}
	return &s.entries[s.menu.Selected]
}

// ChaptersScreen lists one course's chapters.
type ChaptersScreen struct {
	entry Entry
	menu  components.Menu
}

var _ screen.Screen = (*ChaptersScreen)(nil)
var _ screen.KeyHintProvider = (*ChaptersScreen)(nil)

// NewChapters creates a ChaptersScreen. Learners can open chapters up to
// the one they resume at; previews open any chapter.
func NewChapters(d Deps, e Entry) *ChaptersScreen {
	entry := e.ResumeChapter()
	items := make([]components.MenuItem, len(e.Chapters))
	for i, l := range e.Chapters {
		lessonID := l.ID
		var detail string
		switch {
		case !e.Preview && l.ChapterNumber <= e.LastCompleted:
			detail = "done"
		case !e.Preview && l.ChapterNumber > entry:
			detail = "locked"
		}
		items[i] = components.MenuItem{
			Label:    fmt.Sprintf("%d. %s", l.ChapterNumber, l.Title),
			Detail:   detail,
			Disabled: detail == "locked",
			Action: func() tea.Cmd {
				return func() tea.Msg {
					return router.PushScreenMsg{Screen: chat.New(d.Tutor, d.Lessons, d.Caller, lessonID)}
				}
			},
		}
	}
	menu := components.NewMenu(items)
	if entry-1 < len(items) && !items[entry-1].Disabled {
		menu.Selected = entry - 1
	}
	return &ChaptersScreen{entry: e, menu: menu}
}

func (s *ChaptersScreen) Init() tea.Cmd {
	return nil
}

func (s *ChaptersScreen) Title() string {
	return s.entry.Course.Title
}

func (s *ChaptersScreen) KeyHints() []layout.KeyHint {
	return []layout.KeyHint{
		{Key: "↑↓", Description: "Navigate"},
		{Key: "Enter", Description: "Open"},
		{Key: "Esc", Description: "Courses"},
	}
}

func (s *ChaptersScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	var cmd tea.Cmd
	s.menu, cmd = s.menu.Update(msg)
	return s, cmd
}

func (s *ChaptersScreen) View(width, height int) string {
	heading := s.entry.Course.Title
	if s.entry.Preview {
		heading += "  (preview)"
	}
	var b strings.Builder
	b.WriteString(theme.Title.Width(width).Render(heading))
	b.WriteString("\n\n")
	b.WriteString(lipgloss.NewStyle().Padding(0, 2).Render(s.menu.View()))
	return b.String()
}
