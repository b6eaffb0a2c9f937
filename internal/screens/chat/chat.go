package chat

import (
	"context"
	"fmt"
	"strings"

	tea "charm.land/bubbletea/v2"

	"github.com/abhisek/coursewell/internal/dialogue"
	"github.com/abhisek/coursewell/internal/lesson"
	"github.com/abhisek/coursewell/internal/router"
	"github.com/abhisek/coursewell/internal/screen"
	"github.com/abhisek/coursewell/internal/screens/notice"
	"github.com/abhisek/coursewell/internal/store"
	"github.com/abhisek/coursewell/internal/ui/components"
	"github.com/abhisek/coursewell/internal/ui/layout"
)

// Tutor runs dialogue turns. *dialogue.Router implements it.
type Tutor interface {
	EnterChapter(ctx context.Context, caller dialogue.Caller, lessonID string) (*dialogue.ChapterView, error)
	HandleTurn(ctx context.Context, caller dialogue.Caller, lessonID string, kind dialogue.RequestKind, input string) (*dialogue.Response, error)
	Reset(ctx context.Context, caller dialogue.Caller, lessonID string) error
	StepBack(ctx context.Context, caller dialogue.Caller, lessonID string, history []dialogue.Message) (lesson.Cursor, []dialogue.Message, error)
}

// Chapters looks up a course's chapters by number.
type Chapters interface {
	LessonByChapter(ctx context.Context, courseID string, chapter int) (*store.Lesson, error)
}

// ChatScreen is the lesson conversation for one chapter.
type ChatScreen struct {
	tutor    Tutor
	chapters Chapters
	caller   dialogue.Caller
	lessonID string

	view    *dialogue.ChapterView
	cursor  lesson.Cursor
	history []dialogue.Message

	input    components.TextInput
	choice   *components.MultiChoice
	question string // open short-answer question

	asking  bool // next submit is an out-of-band question
	pending bool
	ended   bool
	hasNext bool
	note    string
	errMsg  string
	fatal   bool
}

var _ screen.Screen = (*ChatScreen)(nil)
var _ screen.KeyHintProvider = (*ChatScreen)(nil)

// New creates a ChatScreen for lessonID.
func New(tutor Tutor, chapters Chapters, caller dialogue.Caller, lessonID string) *ChatScreen {
	s := &ChatScreen{
		tutor:    tutor,
		chapters: chapters,
		caller:   caller,
		lessonID: lessonID,
		input:    components.NewTextInput(answerPlaceholder, 0),
	}
	s.setAsking(false)
	return s
}

const (
	answerPlaceholder = "Press Enter to continue, or type your answer..."
	askPlaceholder    = "Ask anything about this lesson..."
)

func (s *ChatScreen) Init() tea.Cmd {
	s.pending = true
	return tea.Batch(s.enter(), s.input.Init())
}

func (s *ChatScreen) Title() string {
	if s.view == nil {
		return "Lesson"
	}
	return s.view.Title
}

func (s *ChatScreen) KeyHints() []layout.KeyHint {
	if s.fatal {
		return []layout.KeyHint{{Key: "Esc", Description: "Back"}}
	}
	hints := []layout.KeyHint{{Key: "Enter", Description: "Send"}}
	if s.asking {
		hints = append(hints, layout.KeyHint{Key: "Tab", Description: "Back to lesson"})
	} else {
		hints = append(hints, layout.KeyHint{Key: "Tab", Description: "Ask a question"})
	}
	if s.ended && s.hasNext {
		hints = append(hints, layout.KeyHint{Key: "Ctrl+N", Description: "Next chapter"})
	}
	return append(hints,
		layout.KeyHint{Key: "Ctrl+B", Description: "Step back"},
		layout.KeyHint{Key: "Ctrl+R", Description: "Restart"},
		layout.KeyHint{Key: "Esc", Description: "Chapters"},
	)
}

func (s *ChatScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case chapterEnteredMsg:
		return s.handleEntered(msg)

	case turnDoneMsg:
		return s.handleTurn(msg)

	case resetDoneMsg:
		return s.handleReset(msg)

	case stepBackDoneMsg:
		return s.handleStepBack(msg)

	case nextChapterMsg:
		return s.handleNextChapter(msg)

	case tea.KeyMsg:
		return s.handleKey(msg)
	}

	var cmd tea.Cmd
	s.input, cmd = s.input.Update(msg)
	return s, cmd
}

func (s *ChatScreen) handleKey(msg tea.KeyMsg) (screen.Screen, tea.Cmd) {
	if s.fatal {
		return s, nil
	}

	switch msg.String() {
	case "tab":
		s.setAsking(!s.asking)
		return s, nil
	case "ctrl+r":
		if s.pending {
			return s, nil
		}
		s.pending = true
		return s, s.reset()
	case "ctrl+b":
		if s.pending {
			return s, nil
		}
		s.pending = true
		return s, s.stepBack()
	case "ctrl+n":
		if s.pending || !s.ended || !s.hasNext {
			return s, nil
		}
		s.pending = true
		return s, s.nextChapter()
	}

	if s.choice != nil && !s.asking {
		if s.pending {
			return s, nil
		}
		updated, _ := s.choice.Update(msg)
		s.choice = &updated
		if !updated.Submitted {
			return s, nil
		}
		label := updated.Choice()
		text := label
		for _, opt := range updated.Options {
			if opt.Label == label {
				text = fmt.Sprintf("%s) %s", opt.Label, opt.Text)
			}
		}
		s.say(text)
		s.choice = nil
		s.pending = true
		return s, s.turn(dialogue.KindFlow, label)
	}

	if msg.String() == "enter" {
		return s.submit()
	}

	var cmd tea.Cmd
	s.input, cmd = s.input.Update(msg)
	return s, cmd
}

func (s *ChatScreen) submit() (screen.Screen, tea.Cmd) {
	if s.pending {
		return s, nil
	}
	text := strings.TrimSpace(s.input.Value())

	if s.asking {
		if text == "" {
			return s, nil
		}
		s.input.Reset()
		s.say(text)
		s.pending = true
		return s, s.turn(dialogue.KindQnA, text)
	}

	if s.ended {
		return s, nil
	}
	s.input.Reset()
	if text != "" {
		s.say(text)
	}
	s.pending = true
	return s, s.turn(dialogue.KindFlow, text)
}

func (s *ChatScreen) setAsking(on bool) {
	s.asking = on
	if on {
		s.input.Label = "?"
		s.input.SetPlaceholder(askPlaceholder)
	} else {
		s.input.Label = ">"
		s.input.SetPlaceholder(answerPlaceholder)
	}
}

func (s *ChatScreen) say(text string) {
	s.history = append(s.history, dialogue.Message{Role: dialogue.RoleLearner, Text: text})
}

func (s *ChatScreen) handleEntered(msg chapterEnteredMsg) (screen.Screen, tea.Cmd) {
	s.pending = false
	if msg.Err != nil {
		s.errMsg = msg.Err.Error()
		s.fatal = true
		return s, nil
	}
	s.view = msg.View
	s.cursor = msg.View.Cursor

	if s.cursor.Awaiting {
		s.note = "You were answering a question. Press Ctrl+B to see it again."
		return s, nil
	}
	s.pending = true
	return s, s.turn(dialogue.KindFlow, "")
}

func (s *ChatScreen) handleTurn(msg turnDoneMsg) (screen.Screen, tea.Cmd) {
	s.pending = false
	if msg.Err != nil {
		s.errMsg = msg.Err.Error()
		return s, nil
	}
	s.errMsg = ""
	s.note = ""

	resp := msg.Response
	if text := tutorText(resp); text != "" {
		s.history = append(s.history, dialogue.Message{Role: dialogue.RoleTutor, Text: text})
	}
	if resp.IsQnA {
		s.setAsking(false)
		return s, nil
	}

	s.cursor = resp.Cursor
	s.choice = nil
	s.question = ""
	if q := resp.Question; q != nil {
		switch q.Type {
		case lesson.KindQuestionMCQ:
			opts := make([]components.ChoiceOption, len(q.Options))
			for i, o := range q.Options {
				opts[i] = components.ChoiceOption{Label: o.Label, Text: o.Text}
			}
			mc := components.NewMultiChoice(q.Question, opts)
			s.choice = &mc
		case lesson.KindQuestionSA:
			s.question = q.Question
		}
	}

	if resp.IsLessonEnd {
		s.ended = true
		s.hasNext = resp.NextChapterURL != ""
		if resp.CertificateURL != "" {
			return s, func() tea.Msg {
				return router.PushScreenMsg{Screen: notice.New(
					"Certificate",
					"Course complete!",
					"Your certificate is ready at "+resp.CertificateURL,
				)}
			}
		}
	}
	return s, nil
}

// tutorText joins a reply's text with its media reference.
func tutorText(resp *dialogue.Response) string {
	text := resp.TutorText
	if resp.MediaURL != "" {
		text = strings.TrimSpace(text + "\n" + mediaLine(resp.MediaType, resp.MediaURL))
	}
	return text
}

func mediaLine(mediaType, url string) string {
	if mediaType == "" {
		mediaType = "media"
	}
	return fmt.Sprintf("[%s] %s", mediaType, url)
}

func (s *ChatScreen) handleReset(msg resetDoneMsg) (screen.Screen, tea.Cmd) {
	s.pending = false
	if msg.Err != nil {
		s.errMsg = msg.Err.Error()
		return s, nil
	}
	s.history = nil
	s.clearTurnState()
	s.cursor = lesson.Start
	s.pending = true
	return s, s.turn(dialogue.KindFlow, "")
}

func (s *ChatScreen) handleStepBack(msg stepBackDoneMsg) (screen.Screen, tea.Cmd) {
	s.pending = false
	if msg.Err != nil {
		s.errMsg = msg.Err.Error()
		return s, nil
	}
	if msg.Cursor == s.cursor {
		return s, nil
	}
	s.history = msg.History
	s.clearTurnState()
	s.cursor = msg.Cursor
	s.pending = true
	return s, s.turn(dialogue.KindFlow, "")
}

func (s *ChatScreen) clearTurnState() {
	s.choice = nil
	s.question = ""
	s.ended = false
	s.hasNext = false
	s.note = ""
	s.errMsg = ""
}

func (s *ChatScreen) handleNextChapter(msg nextChapterMsg) (screen.Screen, tea.Cmd) {
	s.pending = false
	if msg.Err != nil {
		s.errMsg = msg.Err.Error()
		return s, nil
	}
	next := New(s.tutor, s.chapters, s.caller, msg.LessonID)
	return s, func() tea.Msg { return router.ReplaceScreenMsg{Screen: next} }
}

func (s *ChatScreen) enter() tea.Cmd {
	tutor, caller, id := s.tutor, s.caller, s.lessonID
	return func() tea.Msg {
		view, err := tutor.EnterChapter(context.Background(), caller, id)
		return chapterEnteredMsg{View: view, Err: err}
	}
}

func (s *ChatScreen) turn(kind dialogue.RequestKind, input string) tea.Cmd {
	tutor, caller, id := s.tutor, s.caller, s.lessonID
	return func() tea.Msg {
		resp, err := tutor.HandleTurn(context.Background(), caller, id, kind, input)
		return turnDoneMsg{Response: resp, Err: err}
	}
}

func (s *ChatScreen) reset() tea.Cmd {
	tutor, caller, id := s.tutor, s.caller, s.lessonID
	return func() tea.Msg {
		return resetDoneMsg{Err: tutor.Reset(context.Background(), caller, id)}
	}
}

func (s *ChatScreen) stepBack() tea.Cmd {
	tutor, caller, id := s.tutor, s.caller, s.lessonID
	history := append([]dialogue.Message(nil), s.history...)
	return func() tea.Msg {
		c, h, err := tutor.StepBack(context.Background(), caller, id, history)
		return stepBackDoneMsg{Cursor: c, History: h, Err: err}
	}
}

func (s *ChatScreen) nextChapter() tea.Cmd {
	chapters, view := s.chapters, s.view
	return func() tea.Msg {
		l, err := chapters.LessonByChapter(context.Background(), view.CourseID, view.ChapterNumber+1)
		if err != nil {
			return nextChapterMsg{Err: err}
		}
		return nextChapterMsg{LessonID: l.ID}
	}
}
