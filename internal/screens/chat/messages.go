package chat

import (
	"github.com/abhisek/coursewell/internal/dialogue"
	"github.com/abhisek/coursewell/internal/lesson"
)

// chapterEnteredMsg is sent when the chapter has been opened.
type chapterEnteredMsg struct {
	View *dialogue.ChapterView
	Err  error
}

// turnDoneMsg carries the tutor's reply to one turn.
type turnDoneMsg struct {
	Response *dialogue.Response
	Err      error
}

// resetDoneMsg is sent after the cursor has been cleared.
type resetDoneMsg struct {
	Err error
}

// stepBackDoneMsg is sent after the cursor moved back.
type stepBackDoneMsg struct {
	Cursor  lesson.Cursor
	History []dialogue.Message
	Err     error
}

// nextChapterMsg carries the lesson id of the following chapter.
type nextChapterMsg struct {
	LessonID string
	Err      error
}
