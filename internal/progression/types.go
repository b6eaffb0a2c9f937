package progression

import (
	"github.com/abhisek/coursewell/internal/grading"
	"github.com/abhisek/coursewell/internal/lesson"
)

// Kind classifies what a turn produced.
type Kind string

const (
	KindExplanation Kind = "explanation"
	KindMedia       Kind = "media"
	KindQuestion    Kind = "question"
	// KindFeedback is an explanation that opens by confirming a correct
	// answer.
	KindFeedback Kind = "feedback"
	KindHint     Kind = "hint"
	KindComplete Kind = "complete"
	// KindSkip carries no message. The caller advances again from the
	// returned cursor.
	KindSkip Kind = "skip"
)

// Turn is the input to one Advance call.
type Turn struct {
	Steps  lesson.Sequence
	Cursor lesson.Cursor
	Input  string
}

// MediaRef points at media to show with the message.
type MediaRef struct {
	URL  string
	Type lesson.MediaType
}

// Outcome is the result of one Advance call.
type Outcome struct {
	Kind    Kind
	Message string
	Cursor  lesson.Cursor

	Media    *MediaRef
	Question *lesson.Step

	// Graded is set when Input was graded this turn.
	Graded  bool
	Verdict grading.Verdict

	// Degraded is set when an oracle failed and fixed text was used.
	Degraded bool
}
