package dialogue

import (
	"github.com/abhisek/coursewell/internal/lesson"
)

// RequestKind selects how a turn is handled.
type RequestKind string

const (
	// KindFlow advances the lesson.
	KindFlow RequestKind = "LESSON_FLOW"
	// KindQnA answers an out-of-band question without moving the cursor.
	KindQnA RequestKind = "QNA"
)

// ParseKind maps a request_kind value to a RequestKind. Anything other
// than QNA is a flow turn.
func ParseKind(s string) RequestKind {
	if RequestKind(s) == KindQnA {
		return KindQnA
	}
	return KindFlow
}

// Caller identifies who is taking the turn. SessionID scopes creator
// previews to one browsing session.
type Caller struct {
	UserID    int
	SessionID string
}

// Response is the payload of one turn.
type Response struct {
	TutorText      string        `json:"tutor_text,omitempty"`
	MediaURL       string        `json:"media_url,omitempty"`
	MediaType      string        `json:"media_type,omitempty"`
	Question       *lesson.Step  `json:"question,omitempty"`
	NextStep       int           `json:"next_step"`
	Cursor         lesson.Cursor `json:"cursor"`
	IsQnA          bool          `json:"is_qna_response,omitempty"`
	IsLessonEnd    bool          `json:"is_lesson_end,omitempty"`
	CertificateURL string        `json:"certificate_url,omitempty"`
	NextChapterURL string        `json:"next_chapter_url,omitempty"`
	NextLessonID   string        `json:"next_lesson_id,omitempty"`

	// Preview is set when the turn ran against a creator preview.
	Preview bool `json:"preview,omitempty"`
}

// ChapterView describes a chapter as it is opened.
type ChapterView struct {
	LessonID      string        `json:"lesson_id"`
	CourseID      string        `json:"course_id"`
	Title         string        `json:"title"`
	ChapterNumber int           `json:"chapter_number"`
	ChapterCount  int           `json:"chapter_count"`
	Steps         int           `json:"steps"`
	Cursor        lesson.Cursor `json:"cursor"`
	Preview       bool          `json:"preview"`
}
