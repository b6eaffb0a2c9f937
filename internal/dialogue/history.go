package dialogue

// Message is one line of a transcript the client keeps.
type Message struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// Transcript roles.
const (
	RoleTutor   = "tutor"
	RoleLearner = "learner"
)

// TruncateHistory drops the last tutor message and everything after it.
// A transcript without tutor messages is returned as is.
func TruncateHistory(history []Message) []Message {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == RoleTutor {
			return history[:i:i]
		}
	}
	return history
}

// EntryChapter is the chapter a learner resumes a course at: the one after
// the last completed, capped at the final chapter.
func EntryChapter(lastCompleted, count int) int {
	n := lastCompleted + 1
	if n > count {
		n = count
	}
	if n < 1 {
		n = 1
	}
	return n
}
