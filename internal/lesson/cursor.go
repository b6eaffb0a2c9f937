package lesson

// Cursor is a learner's position in a Sequence. Chunk indexes paragraphs
// of the CONTENT step at Step and is zero whenever Step changes. Awaiting
// is set while the question at Step-1 has been shown but not yet graded.
type Cursor struct {
	Step     int  `json:"step_index"`
	Chunk    int  `json:"chunk_index"`
	Awaiting bool `json:"awaiting_answer,omitempty"`
}

// Start is the cursor of a learner who has not begun.
var Start = Cursor{}

// IsStart reports whether c is at the beginning with nothing pending.
func (c Cursor) IsStart() bool {
	return c == Start
}

// NextStep moves to the start of the following step.
func (c Cursor) NextStep() Cursor {
	return Cursor{Step: c.Step + 1}
}

// At returns a settled cursor at the first chunk of step i.
func At(i int) Cursor {
	return Cursor{Step: i}
}
