package lesson

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
)

// Sequence is the ordered step list of one chapter. Order is the
// narrative order.
type Sequence []Step

// Decode parses a stored step list. Both a bare array and an object with
// a "steps" array are accepted.
func Decode(data []byte) (Sequence, error) {
	if len(data) == 0 {
		return Sequence{}, nil
	}
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("decode steps: invalid JSON")
	}
	r := gjson.ParseBytes(data)
	if r.IsObject() {
		r = r.Get("steps")
	}
	if !r.IsArray() {
		return nil, fmt.Errorf("decode steps: expected an array of steps")
	}

	seq := Sequence{}
	var err error
	r.ForEach(func(k, v gjson.Result) bool {
		var s Step
		s, err = stepFromResult(v)
		if err != nil {
			err = fmt.Errorf("step %d: %w", k.Int(), err)
			return false
		}
		seq = append(seq, s)
		return true
	})
	if err != nil {
		return nil, err
	}
	return seq, nil
}

// Encode serializes the sequence as a JSON array.
func (s Sequence) Encode() (json.RawMessage, error) {
	if s == nil {
		s = Sequence{}
	}
	b, err := json.Marshal([]Step(s))
	if err != nil {
		return nil, fmt.Errorf("encode steps: %w", err)
	}
	return b, nil
}

// Terminal reports whether c is past the last step.
func (s Sequence) Terminal(c Cursor) bool {
	return c.Step >= len(s)
}

// Back undoes one unit of movement from c: a chunk when inside a CONTENT
// step, otherwise a whole step. Stepping back into a CONTENT step lands
// on its last paragraph, the one shown just before the step was left.
// Back at the start is a no-op and the result never awaits an answer.
func (s Sequence) Back(c Cursor) Cursor {
	switch {
	case c.Chunk > 0:
		return Cursor{Step: c.Step, Chunk: c.Chunk - 1}
	case c.Step > 0:
		prev := Cursor{Step: c.Step - 1}
		if prev.Step < len(s) && s[prev.Step].Type == KindContent {
			if n := len(Paragraphs(s[prev.Step].Text)); n > 1 {
				prev.Chunk = n - 1
			}
		}
		return prev
	}
	return Start
}

// ContentBefore joins the text of every CONTENT step before index i.
func (s Sequence) ContentBefore(i int) []string {
	var out []string
	for j := 0; j < i && j < len(s); j++ {
		if s[j].Type == KindContent {
			out = append(out, s[j].Text)
		}
	}
	return out
}

// MediaURLs returns the URLs of every hydrated MEDIA step in order.
func (s Sequence) MediaURLs() []string {
	var out []string
	for _, st := range s {
		if st.Type == KindMedia && st.URL() != "" {
			out = append(out, st.URL())
		}
	}
	return out
}

// MediaIndexes returns the positions of MEDIA steps of type t in order.
func (s Sequence) MediaIndexes(t MediaType) []int {
	var out []int
	for i, st := range s {
		if st.Type == KindMedia && st.MediaType == t {
			out = append(out, i)
		}
	}
	return out
}
