// Package lesson defines the compiled form of a chapter: an ordered
// sequence of typed steps, and the cursor a learner moves through it.
package lesson

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// Kind discriminates Step variants. It is serialized under the "type" key.
type Kind string

const (
	KindContent     Kind = "CONTENT"
	KindMedia       Kind = "MEDIA"
	KindQuestionMCQ Kind = "QUESTION_MCQ"
	KindQuestionSA  Kind = "QUESTION_SA"
)

// Kinds lists every known step kind.
var Kinds = []Kind{KindContent, KindMedia, KindQuestionMCQ, KindQuestionSA}

func (k Kind) valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// IsQuestion reports whether the kind is graded.
func (k Kind) IsQuestion() bool {
	return k == KindQuestionMCQ || k == KindQuestionSA
}

// MediaType is the kind of an uploaded media file.
type MediaType string

const (
	MediaImage MediaType = "image"
	MediaAudio MediaType = "audio"
)

// Step is one unit of a chapter. Only the fields of its Kind are
// meaningful:
//
//	CONTENT       Text
//	MEDIA         AltText, MediaType, MediaURL (nil until hydrated)
//	QUESTION_MCQ  Question, Options, CorrectAnswer
//	QUESTION_SA   Question, Keywords
type Step struct {
	Type Kind

	Text string

	AltText   string
	MediaType MediaType
	MediaURL  *string

	Question      string
	Options       Options
	CorrectAnswer string
	Keywords      []string
}

// Content builds a CONTENT step.
func Content(text string) Step {
	return Step{Type: KindContent, Text: text}
}

// Media builds a MEDIA step without a URL.
func Media(t MediaType, alt string) Step {
	return Step{Type: KindMedia, MediaType: t, AltText: alt}
}

// MCQ builds a QUESTION_MCQ step.
func MCQ(question string, options Options, correct string) Step {
	return Step{Type: KindQuestionMCQ, Question: question, Options: options, CorrectAnswer: correct}
}

// ShortAnswer builds a QUESTION_SA step.
func ShortAnswer(question string, keywords ...string) Step {
	return Step{Type: KindQuestionSA, Question: question, Keywords: keywords}
}

// URL returns the media URL or "" when unset.
func (s Step) URL() string {
	if s.MediaURL == nil {
		return ""
	}
	return *s.MediaURL
}

// WithURL returns a copy of s pointing at url.
func (s Step) WithURL(url string) Step {
	s.MediaURL = &url
	return s
}

func (s Step) MarshalJSON() ([]byte, error) {
	switch s.Type {
	case KindContent:
		return json.Marshal(struct {
			Type Kind   `json:"type"`
			Text string `json:"text"`
		}{s.Type, s.Text})
	case KindMedia:
		return json.Marshal(struct {
			Type      Kind      `json:"type"`
			AltText   string    `json:"alt_text"`
			MediaType MediaType `json:"media_type"`
			MediaURL  *string   `json:"media_url"`
		}{s.Type, s.AltText, s.MediaType, s.MediaURL})
	case KindQuestionMCQ:
		return json.Marshal(struct {
			Type          Kind    `json:"type"`
			Question      string  `json:"question"`
			Options       Options `json:"options"`
			CorrectAnswer string  `json:"correct_answer"`
		}{s.Type, s.Question, s.Options, s.CorrectAnswer})
	case KindQuestionSA:
		kw := s.Keywords
		if kw == nil {
			kw = []string{}
		}
		return json.Marshal(struct {
			Type     Kind     `json:"type"`
			Question string   `json:"question"`
			Keywords []string `json:"keywords"`
		}{s.Type, s.Question, kw})
	}
	return nil, fmt.Errorf("marshal step: unknown type %q", s.Type)
}

func (s *Step) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("step: invalid JSON")
	}
	r := gjson.ParseBytes(data)
	if !r.IsObject() {
		return fmt.Errorf("step: expected object, got %s", r.Type)
	}

	st, err := stepFromResult(r)
	if err != nil {
		return err
	}
	*s = st
	return nil
}

func stepFromResult(r gjson.Result) (Step, error) {
	kind := Kind(strings.ToUpper(strings.TrimSpace(r.Get("type").String())))
	if !kind.valid() {
		return Step{}, fmt.Errorf("step: unknown type %q", r.Get("type").String())
	}

	s := Step{Type: kind}
	switch kind {
	case KindContent:
		s.Text = r.Get("text").String()
	case KindMedia:
		s.AltText = r.Get("alt_text").String()
		s.MediaType = MediaType(strings.ToLower(strings.TrimSpace(r.Get("media_type").String())))
		if s.MediaType == "" {
			s.MediaType = MediaImage
		}
		if u := r.Get("media_url"); u.Exists() && u.Type != gjson.Null && u.String() != "" {
			url := u.String()
			s.MediaURL = &url
		}
	case KindQuestionMCQ:
		s.Question = r.Get("question").String()
		s.Options = optionsFromResult(r.Get("options"))
		s.CorrectAnswer = r.Get("correct_answer").String()
	case KindQuestionSA:
		s.Question = r.Get("question").String()
		s.Keywords = NormalizeKeywords(r.Get("keywords"))
	}
	return s, nil
}

// NormalizeKeywords accepts either a list or a single comma-delimited
// string and returns trimmed, non-empty keywords. Non-string list elements
// are rendered as text.
func NormalizeKeywords(r gjson.Result) []string {
	out := []string{}
	add := func(s string) {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}

	switch {
	case r.IsArray():
		r.ForEach(func(_, v gjson.Result) bool {
			add(v.String())
			return true
		})
	case r.Type == gjson.String:
		for _, part := range strings.Split(r.String(), ",") {
			add(part)
		}
	case r.Exists() && r.Type != gjson.Null:
		add(r.String())
	}
	return out
}
