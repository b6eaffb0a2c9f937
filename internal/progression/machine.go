// Package progression moves a learner's cursor through a lesson one turn
// at a time: explaining content paragraph by paragraph, presenting media,
// and asking questions that must be answered correctly to pass.
package progression

import (
	"context"
	"strings"

	"github.com/abhisek/coursewell/internal/grading"
	"github.com/abhisek/coursewell/internal/lesson"
	"github.com/abhisek/coursewell/internal/llm"
)

// Grader classifies an answer to a question step.
type Grader interface {
	Grade(ctx context.Context, step lesson.Step, answer string) grading.Verdict
}

// Machine computes the next tutor message and cursor for a turn. It holds
// no per-learner state and is safe for concurrent use.
type Machine struct {
	provider llm.Provider
	grader   Grader
	cfg      Config
}

// New creates a Machine.
func New(provider llm.Provider, grader Grader, cfg Config) *Machine {
	return &Machine{provider: provider, grader: grader, cfg: cfg}
}

// Advance runs one turn.
//
// When the cursor awaits an answer, Input is graded against the question
// before anything else. A wrong answer returns a hint and rewinds to the
// question so it is asked again; a right answer proceeds to the next step
// within the same turn.
//
// Oracle failures never fail the turn. A failed explanation leaves the
// cursor in place so the learner can retry the same paragraph; other
// failures use fixed text and still move on.
func (m *Machine) Advance(ctx context.Context, t Turn) Outcome {
	c := t.Cursor
	if c.Awaiting {
		c.Awaiting = false
		if qi := c.Step - 1; qi >= 0 && qi < len(t.Steps) && t.Steps[qi].Type.IsQuestion() {
			if m.grader.Grade(ctx, t.Steps[qi], t.Input) == grading.Incorrect {
				return m.hint(ctx, t.Steps, qi)
			}
			out := m.present(ctx, t.Steps, lesson.Cursor{Step: c.Step}, true)
			out.Graded = true
			out.Verdict = grading.Correct
			return out
		}
	}
	return m.present(ctx, t.Steps, c, false)
}

// present emits the step at c. afterCorrect marks a turn that opened with
// a correct answer.
func (m *Machine) present(ctx context.Context, steps lesson.Sequence, c lesson.Cursor, afterCorrect bool) Outcome {
	for {
		if steps.Terminal(c) {
			return Outcome{
				Kind:    KindComplete,
				Message: withPrefix(afterCorrect, CompletionMessage),
				Cursor:  lesson.Cursor{Step: c.Step},
			}
		}

		step := steps[c.Step]
		switch step.Type {
		case lesson.KindContent:
			paras := lesson.Paragraphs(step.Text)
			if c.Chunk >= len(paras) {
				c = c.NextStep()
				continue
			}
			return m.explain(ctx, paras, c, afterCorrect)

		case lesson.KindMedia:
			if step.MediaURL == nil {
				if afterCorrect {
					// Keep going here so the feedback is not lost.
					c = c.NextStep()
					continue
				}
				return Outcome{Kind: KindSkip, Cursor: c.NextStep()}
			}
			return m.media(ctx, step, c, afterCorrect)

		case lesson.KindQuestionMCQ, lesson.KindQuestionSA:
			return m.question(ctx, step, c, afterCorrect)

		default:
			c = c.NextStep()
		}
	}
}

func (m *Machine) explain(ctx context.Context, paras []string, c lesson.Cursor, afterCorrect bool) Outcome {
	ctx = llm.WithPurpose(ctx, llm.PurposeExplain)

	user := buildExplainMessage(paras[c.Chunk])
	kind := KindExplanation
	if afterCorrect {
		user = buildFeedbackAndProceedMessage(paras[c.Chunk])
		kind = KindFeedback
	}

	comp := llm.Complete(ctx, m.provider, llm.Prompt(tutorSystemPrompt, user, m.cfg.ExplainMaxTokens, m.cfg.Temperature))
	if !comp.OK() {
		return Outcome{
			Kind:     kind,
			Message:  withPrefix(afterCorrect, ExplainFallback),
			Cursor:   c,
			Degraded: true,
		}
	}

	next := lesson.Cursor{Step: c.Step, Chunk: c.Chunk + 1}
	if next.Chunk >= len(paras) {
		next = c.NextStep()
	}
	return Outcome{Kind: kind, Message: comp.Text, Cursor: next}
}

func (m *Machine) media(ctx context.Context, step lesson.Step, c lesson.Cursor, afterCorrect bool) Outcome {
	ctx = llm.WithPurpose(ctx, llm.PurposeMediaRemark)

	req := llm.Prompt(tutorSystemPrompt, buildMediaMessage(step.MediaType, step.AltText), m.cfg.RemarkMaxTokens, m.cfg.Temperature)
	comp := llm.Complete(ctx, m.provider, req)

	return Outcome{
		Kind:     KindMedia,
		Message:  withPrefix(afterCorrect, comp.Or(mediaFallback(step.MediaType, step.AltText))),
		Cursor:   c.NextStep(),
		Media:    &MediaRef{URL: step.URL(), Type: step.MediaType},
		Degraded: !comp.OK(),
	}
}

func (m *Machine) question(ctx context.Context, step lesson.Step, c lesson.Cursor, afterCorrect bool) Outcome {
	ctx = llm.WithPurpose(ctx, llm.PurposeFraming)

	req := llm.Prompt(tutorSystemPrompt, buildFramingMessage(step.Question), m.cfg.RemarkMaxTokens, m.cfg.Temperature)
	comp := llm.Complete(ctx, m.provider, req)

	q := step
	next := c.NextStep()
	next.Awaiting = true
	return Outcome{
		Kind:     KindQuestion,
		Message:  withPrefix(afterCorrect, comp.Or(QuestionFallback)),
		Cursor:   next,
		Question: &q,
		Degraded: !comp.OK(),
	}
}

// hint answers a wrong answer to the question at qi with a nudge drawn
// from the content that came before it.
func (m *Machine) hint(ctx context.Context, steps lesson.Sequence, qi int) Outcome {
	ctx = llm.WithPurpose(ctx, llm.PurposeHint)

	content := strings.Join(steps.ContentBefore(qi), "\n")
	if strings.TrimSpace(content) == "" {
		content = noContentYet
	}
	req := llm.Prompt(tutorSystemPrompt, buildHintMessage(content), m.cfg.RemarkMaxTokens, m.cfg.Temperature)
	comp := llm.Complete(ctx, m.provider, req)

	return Outcome{
		Kind:     KindHint,
		Message:  comp.Or(HintFallback),
		Cursor:   lesson.At(qi),
		Graded:   true,
		Verdict:  grading.Incorrect,
		Degraded: !comp.OK(),
	}
}

func withPrefix(afterCorrect bool, msg string) string {
	if !afterCorrect {
		return msg
	}
	return CorrectPrefix + " " + msg
}
