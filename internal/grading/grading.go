// Package grading classifies a learner's answer to a question step.
package grading

import (
	"context"
	"fmt"
	"strings"

	"github.com/abhisek/coursewell/internal/lesson"
	"github.com/abhisek/coursewell/internal/llm"
)

// Verdict is the outcome of grading one answer.
type Verdict int

const (
	Incorrect Verdict = iota
	Correct
)

func (v Verdict) String() string {
	if v == Correct {
		return "CORRECT"
	}
	return "INCORRECT"
}

const graderSystemPrompt = `You are an impartial grading assistant. Your task is to determine if a student's answer contains a set of key concepts. Your response MUST be a single word: "CORRECT" or "INCORRECT".`

func buildGraderUserMessage(keywords []string, answer string) string {
	return fmt.Sprintf("Required Keywords: %s\nStudent's Answer: %s", strings.Join(keywords, ", "), answer)
}

// Grader grades MCQ answers locally and short answers with the
// classification oracle.
type Grader struct {
	provider llm.Provider
}

// New creates a Grader.
func New(provider llm.Provider) *Grader {
	return &Grader{provider: provider}
}

// Grade classifies answer against step. Any oracle failure, and any step
// that is not a question, grades as Incorrect.
func (g *Grader) Grade(ctx context.Context, step lesson.Step, answer string) Verdict {
	switch step.Type {
	case lesson.KindQuestionMCQ:
		return GradeChoice(step.CorrectAnswer, answer)
	case lesson.KindQuestionSA:
		return g.gradeShortAnswer(ctx, step.Keywords, answer)
	}
	return Incorrect
}

// GradeChoice compares a selected label with the correct one, ignoring
// case and surrounding whitespace.
func GradeChoice(correct, answer string) Verdict {
	want := strings.TrimSpace(correct)
	if want != "" && strings.EqualFold(strings.TrimSpace(answer), want) {
		return Correct
	}
	return Incorrect
}

func (g *Grader) gradeShortAnswer(ctx context.Context, keywords []string, answer string) Verdict {
	if strings.TrimSpace(answer) == "" {
		return Incorrect
	}
	ctx = llm.WithPurpose(ctx, llm.PurposeGrade)
	req := llm.Prompt(graderSystemPrompt, buildGraderUserMessage(keywords, answer), 16, 0)

	c := llm.Complete(ctx, g.provider, req)
	if !c.OK() {
		return Incorrect
	}
	return classify(c.Text)
}

// classify reads the oracle's one-word reply. "INCORRECT" contains
// "CORRECT", so it is checked first.
func classify(reply string) Verdict {
	up := strings.ToUpper(reply)
	if strings.Contains(up, "INCORRECT") {
		return Incorrect
	}
	if strings.Contains(up, "CORRECT") {
		return Correct
	}
	return Incorrect
}
