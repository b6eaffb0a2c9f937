package llm

import (
	"context"
	"errors"
)

// Completion is the outcome of a free-text oracle call. Callers that must
// never fail a learner turn branch on OK or use Or to substitute a local
// fallback sentence.
type Completion struct {
	Text string
	Err  error
}

// OK reports whether the oracle produced usable text.
func (c Completion) OK() bool {
	return c.Err == nil && c.Text != ""
}

// Or returns the completion text, or fallback when the call failed.
func (c Completion) Or(fallback string) string {
	if c.OK() {
		return c.Text
	}
	return fallback
}

var errEmptyCompletion = errors.New("empty completion")

// Complete runs a single-prompt text generation and folds every failure
// mode, including an empty reply, into the returned Completion.
func Complete(ctx context.Context, p Provider, req Request) Completion {
	resp, err := p.Generate(ctx, req)
	if err != nil {
		return Completion{Err: err}
	}
	text := resp.Text()
	if text == "" {
		return Completion{Err: &ErrInvalidResponse{Content: resp.Content, Err: errEmptyCompletion}}
	}
	return Completion{Text: text}
}

// Prompt is shorthand for a one-message request.
func Prompt(system, user string, maxTokens int, temperature float64) Request {
	return Request{
		System:      system,
		Messages:    []Message{{Role: RoleUser, Content: user}},
		MaxTokens:   maxTokens,
		Temperature: temperature,
	}
}
