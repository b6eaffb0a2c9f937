// Package compiler turns an author's tagged lesson script into a
// validated lesson.Sequence using the text oracle.
package compiler

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/abhisek/coursewell/internal/lesson"
	"github.com/abhisek/coursewell/internal/llm"
)

// Compiler compiles scripts. It is safe for concurrent use.
type Compiler struct {
	provider llm.Provider
	cfg      Config
}

// New creates a Compiler.
func New(provider llm.Provider, cfg Config) *Compiler {
	return &Compiler{provider: provider, cfg: cfg}
}

// Compile parses script into steps and attaches uploads to its MEDIA
// steps. previous is the lesson's current sequence when editing, nil when
// creating. Every failure is a *CompileError.
func (c *Compiler) Compile(ctx context.Context, script string, uploads Uploads, previous lesson.Sequence) (lesson.Sequence, error) {
	if strings.TrimSpace(script) == "" {
		return nil, &CompileError{Reason: "script is empty"}
	}

	seq, err := c.parse(ctx, script)
	if err != nil {
		return nil, err
	}
	if len(seq) == 0 {
		return nil, &CompileError{Reason: "script produced no steps"}
	}
	return Hydrate(seq, uploads, previous), nil
}

func (c *Compiler) parse(ctx context.Context, script string) (lesson.Sequence, error) {
	ctx = llm.WithPurpose(ctx, llm.PurposeCompile)

	req := llm.Prompt(compileSystemPrompt, buildCompileUserMessage(script), c.cfg.MaxTokens, c.cfg.Temperature)
	resp, err := c.provider.Generate(ctx, req)
	if err != nil {
		return nil, &CompileError{Reason: "oracle call failed", Err: err}
	}

	cleaned := stripFences(string(resp.Content))
	if cleaned == "" {
		return nil, &CompileError{Reason: "empty oracle reply"}
	}
	raw := json.RawMessage(cleaned)

	if err := llm.ValidateJSON(StepsSchema, raw); err != nil {
		var inv *llm.ErrInvalidResponse
		if errors.As(err, &inv) && inv.Err != nil {
			err = inv.Err
		}
		return nil, &CompileError{Reason: "reply does not match the step contract", Err: err}
	}

	seq, err := lesson.Decode(raw)
	if err != nil {
		return nil, &CompileError{Reason: "reply could not be decoded", Err: err}
	}
	return seq, nil
}

// stripFences removes Markdown code fences the oracle sometimes wraps
// JSON in.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if nl := strings.IndexByte(s, '\n'); nl >= 0 {
			s = s[nl+1:]
		} else {
			s = strings.TrimPrefix(strings.TrimPrefix(s, "```json"), "```")
		}
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
