package llm

import (
	"context"
	"errors"
	"time"
)

// TimeoutProvider bounds every Generate call, retries included, by a
// fixed duration.
type TimeoutProvider struct {
	inner Provider
	after time.Duration
}

// WithTimeout wraps a Provider with a per-call deadline. A non-positive
// duration returns p unchanged.
func WithTimeout(p Provider, d time.Duration) Provider {
	if d <= 0 {
		return p
	}
	return &TimeoutProvider{inner: p, after: d}
}

func (t *TimeoutProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, t.after)
	defer cancel()

	resp, err := t.inner.Generate(ctx, req)
	return resp, t.wrap(ctx, err)
}

func (t *TimeoutProvider) ModelID() string {
	return t.inner.ModelID()
}

// wrap converts our own deadline into ErrTimeout; a caller's cancellation
// passes through untouched.
func (t *TimeoutProvider) wrap(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &ErrTimeout{After: t.after, Err: err}
	}
	return err
}

// TimeoutEmbedder is the Embedder counterpart of TimeoutProvider.
type TimeoutEmbedder struct {
	inner Embedder
	t     TimeoutProvider
}

// WithEmbedTimeout wraps an Embedder with a per-call deadline.
func WithEmbedTimeout(e Embedder, d time.Duration) Embedder {
	if d <= 0 {
		return e
	}
	return &TimeoutEmbedder{inner: e, t: TimeoutProvider{after: d}}
}

func (e *TimeoutEmbedder) Embed(ctx context.Context, texts []string, mode EmbedMode) ([][]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, e.t.after)
	defer cancel()

	vecs, err := e.inner.Embed(ctx, texts, mode)
	if err != nil {
		return nil, e.t.wrap(ctx, err)
	}
	return vecs, nil
}

func (e *TimeoutEmbedder) ModelID() string {
	return e.inner.ModelID()
}
