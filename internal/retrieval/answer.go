package retrieval

import (
	"context"
	"sort"

	"github.com/abhisek/coursewell/internal/llm"
)

// Answerer answers a question from the top-scoring chunks of a Table. It
// never reads or writes learner progress.
type Answerer struct {
	provider llm.Provider
	embedder llm.Embedder
	cfg      Config
}

// NewAnswerer creates an Answerer.
func NewAnswerer(provider llm.Provider, embedder llm.Embedder, cfg Config) *Answerer {
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultConfig().TopK
	}
	return &Answerer{provider: provider, embedder: embedder, cfg: cfg}
}

// Answer returns the tutor's reply to question. An empty table yields
// Deflection without any oracle call; oracle failures yield Fallback.
//
// Chunks are ranked by inner product with the query vector, which assumes
// the embedder returns vectors of comparable scale.
func (a *Answerer) Answer(ctx context.Context, question string, table *Table) string {
	if table.Len() == 0 {
		return Deflection
	}

	qctx := llm.WithPurpose(ctx, llm.PurposeEmbedQuery)
	vecs, err := a.embedder.Embed(qctx, []string{question}, llm.EmbedQuery)
	if err != nil || len(vecs) != 1 {
		return Fallback
	}

	passages := a.topChunks(vecs[0], table)

	gctx := llm.WithPurpose(ctx, llm.PurposeQnA)
	req := llm.Prompt(qnaSystemPrompt, buildQnAUserMessage(question, passages), a.cfg.MaxTokens, a.cfg.Temperature)
	return llm.Complete(gctx, a.provider, req).Or(Fallback)
}

type scored struct {
	idx   int
	score float32
}

// topChunks returns up to TopK chunk texts in descending score order.
// Ties keep script order.
func (a *Answerer) topChunks(query []float32, table *Table) []string {
	ranked := make([]scored, len(table.Chunks))
	for i, c := range table.Chunks {
		ranked[i] = scored{idx: i, score: dot(query, c.Vector)}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})

	k := min(a.cfg.TopK, len(ranked))
	out := make([]string, k)
	for i := range k {
		out[i] = table.Chunks[ranked[i].idx].Text
	}
	return out
}

// dot is the inner product over the shorter of the two vectors.
func dot(a, b []float32) float32 {
	n := min(len(a), len(b))
	var s float32
	for i := range n {
		s += a[i] * b[i]
	}
	return s
}
