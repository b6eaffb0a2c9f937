package llm

import (
	"context"
	"fmt"
)

// EmbedMode tells the embedding oracle how the text will be used.
// Providers with asymmetric retrieval models embed documents and queries
// differently; symmetric providers ignore it.
type EmbedMode string

const (
	EmbedDocument EmbedMode = "document"
	EmbedQuery    EmbedMode = "query"
)

// Embedder is the embedding oracle. Embed returns one vector per input
// text, in input order. Vectors from one Embedder share a dimension and
// are comparable by inner product.
type Embedder interface {
	Embed(ctx context.Context, texts []string, mode EmbedMode) ([][]float32, error)

	// ModelID returns the embedding model identifier.
	ModelID() string
}

// checkEmbeddingCount guards against providers returning fewer vectors
// than inputs.
func checkEmbeddingCount(want, got int) error {
	if want != got {
		return &ErrInvalidResponse{
			Err: fmt.Errorf("expected %d embeddings, got %d", want, got),
		}
	}
	return nil
}
