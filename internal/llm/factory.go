package llm

import (
	"context"
	"fmt"

	"github.com/abhisek/coursewell/internal/logging"
	"github.com/abhisek/coursewell/internal/store"
)

// NewProvider creates a Provider from configuration.
// It returns the provider wrapped with timeout, retry and logging middleware.
func NewProvider(ctx context.Context, cfg Config, eventRepo store.EventRepo, log *logging.Logger) (Provider, error) {
	var base Provider
	var err error

	switch cfg.Provider {
	case "anthropic":
		base, err = NewAnthropicProvider(cfg.Anthropic)
	case "openai":
		base, err = NewOpenAIProvider(cfg.OpenAI)
	case "gemini":
		base, err = NewGeminiProvider(ctx, cfg.Gemini)
	case "openrouter":
		base, err = NewOpenRouterProvider(cfg.OpenRouter)
	case "mock":
		return NewMockProvider(), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider: %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("initializing %s provider: %w", cfg.Provider, err)
	}

	// caller → timeout → retry → logging → base
	logged := WithLogging(base, eventRepo, log)
	retried := WithRetry(logged, cfg.Retry)
	return WithTimeout(retried, cfg.Timeout), nil
}

// NewEmbedder creates the embedding oracle selected by cfg.
func NewEmbedder(ctx context.Context, cfg Config, eventRepo store.EventRepo, log *logging.Logger) (Embedder, error) {
	var base Embedder
	var err error

	provider := cfg.EmbeddingProvider()
	switch provider {
	case "gemini":
		base, err = NewGeminiEmbedder(ctx, cfg.Gemini, cfg.Embedding.Model)
	case "openai":
		base, err = NewOpenAIEmbedder(cfg.OpenAI, cfg.Embedding.Model)
	case "mock":
		return NewMockEmbedder(), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider: %q", provider)
	}
	if err != nil {
		return nil, fmt.Errorf("initializing %s embedder: %w", provider, err)
	}

	return WithEmbedTimeout(WithEmbedLogging(base, eventRepo, log), cfg.Timeout), nil
}

// Oracles bundles both oracle kinds built from one Config.
type Oracles struct {
	Provider Provider
	Embedder Embedder
}

// NewOraclesFromEnv reads COURSEWELL_* variables, falling back to standard
// API key discovery, validates the result and builds both oracles.
func NewOraclesFromEnv(ctx context.Context, eventRepo store.EventRepo, log *logging.Logger) (*Oracles, error) {
	cfg := ConfigFromEnv()
	if err := cfg.Validate(); err != nil {
		discovered, ok := DiscoverConfig()
		if !ok {
			return nil, err
		}
		cfg = discovered
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	p, err := NewProvider(ctx, cfg, eventRepo, log)
	if err != nil {
		return nil, err
	}
	e, err := NewEmbedder(ctx, cfg, eventRepo, log)
	if err != nil {
		return nil, err
	}
	return &Oracles{Provider: p, Embedder: e}, nil
}
