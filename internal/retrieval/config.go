package retrieval

// Config holds question answering settings.
type Config struct {
	TopK        int
	MaxTokens   int
	Temperature float64
}

// DefaultConfig returns sensible defaults for question answering.
func DefaultConfig() Config {
	return Config{
		TopK:        3,
		MaxTokens:   512,
		Temperature: 0.3,
	}
}
