package progression

// Config holds tutoring generation settings.
type Config struct {
	ExplainMaxTokens int
	RemarkMaxTokens  int
	Temperature      float64
}

// DefaultConfig returns sensible defaults for tutoring turns.
func DefaultConfig() Config {
	return Config{
		ExplainMaxTokens: 1024,
		RemarkMaxTokens:  256,
		Temperature:      0.7,
	}
}
