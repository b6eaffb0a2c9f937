package compiler

// Config holds script compilation settings.
type Config struct {
	MaxTokens   int
	Temperature float64
}

// DefaultConfig returns sensible defaults for script compilation. Scripts
// can be long and every paragraph is echoed back, so the token budget is
// generous.
func DefaultConfig() Config {
	return Config{
		MaxTokens:   8192,
		Temperature: 0.1,
	}
}
