package server

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds HTTP server settings.
type Config struct {
	Addr          string
	JWTSecret     string
	TokenTTL      time.Duration
	UploadDir     string
	MaxUploadSize int64

	// RedisAddr enables redis for preview cursors and turn locks.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// ConfigFromEnv reads COURSEWELL_* variables.
//
//	COURSEWELL_ADDR            listen address (default :8080)
//	COURSEWELL_JWT_SECRET      HS256 signing key (required)
//	COURSEWELL_TOKEN_TTL       token lifetime (default 24h)
//	COURSEWELL_UPLOAD_DIR      media directory (default ./uploads)
//	COURSEWELL_MAX_UPLOAD_MB   multipart limit (default 32)
//	COURSEWELL_REDIS_ADDR      redis address (optional)
//	COURSEWELL_REDIS_PASSWORD
//	COURSEWELL_REDIS_DB
func ConfigFromEnv() (Config, error) {
	cfg := Config{
		Addr:          envOr("COURSEWELL_ADDR", ":8080"),
		JWTSecret:     os.Getenv("COURSEWELL_JWT_SECRET"),
		TokenTTL:      24 * time.Hour,
		UploadDir:     envOr("COURSEWELL_UPLOAD_DIR", "uploads"),
		MaxUploadSize: 32 << 20,
		RedisAddr:     os.Getenv("COURSEWELL_REDIS_ADDR"),
		RedisPassword: os.Getenv("COURSEWELL_REDIS_PASSWORD"),
	}

	if v := os.Getenv("COURSEWELL_TOKEN_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return cfg, fmt.Errorf("COURSEWELL_TOKEN_TTL: %w", err)
		}
		cfg.TokenTTL = d
	}
	if v := os.Getenv("COURSEWELL_MAX_UPLOAD_MB"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 {
			return cfg, fmt.Errorf("COURSEWELL_MAX_UPLOAD_MB: invalid value %q", v)
		}
		cfg.MaxUploadSize = n << 20
	}
	if v := os.Getenv("COURSEWELL_REDIS_DB"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("COURSEWELL_REDIS_DB: %w", err)
		}
		cfg.RedisDB = n
	}
	return cfg, nil
}

// Validate checks settings needed to serve.
func (c Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("COURSEWELL_JWT_SECRET is required")
	}
	if len(c.JWTSecret) < 16 {
		return fmt.Errorf("COURSEWELL_JWT_SECRET must be at least 16 bytes")
	}
	return nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
