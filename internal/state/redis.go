package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/abhisek/coursewell/internal/lesson"
)

const (
	defaultPrefix = "coursewell:cursor:"
	defaultTTL    = 24 * time.Hour
)

// Redis is an ephemeral store shared by server replicas. Entries expire
// after the TTL, refreshed on every save.
type Redis struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

// RedisOption configures a Redis store.
type RedisOption func(*Redis)

// WithTTL sets the expiry of saved cursors. Zero disables expiry.
func WithTTL(ttl time.Duration) RedisOption {
	return func(r *Redis) {
		r.ttl = ttl
	}
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) RedisOption {
	return func(r *Redis) {
		r.prefix = prefix
	}
}

// NewRedis creates a Redis store from an existing client.
func NewRedis(client *backend.Client, opts ...RedisOption) *Redis {
	r := &Redis{
		client: client,
		prefix: defaultPrefix,
		ttl:    defaultTTL,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Redis) key(k Key) string {
	return r.prefix + k.String()
}

func (r *Redis) Load(ctx context.Context, k Key) (lesson.Cursor, bool, error) {
	val, err := r.client.Get(ctx, r.key(k)).Bytes()
	if errors.Is(err, backend.Nil) {
		return lesson.Start, false, nil
	}
	if err != nil {
		return lesson.Start, false, fmt.Errorf("redis get: %w", err)
	}

	var c lesson.Cursor
	if err := json.Unmarshal(val, &c); err != nil {
		return lesson.Start, false, fmt.Errorf("decode cursor: %w", err)
	}
	return c, true, nil
}

func (r *Redis) Save(ctx context.Context, k Key, c lesson.Cursor) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode cursor: %w", err)
	}
	if err := r.client.Set(ctx, r.key(k), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, k Key) error {
	if err := r.client.Del(ctx, r.key(k)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
