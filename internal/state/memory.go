package state

import (
	"context"
	"sync"

	"github.com/abhisek/coursewell/internal/lesson"
)

// Memory is a process-local ephemeral store.
type Memory struct {
	mu      sync.RWMutex
	cursors map[Key]lesson.Cursor
}

// NewMemory creates an empty Memory store.
func NewMemory() *Memory {
	return &Memory{cursors: make(map[Key]lesson.Cursor)}
}

func (m *Memory) Load(_ context.Context, k Key) (lesson.Cursor, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.cursors[k]
	return c, ok, nil
}

func (m *Memory) Save(_ context.Context, k Key, c lesson.Cursor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cursors[k] = c
	return nil
}

func (m *Memory) Delete(_ context.Context, k Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cursors, k)
	return nil
}
