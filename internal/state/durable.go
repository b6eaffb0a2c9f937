package state

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/abhisek/coursewell/internal/lesson"
	"github.com/abhisek/coursewell/internal/store"
)

// Durable keeps learner cursors in the lesson_progress table.
type Durable struct {
	repo store.ProgressRepo
}

// NewDurable creates a Durable store over repo.
func NewDurable(repo store.ProgressRepo) *Durable {
	return &Durable{repo: repo}
}

func (d *Durable) Load(ctx context.Context, k Key) (lesson.Cursor, bool, error) {
	id, err := enrollmentID(k)
	if err != nil {
		return lesson.Start, false, err
	}
	p, err := d.repo.LoadProgress(ctx, id, k.LessonID)
	if errors.Is(err, store.ErrNotFound) {
		return lesson.Start, false, nil
	}
	if err != nil {
		return lesson.Start, false, err
	}
	return lesson.Cursor{Step: p.StepIndex, Chunk: p.ChunkIndex, Awaiting: p.AwaitingAnswer}, true, nil
}

func (d *Durable) Save(ctx context.Context, k Key, c lesson.Cursor) error {
	id, err := enrollmentID(k)
	if err != nil {
		return err
	}
	return d.repo.SaveProgress(ctx, id, k.LessonID, store.Progress{
		StepIndex:      c.Step,
		ChunkIndex:     c.Chunk,
		AwaitingAnswer: c.Awaiting,
	})
}

func (d *Durable) Delete(ctx context.Context, k Key) error {
	id, err := enrollmentID(k)
	if err != nil {
		return err
	}
	return d.repo.DeleteProgress(ctx, id, k.LessonID)
}

func enrollmentID(k Key) (int, error) {
	if k.Scope != ScopeLearner {
		return 0, fmt.Errorf("durable state: %s key not allowed", k.Scope)
	}
	id, err := strconv.Atoi(k.Owner)
	if err != nil {
		return 0, fmt.Errorf("durable state: bad enrollment id %q: %w", k.Owner, err)
	}
	return id, nil
}
