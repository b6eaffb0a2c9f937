package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
)

type progressRepo struct {
	db *sql.DB
}

func progressKey(enrollmentID int, lessonID string) *entsql.Predicate {
	return entsql.And(
		entsql.EQ("enrollment_id", enrollmentID),
		entsql.EQ("lesson_id", lessonID),
	)
}

func (r *progressRepo) LoadProgress(ctx context.Context, enrollmentID int, lessonID string) (*Progress, error) {
	query, args := builder.Select("step_index", "chunk_index", "awaiting_answer", "updated_at").
		From(entsql.Table(LessonProgressTable.Name)).
		Where(progressKey(enrollmentID, lessonID)).
		Query()

	var p Progress
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&p.StepIndex, &p.ChunkIndex, &p.AwaitingAnswer, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("progress: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query progress: %w", err)
	}
	return &p, nil
}

func (r *progressRepo) SaveProgress(ctx context.Context, enrollmentID int, lessonID string, p Progress) error {
	query, args := builder.Insert(LessonProgressTable.Name).
		Columns("enrollment_id", "lesson_id", "step_index", "chunk_index", "awaiting_answer", "updated_at").
		Values(enrollmentID, lessonID, p.StepIndex, p.ChunkIndex, p.AwaitingAnswer, time.Now().UTC()).
		OnConflict(
			entsql.ConflictColumns("enrollment_id", "lesson_id"),
			entsql.ResolveWithNewValues(),
		).
		Query()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("save progress: %w", err)
	}
	return nil
}

func (r *progressRepo) DeleteProgress(ctx context.Context, enrollmentID int, lessonID string) error {
	query, args := builder.Delete(LessonProgressTable.Name).
		Where(progressKey(enrollmentID, lessonID)).
		Query()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete progress: %w", err)
	}
	return nil
}
