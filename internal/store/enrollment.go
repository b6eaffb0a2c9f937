package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
)

var enrollmentColumns = []string{"id", "user_id", "course_id", "last_completed_chapter_number", "completed_at", "created_at"}

type enrollmentRepo struct {
	db *sql.DB
}

func (r *enrollmentRepo) Enroll(ctx context.Context, userID int, courseID string) (*Enrollment, bool, error) {
	query, args := builder.Insert(EnrollmentsTable.Name).
		Columns("user_id", "course_id", "last_completed_chapter_number", "created_at").
		Values(userID, courseID, 0, time.Now().UTC()).
		OnConflict(
			entsql.ConflictColumns("user_id", "course_id"),
			entsql.DoNothing(),
		).
		Query()
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, false, fmt.Errorf("insert enrollment: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("rows affected: %w", err)
	}

	e, err := r.GetEnrollment(ctx, userID, courseID)
	if err != nil {
		return nil, false, err
	}
	return e, n > 0, nil
}

func (r *enrollmentRepo) GetEnrollment(ctx context.Context, userID int, courseID string) (*Enrollment, error) {
	query, args := builder.Select(enrollmentColumns...).
		From(entsql.Table(EnrollmentsTable.Name)).
		Where(entsql.And(
			entsql.EQ("user_id", userID),
			entsql.EQ("course_id", courseID),
		)).
		Query()

	e, err := scanEnrollment(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("enrollment: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query enrollment: %w", err)
	}
	return e, nil
}

func (r *enrollmentRepo) ListEnrollments(ctx context.Context, userID int) ([]Enrollment, error) {
	query, args := builder.Select(enrollmentColumns...).
		From(entsql.Table(EnrollmentsTable.Name)).
		Where(entsql.EQ("user_id", userID)).
		OrderBy("created_at").
		Query()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query enrollments: %w", err)
	}
	defer rows.Close()

	var out []Enrollment
	for rows.Next() {
		e, err := scanEnrollment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan enrollment: %w", err)
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

func (r *enrollmentRepo) CompleteChapter(ctx context.Context, enrollmentID, chapter int, lastChapter bool, now time.Time) (ChapterCompletion, error) {
	var out ChapterCompletion
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		query, args := builder.Select("last_completed_chapter_number", "completed_at").
			From(entsql.Table(EnrollmentsTable.Name)).
			Where(entsql.EQ("id", enrollmentID)).
			Query()
		var (
			last        int
			completedAt sql.NullTime
		)
		err := tx.QueryRowContext(ctx, query, args...).Scan(&last, &completedAt)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("enrollment %d: %w", enrollmentID, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("query enrollment: %w", err)
		}

		if chapter <= last {
			return nil
		}
		out.Raised = true

		upd := builder.Update(EnrollmentsTable.Name).
			Set("last_completed_chapter_number", chapter).
			Where(entsql.EQ("id", enrollmentID))
		if lastChapter && !completedAt.Valid {
			upd = upd.Set("completed_at", now.UTC())
			out.CourseCompleted = true
		}
		query, args = upd.Query()
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("update enrollment: %w", err)
		}
		return nil
	})
	if err != nil {
		return ChapterCompletion{}, err
	}
	return out, nil
}

func scanEnrollment(row rowScanner) (*Enrollment, error) {
	var (
		e           Enrollment
		completedAt sql.NullTime
	)
	if err := row.Scan(&e.ID, &e.UserID, &e.CourseID, &e.LastCompletedChapterNumber, &completedAt, &e.CreatedAt); err != nil {
		return nil, err
	}
	if completedAt.Valid {
		t := completedAt.Time
		e.CompletedAt = &t
	}
	return &e, nil
}
