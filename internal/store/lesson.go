package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
)

var lessonColumns = []string{"id", "course_id", "title", "chapter_number", "raw_script", "steps", "updated_at"}

type lessonRepo struct {
	db *sql.DB
}

func (r *lessonRepo) CreateLesson(ctx context.Context, nl NewLesson) (*Lesson, error) {
	l := &Lesson{
		ID:        uuid.NewString(),
		CourseID:  nl.CourseID,
		Title:     nl.Title,
		RawScript: nl.RawScript,
		Steps:     nl.Steps,
		UpdatedAt: time.Now().UTC(),
	}

	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		query, args := builder.Select("COALESCE(MAX(`chapter_number`), 0)").
			From(entsql.Table(LessonsTable.Name)).
			Where(entsql.EQ("course_id", nl.CourseID)).
			Query()
		var last int
		if err := tx.QueryRowContext(ctx, query, args...).Scan(&last); err != nil {
			return fmt.Errorf("last chapter: %w", err)
		}
		l.ChapterNumber = last + 1

		query, args = builder.Insert(LessonsTable.Name).
			Columns(lessonColumns...).
			Values(l.ID, l.CourseID, l.Title, l.ChapterNumber, l.RawScript, string(l.Steps), l.UpdatedAt).
			Query()
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert lesson: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return l, nil
}

func (r *lessonRepo) GetLesson(ctx context.Context, id string) (*Lesson, error) {
	return r.one(ctx, entsql.EQ("id", id), "lesson "+id)
}

func (r *lessonRepo) LessonByChapter(ctx context.Context, courseID string, chapter int) (*Lesson, error) {
	return r.one(ctx,
		entsql.And(entsql.EQ("course_id", courseID), entsql.EQ("chapter_number", chapter)),
		fmt.Sprintf("chapter %d of course %s", chapter, courseID))
}

func (r *lessonRepo) one(ctx context.Context, p *entsql.Predicate, what string) (*Lesson, error) {
	query, args := builder.Select(lessonColumns...).
		From(entsql.Table(LessonsTable.Name)).
		Where(p).
		Limit(1).
		Query()

	l, err := scanLesson(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query lesson: %w", err)
	}
	return l, nil
}

func (r *lessonRepo) ListLessons(ctx context.Context, courseID string) ([]Lesson, error) {
	query, args := builder.Select(lessonColumns...).
		From(entsql.Table(LessonsTable.Name)).
		Where(entsql.EQ("course_id", courseID)).
		OrderBy("chapter_number").
		Query()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query lessons: %w", err)
	}
	defer rows.Close()

	var out []Lesson
	for rows.Next() {
		l, err := scanLesson(rows)
		if err != nil {
			return nil, fmt.Errorf("scan lesson: %w", err)
		}
		out = append(out, *l)
	}
	return out, rows.Err()
}

func (r *lessonRepo) CountLessons(ctx context.Context, courseID string) (int, error) {
	query, args := builder.Select("COUNT(*)").
		From(entsql.Table(LessonsTable.Name)).
		Where(entsql.EQ("course_id", courseID)).
		Query()
	var n int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count lessons: %w", err)
	}
	return n, nil
}

func (r *lessonRepo) UpdateLessonContent(ctx context.Context, id, title, rawScript string, steps json.RawMessage) error {
	query, args := builder.Update(LessonsTable.Name).
		Set("title", title).
		Set("raw_script", rawScript).
		Set("steps", string(steps)).
		Set("updated_at", time.Now().UTC()).
		Where(entsql.EQ("id", id)).
		Query()
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update lesson: %w", err)
	}
	return expectAffected(res, "lesson "+id)
}

func (r *lessonRepo) DeleteLesson(ctx context.Context, id string) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		query, args := builder.Select("course_id", "chapter_number").
			From(entsql.Table(LessonsTable.Name)).
			Where(entsql.EQ("id", id)).
			Query()
		var (
			courseID string
			chapter  int
		)
		err := tx.QueryRowContext(ctx, query, args...).Scan(&courseID, &chapter)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("lesson %s: %w", id, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("query lesson: %w", err)
		}

		query, args = builder.Delete(LessonsTable.Name).Where(entsql.EQ("id", id)).Query()
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("delete lesson: %w", err)
		}

		query, args = builder.Update(LessonsTable.Name).
			Add("chapter_number", -1).
			Where(entsql.And(
				entsql.EQ("course_id", courseID),
				entsql.GT("chapter_number", chapter),
			)).
			Query()
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("renumber chapters: %w", err)
		}
		return nil
	})
}

func (r *lessonRepo) ReorderLessons(ctx context.Context, courseID string, ids []string) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		query, args := builder.Select("id").
			From(entsql.Table(LessonsTable.Name)).
			Where(entsql.EQ("course_id", courseID)).
			OrderBy("chapter_number").
			Query()
		current, err := queryStrings(ctx, tx, query, args...)
		if err != nil {
			return fmt.Errorf("list chapters: %w", err)
		}

		// Requested ids first, then chapters the caller left out, keeping
		// numbering contiguous.
		inCourse := make(map[string]bool, len(current))
		for _, id := range current {
			inCourse[id] = true
		}
		order := make([]string, 0, len(current))
		placed := make(map[string]bool, len(current))
		for _, id := range ids {
			if inCourse[id] && !placed[id] {
				order = append(order, id)
				placed[id] = true
			}
		}
		for _, id := range current {
			if !placed[id] {
				order = append(order, id)
			}
		}

		for i, id := range order {
			query, args := builder.Update(LessonsTable.Name).
				Set("chapter_number", i+1).
				Where(entsql.EQ("id", id)).
				Query()
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return fmt.Errorf("reorder lesson %s: %w", id, err)
			}
		}
		return nil
	})
}

func queryStrings(ctx context.Context, q querier, query string, args ...any) ([]string, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func scanLesson(row rowScanner) (*Lesson, error) {
	var (
		l     Lesson
		steps string
	)
	if err := row.Scan(&l.ID, &l.CourseID, &l.Title, &l.ChapterNumber, &l.RawScript, &steps, &l.UpdatedAt); err != nil {
		return nil, err
	}
	l.Steps = json.RawMessage(steps)
	return &l, nil
}
