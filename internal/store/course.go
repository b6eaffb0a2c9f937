package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
)

var courseColumns = []string{"id", "title", "creator_id", "is_published", "created_at"}

type courseRepo struct {
	db *sql.DB
}

func (r *courseRepo) CreateCourse(ctx context.Context, title string, creatorID int) (*Course, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("a title is required to create a course")
	}

	c := &Course{
		ID:        uuid.NewString(),
		Title:     title,
		CreatorID: creatorID,
		CreatedAt: time.Now().UTC(),
	}
	query, args := builder.Insert(CoursesTable.Name).
		Columns(courseColumns...).
		Values(c.ID, c.Title, c.CreatorID, c.IsPublished, c.CreatedAt).
		Query()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("insert course: %w", err)
	}
	return c, nil
}

func (r *courseRepo) GetCourse(ctx context.Context, id string) (*Course, error) {
	query, args := builder.Select(courseColumns...).
		From(entsql.Table(CoursesTable.Name)).
		Where(entsql.EQ("id", id)).
		Query()

	c, err := scanCourse(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("course %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query course: %w", err)
	}
	return c, nil
}

func (r *courseRepo) ListCourses(ctx context.Context, f CourseFilter) ([]Course, error) {
	sel := builder.Select(courseColumns...).
		From(entsql.Table(CoursesTable.Name)).
		OrderBy("title")

	var preds []*entsql.Predicate
	if f.CreatorID != 0 {
		preds = append(preds, entsql.EQ("creator_id", f.CreatorID))
	}
	if f.PublishedOnly {
		preds = append(preds, entsql.EQ("is_published", true))
	}
	if len(preds) > 0 {
		sel = sel.Where(entsql.And(preds...))
	}

	query, args := sel.Query()
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query courses: %w", err)
	}
	defer rows.Close()

	var out []Course
	for rows.Next() {
		c, err := scanCourse(rows)
		if err != nil {
			return nil, fmt.Errorf("scan course: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (r *courseRepo) SetPublished(ctx context.Context, id string, published bool) error {
	query, args := builder.Update(CoursesTable.Name).
		Set("is_published", published).
		Where(entsql.EQ("id", id)).
		Query()
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update course: %w", err)
	}
	return expectAffected(res, "course "+id)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCourse(row rowScanner) (*Course, error) {
	var c Course
	if err := row.Scan(&c.ID, &c.Title, &c.CreatorID, &c.IsPublished, &c.CreatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

// expectAffected turns a zero-row write into ErrNotFound.
func expectAffected(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return nil
}
