package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
)

type reviewRepo struct {
	db *sql.DB
}

func (r *reviewRepo) CreateReview(ctx context.Context, rv Review) (*Review, error) {
	rv.CreatedAt = time.Now().UTC()
	query, args := builder.Insert(ReviewsTable.Name).
		Columns("user_id", "course_id", "rating", "comment", "created_at").
		Values(rv.UserID, rv.CourseID, rv.Rating, rv.Comment, rv.CreatedAt).
		Returning("id").
		Query()

	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&rv.ID); err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("review of course %s: %w", rv.CourseID, ErrConflict)
		}
		return nil, fmt.Errorf("insert review: %w", err)
	}
	return &rv, nil
}

func (r *reviewRepo) ReviewByUser(ctx context.Context, userID int, courseID string) (*Review, error) {
	rows, err := r.query(ctx, entsql.And(
		entsql.EQ(entsql.Table(ReviewsTable.Name).C("user_id"), userID),
		entsql.EQ(entsql.Table(ReviewsTable.Name).C("course_id"), courseID),
	))
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("review: %w", ErrNotFound)
	}
	return &rows[0], nil
}

func (r *reviewRepo) ListReviews(ctx context.Context, courseID string) ([]Review, error) {
	return r.query(ctx, entsql.EQ(entsql.Table(ReviewsTable.Name).C("course_id"), courseID))
}

func (r *reviewRepo) query(ctx context.Context, p *entsql.Predicate) ([]Review, error) {
	reviews := entsql.Table(ReviewsTable.Name)
	users := entsql.Table(UsersTable.Name)
	query, args := builder.Select(
		reviews.C("id"), reviews.C("user_id"), users.C("username"), reviews.C("course_id"),
		reviews.C("rating"), reviews.C("comment"), reviews.C("created_at"),
	).
		From(reviews).
		Join(users).On(reviews.C("user_id"), users.C("id")).
		Where(p).
		OrderBy(entsql.Desc(reviews.C("created_at")), entsql.Desc(reviews.C("id"))).
		Query()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query reviews: %w", err)
	}
	defer rows.Close()

	var out []Review
	for rows.Next() {
		var (
			rv      Review
			comment sql.NullString
		)
		if err := rows.Scan(&rv.ID, &rv.UserID, &rv.Username, &rv.CourseID, &rv.Rating, &comment, &rv.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		rv.Comment = comment.String
		out = append(out, rv)
	}
	return out, rows.Err()
}
