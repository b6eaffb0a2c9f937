package store

import (
	"context"
	"errors"
	"testing"
)

func TestReviewOncePerLearner(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	_, c := seedCourse(t, s)
	learner, err := s.UserRepo().CreateUser(ctx, "grace")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	if _, err := s.ReviewRepo().ReviewByUser(ctx, learner.ID, c.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("review before submit err = %v, want ErrNotFound", err)
	}

	rv, err := s.ReviewRepo().CreateReview(ctx, Review{UserID: learner.ID, CourseID: c.ID, Rating: 4, Comment: "clear"})
	if err != nil {
		t.Fatalf("create review: %v", err)
	}
	if rv.ID == 0 || rv.CreatedAt.IsZero() {
		t.Fatalf("review = %+v", rv)
	}

	_, err = s.ReviewRepo().CreateReview(ctx, Review{UserID: learner.ID, CourseID: c.ID, Rating: 1})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("second review err = %v, want ErrConflict", err)
	}

	got, err := s.ReviewRepo().ReviewByUser(ctx, learner.ID, c.ID)
	if err != nil {
		t.Fatalf("review by user: %v", err)
	}
	if got.Rating != 4 || got.Comment != "clear" || got.Username != "grace" {
		t.Fatalf("review = %+v", got)
	}
}

func TestListReviewsNewestFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	_, c := seedCourse(t, s)

	for i, name := range []string{"ada", "grace", "linus"} {
		u, err := s.UserRepo().CreateUser(ctx, name)
		if err != nil {
			t.Fatalf("create user: %v", err)
		}
		if _, err := s.ReviewRepo().CreateReview(ctx, Review{UserID: u.ID, CourseID: c.ID, Rating: i + 3}); err != nil {
			t.Fatalf("create review: %v", err)
		}
	}

	list, err := s.ReviewRepo().ListReviews(ctx, c.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("reviews = %d, want 3", len(list))
	}
	if list[0].Username != "linus" || list[2].Username != "ada" {
		t.Fatalf("order = %s, %s, %s", list[0].Username, list[1].Username, list[2].Username)
	}
	if list[1].Comment != "" {
		t.Fatalf("empty comment = %q", list[1].Comment)
	}
}
