package store

import (
	"context"
	"errors"
	"testing"
)

func TestProgressUpsertAndDelete(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	u, c := seedCourse(t, s)
	l := addChapters(t, s, c.ID, "Roots")[0]
	e, _, err := s.EnrollmentRepo().Enroll(ctx, u.ID, c.ID)
	if err != nil {
		t.Fatalf("enroll: %v", err)
	}
	repo := s.ProgressRepo()

	if _, err := repo.LoadProgress(ctx, e.ID, l.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("load before save err = %v, want ErrNotFound", err)
	}

	if err := repo.SaveProgress(ctx, e.ID, l.ID, Progress{StepIndex: 1, ChunkIndex: 2}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := repo.SaveProgress(ctx, e.ID, l.ID, Progress{StepIndex: 3, AwaitingAnswer: true}); err != nil {
		t.Fatalf("save again: %v", err)
	}

	p, err := repo.LoadProgress(ctx, e.ID, l.ID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if p.StepIndex != 3 || p.ChunkIndex != 0 || !p.AwaitingAnswer {
		t.Fatalf("progress = %+v", p)
	}

	var rows int
	if err := s.DB().QueryRow("SELECT COUNT(*) FROM lesson_progress").Scan(&rows); err != nil {
		t.Fatalf("count: %v", err)
	}
	if rows != 1 {
		t.Fatalf("progress rows = %d, want 1", rows)
	}

	if err := repo.DeleteProgress(ctx, e.ID, l.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := repo.LoadProgress(ctx, e.ID, l.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("load after delete err = %v, want ErrNotFound", err)
	}
	// Deleting a missing row is not an error.
	if err := repo.DeleteProgress(ctx, e.ID, l.ID); err != nil {
		t.Fatalf("delete missing: %v", err)
	}
}

func TestProgressRemovedWithLesson(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	u, c := seedCourse(t, s)
	l := addChapters(t, s, c.ID, "Roots")[0]
	e, _, err := s.EnrollmentRepo().Enroll(ctx, u.ID, c.ID)
	if err != nil {
		t.Fatalf("enroll: %v", err)
	}
	if err := s.ProgressRepo().SaveProgress(ctx, e.ID, l.ID, Progress{StepIndex: 2}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.LessonRepo().DeleteLesson(ctx, l.ID); err != nil {
		t.Fatalf("delete lesson: %v", err)
	}
	if _, err := s.ProgressRepo().LoadProgress(ctx, e.ID, l.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("progress after lesson delete err = %v, want ErrNotFound", err)
	}
}
