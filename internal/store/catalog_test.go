package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
)

func TestCreateUserConflict(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.UserRepo().CreateUser(ctx, "grace"); err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err := s.UserRepo().CreateUser(ctx, "grace")
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("duplicate user err = %v, want ErrConflict", err)
	}
	if _, err := s.UserRepo().CreateUser(ctx, "  "); err == nil {
		t.Fatal("expected error for blank username")
	}
}

func TestGetUserNotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.UserRepo().GetUser(context.Background(), 999)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestCourseLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	u, c := seedCourse(t, s)

	got, err := s.CourseRepo().GetCourse(ctx, c.ID)
	if err != nil {
		t.Fatalf("get course: %v", err)
	}
	if got.Title != "Plant Biology" || got.CreatorID != u.ID || got.IsPublished {
		t.Fatalf("unexpected course: %+v", got)
	}

	published, err := s.CourseRepo().ListCourses(ctx, CourseFilter{PublishedOnly: true})
	if err != nil {
		t.Fatalf("list published: %v", err)
	}
	if len(published) != 0 {
		t.Fatalf("published = %d, want 0", len(published))
	}

	if err := s.CourseRepo().SetPublished(ctx, c.ID, true); err != nil {
		t.Fatalf("publish: %v", err)
	}
	published, err = s.CourseRepo().ListCourses(ctx, CourseFilter{PublishedOnly: true})
	if err != nil {
		t.Fatalf("list published: %v", err)
	}
	if len(published) != 1 || published[0].ID != c.ID {
		t.Fatalf("published = %+v", published)
	}

	if err := s.CourseRepo().SetPublished(ctx, "missing", true); !errors.Is(err, ErrNotFound) {
		t.Fatalf("publish missing err = %v, want ErrNotFound", err)
	}
}

func TestListCoursesByCreator(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	u1, _ := seedCourse(t, s)
	seedCourse(t, s)

	mine, err := s.CourseRepo().ListCourses(ctx, CourseFilter{CreatorID: u1.ID})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(mine) != 1 {
		t.Fatalf("courses for creator = %d, want 1", len(mine))
	}
	all, err := s.CourseRepo().ListCourses(ctx, CourseFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("all courses = %d, want 2", len(all))
	}
}

func addChapters(t *testing.T, s *Store, courseID string, titles ...string) []*Lesson {
	t.Helper()
	var out []*Lesson
	for _, title := range titles {
		l, err := s.LessonRepo().CreateLesson(context.Background(), NewLesson{
			CourseID:  courseID,
			Title:     title,
			RawScript: "Script for " + title,
			Steps:     json.RawMessage(`[{"type":"CONTENT","paragraphs":["hi"]}]`),
		})
		if err != nil {
			t.Fatalf("create lesson %s: %v", title, err)
		}
		out = append(out, l)
	}
	return out
}

func chapterTitles(t *testing.T, s *Store, courseID string) []string {
	t.Helper()
	lessons, err := s.LessonRepo().ListLessons(context.Background(), courseID)
	if err != nil {
		t.Fatalf("list lessons: %v", err)
	}
	var out []string
	for i, l := range lessons {
		if l.ChapterNumber != i+1 {
			t.Fatalf("lesson %s has chapter %d at position %d", l.Title, l.ChapterNumber, i+1)
		}
		out = append(out, l.Title)
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestCreateLessonNumbersChapters(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	_, c := seedCourse(t, s)

	ls := addChapters(t, s, c.ID, "Roots", "Stems", "Leaves")
	for i, l := range ls {
		if l.ChapterNumber != i+1 {
			t.Errorf("%s chapter = %d, want %d", l.Title, l.ChapterNumber, i+1)
		}
	}

	n, err := s.LessonRepo().CountLessons(ctx, c.ID)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 3 {
		t.Fatalf("count = %d, want 3", n)
	}

	l, err := s.LessonRepo().LessonByChapter(ctx, c.ID, 2)
	if err != nil {
		t.Fatalf("by chapter: %v", err)
	}
	if l.Title != "Stems" {
		t.Fatalf("chapter 2 = %q, want Stems", l.Title)
	}
	if string(l.Steps) != `[{"type":"CONTENT","paragraphs":["hi"]}]` {
		t.Fatalf("steps = %s", l.Steps)
	}

	if _, err := s.LessonRepo().LessonByChapter(ctx, c.ID, 4); !errors.Is(err, ErrNotFound) {
		t.Fatalf("chapter 4 err = %v, want ErrNotFound", err)
	}
}

func TestUpdateLessonContent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	_, c := seedCourse(t, s)
	l := addChapters(t, s, c.ID, "Roots")[0]

	steps := json.RawMessage(`[{"type":"QUESTION","question_type":"SA","question":"Why?","keywords":["water"]}]`)
	if err := s.LessonRepo().UpdateLessonContent(ctx, l.ID, "Root Systems", "new script", steps); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err := s.LessonRepo().GetLesson(ctx, l.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title != "Root Systems" || got.RawScript != "new script" || string(got.Steps) != string(steps) {
		t.Fatalf("unexpected lesson after update: %+v", got)
	}
	if got.ChapterNumber != 1 {
		t.Fatalf("chapter = %d, want 1", got.ChapterNumber)
	}

	err = s.LessonRepo().UpdateLessonContent(ctx, "missing", "x", "y", steps)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("update missing err = %v, want ErrNotFound", err)
	}
}

func TestDeleteLessonRenumbers(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	_, c := seedCourse(t, s)
	ls := addChapters(t, s, c.ID, "Roots", "Stems", "Leaves", "Flowers")

	if err := s.LessonRepo().DeleteLesson(ctx, ls[1].ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got := chapterTitles(t, s, c.ID)
	want := []string{"Roots", "Leaves", "Flowers"}
	if !equalStrings(got, want) {
		t.Fatalf("chapters = %v, want %v", got, want)
	}

	if err := s.LessonRepo().DeleteLesson(ctx, ls[1].ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete err = %v, want ErrNotFound", err)
	}

	// A new chapter goes after the renumbered tail.
	l := addChapters(t, s, c.ID, "Seeds")[0]
	if l.ChapterNumber != 4 {
		t.Fatalf("new chapter = %d, want 4", l.ChapterNumber)
	}
}

func TestReorderLessons(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	_, c := seedCourse(t, s)
	ls := addChapters(t, s, c.ID, "Roots", "Stems", "Leaves")

	tests := []struct {
		name string
		ids  []string
		want []string
	}{
		{
			name: "full order",
			ids:  []string{ls[2].ID, ls[0].ID, ls[1].ID},
			want: []string{"Leaves", "Roots", "Stems"},
		},
		{
			name: "partial order keeps the rest",
			ids:  []string{ls[1].ID},
			want: []string{"Stems", "Leaves", "Roots"},
		},
		{
			name: "foreign and duplicate ids ignored",
			ids:  []string{"nope", ls[0].ID, ls[0].ID},
			want: []string{"Roots", "Stems", "Leaves"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := s.LessonRepo().ReorderLessons(ctx, c.ID, tt.ids); err != nil {
				t.Fatalf("reorder: %v", err)
			}
			got := chapterTitles(t, s, c.ID)
			if !equalStrings(got, tt.want) {
				t.Fatalf("chapters = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDeleteCourseCascadesToLessons(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	_, c := seedCourse(t, s)
	addChapters(t, s, c.ID, "Roots")

	if _, err := s.DB().Exec("DELETE FROM courses WHERE id = ?", c.ID); err != nil {
		t.Fatalf("delete course: %v", err)
	}
	n, err := s.LessonRepo().CountLessons(ctx, c.ID)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Fatalf("lessons after cascade = %d, want 0", n)
	}
}
