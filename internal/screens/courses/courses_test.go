package courses

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	tea "charm.land/bubbletea/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/coursewell/internal/dialogue"
	"github.com/abhisek/coursewell/internal/router"
	"github.com/abhisek/coursewell/internal/screens/chat"
	"github.com/abhisek/coursewell/internal/store"
)

type fixture struct {
	db      *store.Store
	author  *store.User
	learner *store.User
	course  *store.Course
}

func newFixture(t *testing.T, chapters int) *fixture {
	t.Helper()
	ctx := context.Background()
	db, err := store.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	author, err := db.UserRepo().CreateUser(ctx, "author")
	require.NoError(t, err)
	learner, err := db.UserRepo().CreateUser(ctx, "learner")
	require.NoError(t, err)
	course, err := db.CourseRepo().CreateCourse(ctx, "Plant Biology", author.ID)
	require.NoError(t, err)

	for i := 1; i <= chapters; i++ {
		_, err := db.LessonRepo().CreateLesson(ctx, store.NewLesson{
			CourseID:  course.ID,
			Title:     fmt.Sprintf("Part %d", i),
			RawScript: "text",
			Steps:     []byte(`[]`),
		})
		require.NoError(t, err)
	}
	require.NoError(t, db.CourseRepo().SetPublished(ctx, course.ID, true))

	return &fixture{db: db, author: author, learner: learner, course: course}
}

func (f *fixture) deps(userID int) Deps {
	return Deps{
		Courses:     f.db.CourseRepo(),
		Lessons:     f.db.LessonRepo(),
		Enrollments: f.db.EnrollmentRepo(),
		Caller:      dialogue.Caller{UserID: userID},
	}
}

func TestLoadEnrolledAndOwned(t *testing.T) {
	f := newFixture(t, 3)
	ctx := context.Background()

	e, _, err := f.db.EnrollmentRepo().Enroll(ctx, f.learner.ID, f.course.ID)
	require.NoError(t, err)
	_, err = f.db.EnrollmentRepo().CompleteChapter(ctx, e.ID, 1, false, time.Now())
	require.NoError(t, err)

	entries, err := Load(ctx, f.deps(f.learner.ID))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.False(t, entries[0].Preview)
	assert.Equal(t, 1, entries[0].LastCompleted)
	assert.Equal(t, 2, entries[0].ResumeChapter())
	assert.Len(t, entries[0].Chapters, 3)

	owned, err := Load(ctx, f.deps(f.author.ID))
	require.NoError(t, err)
	require.Len(t, owned, 1)
	assert.True(t, owned[0].Preview)
	assert.Equal(t, 1, owned[0].ResumeChapter())
}

func TestLoadSkipsEmptyCourses(t *testing.T) {
	f := newFixture(t, 0)

	entries, err := Load(context.Background(), f.deps(f.author.ID))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCoursesScreenOpensChapters(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()
	_, _, err := f.db.EnrollmentRepo().Enroll(ctx, f.learner.ID, f.course.ID)
	require.NoError(t, err)

	s := New(f.deps(f.learner.ID))
	s.Update(s.Init()())
	assert.Contains(t, s.View(80, 20), "Plant Biology")
	assert.Contains(t, s.View(80, 20), "chapter 1 of 2")

	_, cmd := s.Update(tea.KeyPressMsg{Code: tea.KeyEnter})
	require.NotNil(t, cmd)
	push, ok := cmd().(router.PushScreenMsg)
	require.True(t, ok)
	assert.Equal(t, "Plant Biology", push.Screen.Title())
}

func TestCoursesScreenEmpty(t *testing.T) {
	f := newFixture(t, 1)

	s := New(f.deps(f.learner.ID))
	s.Update(s.Init()())
	assert.Contains(t, s.View(80, 20), "not enrolled")
}

func TestChaptersLockAfterResumePoint(t *testing.T) {
	f := newFixture(t, 3)
	entries, err := Load(context.Background(), f.deps(f.author.ID))
	require.NoError(t, err)

	learner := entries[0]
	learner.Preview = false
	learner.LastCompleted = 1

	s := NewChapters(f.deps(f.learner.ID), learner)
	assert.Equal(t, 1, s.menu.Selected, "resume chapter should be preselected")
	assert.False(t, s.menu.Items[1].Disabled)
	assert.True(t, s.menu.Items[2].Disabled)
	assert.Equal(t, "done", s.menu.Items[0].Detail)

	preview := NewChapters(f.deps(f.author.ID), entries[0])
	for _, item := range preview.menu.Items {
		assert.False(t, item.Disabled)
	}
	assert.True(t, strings.Contains(preview.View(80, 20), "(preview)"))
}

func TestChapterOpensChat(t *testing.T) {
	f := newFixture(t, 1)
	entries, err := Load(context.Background(), f.deps(f.author.ID))
	require.NoError(t, err)

	s := NewChapters(f.deps(f.author.ID), entries[0])
	_, cmd := s.Update(tea.KeyPressMsg{Code: tea.KeyEnter})
	require.NotNil(t, cmd)
	push, ok := cmd().(router.PushScreenMsg)
	require.True(t, ok)
	_, isChat := push.Screen.(*chat.ChatScreen)
	assert.True(t, isChat)
}
