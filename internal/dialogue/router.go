// Package dialogue routes learner turns: questions about the lesson go to
// retrieval, everything else advances the lesson under a per-cursor lock.
package dialogue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/abhisek/coursewell/internal/lesson"
	"github.com/abhisek/coursewell/internal/logging"
	"github.com/abhisek/coursewell/internal/metrics"
	"github.com/abhisek/coursewell/internal/progression"
	"github.com/abhisek/coursewell/internal/retrieval"
	"github.com/abhisek/coursewell/internal/state"
	"github.com/abhisek/coursewell/internal/store"
)

// Advancer runs one progression turn.
type Advancer interface {
	Advance(ctx context.Context, t progression.Turn) progression.Outcome
}

// Deps wires a Router.
type Deps struct {
	Courses     store.CourseRepo
	Lessons     store.LessonRepo
	Enrollments store.EnrollmentRepo

	// Durable holds enrolled learners' cursors; Ephemeral holds creator
	// previews.
	Durable   state.Store
	Ephemeral state.Store
	Locker    *state.Locker

	Machine  Advancer
	Index    *retrieval.Index
	Answerer *retrieval.Answerer

	Log *logging.Logger
	Now func() time.Time
}

// Router handles dialogue turns.
type Router struct {
	Deps
}

// New creates a Router.
func New(d Deps) *Router {
	if d.Log == nil {
		d.Log = logging.Nop()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Locker == nil {
		d.Locker = state.NewLocker(d.Log)
	}
	return &Router{Deps: d}
}

// access is the resolved relationship between a caller and a lesson.
type access struct {
	lesson     *store.Lesson
	course     *store.Course
	enrollment *store.Enrollment // nil for creator previews

	key   state.Key
	store state.Store
}

func (a *access) preview() bool { return a.enrollment == nil }

// resolve loads the lesson and picks the state backend by role: enrolled
// learners get the durable store, the course creator gets a preview.
func (r *Router) resolve(ctx context.Context, caller Caller, lessonID string) (*access, error) {
	l, err := r.Lessons.GetLesson(ctx, lessonID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load lesson: %w", err)
	}
	c, err := r.Courses.GetCourse(ctx, l.CourseID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load course: %w", err)
	}

	a := &access{lesson: l, course: c}
	if c.CreatorID == caller.UserID {
		owner := caller.SessionID
		if owner == "" {
			owner = fmt.Sprintf("user-%d", caller.UserID)
		}
		a.key = state.PreviewKey(owner, l.ID)
		a.store = r.Ephemeral
		return a, nil
	}

	if !c.IsPublished {
		return nil, ErrUnauthorized
	}
	e, err := r.Enrollments.GetEnrollment(ctx, caller.UserID, c.ID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrUnauthorized
	}
	if err != nil {
		return nil, fmt.Errorf("load enrollment: %w", err)
	}
	a.enrollment = e
	a.key = state.LearnerKey(e.ID, l.ID)
	a.store = r.Durable
	return a, nil
}

// HandleTurn runs one learner turn on lessonID.
func (r *Router) HandleTurn(ctx context.Context, caller Caller, lessonID string, kind RequestKind, input string) (*Response, error) {
	a, err := r.resolve(ctx, caller, lessonID)
	if err != nil {
		return nil, err
	}
	if kind == KindQnA {
		return r.answer(ctx, a, input)
	}
	return r.advance(ctx, a, input)
}

func (r *Router) answer(ctx context.Context, a *access, question string) (*Response, error) {
	cursor, _, err := a.store.Load(ctx, a.key)
	if err != nil {
		return nil, fmt.Errorf("load cursor: %w", err)
	}

	text := retrieval.Fallback
	table, err := r.Index.GetOrBuild(ctx, a.lesson.ID, a.lesson.RawScript)
	if err != nil {
		r.Log.Warn("build retrieval table", "lesson_id", a.lesson.ID, "error", err)
	} else {
		text = r.Answerer.Answer(ctx, question, table)
	}
	metrics.Turns.WithLabelValues(string(KindQnA), "answer").Inc()

	return &Response{
		TutorText: text,
		NextStep:  cursor.Step,
		Cursor:    cursor,
		IsQnA:     true,
		Preview:   a.preview(),
	}, nil
}

func (r *Router) advance(ctx context.Context, a *access, input string) (*Response, error) {
	steps, err := lesson.Decode(a.lesson.Steps)
	if err != nil {
		return nil, fmt.Errorf("decode steps for lesson %s: %w", a.lesson.ID, err)
	}

	var out progression.Outcome
	err = r.Locker.WithLock(ctx, a.key, func(ctx context.Context) error {
		cursor, _, err := a.store.Load(ctx, a.key)
		if err != nil {
			return fmt.Errorf("load cursor: %w", err)
		}

		out = r.Machine.Advance(ctx, progression.Turn{Steps: steps, Cursor: cursor, Input: input})
		// Each skip consumes a step, so this ends within len(steps) rounds.
		for out.Kind == progression.KindSkip {
			out = r.Machine.Advance(ctx, progression.Turn{Steps: steps, Cursor: out.Cursor})
		}

		if err := a.store.Save(ctx, a.key, out.Cursor); err != nil {
			return fmt.Errorf("save cursor: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.Turns.WithLabelValues(string(KindFlow), string(out.Kind)).Inc()

	if out.Degraded {
		r.Log.Warn("degraded turn", "lesson_id", a.lesson.ID, "kind", out.Kind)
	}
	r.Log.Debug("turn",
		"lesson_id", a.lesson.ID,
		"kind", out.Kind,
		"step", out.Cursor.Step,
		"chunk", out.Cursor.Chunk,
		"preview", a.preview(),
	)

	resp := &Response{
		TutorText: out.Message,
		NextStep:  out.Cursor.Step,
		Cursor:    out.Cursor,
		Question:  out.Question,
		Preview:   a.preview(),
	}
	if out.Media != nil {
		resp.MediaURL = out.Media.URL
		resp.MediaType = string(out.Media.Type)
	}
	if out.Kind == progression.KindComplete {
		resp.IsLessonEnd = true
		if err := r.complete(ctx, a, resp); err != nil {
			return nil, err
		}
	}
	return resp, nil
}

// complete applies the terminal side effects: the first time an enrolled
// learner finishes a chapter their progress is raised, and finishing the
// last chapter completes the course. A link to the next chapter is offered
// whenever one exists and no certificate was issued.
func (r *Router) complete(ctx context.Context, a *access, resp *Response) error {
	count, err := r.Lessons.CountLessons(ctx, a.course.ID)
	if err != nil {
		return fmt.Errorf("count chapters: %w", err)
	}
	chapter := a.lesson.ChapterNumber

	if a.enrollment != nil {
		done, err := r.Enrollments.CompleteChapter(ctx, a.enrollment.ID, chapter, chapter >= count, r.Now())
		if err != nil {
			return fmt.Errorf("complete chapter: %w", err)
		}
		if done.Raised {
			metrics.ChaptersCompleted.Inc()
			r.Log.Info("chapter completed",
				"course_id", a.course.ID,
				"chapter", chapter,
				"enrollment_id", a.enrollment.ID,
				"course_completed", done.CourseCompleted,
			)
		}
		if done.CourseCompleted {
			resp.CertificateURL = CertificateURL(a.course.ID)
			return nil
		}
	}

	if chapter >= count {
		return nil
	}
	next, err := r.Lessons.LessonByChapter(ctx, a.course.ID, chapter+1)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("next chapter: %w", err)
	}
	resp.NextLessonID = next.ID
	resp.NextChapterURL = ChapterURL(next.ID)
	return nil
}

// Reset clears the caller's cursor so the lesson starts over.
func (r *Router) Reset(ctx context.Context, caller Caller, lessonID string) error {
	a, err := r.resolve(ctx, caller, lessonID)
	if err != nil {
		return err
	}
	return r.Locker.WithLock(ctx, a.key, func(ctx context.Context) error {
		return a.store.Delete(ctx, a.key)
	})
}

// StepBack moves the caller's cursor back one chunk or step and returns
// the transcript with the last tutor message removed. At the start it
// changes nothing.
func (r *Router) StepBack(ctx context.Context, caller Caller, lessonID string, history []Message) (lesson.Cursor, []Message, error) {
	a, err := r.resolve(ctx, caller, lessonID)
	if err != nil {
		return lesson.Start, nil, err
	}

	steps, err := lesson.Decode(a.lesson.Steps)
	if err != nil {
		return lesson.Start, nil, fmt.Errorf("decode steps for lesson %s: %w", a.lesson.ID, err)
	}

	var back lesson.Cursor
	err = r.Locker.WithLock(ctx, a.key, func(ctx context.Context) error {
		cursor, found, err := a.store.Load(ctx, a.key)
		if err != nil {
			return fmt.Errorf("load cursor: %w", err)
		}
		back = steps.Back(cursor)
		if !found || back == cursor {
			return nil
		}
		return a.store.Save(ctx, a.key, back)
	})
	if err != nil {
		return lesson.Start, nil, err
	}
	return back, TruncateHistory(history), nil
}

// EnterChapter is called when a chapter view opens. Previews restart from
// the beginning every time.
func (r *Router) EnterChapter(ctx context.Context, caller Caller, lessonID string) (*ChapterView, error) {
	a, err := r.resolve(ctx, caller, lessonID)
	if err != nil {
		return nil, err
	}
	steps, err := lesson.Decode(a.lesson.Steps)
	if err != nil {
		return nil, fmt.Errorf("decode steps for lesson %s: %w", a.lesson.ID, err)
	}
	count, err := r.Lessons.CountLessons(ctx, a.course.ID)
	if err != nil {
		return nil, fmt.Errorf("count chapters: %w", err)
	}

	var cursor lesson.Cursor
	err = r.Locker.WithLock(ctx, a.key, func(ctx context.Context) error {
		if a.preview() {
			return a.store.Delete(ctx, a.key)
		}
		var err error
		cursor, _, err = a.store.Load(ctx, a.key)
		return err
	})
	if err != nil {
		return nil, err
	}

	return &ChapterView{
		LessonID:      a.lesson.ID,
		CourseID:      a.course.ID,
		Title:         a.lesson.Title,
		ChapterNumber: a.lesson.ChapterNumber,
		ChapterCount:  count,
		Steps:         len(steps),
		Cursor:        cursor,
		Preview:       a.preview(),
	}, nil
}

// CertificateURL is the API route serving a finished course's certificate.
func CertificateURL(courseID string) string {
	return fmt.Sprintf("/api/courses/%s/certificate", courseID)
}

// ChapterURL is the API route that opens a chapter for the caller.
func ChapterURL(lessonID string) string {
	return fmt.Sprintf("/api/lessons/%s/enter", lessonID)
}
