package dialogue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/abhisek/coursewell/internal/grading"
	"github.com/abhisek/coursewell/internal/lesson"
	"github.com/abhisek/coursewell/internal/llm"
	"github.com/abhisek/coursewell/internal/progression"
	"github.com/abhisek/coursewell/internal/retrieval"
	"github.com/abhisek/coursewell/internal/state"
	"github.com/abhisek/coursewell/internal/store"
)

type fixture struct {
	db       *store.Store
	router   *Router
	provider *llm.MockProvider
	embedder *llm.MockEmbedder
	preview  *state.Memory

	creator *store.User
	learner *store.User
	course  *store.Course
	enroll  *store.Enrollment
}

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// newFixture creates a published course with one chapter per sequence
// and enrolls a learner.
func newFixture(t *testing.T, chapters ...lesson.Sequence) *fixture {
	t.Helper()
	db, err := store.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	ctx := context.Background()

	f := &fixture{db: db, preview: state.NewMemory()}
	if f.creator, err = db.UserRepo().CreateUser(ctx, "author"); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if f.learner, err = db.UserRepo().CreateUser(ctx, "learner"); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if f.course, err = db.CourseRepo().CreateCourse(ctx, "Botany", f.creator.ID); err != nil {
		t.Fatalf("create course: %v", err)
	}
	for i, seq := range chapters {
		steps, err := seq.Encode()
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		_, err = db.LessonRepo().CreateLesson(ctx, store.NewLesson{
			CourseID:  f.course.ID,
			Title:     fmt.Sprintf("Chapter %d", i+1),
			RawScript: rawScript(seq),
			Steps:     steps,
		})
		if err != nil {
			t.Fatalf("create lesson: %v", err)
		}
	}
	if err := db.CourseRepo().SetPublished(ctx, f.course.ID, true); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if f.enroll, _, err = db.EnrollmentRepo().Enroll(ctx, f.learner.ID, f.course.ID); err != nil {
		t.Fatalf("enroll: %v", err)
	}

	f.provider = llm.NewMockProvider()
	f.provider.Func = func(ctx context.Context, req llm.Request) llm.MockResponse {
		return llm.TextResponse(llm.PurposeFrom(ctx) + "|" + req.Messages[len(req.Messages)-1].Content)
	}
	f.embedder = llm.NewMockEmbedder()

	f.router = New(Deps{
		Courses:     db.CourseRepo(),
		Lessons:     db.LessonRepo(),
		Enrollments: db.EnrollmentRepo(),
		Durable:     state.NewDurable(db.ProgressRepo()),
		Ephemeral:   f.preview,
		Machine:     progression.New(f.provider, grading.New(f.provider), progression.DefaultConfig()),
		Index:       retrieval.NewIndex(f.embedder),
		Answerer:    retrieval.NewAnswerer(f.provider, f.embedder, retrieval.DefaultConfig()),
		Now:         func() time.Time { return now },
	})
	return f
}

func rawScript(seq lesson.Sequence) string {
	var parts []string
	for _, s := range seq {
		if s.Type == lesson.KindContent {
			parts = append(parts, s.Text)
		}
	}
	return strings.Join(parts, "\n\n")
}

func (f *fixture) lesson(t *testing.T, chapter int) *store.Lesson {
	t.Helper()
	l, err := f.db.LessonRepo().LessonByChapter(context.Background(), f.course.ID, chapter)
	if err != nil {
		t.Fatalf("lesson %d: %v", chapter, err)
	}
	return l
}

func (f *fixture) turn(t *testing.T, who *store.User, lessonID, input string) *Response {
	t.Helper()
	resp, err := f.router.HandleTurn(context.Background(), Caller{UserID: who.ID, SessionID: "browser-1"}, lessonID, KindFlow, input)
	if err != nil {
		t.Fatalf("turn %q: %v", input, err)
	}
	return resp
}

func scenario() lesson.Sequence {
	return lesson.Sequence{
		lesson.Content("Para A\n\nPara B"),
		lesson.MCQ("Which is first?", lesson.Options{{Label: "A", Text: "x"}, {Label: "B", Text: "y"}}, "A"),
		lesson.Content("Para C"),
	}
}

func TestHandleTurn_EndToEnd(t *testing.T) {
	f := newFixture(t, scenario())
	l := f.lesson(t, 1)

	r := f.turn(t, f.learner, l.ID, "")
	if r.Cursor != (lesson.Cursor{Step: 0, Chunk: 1}) || !strings.Contains(r.TutorText, "Para A") {
		t.Fatalf("turn 1 = %+v", r)
	}
	r = f.turn(t, f.learner, l.ID, "next")
	if r.Cursor != lesson.At(1) || !strings.Contains(r.TutorText, "Para B") {
		t.Fatalf("turn 2 = %+v", r)
	}
	r = f.turn(t, f.learner, l.ID, "next")
	if r.Question == nil || r.NextStep != 2 {
		t.Fatalf("turn 3 = %+v", r)
	}

	r = f.turn(t, f.learner, l.ID, "B")
	if r.NextStep != 1 || !strings.HasPrefix(r.TutorText, llm.PurposeHint) {
		t.Fatalf("wrong answer = %+v", r)
	}
	if !strings.Contains(r.TutorText, "Para A") {
		t.Errorf("hint should be grounded in earlier content: %q", r.TutorText)
	}

	r = f.turn(t, f.learner, l.ID, "")
	if r.Question == nil {
		t.Fatalf("question not re-asked: %+v", r)
	}
	r = f.turn(t, f.learner, l.ID, "a")
	if r.Cursor != lesson.At(3) || !strings.Contains(r.TutorText, "Para C") {
		t.Fatalf("right answer = %+v", r)
	}

	r = f.turn(t, f.learner, l.ID, "")
	if !r.IsLessonEnd || r.TutorText != progression.CompletionMessage {
		t.Fatalf("end = %+v", r)
	}
	if r.CertificateURL != CertificateURL(f.course.ID) {
		t.Fatalf("certificate url = %q", r.CertificateURL)
	}

	e, err := f.db.EnrollmentRepo().GetEnrollment(context.Background(), f.learner.ID, f.course.ID)
	if err != nil {
		t.Fatalf("enrollment: %v", err)
	}
	if e.LastCompletedChapterNumber != 1 || e.CompletedAt == nil || !e.CompletedAt.Equal(now) {
		t.Fatalf("enrollment = %+v", e)
	}

	// Terminal again: message only, nothing re-stamped.
	r = f.turn(t, f.learner, l.ID, "")
	if !r.IsLessonEnd || r.CertificateURL != "" || r.NextChapterURL != "" {
		t.Fatalf("repeated end = %+v", r)
	}
}

func TestHandleTurn_CursorIsDurable(t *testing.T) {
	f := newFixture(t, scenario())
	l := f.lesson(t, 1)

	f.turn(t, f.learner, l.ID, "")
	f.turn(t, f.learner, l.ID, "")

	p, err := f.db.ProgressRepo().LoadProgress(context.Background(), f.enroll.ID, l.ID)
	if err != nil {
		t.Fatalf("load progress: %v", err)
	}
	if p.StepIndex != 1 || p.ChunkIndex != 0 {
		t.Fatalf("progress = %+v", p)
	}
}

func TestHandleTurn_NextChapterLink(t *testing.T) {
	f := newFixture(t, lesson.Sequence{lesson.Content("one")}, lesson.Sequence{lesson.Content("two")})
	first := f.lesson(t, 1)
	second := f.lesson(t, 2)

	f.turn(t, f.learner, first.ID, "")
	r := f.turn(t, f.learner, first.ID, "")
	if !r.IsLessonEnd || r.CertificateURL != "" {
		t.Fatalf("end = %+v", r)
	}
	if r.NextLessonID != second.ID || r.NextChapterURL != "/api/lessons/"+second.ID+"/enter" {
		t.Fatalf("next chapter = %q %q", r.NextLessonID, r.NextChapterURL)
	}

	e, _ := f.db.EnrollmentRepo().GetEnrollment(context.Background(), f.learner.ID, f.course.ID)
	if e.LastCompletedChapterNumber != 1 || e.CompletedAt != nil {
		t.Fatalf("enrollment = %+v", e)
	}
}

func TestHandleTurn_SkipsMediaWithoutURL(t *testing.T) {
	f := newFixture(t, lesson.Sequence{
		lesson.Media(lesson.MediaImage, "a leaf"),
		lesson.Content("Leaves make food."),
	})
	l := f.lesson(t, 1)

	r := f.turn(t, f.learner, l.ID, "")
	if r.MediaURL != "" || !strings.Contains(r.TutorText, "Leaves make food.") || r.Cursor != lesson.At(2) {
		t.Fatalf("turn = %+v", r)
	}
}

func TestHandleTurn_Media(t *testing.T) {
	f := newFixture(t, lesson.Sequence{
		lesson.Media(lesson.MediaAudio, "bird song").WithURL("/uploads/song.mp3"),
	})
	r := f.turn(t, f.learner, f.lesson(t, 1).ID, "")
	if r.MediaURL != "/uploads/song.mp3" || r.MediaType != "audio" {
		t.Fatalf("turn = %+v", r)
	}
}

func TestHandleTurn_Access(t *testing.T) {
	f := newFixture(t, scenario())
	l := f.lesson(t, 1)
	ctx := context.Background()

	stranger, err := f.db.UserRepo().CreateUser(ctx, "stranger")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if _, err := f.router.HandleTurn(ctx, Caller{UserID: stranger.ID}, l.ID, KindFlow, ""); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("stranger err = %v, want ErrUnauthorized", err)
	}
	if _, err := f.router.HandleTurn(ctx, Caller{UserID: stranger.ID}, l.ID, KindQnA, "why?"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("stranger qna err = %v, want ErrUnauthorized", err)
	}
	if _, err := f.router.HandleTurn(ctx, Caller{UserID: f.learner.ID}, "missing", KindFlow, ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing lesson err = %v, want ErrNotFound", err)
	}

	if err := f.db.CourseRepo().SetPublished(ctx, f.course.ID, false); err != nil {
		t.Fatalf("unpublish: %v", err)
	}
	if _, err := f.router.HandleTurn(ctx, Caller{UserID: f.learner.ID}, l.ID, KindFlow, ""); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("unpublished err = %v, want ErrUnauthorized", err)
	}
	if _, err := f.router.HandleTurn(ctx, Caller{UserID: f.creator.ID}, l.ID, KindFlow, ""); err != nil {
		t.Fatalf("creator on unpublished course: %v", err)
	}
}

func TestHandleTurn_PreviewIsEphemeral(t *testing.T) {
	f := newFixture(t, scenario())
	l := f.lesson(t, 1)
	ctx := context.Background()

	r := f.turn(t, f.creator, l.ID, "")
	if !r.Preview || r.Cursor != (lesson.Cursor{Step: 0, Chunk: 1}) {
		t.Fatalf("preview turn = %+v", r)
	}

	var rows int
	if err := f.db.DB().QueryRow("SELECT COUNT(*) FROM lesson_progress").Scan(&rows); err != nil {
		t.Fatalf("count: %v", err)
	}
	if rows != 0 {
		t.Fatalf("preview wrote %d progress rows", rows)
	}
	c, found, _ := f.preview.Load(ctx, state.PreviewKey("browser-1", l.ID))
	if !found || c != r.Cursor {
		t.Fatalf("preview cursor = %+v found=%v", c, found)
	}

	// Previews never complete the course.
	for range 10 {
		r = f.turn(t, f.creator, l.ID, "A")
	}
	if !r.IsLessonEnd || r.CertificateURL != "" {
		t.Fatalf("preview end = %+v", r)
	}

	view, err := f.router.EnterChapter(ctx, Caller{UserID: f.creator.ID, SessionID: "browser-1"}, l.ID)
	if err != nil {
		t.Fatalf("enter: %v", err)
	}
	if !view.Preview || view.Cursor != lesson.Start || view.Steps != 3 || view.ChapterCount != 1 {
		t.Fatalf("view = %+v", view)
	}
	if _, found, _ := f.preview.Load(ctx, state.PreviewKey("browser-1", l.ID)); found {
		t.Fatal("entering the chapter should reset the preview")
	}
}

func TestEnterChapter_KeepsLearnerProgress(t *testing.T) {
	f := newFixture(t, scenario())
	l := f.lesson(t, 1)

	f.turn(t, f.learner, l.ID, "")
	view, err := f.router.EnterChapter(context.Background(), Caller{UserID: f.learner.ID}, l.ID)
	if err != nil {
		t.Fatalf("enter: %v", err)
	}
	if view.Preview || view.Cursor != (lesson.Cursor{Step: 0, Chunk: 1}) {
		t.Fatalf("view = %+v", view)
	}
}

func TestReset_BehavesLikeNewLearner(t *testing.T) {
	f := newFixture(t, scenario())
	l := f.lesson(t, 1)
	ctx := context.Background()

	fresh := f.turn(t, f.learner, l.ID, "")
	f.turn(t, f.learner, l.ID, "")
	f.turn(t, f.learner, l.ID, "")

	caller := Caller{UserID: f.learner.ID}
	if err := f.router.Reset(ctx, caller, l.ID); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if _, err := f.db.ProgressRepo().LoadProgress(ctx, f.enroll.ID, l.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("progress after reset err = %v", err)
	}
	if err := f.router.Reset(ctx, caller, l.ID); err != nil {
		t.Fatalf("reset at start: %v", err)
	}

	again := f.turn(t, f.learner, l.ID, "")
	if again.TutorText != fresh.TutorText || again.Cursor != fresh.Cursor {
		t.Fatalf("after reset = %+v, want %+v", again, fresh)
	}
}

func TestStepBack_UndoesOneTurn(t *testing.T) {
	f := newFixture(t, scenario())
	l := f.lesson(t, 1)
	ctx := context.Background()
	caller := Caller{UserID: f.learner.ID}

	c, _, err := f.router.StepBack(ctx, caller, l.ID, nil)
	if err != nil || c != lesson.Start {
		t.Fatalf("step back at start = %+v, %v", c, err)
	}

	f.turn(t, f.learner, l.ID, "")
	second := f.turn(t, f.learner, l.ID, "")

	history := []Message{
		{Role: RoleTutor, Text: "A"},
		{Role: RoleLearner, Text: "next"},
		{Role: RoleTutor, Text: second.TutorText},
	}
	c, trimmed, err := f.router.StepBack(ctx, caller, l.ID, history)
	if err != nil {
		t.Fatalf("step back: %v", err)
	}
	if c != (lesson.Cursor{Step: 0, Chunk: 1}) {
		t.Fatalf("cursor = %+v", c)
	}
	if len(trimmed) != 2 {
		t.Fatalf("history = %+v", trimmed)
	}

	redo := f.turn(t, f.learner, l.ID, "next")
	if redo.TutorText != second.TutorText || redo.Cursor != second.Cursor {
		t.Fatalf("redo = %+v, want %+v", redo, second)
	}
}

func TestStepBack_ClearsPendingAnswer(t *testing.T) {
	f := newFixture(t, scenario())
	l := f.lesson(t, 1)

	for range 3 {
		f.turn(t, f.learner, l.ID, "")
	}
	c, _, err := f.router.StepBack(context.Background(), Caller{UserID: f.learner.ID}, l.ID, nil)
	if err != nil {
		t.Fatalf("step back: %v", err)
	}
	if c != lesson.At(1) {
		t.Fatalf("cursor = %+v, want the question without a pending answer", c)
	}
	r := f.turn(t, f.learner, l.ID, "")
	if r.Question == nil {
		t.Fatalf("question not presented again: %+v", r)
	}
}

func TestHandleTurn_QnALeavesCursor(t *testing.T) {
	f := newFixture(t, scenario())
	l := f.lesson(t, 1)
	ctx := context.Background()

	f.turn(t, f.learner, l.ID, "")
	r, err := f.router.HandleTurn(ctx, Caller{UserID: f.learner.ID}, l.ID, KindQnA, "What is Para C?")
	if err != nil {
		t.Fatalf("qna: %v", err)
	}
	if !r.IsQnA || r.Cursor != (lesson.Cursor{Step: 0, Chunk: 1}) || !strings.HasPrefix(r.TutorText, llm.PurposeQnA) {
		t.Fatalf("qna = %+v", r)
	}
	if !f.router.Index.Cached(l.ID) {
		t.Fatal("retrieval table should be cached")
	}

	p, err := f.db.ProgressRepo().LoadProgress(ctx, f.enroll.ID, l.ID)
	if err != nil {
		t.Fatalf("load progress: %v", err)
	}
	if p.StepIndex != 0 || p.ChunkIndex != 1 {
		t.Fatalf("qna moved the cursor: %+v", p)
	}
}

func TestHandleTurn_QnAEmbeddingFailure(t *testing.T) {
	f := newFixture(t, scenario())
	f.embedder.Err = errors.New("quota")

	r, err := f.router.HandleTurn(context.Background(), Caller{UserID: f.learner.ID}, f.lesson(t, 1).ID, KindQnA, "why?")
	if err != nil {
		t.Fatalf("qna: %v", err)
	}
	if r.TutorText != retrieval.Fallback {
		t.Fatalf("text = %q", r.TutorText)
	}
}

func TestTruncateHistory(t *testing.T) {
	tests := []struct {
		name string
		in   []Message
		want int
	}{
		{"empty", nil, 0},
		{"no tutor lines", []Message{{Role: RoleLearner, Text: "hi"}}, 1},
		{"tutor last", []Message{{Role: RoleTutor}, {Role: RoleLearner}, {Role: RoleTutor}}, 2},
		{"learner after tutor", []Message{{Role: RoleTutor}, {Role: RoleTutor}, {Role: RoleLearner}}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TruncateHistory(tt.in); len(got) != tt.want {
				t.Fatalf("len = %d, want %d", len(got), tt.want)
			}
		})
	}
}

func TestEntryChapter(t *testing.T) {
	tests := []struct{ last, count, want int }{
		{0, 3, 1},
		{1, 3, 2},
		{3, 3, 3},
		{5, 3, 3},
		{0, 0, 1},
	}
	for _, tt := range tests {
		if got := EntryChapter(tt.last, tt.count); got != tt.want {
			t.Errorf("EntryChapter(%d, %d) = %d, want %d", tt.last, tt.count, got, tt.want)
		}
	}
}

func TestParseKind(t *testing.T) {
	if ParseKind("QNA") != KindQnA || ParseKind("") != KindFlow || ParseKind("LESSON_FLOW") != KindFlow {
		t.Fatal("unexpected kind mapping")
	}
}
