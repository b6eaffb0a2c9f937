// Package authoring is the course creator's surface: courses, chapters
// compiled from scripts, publishing and enrollment rules.
package authoring

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/abhisek/coursewell/internal/compiler"
	"github.com/abhisek/coursewell/internal/lesson"
	"github.com/abhisek/coursewell/internal/logging"
	"github.com/abhisek/coursewell/internal/store"
)

var (
	// ErrForbidden is returned when the caller does not own the course.
	ErrForbidden = errors.New("not the course creator")

	// ErrInvalid is returned for missing or malformed input.
	ErrInvalid = errors.New("invalid input")

	// ErrNoChapters is returned when publishing a course without chapters.
	ErrNoChapters = errors.New("you must add at least one chapter to publish a course")

	// ErrNotPublished is returned when enrolling in a draft course.
	ErrNotPublished = errors.New("course is not published")

	// ErrOwnCourse is returned when creators try to enroll in their course.
	ErrOwnCourse = errors.New("you cannot enroll in a course you've created")

	// ErrNotCompleted is returned for certificates and reviews of a course
	// the learner has not finished.
	ErrNotCompleted = errors.New("you must complete a course first")
)

// Compiler turns a script into steps.
type Compiler interface {
	Compile(ctx context.Context, script string, uploads compiler.Uploads, previous lesson.Sequence) (lesson.Sequence, error)
}

// Invalidator drops cached retrieval tables.
type Invalidator interface {
	Invalidate(lessonID string)
}

// MediaRemover deletes stored media files by URL.
type MediaRemover interface {
	Remove(urls ...string)
}

// Service implements the authoring operations.
type Service struct {
	users       store.UserRepo
	courses     store.CourseRepo
	lessons     store.LessonRepo
	enrollments store.EnrollmentRepo
	reviews     store.ReviewRepo
	compiler    Compiler
	index       Invalidator
	media       MediaRemover
	log         *logging.Logger
}

// New creates a Service. index may be nil when nothing is cached.
func New(db *store.Store, c Compiler, index Invalidator, log *logging.Logger) *Service {
	if log == nil {
		log = logging.Nop()
	}
	return &Service{
		users:       db.UserRepo(),
		courses:     db.CourseRepo(),
		lessons:     db.LessonRepo(),
		enrollments: db.EnrollmentRepo(),
		reviews:     db.ReviewRepo(),
		compiler:    c,
		index:       index,
		log:         log,
	}
}

// WithMedia makes edits and deletions remove media files that no chapter
// references any more.
func (s *Service) WithMedia(m MediaRemover) *Service {
	s.media = m
	return s
}

// Script is an author's chapter submission.
type Script struct {
	Title   string
	Text    string
	Uploads compiler.Uploads
}

func (s Script) validate() error {
	if strings.TrimSpace(s.Title) == "" || strings.TrimSpace(s.Text) == "" {
		return fmt.Errorf("%w: both a title and script are required", ErrInvalid)
	}
	return nil
}

// CreateCourse creates an unpublished course owned by creatorID.
func (s *Service) CreateCourse(ctx context.Context, creatorID int, title string) (*store.Course, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("%w: a title is required to create a course", ErrInvalid)
	}
	return s.courses.CreateCourse(ctx, title, creatorID)
}

// ownedCourse loads courseID and checks that creatorID owns it.
func (s *Service) ownedCourse(ctx context.Context, creatorID int, courseID string) (*store.Course, error) {
	c, err := s.courses.GetCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if c.CreatorID != creatorID {
		return nil, ErrForbidden
	}
	return c, nil
}

func (s *Service) ownedLesson(ctx context.Context, creatorID int, lessonID string) (*store.Lesson, error) {
	l, err := s.lessons.GetLesson(ctx, lessonID)
	if err != nil {
		return nil, err
	}
	if _, err := s.ownedCourse(ctx, creatorID, l.CourseID); err != nil {
		return nil, err
	}
	return l, nil
}

// AddChapter compiles sc and appends it as the course's next chapter.
// A compile failure stores nothing.
func (s *Service) AddChapter(ctx context.Context, creatorID int, courseID string, sc Script) (*store.Lesson, error) {
	if err := sc.validate(); err != nil {
		return nil, err
	}
	if _, err := s.ownedCourse(ctx, creatorID, courseID); err != nil {
		return nil, err
	}

	_, steps, err := s.compile(ctx, sc, nil)
	if err != nil {
		return nil, err
	}
	l, err := s.lessons.CreateLesson(ctx, store.NewLesson{
		CourseID:  courseID,
		Title:     strings.TrimSpace(sc.Title),
		RawScript: sc.Text,
		Steps:     steps,
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(l.ID)
	s.log.Info("chapter added", "course_id", courseID, "lesson_id", l.ID, "chapter", l.ChapterNumber)
	return l, nil
}

// EditChapter recompiles a chapter. Media steps without a new upload keep
// their previous file when the alt text still matches. A compile failure
// leaves the chapter untouched.
func (s *Service) EditChapter(ctx context.Context, creatorID int, lessonID string, sc Script) (*store.Lesson, error) {
	if err := sc.validate(); err != nil {
		return nil, err
	}
	l, err := s.ownedLesson(ctx, creatorID, lessonID)
	if err != nil {
		return nil, err
	}

	previous, err := lesson.Decode(l.Steps)
	if err != nil {
		s.log.Warn("previous steps unreadable, media will not carry over", "lesson_id", lessonID, "error", err)
		previous = nil
	}
	seq, steps, err := s.compile(ctx, sc, previous)
	if err != nil {
		return nil, err
	}

	title := strings.TrimSpace(sc.Title)
	if err := s.lessons.UpdateLessonContent(ctx, lessonID, title, sc.Text, steps); err != nil {
		return nil, err
	}
	s.invalidate(lessonID)
	s.removeMedia(orphaned(previous, seq)...)
	s.log.Info("chapter edited", "course_id", l.CourseID, "lesson_id", lessonID)
	return s.lessons.GetLesson(ctx, lessonID)
}

func (s *Service) compile(ctx context.Context, sc Script, previous lesson.Sequence) (lesson.Sequence, []byte, error) {
	seq, err := s.compiler.Compile(ctx, sc.Text, sc.Uploads, previous)
	if err != nil {
		return nil, nil, err
	}
	raw, err := seq.Encode()
	if err != nil {
		return nil, nil, fmt.Errorf("encode steps: %w", err)
	}
	return seq, raw, nil
}

// orphaned lists media URLs of previous that next no longer references.
func orphaned(previous, next lesson.Sequence) []string {
	keep := make(map[string]bool)
	for _, u := range next.MediaURLs() {
		keep[u] = true
	}
	var out []string
	for _, u := range previous.MediaURLs() {
		if !keep[u] {
			out = append(out, u)
		}
	}
	return out
}

func (s *Service) removeMedia(urls ...string) {
	if s.media == nil || len(urls) == 0 {
		return
	}
	s.media.Remove(urls...)
	s.log.Debug("media removed", "count", len(urls))
}

// DeleteChapter removes a chapter; later chapters move up by one.
func (s *Service) DeleteChapter(ctx context.Context, creatorID int, lessonID string) error {
	l, err := s.ownedLesson(ctx, creatorID, lessonID)
	if err != nil {
		return err
	}
	if err := s.lessons.DeleteLesson(ctx, lessonID); err != nil {
		return err
	}
	s.invalidate(lessonID)
	if steps, err := lesson.Decode(l.Steps); err == nil {
		s.removeMedia(steps.MediaURLs()...)
	}
	s.log.Info("chapter deleted", "course_id", l.CourseID, "lesson_id", lessonID, "chapter", l.ChapterNumber)
	return nil
}

// ReorderChapters renumbers chapters in the order of ids.
func (s *Service) ReorderChapters(ctx context.Context, creatorID int, courseID string, ids []string) error {
	if _, err := s.ownedCourse(ctx, creatorID, courseID); err != nil {
		return err
	}
	if err := s.lessons.ReorderLessons(ctx, courseID, ids); err != nil {
		return err
	}
	for _, id := range ids {
		s.invalidate(id)
	}
	return nil
}

// SetPublished publishes or unpublishes a course. Publishing needs at
// least one chapter.
func (s *Service) SetPublished(ctx context.Context, creatorID int, courseID string, published bool) error {
	if _, err := s.ownedCourse(ctx, creatorID, courseID); err != nil {
		return err
	}
	if published {
		n, err := s.lessons.CountLessons(ctx, courseID)
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrNoChapters
		}
	}
	return s.courses.SetPublished(ctx, courseID, published)
}

// Enroll signs userID up for a published course. Enrolling twice returns
// the existing enrollment with created=false.
func (s *Service) Enroll(ctx context.Context, userID int, courseID string) (*store.Enrollment, bool, error) {
	c, err := s.courses.GetCourse(ctx, courseID)
	if err != nil {
		return nil, false, err
	}
	if c.CreatorID == userID {
		return nil, false, ErrOwnCourse
	}
	if !c.IsPublished {
		return nil, false, ErrNotPublished
	}
	return s.enrollments.Enroll(ctx, userID, courseID)
}

// Chapters lists a course's chapters in order. Drafts are visible only
// to their creator.
func (s *Service) Chapters(ctx context.Context, userID int, courseID string) ([]store.Lesson, error) {
	c, err := s.courses.GetCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if !c.IsPublished && c.CreatorID != userID {
		return nil, ErrNotPublished
	}
	return s.lessons.ListLessons(ctx, courseID)
}

// Certificate is proof that a learner finished a course.
type Certificate struct {
	CourseID    string
	CourseTitle string
	Learner     string
	CompletedAt time.Time

	// Review is the learner's review, nil until they submit one.
	Review *store.Review
}

// completed returns the learner's enrollment in a course they finished.
func (s *Service) completed(ctx context.Context, userID int, courseID string) (*store.Enrollment, error) {
	e, err := s.enrollments.GetEnrollment(ctx, userID, courseID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotCompleted
	}
	if err != nil {
		return nil, err
	}
	if e.CompletedAt == nil {
		return nil, ErrNotCompleted
	}
	return e, nil
}

// Certificate returns the certificate of a completed course.
func (s *Service) Certificate(ctx context.Context, userID int, courseID string) (*Certificate, error) {
	e, err := s.completed(ctx, userID, courseID)
	if err != nil {
		return nil, err
	}
	c, err := s.courses.GetCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	u, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	cert := &Certificate{
		CourseID:    c.ID,
		CourseTitle: c.Title,
		Learner:     u.Username,
		CompletedAt: *e.CompletedAt,
	}
	rv, err := s.reviews.ReviewByUser(ctx, userID, courseID)
	switch {
	case err == nil:
		cert.Review = rv
	case !errors.Is(err, store.ErrNotFound):
		return nil, err
	}
	return cert, nil
}

// SubmitReview records a 1-5 star rating for a completed course. Each
// learner reviews a course once; a second review fails with
// store.ErrConflict.
func (s *Service) SubmitReview(ctx context.Context, userID int, courseID string, rating int, comment string) (*store.Review, error) {
	if _, err := s.completed(ctx, userID, courseID); err != nil {
		return nil, err
	}
	if rating < 1 || rating > 5 {
		return nil, fmt.Errorf("%w: a star rating from 1 to 5 is required", ErrInvalid)
	}
	rv, err := s.reviews.CreateReview(ctx, store.Review{
		UserID:   userID,
		CourseID: courseID,
		Rating:   rating,
		Comment:  strings.TrimSpace(comment),
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("course reviewed", "course_id", courseID, "user_id", userID, "rating", rating)
	return rv, nil
}

// Reviews lists a published course's reviews, newest first, with their
// average rating (zero without reviews).
func (s *Service) Reviews(ctx context.Context, userID int, courseID string) ([]store.Review, float64, error) {
	c, err := s.courses.GetCourse(ctx, courseID)
	if err != nil {
		return nil, 0, err
	}
	if !c.IsPublished && c.CreatorID != userID {
		return nil, 0, ErrNotPublished
	}
	list, err := s.reviews.ListReviews(ctx, courseID)
	if err != nil {
		return nil, 0, err
	}
	if len(list) == 0 {
		return list, 0, nil
	}
	var sum int
	for _, rv := range list {
		sum += rv.Rating
	}
	return list, float64(sum) / float64(len(list)), nil
}

func (s *Service) invalidate(lessonID string) {
	if s.index != nil {
		s.index.Invalidate(lessonID)
	}
}
