package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a write violates a uniqueness rule.
	ErrConflict = errors.New("conflict")
)

// QueryOpts configures event queries with filtering and pagination.
type QueryOpts struct {
	Limit  int       // max results (0 = unlimited)
	After  int       // id > After
	Before int       // id < Before
	From   time.Time // timestamp >= From
	To     time.Time // timestamp <= To
}

// User is an account that can author courses or learn them.
type User struct {
	ID        int
	Username  string
	CreatedAt time.Time
}

// Course groups ordered chapters under one creator.
type Course struct {
	ID          string
	Title       string
	CreatorID   int
	IsPublished bool
	CreatedAt   time.Time
}

// Lesson is one chapter of a course. Steps holds the compiled step
// sequence as JSON; RawScript is the author's original text.
type Lesson struct {
	ID            string
	CourseID      string
	Title         string
	ChapterNumber int
	RawScript     string
	Steps         json.RawMessage
	UpdatedAt     time.Time
}

// NewLesson carries the fields needed to append a chapter.
type NewLesson struct {
	CourseID  string
	Title     string
	RawScript string
	Steps     json.RawMessage
}

// Enrollment links a learner to a course and tracks chapter completion.
type Enrollment struct {
	ID                         int
	UserID                     int
	CourseID                   string
	LastCompletedChapterNumber int
	CompletedAt                *time.Time
	CreatedAt                  time.Time
}

// ChapterCompletion reports what CompleteChapter changed.
type ChapterCompletion struct {
	// Raised is true when last_completed_chapter_number moved forward.
	Raised bool

	// CourseCompleted is true only on the call that stamped completed_at.
	CourseCompleted bool
}

// Progress is a persisted lesson cursor.
type Progress struct {
	StepIndex      int
	ChunkIndex     int
	AwaitingAnswer bool
	UpdatedAt      time.Time
}

// Review is a learner's rating of a course they completed.
type Review struct {
	ID        int
	UserID    int
	Username  string
	CourseID  string
	Rating    int
	Comment   string
	CreatedAt time.Time
}

// LLMRequestEventData captures the data for a single oracle call.
type LLMRequestEventData struct {
	Provider     string
	Model        string
	Purpose      string
	InputTokens  int
	OutputTokens int
	LatencyMs    int64
	Success      bool
	ErrorMessage string
	RequestBody  string
	ResponseBody string
}

// LLMEvent is a stored oracle call.
type LLMEvent struct {
	ID        int
	Timestamp time.Time
	LLMRequestEventData
}

// PurposeUsage aggregates oracle usage for one purpose label.
type PurposeUsage struct {
	Purpose      string
	Calls        int
	InputTokens  int
	OutputTokens int
	AvgLatencyMs int64
}

// ModelUsage aggregates oracle usage for one model.
type ModelUsage struct {
	Model        string
	Calls        int
	InputTokens  int
	OutputTokens int
}

// UserRepo manages accounts.
type UserRepo interface {
	CreateUser(ctx context.Context, username string) (*User, error)
	GetUser(ctx context.Context, id int) (*User, error)
	UserByName(ctx context.Context, username string) (*User, error)
}

// CourseFilter narrows ListCourses.
type CourseFilter struct {
	CreatorID     int
	PublishedOnly bool
}

// CourseRepo manages courses.
type CourseRepo interface {
	CreateCourse(ctx context.Context, title string, creatorID int) (*Course, error)
	GetCourse(ctx context.Context, id string) (*Course, error)
	ListCourses(ctx context.Context, f CourseFilter) ([]Course, error)
	SetPublished(ctx context.Context, id string, published bool) error
}

// LessonRepo manages chapters. Chapter numbers are contiguous from 1
// within a course.
type LessonRepo interface {
	// CreateLesson appends a chapter numbered after the current last one.
	CreateLesson(ctx context.Context, l NewLesson) (*Lesson, error)
	GetLesson(ctx context.Context, id string) (*Lesson, error)
	LessonByChapter(ctx context.Context, courseID string, chapter int) (*Lesson, error)
	ListLessons(ctx context.Context, courseID string) ([]Lesson, error)
	CountLessons(ctx context.Context, courseID string) (int, error)
	UpdateLessonContent(ctx context.Context, id, title, rawScript string, steps json.RawMessage) error

	// DeleteLesson removes a chapter and shifts later chapters down by one.
	DeleteLesson(ctx context.Context, id string) error

	// ReorderLessons renumbers chapters following ids. Ids that do not
	// belong to the course are ignored; chapters missing from ids follow
	// in their previous order.
	ReorderLessons(ctx context.Context, courseID string, ids []string) error
}

// EnrollmentRepo manages enrollments.
type EnrollmentRepo interface {
	// Enroll creates the enrollment if missing. created is false when the
	// learner was already enrolled.
	Enroll(ctx context.Context, userID int, courseID string) (e *Enrollment, created bool, err error)
	GetEnrollment(ctx context.Context, userID int, courseID string) (*Enrollment, error)
	ListEnrollments(ctx context.Context, userID int) ([]Enrollment, error)

	// CompleteChapter raises last_completed_chapter_number to chapter when
	// it is higher. When lastChapter is true and the number moved, the
	// course completion time is stamped once.
	CompleteChapter(ctx context.Context, enrollmentID, chapter int, lastChapter bool, now time.Time) (ChapterCompletion, error)
}

// ProgressRepo persists lesson cursors per enrollment.
type ProgressRepo interface {
	LoadProgress(ctx context.Context, enrollmentID int, lessonID string) (*Progress, error)
	SaveProgress(ctx context.Context, enrollmentID int, lessonID string, p Progress) error
	DeleteProgress(ctx context.Context, enrollmentID int, lessonID string) error
}

// ReviewRepo manages course reviews. A learner reviews a course once.
type ReviewRepo interface {
	// CreateReview fails with ErrConflict when the learner already
	// reviewed the course.
	CreateReview(ctx context.Context, r Review) (*Review, error)
	ReviewByUser(ctx context.Context, userID int, courseID string) (*Review, error)

	// ListReviews returns a course's reviews, newest first.
	ListReviews(ctx context.Context, courseID string) ([]Review, error)
}

// EventRepo records and reads oracle call events.
type EventRepo interface {
	// AppendLLMRequest records an oracle API call event.
	AppendLLMRequest(ctx context.Context, data LLMRequestEventData) error
	QueryLLMEvents(ctx context.Context, opts QueryOpts) ([]LLMEvent, error)

	// GetLLMEvent returns nil, nil when the id is unknown.
	GetLLMEvent(ctx context.Context, id int) (*LLMEvent, error)
	LLMUsageByPurpose(ctx context.Context) ([]PurposeUsage, error)
	LLMUsageByModel(ctx context.Context) ([]ModelUsage, error)
}
