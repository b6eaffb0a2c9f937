package dialogue

import "errors"

var (
	// ErrUnauthorized is returned when the caller is neither enrolled in
	// the lesson's course nor its creator.
	ErrUnauthorized = errors.New("not enrolled in this course")

	// ErrNotFound is returned for an unknown lesson.
	ErrNotFound = errors.New("lesson not found")
)
