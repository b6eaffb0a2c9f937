// Package state persists lesson cursors. Enrolled learners are stored
// durably; creator previews live in an ephemeral store that never touches
// the database.
package state

import (
	"context"
	"fmt"
	"strconv"

	"github.com/abhisek/coursewell/internal/lesson"
)

// Scope separates durable learner progress from throwaway previews.
type Scope string

const (
	ScopeLearner Scope = "learner"
	ScopePreview Scope = "preview"
)

// Key identifies one cursor. Owner is the enrollment id for learners and
// the browsing session id for previews.
type Key struct {
	Scope    Scope
	Owner    string
	LessonID string
}

// LearnerKey addresses an enrolled learner's cursor.
func LearnerKey(enrollmentID int, lessonID string) Key {
	return Key{Scope: ScopeLearner, Owner: strconv.Itoa(enrollmentID), LessonID: lessonID}
}

// PreviewKey addresses a creator's preview cursor.
func PreviewKey(sessionID, lessonID string) Key {
	return Key{Scope: ScopePreview, Owner: sessionID, LessonID: lessonID}
}

func (k Key) String() string {
	return fmt.Sprintf("%s:%s:%s", k.Scope, k.Owner, k.LessonID)
}

// Store loads and saves cursors. Load reports found=false and a Start
// cursor when nothing is stored for the key.
type Store interface {
	Load(ctx context.Context, k Key) (c lesson.Cursor, found bool, err error)
	Save(ctx context.Context, k Key, c lesson.Cursor) error
	Delete(ctx context.Context, k Key) error
}
