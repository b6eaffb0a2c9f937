package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/abhisek/coursewell/internal/app"
	"github.com/abhisek/coursewell/internal/dialogue"
	"github.com/abhisek/coursewell/internal/logging"
	"github.com/abhisek/coursewell/internal/screens/courses"
	"github.com/abhisek/coursewell/internal/state"
)

var learnCmd = &cobra.Command{
	Use:   "learn",
	Short: "Take your courses in the terminal",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		u, err := userFlag(ctx, cmd, s)
		if err != nil {
			return err
		}

		dbPath, err := resolveDBPath(cmd)
		if err != nil {
			return err
		}
		logPath := filepath.Join(filepath.Dir(dbPath), "coursewell.log")
		log, err := logging.NewFile(logPath)
		if err != nil {
			return fmt.Errorf("open log file %s: %w", logPath, err)
		}
		defer log.Sync()

		eng, err := buildEngine(ctx, s, log, engineOptions{ephemeral: state.NewMemory()})
		if err != nil {
			return err
		}

		// One terminal session is one browsing session for previews.
		caller := dialogue.Caller{UserID: u.ID, SessionID: uuid.NewString()}

		return app.Run(app.Options{
			Username: u.Username,
			Courses: courses.Deps{
				Courses:     s.CourseRepo(),
				Lessons:     s.LessonRepo(),
				Enrollments: s.EnrollmentRepo(),
				Tutor:       eng.router,
				Caller:      caller,
			},
		})
	},
}

func init() {
	learnCmd.Flags().StringP("user", "u", "", "Username to learn as")
}
