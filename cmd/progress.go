package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/coursewell/internal/dialogue"
	"github.com/abhisek/coursewell/internal/state"
	"github.com/abhisek/coursewell/internal/store"
)

var progressCmd = &cobra.Command{
	Use:   "progress",
	Short: "Inspect or reset a learner's progress",
}

var progressShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show chapter progress for each enrolled course",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(ctx context.Context, s *store.Store) error {
			u, err := userFlag(ctx, cmd, s)
			if err != nil {
				return err
			}
			enrollments, err := s.EnrollmentRepo().ListEnrollments(ctx, u.ID)
			if err != nil {
				return err
			}
			if len(enrollments) == 0 {
				fmt.Printf("%s is not enrolled in any course.\n", u.Username)
				return nil
			}

			fmt.Printf("%-32s  %9s  %s\n", "Course", "Chapters", "Status")
			fmt.Println(strings.Repeat("─", 60))
			for _, e := range enrollments {
				c, err := s.CourseRepo().GetCourse(ctx, e.CourseID)
				if err != nil {
					return err
				}
				n, err := s.LessonRepo().CountLessons(ctx, e.CourseID)
				if err != nil {
					return err
				}
				status := fmt.Sprintf("next: chapter %d", dialogue.EntryChapter(e.LastCompletedChapterNumber, n))
				if e.CompletedAt != nil {
					status = "completed " + e.CompletedAt.Local().Format("2006-01-02")
				}
				fmt.Printf("%-32s  %4d / %-2d  %s\n", truncate(c.Title, 32), e.LastCompletedChapterNumber, n, status)
			}
			return nil
		})
	},
}

var progressResetCmd = &cobra.Command{
	Use:   "reset <lesson-id>",
	Short: "Restart a chapter from its first step",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(ctx context.Context, s *store.Store) error {
			u, err := userFlag(ctx, cmd, s)
			if err != nil {
				return err
			}
			// Reset only touches cursors; no oracle is involved.
			router := dialogue.New(dialogue.Deps{
				Courses:     s.CourseRepo(),
				Lessons:     s.LessonRepo(),
				Enrollments: s.EnrollmentRepo(),
				Durable:     state.NewDurable(s.ProgressRepo()),
				Ephemeral:   state.NewMemory(),
			})
			if err := router.Reset(ctx, dialogue.Caller{UserID: u.ID}, args[0]); err != nil {
				return err
			}
			fmt.Println("Chapter progress reset.")
			return nil
		})
	},
}

func init() {
	for _, c := range []*cobra.Command{progressShowCmd, progressResetCmd} {
		c.Flags().StringP("user", "u", "", "Learner username")
	}
	progressCmd.AddCommand(progressShowCmd)
	progressCmd.AddCommand(progressResetCmd)
}
