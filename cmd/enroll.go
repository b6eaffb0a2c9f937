package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abhisek/coursewell/internal/authoring"
	"github.com/abhisek/coursewell/internal/store"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll <course-id>",
	Short: "Enroll a learner in a published course",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(ctx context.Context, s *store.Store) error {
			u, err := userFlag(ctx, cmd, s)
			if err != nil {
				return err
			}
			// Enrolling never compiles, so no oracle is needed.
			svc := authoring.New(s, nil, nil, nil)
			e, created, err := svc.Enroll(ctx, u.ID, args[0])
			if err != nil {
				return err
			}
			if !created {
				fmt.Printf("%s is already enrolled in %s\n", u.Username, e.CourseID)
				return nil
			}
			fmt.Printf("Enrolled %s in %s\n", u.Username, e.CourseID)
			return nil
		})
	},
}

func init() {
	enrollCmd.Flags().StringP("user", "u", "", "Learner username")
}
