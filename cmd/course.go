package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/coursewell/internal/authoring"
	"github.com/abhisek/coursewell/internal/store"
)

var courseCmd = &cobra.Command{
	Use:   "course",
	Short: "Create and publish courses",
}

var courseCreateCmd = &cobra.Command{
	Use:   "create <title>",
	Short: "Create an unpublished course",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(ctx context.Context, s *store.Store) error {
			u, err := userFlag(ctx, cmd, s)
			if err != nil {
				return err
			}
			c, err := authoring.New(s, nil, nil, nil).CreateCourse(ctx, u.ID, strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Printf("Created course %q\nID: %s\n", c.Title, c.ID)
			return nil
		})
	},
}

var courseListCmd = &cobra.Command{
	Use:   "list",
	Short: "List courses",
	Long:  "Lists published courses, or the courses a user created with --user.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(ctx context.Context, s *store.Store) error {
			f := store.CourseFilter{PublishedOnly: true}
			if name, _ := cmd.Flags().GetString("user"); name != "" {
				u, err := userFlag(ctx, cmd, s)
				if err != nil {
					return err
				}
				f = store.CourseFilter{CreatorID: u.ID}
			}

			list, err := s.CourseRepo().ListCourses(ctx, f)
			if err != nil {
				return err
			}
			if len(list) == 0 {
				fmt.Println("No courses found.")
				return nil
			}

			fmt.Printf("%-36s  %-9s  %8s  %s\n", "ID", "Status", "Chapters", "Title")
			fmt.Println(strings.Repeat("─", 80))
			for _, c := range list {
				n, err := s.LessonRepo().CountLessons(ctx, c.ID)
				if err != nil {
					return err
				}
				status := "draft"
				if c.IsPublished {
					status = "published"
				}
				fmt.Printf("%-36s  %-9s  %8d  %s\n", c.ID, status, n, c.Title)
			}
			return nil
		})
	},
}

var coursePublishCmd = &cobra.Command{
	Use:   "publish <course-id>",
	Short: "Publish a course (or take it down with --unpublish)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		unpublish, _ := cmd.Flags().GetBool("unpublish")
		return withStore(cmd, func(ctx context.Context, s *store.Store) error {
			u, err := userFlag(ctx, cmd, s)
			if err != nil {
				return err
			}
			if err := authoring.New(s, nil, nil, nil).SetPublished(ctx, u.ID, args[0], !unpublish); err != nil {
				return err
			}
			if unpublish {
				fmt.Println("Course unpublished.")
			} else {
				fmt.Println("Course published.")
			}
			return nil
		})
	},
}

func init() {
	for _, c := range []*cobra.Command{courseCreateCmd, courseListCmd, coursePublishCmd} {
		c.Flags().StringP("user", "u", "", "Course creator username")
	}
	coursePublishCmd.Flags().Bool("unpublish", false, "Take the course down instead")

	courseCmd.AddCommand(courseCreateCmd)
	courseCmd.AddCommand(courseListCmd)
	courseCmd.AddCommand(coursePublishCmd)
}
