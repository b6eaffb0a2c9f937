package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abhisek/coursewell/internal/store"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage accounts",
}

var userAddCmd = &cobra.Command{
	Use:   "add <username>",
	Short: "Create an account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(ctx context.Context, s *store.Store) error {
			u, err := s.UserRepo().CreateUser(ctx, args[0])
			if errors.Is(err, store.ErrConflict) {
				return fmt.Errorf("username %q is taken", args[0])
			}
			if err != nil {
				return err
			}
			fmt.Printf("Created user %s (id %d)\n", u.Username, u.ID)
			return nil
		})
	},
}

func init() {
	userCmd.AddCommand(userAddCmd)
}
