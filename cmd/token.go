package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/abhisek/coursewell/internal/server"
	"github.com/abhisek/coursewell/internal/store"
)

var tokenCmd = &cobra.Command{
	Use:   "token <username>",
	Short: "Issue an API bearer token for a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := server.ConfigFromEnv()
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		ttl := cfg.TokenTTL
		if cmd.Flags().Changed("ttl") {
			ttl, _ = cmd.Flags().GetDuration("ttl")
		}

		return withStore(cmd, func(ctx context.Context, s *store.Store) error {
			u, err := s.UserRepo().UserByName(ctx, args[0])
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("no user named %q", args[0])
			}
			if err != nil {
				return err
			}
			tok, err := server.IssueToken(cfg.JWTSecret, u.ID, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(os.Stdout, tok)
			return nil
		})
	},
}

func init() {
	tokenCmd.Flags().Duration("ttl", 0, "Token lifetime (default COURSEWELL_TOKEN_TTL or 24h)")
}
