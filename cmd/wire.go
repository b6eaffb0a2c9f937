package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abhisek/coursewell/internal/authoring"
	"github.com/abhisek/coursewell/internal/compiler"
	"github.com/abhisek/coursewell/internal/dialogue"
	"github.com/abhisek/coursewell/internal/grading"
	"github.com/abhisek/coursewell/internal/llm"
	"github.com/abhisek/coursewell/internal/logging"
	"github.com/abhisek/coursewell/internal/progression"
	"github.com/abhisek/coursewell/internal/retrieval"
	"github.com/abhisek/coursewell/internal/state"
	"github.com/abhisek/coursewell/internal/store"
)

// openStore opens the database selected by --db / COURSEWELL_DB.
func openStore(cmd *cobra.Command) (*store.Store, error) {
	dbPath, err := resolveDBPath(cmd)
	if err != nil {
		return nil, fmt.Errorf("resolve database path: %w", err)
	}
	s, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return s, nil
}

// withStore runs fn with an open store and closes it afterwards.
func withStore(cmd *cobra.Command, fn func(ctx context.Context, s *store.Store) error) error {
	s, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(cmd.Context(), s)
}

// userFlag resolves the --user flag to an account.
func userFlag(ctx context.Context, cmd *cobra.Command, s *store.Store) (*store.User, error) {
	name, _ := cmd.Flags().GetString("user")
	if name == "" {
		return nil, errors.New("--user is required")
	}
	u, err := s.UserRepo().UserByName(ctx, name)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("no user named %q (create one with: coursewell user add %s)", name, name)
	}
	return u, err
}

// engine is the tutoring stack shared by serve, learn and the authoring
// commands.
type engine struct {
	authoring *authoring.Service
	router    *dialogue.Router
}

// engineOptions selects where preview cursors live and how turns lock.
// media, when set, lets chapter edits and deletions clean up files.
type engineOptions struct {
	ephemeral state.Store
	locker    *state.Locker
	media     authoring.MediaRemover
}

func buildEngine(ctx context.Context, s *store.Store, log *logging.Logger, opts engineOptions) (*engine, error) {
	oracles, err := llm.NewOraclesFromEnv(ctx, s.EventRepo(), log)
	if err != nil {
		return nil, fmt.Errorf("configure oracles: %w", err)
	}

	c := compiler.New(oracles.Provider, compiler.DefaultConfig())
	index := retrieval.NewIndex(oracles.Embedder)
	machine := progression.New(oracles.Provider, grading.New(oracles.Provider), progression.DefaultConfig())

	if opts.ephemeral == nil {
		opts.ephemeral = state.NewMemory()
	}
	router := dialogue.New(dialogue.Deps{
		Courses:     s.CourseRepo(),
		Lessons:     s.LessonRepo(),
		Enrollments: s.EnrollmentRepo(),
		Durable:     state.NewDurable(s.ProgressRepo()),
		Ephemeral:   opts.ephemeral,
		Locker:      opts.locker,
		Machine:     machine,
		Index:       index,
		Answerer:    retrieval.NewAnswerer(oracles.Provider, oracles.Embedder, retrieval.DefaultConfig()),
		Log:         log,
	})

	svc := authoring.New(s, c, index, log)
	if opts.media != nil {
		svc.WithMedia(opts.media)
	}
	return &engine{authoring: svc, router: router}, nil
}
