package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	backend "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/abhisek/coursewell/internal/logging"
	"github.com/abhisek/coursewell/internal/media"
	"github.com/abhisek/coursewell/internal/server"
	"github.com/abhisek/coursewell/internal/state"
)

const lockPrefix = "coursewell:lock:"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: "Serves the tutoring and authoring API. Preview cursors and turn locks " +
		"live in redis when COURSEWELL_REDIS_ADDR is set, in memory otherwise.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := server.ConfigFromEnv()
		if err != nil {
			return err
		}
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.Addr = addr
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		mode, _ := cmd.Flags().GetString("log-mode")
		log, err := logging.New(mode)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		defer log.Sync()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		s, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		opts, closeRedis, err := stateBackends(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer closeRedis()

		files, err := media.NewStore(cfg.UploadDir, "/uploads")
		if err != nil {
			return err
		}
		opts.media = files

		eng, err := buildEngine(ctx, s, log, opts)
		if err != nil {
			return err
		}

		return server.New(cfg, eng.router, eng.authoring, files, log).ListenAndServe(ctx)
	},
}

// stateBackends picks redis for previews and locks when configured.
func stateBackends(ctx context.Context, cfg server.Config, log *logging.Logger) (engineOptions, func(), error) {
	if cfg.RedisAddr == "" {
		log.Info("preview state in memory")
		return engineOptions{ephemeral: state.NewMemory(), locker: state.NewLocker(log)}, func() {}, nil
	}

	client := backend.NewClient(&backend.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return engineOptions{}, nil, fmt.Errorf("connect to redis at %s: %w", cfg.RedisAddr, err)
	}
	log.Info("preview state in redis", "addr", cfg.RedisAddr)

	opts := engineOptions{
		ephemeral: state.NewRedis(client),
		locker:    state.NewDistributedLocker(client, lockPrefix, log),
	}
	return opts, func() { client.Close() }, nil
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address (overrides COURSEWELL_ADDR)")
	serveCmd.Flags().String("log-mode", "prod", "Log format: prod (JSON) or dev (console)")
}
