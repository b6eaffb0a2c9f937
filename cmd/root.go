package cmd

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/abhisek/coursewell/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "coursewell",
	Short: "AI tutor that teaches authored lesson scripts",
	Long: "Coursewell turns an author's lesson script into a guided conversation: " +
		"it explains the material chunk by chunk, asks the script's questions, " +
		"grades answers and fields questions about the lesson.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// A missing .env is fine; real environment variables still apply.
		_ = godotenv.Load()
		if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
			return os.Setenv("COURSEWELL_LOG_LEVEL", lvl)
		}
		return nil
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("db", "", "Path to SQLite database file (overrides COURSEWELL_DB env var)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error (overrides COURSEWELL_LOG_LEVEL)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(learnCmd)
	rootCmd.AddCommand(userCmd)
	rootCmd.AddCommand(courseCmd)
	rootCmd.AddCommand(chapterCmd)
	rootCmd.AddCommand(enrollCmd)
	rootCmd.AddCommand(progressCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(llmCmd)
	rootCmd.AddCommand(versionCmd)
}

// resolveDBPath returns the database path using --db flag (highest priority),
// then COURSEWELL_DB env var, then the default XDG path.
func resolveDBPath(cmd *cobra.Command) (string, error) {
	if p, _ := cmd.Flags().GetString("db"); p != "" {
		return p, store.EnsureDir(p)
	}
	return store.DefaultDBPath()
}
