package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/abhisek/coursewell/internal/authoring"
	"github.com/abhisek/coursewell/internal/compiler"
	"github.com/abhisek/coursewell/internal/logging"
	"github.com/abhisek/coursewell/internal/media"
	"github.com/abhisek/coursewell/internal/server"
	"github.com/abhisek/coursewell/internal/store"
)

var chapterCmd = &cobra.Command{
	Use:   "chapter",
	Short: "Write and arrange course chapters",
}

var chapterAddCmd = &cobra.Command{
	Use:   "add <course-id>",
	Short: "Compile a lesson script and append it as a new chapter",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return submitScript(cmd, func(ctx context.Context, svc *authoring.Service, userID int, sc authoring.Script) (*store.Lesson, error) {
			return svc.AddChapter(ctx, userID, args[0], sc)
		})
	},
}

var chapterEditCmd = &cobra.Command{
	Use:   "edit <lesson-id>",
	Short: "Recompile a chapter from an edited script",
	Long: "Recompiles the chapter. Media the new script still references by the " +
		"same description keeps its file, so only new media needs --media.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return submitScript(cmd, func(ctx context.Context, svc *authoring.Service, userID int, sc authoring.Script) (*store.Lesson, error) {
			return svc.EditChapter(ctx, userID, args[0], sc)
		})
	},
}

// submitScript reads --title, --script and --media, then runs op with a
// compiling authoring service. Stored media is removed again if op fails.
func submitScript(cmd *cobra.Command, op func(context.Context, *authoring.Service, int, authoring.Script) (*store.Lesson, error)) error {
	title, _ := cmd.Flags().GetString("title")
	scriptPath, _ := cmd.Flags().GetString("script")
	mediaPaths, _ := cmd.Flags().GetStringArray("media")
	if scriptPath == "" {
		return errors.New("--script is required")
	}
	text, err := os.ReadFile(scriptPath)
	if err != nil {
		return fmt.Errorf("read script: %w", err)
	}

	cfg, err := server.ConfigFromEnv()
	if err != nil {
		return err
	}
	log, err := logging.New("dev")
	if err != nil {
		return err
	}
	defer log.Sync()

	return withStore(cmd, func(ctx context.Context, s *store.Store) error {
		u, err := userFlag(ctx, cmd, s)
		if err != nil {
			return err
		}

		files, err := media.NewStore(cfg.UploadDir, "/uploads")
		if err != nil {
			return err
		}
		uploads, err := saveMediaFiles(files, mediaPaths)
		if err != nil {
			return err
		}

		eng, err := buildEngine(ctx, s, log, engineOptions{media: files})
		if err != nil {
			files.Remove(uploadURLs(uploads)...)
			return err
		}

		l, err := op(ctx, eng.authoring, u.ID, authoring.Script{Title: title, Text: string(text), Uploads: uploads})
		if err != nil {
			files.Remove(uploadURLs(uploads)...)
			var ce *compiler.CompileError
			if errors.As(err, &ce) {
				return errors.New(compiler.AuthorMessage)
			}
			return err
		}
		fmt.Printf("Chapter %d %q saved\nID: %s\n", l.ChapterNumber, l.Title, l.ID)
		return nil
	})
}

func saveMediaFiles(files *media.Store, paths []string) (compiler.Uploads, error) {
	uploads := make([]media.Upload, 0, len(paths))
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			return compiler.Uploads{}, fmt.Errorf("open media: %w", err)
		}
		defer f.Close()
		uploads = append(uploads, media.Upload{Name: filepath.Base(p), Body: f})
	}
	return files.SaveAll(uploads)
}

func uploadURLs(u compiler.Uploads) []string {
	return append(append([]string(nil), u.Images...), u.Audio...)
}

var chapterDeleteCmd = &cobra.Command{
	Use:   "delete <lesson-id>",
	Short: "Delete a chapter and renumber the ones after it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(ctx context.Context, s *store.Store) error {
			u, err := userFlag(ctx, cmd, s)
			if err != nil {
				return err
			}
			cfg, err := server.ConfigFromEnv()
			if err != nil {
				return err
			}
			files, err := media.NewStore(cfg.UploadDir, "/uploads")
			if err != nil {
				return err
			}
			svc := authoring.New(s, nil, nil, nil).WithMedia(files)
			if err := svc.DeleteChapter(ctx, u.ID, args[0]); err != nil {
				return err
			}
			fmt.Println("Chapter deleted.")
			return nil
		})
	},
}

var chapterReorderCmd = &cobra.Command{
	Use:   "reorder <course-id> <lesson-id>...",
	Short: "Renumber chapters in the given order",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(ctx context.Context, s *store.Store) error {
			u, err := userFlag(ctx, cmd, s)
			if err != nil {
				return err
			}
			if err := authoring.New(s, nil, nil, nil).ReorderChapters(ctx, u.ID, args[0], args[1:]); err != nil {
				return err
			}
			return printChapters(ctx, s, u.ID, args[0])
		})
	},
}

var chapterListCmd = &cobra.Command{
	Use:   "list <course-id>",
	Short: "List a course's chapters",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(ctx context.Context, s *store.Store) error {
			u, err := userFlag(ctx, cmd, s)
			if err != nil {
				return err
			}
			return printChapters(ctx, s, u.ID, args[0])
		})
	},
}

func printChapters(ctx context.Context, s *store.Store, userID int, courseID string) error {
	chapters, err := authoring.New(s, nil, nil, nil).Chapters(ctx, userID, courseID)
	if err != nil {
		return err
	}
	if len(chapters) == 0 {
		fmt.Println("No chapters yet.")
		return nil
	}
	for _, l := range chapters {
		fmt.Printf("%3d. %-40s  %s\n", l.ChapterNumber, truncate(l.Title, 40), l.ID)
	}
	return nil
}

func init() {
	for _, c := range []*cobra.Command{chapterAddCmd, chapterEditCmd} {
		c.Flags().String("title", "", "Chapter title")
		c.Flags().String("script", "", "Path to the lesson script")
		c.Flags().StringArray("media", nil, "Media file, in the order the script references it (repeatable)")
	}
	for _, c := range []*cobra.Command{chapterAddCmd, chapterEditCmd, chapterDeleteCmd, chapterReorderCmd, chapterListCmd} {
		c.Flags().StringP("user", "u", "", "Username")
	}

	chapterCmd.AddCommand(chapterAddCmd)
	chapterCmd.AddCommand(chapterEditCmd)
	chapterCmd.AddCommand(chapterDeleteCmd)
	chapterCmd.AddCommand(chapterReorderCmd)
	chapterCmd.AddCommand(chapterListCmd)
}
