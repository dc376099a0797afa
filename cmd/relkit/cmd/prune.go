package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lan-dot-party/relkit/internal/config"
	"github.com/lan-dot-party/relkit/internal/logger"
	"github.com/lan-dot-party/relkit/internal/prune"
	"github.com/lan-dot-party/relkit/internal/storage"
)

var pruneProjectDir string

// pruneCmd represents the prune command
var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove unsupported assembly sources from the graphics library",
	Long: `Delete the architecture-specific blend sources (Helium, NEON and raw
assembly files) from the vendored graphics library so the firmware
toolchain can compile it. Intended to run as a build pre-step; finding no
library is reported but is not an error.

The project directory is, in order: --project-dir, $PROJECT_DIR,
project.root, the working directory.

Examples:
  relkit prune
  PROJECT_DIR=/src/firmware relkit prune`,
	Args: cobra.NoArgs,
	RunE: runPrune,
}

func runPrune(cmd *cobra.Command, args []string) error {
	cfg, err := requireConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	dir, err := resolveProjectDir(cfg)
	if err != nil {
		return err
	}

	fmt.Println(strings.Repeat("=", 60))
	fmt.Println("Removing unsupported library assembly sources")
	fmt.Println(strings.Repeat("=", 60))

	pruner := prune.New(dir, cfg.Prune, logger.Named("prune"))
	report, runErr := pruner.Run()

	store := openHistory(ctx, cfg)
	defer closeHistory(store)

	event := storage.NewEvent(storage.KindPrune)
	event.Detail = dir

	if report != nil {
		printPruneReport(report)
		switch {
		case !report.Found():
			event.Status = storage.StatusNotFound
		case runErr != nil:
			event.Status = storage.StatusIncomplete
		default:
			event.Status = storage.StatusComplete
		}
	} else {
		event.Status = storage.StatusFailed
	}
	if runErr != nil {
		event.Detail = runErr.Error()
	}
	storage.Record(ctx, store, event, logger.Log)

	fmt.Println(strings.Repeat("=", 60))
	return runErr
}

func resolveProjectDir(cfg *config.Config) (string, error) {
	if pruneProjectDir != "" {
		return pruneProjectDir, nil
	}
	if env := os.Getenv("PROJECT_DIR"); env != "" {
		return env, nil
	}
	if cfg.Project.Root != "" {
		return cfg.Project.Root, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to determine working directory: %w", err)
	}
	return wd, nil
}

func printPruneReport(r *prune.Report) {
	if !r.Found() {
		fmt.Println("WARNING: library path not found!")
		for _, p := range r.Missing {
			fmt.Printf("  Searched: %s\n", p)
		}
		return
	}

	for _, root := range r.Roots {
		fmt.Printf("Found library at: %s\n", root)
	}
	for _, d := range r.RemovedDirs {
		fmt.Printf("  Removed: %s\n", d)
	}
	for _, f := range r.RemovedFiles {
		fmt.Printf("  Removed: %s\n", f)
	}
	if len(r.RemovedDirs) == 0 && len(r.RemovedFiles) == 0 {
		fmt.Println("  Nothing to remove")
	}
}

func init() {
	rootCmd.AddCommand(pruneCmd)

	pruneCmd.Flags().StringVar(&pruneProjectDir, "project-dir", "",
		"project directory containing the library (default: $PROJECT_DIR)")
}
