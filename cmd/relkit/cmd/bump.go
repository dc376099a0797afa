package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lan-dot-party/relkit/internal/bump"
	"github.com/lan-dot-party/relkit/internal/logger"
	"github.com/lan-dot-party/relkit/internal/semver"
	"github.com/lan-dot-party/relkit/internal/sink"
	"github.com/lan-dot-party/relkit/internal/storage"
)

var bumpStrict bool

// bumpCmd represents the bump command
var bumpCmd = &cobra.Command{
	Use:   "bump <major|minor|patch|nightly|X.Y.Z>",
	Short: "Bump the firmware version in every version file",
	Long: `Compute the next version from version.json and write it to every
configured version file.

Directives:
  major    X.Y.Z -> (X+1).0.0
  minor    X.Y.Z -> X.(Y+1).0
  patch    X.Y.Z -> X.Y.(Z+1)
  nightly  X.Y.Z -> X.Y.Z-nightly.<short git hash>
  X.Y.Z    set an explicit version

Examples:
  relkit bump patch
  relkit bump 1.2.0
  relkit bump nightly --strict`,
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) != 1 {
			_ = cmd.Usage()
			return fmt.Errorf("expected exactly one version directive, got %d", len(args))
		}
		return nil
	},
	RunE: runBump,
}

func runBump(cmd *cobra.Command, args []string) error {
	cfg, err := requireConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	sinks, err := sink.FromConfig(cfg.Project.Root, cfg.Sinks)
	if err != nil {
		return fmt.Errorf("invalid sink configuration: %w", err)
	}

	bumper, err := bump.New(bump.Options{
		StorePath: cfg.StorePath(),
		StoreKey:  cfg.Project.StoreKey,
		Sinks:     sinks,
		Revision:  newGit(cfg).ShortRevision,
		Strict:    cfg.Bump.Strict || bumpStrict,
	}, logger.Named("bump"))
	if err != nil {
		return err
	}

	store := openHistory(ctx, cfg)
	defer closeHistory(store)

	directive := semver.ParseDirective(args[0])
	event := storage.NewEvent(storage.KindBump)
	event.Directive = directive.String()

	result, err := bumper.Run(ctx, directive)
	if err != nil {
		event.Status = storage.StatusFailed
		event.Detail = err.Error()
		storage.Record(ctx, store, event, logger.Log)
		return err
	}

	printBumpResult(result)

	event.Previous = result.Previous
	event.Version = result.Next
	event.Status = storage.StatusComplete
	if rerr := result.Err(); rerr != nil {
		event.Status = storage.StatusIncomplete
		event.Detail = rerr.Error()
	}
	if store != nil && directive.Kind == semver.KindNightly {
		event.Revision = nightlyRevision(result.Next)
	}
	storage.Record(ctx, store, event, logger.Log)

	if rerr := result.Err(); rerr != nil {
		logger.Error("Version bump incomplete", zap.Error(rerr))
		return rerr
	}

	printNextSteps(result.Next)
	return nil
}

// nightlyRevision returns the identifier a nightly bump already wrote into
// next, or "" when next carries none.
func nightlyRevision(next string) string {
	v, err := semver.Parse(next)
	if err != nil {
		return ""
	}
	return v.Prerelease
}

func printBumpResult(r *bump.Result) {
	current := r.Previous
	if current == "" {
		current = "(none)"
	}
	fmt.Println()
	fmt.Printf("Current version: %s\n", current)
	fmt.Printf("New version: %s\n", r.Next)
	fmt.Println()
	fmt.Println("Updating files:")

	for _, rep := range r.Reports {
		switch rep.Status {
		case sink.StatusUpdated:
			fmt.Printf("  [OK] %s\n", rep.Sink)
		case sink.StatusSkipped:
			fmt.Printf("  [SKIP] %s (not found)\n", rep.Sink)
		default:
			fmt.Printf("  [FAIL] %s: %s\n", rep.Sink, rep.Error())
		}
	}
}

func printNextSteps(next string) {
	fmt.Println()
	fmt.Printf("[SUCCESS] Version bumped to %s\n", next)
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Println("  1. Build and test locally")
	fmt.Printf("  2. git add -A && git commit -m \"v%s: <description>\"\n", next)
	fmt.Println("  3. git push origin main")
	fmt.Printf("  4. gh release create v%s --title \"v%s - <title>\" --generate-notes\n", next, next)
}

func init() {
	rootCmd.AddCommand(bumpCmd)

	bumpCmd.Flags().BoolVar(&bumpStrict, "strict", false,
		"write nothing unless every version file can be updated")
}
