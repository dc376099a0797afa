package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	shellquote "github.com/kballard/go-shellquote"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/lan-dot-party/relkit/internal/config"
	"github.com/lan-dot-party/relkit/internal/execx"
	"github.com/lan-dot-party/relkit/internal/logger"
	"github.com/lan-dot-party/relkit/internal/nightly"
	"github.com/lan-dot-party/relkit/internal/semver"
	"github.com/lan-dot-party/relkit/internal/storage"
)

var (
	nightlyVersion string
	nightlyYes     bool
)

// nightlyCmd represents the nightly command
var nightlyCmd = &cobra.Command{
	Use:   "nightly",
	Short: "Trigger a nightly prerelease build",
	Long: `Generate a nightly tag from version.json (or --version) and trigger the
nightly release workflow with the GitHub CLI.

The tag has the form X.Y.Z-nightly.<identifier>. A version that already
carries a nightly suffix is reused unchanged.

Examples:
  relkit nightly
  relkit nightly --version 1.2.0
  relkit nightly --yes`,
	Args: cobra.NoArgs,
	RunE: runNightly,
}

// newReleaser wires the nightly releaser for cfg. in and out are used for
// the confirmation prompt and operator guidance.
func newReleaser(cfg *config.Config, assumeYes bool, in io.Reader, out io.Writer) (*nightly.Releaser, error) {
	extra, err := shellquote.Split(cfg.Nightly.ExtraArgs)
	if err != nil {
		return nil, fmt.Errorf("invalid nightly.extra_args: %w", err)
	}

	id, err := nightly.NewIdentifier(cfg.Nightly.Identifier, newGit(cfg).ShortRevision, nil)
	if err != nil {
		return nil, err
	}

	trigger := nightly.NewTrigger(nightly.Options{
		CLI:       cfg.Nightly.CLI,
		Workflow:  cfg.Nightly.Workflow,
		Input:     cfg.Nightly.Input,
		ExtraArgs: extra,
		Repo:      cfg.GitHub.Repo,
		AssumeYes: assumeYes,
	}, execx.New(cfg.Project.Root), in, out, logger.Named("nightly"))

	return &nightly.Releaser{
		StorePath:  cfg.StorePath(),
		StoreKey:   cfg.Project.StoreKey,
		Identifier: id,
		Trigger:    trigger,
	}, nil
}

func runNightly(cmd *cobra.Command, args []string) error {
	cfg, err := requireConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	out := cmd.OutOrStdout()
	releaser, err := newReleaser(cfg, nightlyYes, cmd.InOrStdin(), out)
	if err != nil {
		return err
	}

	store := openHistory(ctx, cfg)
	defer closeHistory(store)

	tag, err := releaser.ResolveTag(ctx, nightlyVersion)
	if err != nil {
		return err
	}

	if nightlyVersion == "" {
		fmt.Fprintf(out, "\n[INFO] Using version from %s\n", cfg.Project.Store)
	} else {
		fmt.Fprintf(out, "\n[INFO] Using specified version: %s\n", nightlyVersion)
	}
	fmt.Fprintf(out, "[INFO] Generated nightly tag: v%s\n", tag)

	err = triggerNightly(ctx, releaser.Trigger, tag, out)
	recordNightly(ctx, store, tag, err)

	switch {
	case err == nil:
		printNightlySuccess(out, cfg, tag)
		return nil
	case errors.Is(err, nightly.ErrCancelled):
		fmt.Fprintln(out, "\n[CANCELLED] Nightly release creation cancelled.")
		return nil
	case errors.Is(err, nightly.ErrDependencyMissing):
		return err
	default:
		var wfErr *nightly.WorkflowTriggerError
		if errors.As(err, &wfErr) {
			fmt.Fprintln(out, "\n[ERROR] Failed to trigger workflow:")
			fmt.Fprintf(out, "  %s\n", strings.TrimSpace(wfErr.Stderr))
		}
		fmt.Fprintln(out, "\n[FAILED] Could not trigger workflow. See error above.")
		return err
	}
}

// triggerNightly runs the trigger steps, showing a spinner while the
// workflow is dispatched on an interactive terminal.
func triggerNightly(ctx context.Context, t *nightly.Trigger, tag string, out io.Writer) error {
	if err := t.CheckDependency(ctx, tag); err != nil {
		return err
	}
	if err := t.Confirm(tag); err != nil {
		return err
	}

	fmt.Fprintln(out, "\n[INFO] Triggering nightly release workflow...")
	fmt.Fprintf(out, "[INFO] Tag: v%s\n", tag)

	if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		s := spinner.New(spinner.CharSets[11], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
		s.Suffix = " Dispatching workflow..."
		s.Start()
		defer s.Stop()
	}
	return t.Dispatch(ctx, tag)
}

func recordNightly(ctx context.Context, store storage.Storage, tag string, err error) {
	event := storage.NewEvent(storage.KindNightly)
	event.Directive = "manual"
	event.Tag = tag
	event.Version = semver.Base(tag)
	event.Status = string(nightly.OutcomeOf(err))
	if err != nil {
		event.Detail = err.Error()
	}
	storage.Record(ctx, store, event, logger.Log)

	logger.Debug("Nightly trigger finished",
		zap.String("tag", tag),
		zap.String("outcome", event.Status),
	)
}

func printNightlySuccess(out io.Writer, cfg *config.Config, tag string) {
	fmt.Fprintln(out, "\n[SUCCESS] Nightly release workflow triggered!")
	fmt.Fprintln(out, "\n[INFO] Monitor progress:")
	fmt.Fprintf(out, "  %s run list --workflow=%s\n", cfg.Nightly.CLI, cfg.Nightly.Workflow)
	fmt.Fprintf(out, "  %s run watch\n", cfg.Nightly.CLI)
	fmt.Fprintf(out, "\n[INFO] Or visit: https://github.com/%s/actions\n", cfg.GitHub.Repo)

	fmt.Fprintln(out, "\n[NEXT STEPS]")
	fmt.Fprintln(out, "  1. Wait for GitHub Actions to build (~5 minutes)")
	fmt.Fprintln(out, "  2. Nightly release will appear at:")
	fmt.Fprintf(out, "     https://github.com/%s/releases/tag/v%s\n", cfg.GitHub.Repo, tag)
	fmt.Fprintln(out, "  3. Test OTA update with 'Nightly' channel selected")
	fmt.Fprintln(out, "\n[NOTE] This is a prerelease and won't appear in Stable channel")
}

func init() {
	rootCmd.AddCommand(nightlyCmd)

	nightlyCmd.Flags().StringVar(&nightlyVersion, "version", "",
		"base version to tag instead of the stored one (e.g. 1.2.0)")
	nightlyCmd.Flags().BoolVarP(&nightlyYes, "yes", "y", false,
		"skip the confirmation prompt")
}
