package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/briandowns/spinner"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/lan-dot-party/relkit/internal/channel"
	"github.com/lan-dot-party/relkit/internal/github"
	"github.com/lan-dot-party/relkit/internal/logger"
	"github.com/lan-dot-party/relkit/internal/sink"
)

var releasesChannel string

// releasesCmd represents the releases command
var releasesCmd = &cobra.Command{
	Use:   "releases",
	Short: "Show the latest published release per OTA channel",
	Long: `List the newest GitHub release a device would install on each OTA
channel and whether it differs from the version in version.json.

Stable devices ignore prereleases; nightly devices accept every release.

Examples:
  relkit releases
  relkit releases --channel nightly`,
	Args: cobra.NoArgs,
	RunE: runReleases,
}

func runReleases(cmd *cobra.Command, args []string) error {
	cfg, err := requireConfig()
	if err != nil {
		return err
	}

	channels := channel.All
	if releasesChannel != "" {
		c, err := channel.Parse(releasesChannel)
		if err != nil {
			return err
		}
		channels = []channel.Channel{c}
	}

	client, err := github.NewClient(cfg.GitHub, logger.Named("github"))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.GitHub.Timeout*3)
	defer cancel()

	var s *spinner.Spinner
	if term.IsTerminal(int(os.Stdout.Fd())) {
		s = spinner.New(spinner.CharSets[11], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
		s.Suffix = fmt.Sprintf(" Fetching releases for %s...", cfg.GitHub.Repo)
		s.Start()
	}
	releases, err := client.ListReleases(ctx)
	if s != nil {
		s.Stop()
	}
	if err != nil {
		return err
	}

	current, err := sink.ReadVersion(cfg.StorePath(), cfg.Project.StoreKey)
	if err != nil && !errors.Is(err, sink.ErrSinkMissing) {
		return err
	}

	versions := github.Versions(releases)

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle(fmt.Sprintf("%s (current: %s)", cfg.GitHub.Repo, orNone(current)))
	t.AppendHeader(table.Row{"Channel", "Latest", "Published", "Update", "URL"})

	for _, c := range channels {
		latest, ok := channel.Latest(c, versions)
		if !ok {
			t.AppendRow(table.Row{c, "-", "-", "-", ""})
			continue
		}
		rel := releases[slices.Index(versions, latest)]
		update := "no"
		if channel.UpdateAvailable(current, latest) {
			update = "yes"
		}
		t.AppendRow(table.Row{
			c,
			rel.TagName,
			rel.PublishedAt.Local().Format("2006-01-02"),
			update,
			rel.HTMLURL,
		})
	}

	t.SetStyle(table.StyleRounded)
	t.Render()
	return nil
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}

func init() {
	rootCmd.AddCommand(releasesCmd)

	releasesCmd.Flags().StringVar(&releasesChannel, "channel", "", "only show this channel (stable or nightly)")
}
