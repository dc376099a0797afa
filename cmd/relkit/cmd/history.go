package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/lan-dot-party/relkit/internal/config"
	"github.com/lan-dot-party/relkit/internal/storage"
)

var (
	historyKind      string
	historyLimit     int
	historyJSON      bool
	historySince     string
	historyOlderThan time.Duration
)

// historyCmd represents the history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded bumps, nightly triggers and prunes",
	Long: `Display the release ledger. Requires history.enabled in the configuration.

Examples:
  # Show recent events
  relkit history

  # Only version bumps, as JSON
  relkit history --kind bump --json

  # Events from the last week
  relkit history --since 168h`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

// historyCleanCmd removes old events
var historyCleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Delete events older than a duration",
	Long: `Delete ledger events older than --older-than.

Examples:
  relkit history clean --older-than 720h`,
	Args: cobra.NoArgs,
	RunE: runHistoryClean,
}

// openHistoryStrict opens the ledger for commands that only read or
// maintain it, where a disabled or broken ledger is an error.
func openHistoryStrict(ctx context.Context, cfg *config.Config) (storage.Storage, error) {
	if !cfg.History.Enabled {
		return nil, fmt.Errorf("history is disabled in configuration (set history.enabled: true)")
	}
	store, err := storage.NewStorage(cfg.History, cfg.Project.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage: %w", err)
	}
	if err := store.Init(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	return store, nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := requireConfig()
	if err != nil {
		return err
	}
	ctx := context.Background()

	store, err := openHistoryStrict(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	filter := storage.EventFilter{
		Kind:  storage.Kind(historyKind),
		Limit: historyLimit,
	}
	switch filter.Kind {
	case "", storage.KindBump, storage.KindNightly, storage.KindPrune:
	default:
		return fmt.Errorf("invalid --kind %q (must be bump, nightly or prune)", historyKind)
	}

	if historySince != "" {
		duration, err := time.ParseDuration(historySince)
		if err != nil {
			return fmt.Errorf("invalid duration format for --since: %w", err)
		}
		filter.Since = time.Now().Add(-duration)
	}

	events, err := store.ListEvents(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to get events: %w", err)
	}

	if len(events) == 0 {
		fmt.Println("No events found.")
		return nil
	}

	if historyJSON {
		data, err := json.MarshalIndent(events, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal events: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	printEventsTable(events)
	return nil
}

func printEventsTable(events []storage.Event) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"ID", "Kind", "Directive", "Version", "Tag", "Status", "Time", "Detail"})

	for _, e := range events {
		version := e.Version
		if e.Previous != "" {
			version = e.Previous + " -> " + e.Version
		}
		t.AppendRow(table.Row{
			e.ID,
			e.Kind,
			e.Directive,
			version,
			e.Tag,
			e.Status,
			e.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			truncate(e.Detail, 40),
		})
	}

	t.AppendFooter(table.Row{"", "", "", "", "", "", "Total", len(events)})
	t.SetStyle(table.StyleRounded)
	t.Render()
}

func runHistoryClean(cmd *cobra.Command, args []string) error {
	cfg, err := requireConfig()
	if err != nil {
		return err
	}
	if historyOlderThan <= 0 {
		return fmt.Errorf("--older-than must be positive")
	}
	ctx := context.Background()

	store, err := openHistoryStrict(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	n, err := store.DeleteOlderThan(ctx, time.Now().Add(-historyOlderThan))
	if err != nil {
		return err
	}
	fmt.Printf("[OK] Deleted %d event(s) older than %s\n", n, historyOlderThan)
	return nil
}

// truncate shortens s to n runes, marking the cut with "...".
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyCleanCmd)

	historyCmd.Flags().StringVar(&historyKind, "kind", "", "filter by kind (bump, nightly, prune)")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "maximum number of events")
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "output as JSON")
	historyCmd.Flags().StringVar(&historySince, "since", "", "only events newer than this duration (e.g. 24h)")

	historyCleanCmd.Flags().DurationVar(&historyOlderThan, "older-than", 30*24*time.Hour,
		"delete events older than this duration")
}
