package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lan-dot-party/relkit/internal/api"
	"github.com/lan-dot-party/relkit/internal/config"
	"github.com/lan-dot-party/relkit/internal/github"
	"github.com/lan-dot-party/relkit/internal/logger"
	"github.com/lan-dot-party/relkit/internal/nightly"
	"github.com/lan-dot-party/relkit/internal/scheduler"
	"github.com/lan-dot-party/relkit/internal/storage"
)

var (
	noScheduler bool
)

// serverCmd represents the server command
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the read-only release API",
	Long: `Start the relkit API server with an optional nightly scheduler.

The server provides:
  • Current firmware version from version.json
  • Latest release per OTA channel (cached GitHub lookups)
  • Release ledger (history.enabled)
  • Prometheus metrics endpoint (/api/v1/metrics)
  • Optional scheduled nightly triggers

Examples:
  # Start server with scheduler (if enabled in config)
  relkit server

  # Start server without scheduler
  relkit server --no-scheduler`,
	Args: cobra.NoArgs,
	RunE: runServer,
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := requireConfig()
	if err != nil {
		return err
	}

	store := openHistory(context.Background(), cfg)
	defer closeHistory(store)

	var releases api.ReleaseLister
	client, err := github.NewClient(cfg.GitHub, logger.Named("github"))
	if err != nil {
		logger.Warn("Release lookups disabled", zap.Error(err))
	} else {
		releases = client
	}

	server, err := api.NewServer(cfg, store, releases, logger.Log)
	if err != nil {
		return fmt.Errorf("failed to create web server: %w", err)
	}

	initNightlyMetrics(context.Background(), store)

	// Create scheduler if enabled
	var sched *scheduler.Scheduler
	schedulerEnabled := cfg.Scheduler.Enabled && !noScheduler
	if schedulerEnabled {
		sched, err = newNightlyScheduler(cfg, store)
		if err != nil {
			logger.Warn("Failed to create scheduler", zap.Error(err))
			schedulerEnabled = false
		}
	}

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Info("Received signal, shutting down", zap.String("signal", sig.String()))
		cancel()

		// Stop scheduler first
		if sched != nil {
			sched.Stop()
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", zap.Error(err))
		}
	}()

	// Print startup info
	fmt.Println()
	fmt.Println("╔═══════════════════════════════════════════╗")
	fmt.Println("║       relkit Release API                  ║")
	fmt.Println("╚═══════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Listen:      http://%s\n", cfg.Webserver.Listen)
	fmt.Printf("  Project:     %s\n", cfg.Project.Root)
	fmt.Printf("  Repository:  %s\n", cfg.GitHub.Repo)
	if store != nil {
		fmt.Printf("  History:     %s\n", cfg.History.Type)
	} else {
		fmt.Printf("  History:     disabled\n")
	}
	if cfg.Webserver.Auth != nil && cfg.Webserver.Auth.Username != "" {
		fmt.Printf("  Auth:        Basic Auth enabled\n")
	} else {
		fmt.Printf("  Auth:        None\n")
	}

	if schedulerEnabled && sched != nil {
		if err := sched.Start(); err != nil {
			logger.Error("Failed to start scheduler", zap.Error(err))
		} else {
			fmt.Printf("  Scheduler:   enabled (%s)\n", cfg.Scheduler.Schedule)
		}
	} else {
		fmt.Printf("  Scheduler:   disabled\n")
	}

	fmt.Println()
	fmt.Println("  API Endpoints (Read-Only):")
	fmt.Println("    GET  /api/                          - API Documentation")
	fmt.Println("    GET  /health                        - Health check")
	fmt.Println("    GET  /api/v1/version                - Current version")
	fmt.Println("    GET  /api/v1/history                - Release ledger")
	fmt.Println("    GET  /api/v1/history/latest         - Latest event per kind")
	fmt.Println("    GET  /api/v1/channels/{name}/latest - Latest release per channel")
	fmt.Println("    GET  /api/v1/metrics                - Prometheus metrics")
	fmt.Println()
	fmt.Println("  Press Ctrl+C to stop")
	fmt.Println()

	// Start server (blocks until shutdown)
	if err := server.Start(); err != nil {
		select {
		case <-ctx.Done():
			return nil
		default:
			return fmt.Errorf("server error: %w", err)
		}
	}

	return nil
}

// newNightlyScheduler builds the non-interactive nightly job sharing the
// server's ledger.
func newNightlyScheduler(cfg *config.Config, store storage.Storage) (*scheduler.Scheduler, error) {
	releaser, err := newReleaser(cfg, true, nil, os.Stdout)
	if err != nil {
		return nil, err
	}
	job := scheduler.NewNightlyJob(releaser, store, newGit(cfg).ShortRevision, logger.Named("scheduler"))
	return scheduler.NewScheduler(&cfg.Scheduler, job, logger.Named("scheduler"))
}

// initNightlyMetrics seeds the nightly metrics from the last recorded trigger.
func initNightlyMetrics(ctx context.Context, store storage.Storage) {
	if store == nil {
		return
	}

	events, err := store.ListEvents(ctx, storage.EventFilter{Kind: storage.KindNightly, Limit: 50})
	if err != nil {
		logger.Warn("Failed to load history for Prometheus metrics initialization", zap.Error(err))
		return
	}

	for _, e := range events {
		if e.Status != string(nightly.OutcomeTriggered) {
			continue
		}
		api.SeedLastNightly(e.CreatedAt)
		logger.Info("Prometheus metrics initialized from history",
			zap.Time("last_nightly", e.CreatedAt),
		)
		return
	}
	logger.Debug("No stored nightly triggers to initialize Prometheus metrics")
}

func init() {
	rootCmd.AddCommand(serverCmd)

	serverCmd.Flags().BoolVar(&noScheduler, "no-scheduler", false,
		"disable scheduler even if enabled in config")
}
