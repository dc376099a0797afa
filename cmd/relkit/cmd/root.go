// Package cmd contains all CLI commands for relkit.
package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lan-dot-party/relkit/internal/config"
	"github.com/lan-dot-party/relkit/internal/execx"
	"github.com/lan-dot-party/relkit/internal/logger"
	"github.com/lan-dot-party/relkit/internal/storage"
	"github.com/lan-dot-party/relkit/internal/vcs"
	"github.com/lan-dot-party/relkit/pkg/version"
)

var (
	// Global flags
	cfgFile     string
	verbose     bool
	projectRoot string

	// Loaded configuration (available to subcommands)
	cfg *config.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "relkit",
	Short: "relkit - Release tooling for the firmware project",
	Long: `relkit keeps the firmware version consistent and drives its releases:

  • bump     - Compute the next version and write it to every version file
  • nightly  - Tag a nightly prerelease and trigger the release workflow
  • prune    - Remove unsupported assembly sources from the graphics library
  • releases - Show the latest published release per OTA channel
  • server   - Read-only release API with metrics and scheduled nightlies

Without a config file the built-in defaults match the firmware repository
layout (version.json, web-installer/manifest.json, include/ui_common.h).`,
	Version:       version.Get().String(),
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip config loading for certain commands
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}
		if cmd.Parent() != nil && cmd.Parent().Name() == "config" && cmd.Name() == "init" {
			return nil
		}

		// .env may carry GH_TOKEN or PROJECT_DIR; a missing file is fine
		_ = godotenv.Load(".env")

		// Initialize logger based on verbose flag
		development := logger.IsDevelopment()
		logLevel := "warn"
		if verbose {
			logLevel = "debug"
		}
		if err := logger.Init(logLevel, development); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		if projectRoot != "" {
			abs, err := filepath.Abs(projectRoot)
			if err != nil {
				return fmt.Errorf("invalid --root: %w", err)
			}
			cfg.Project.Root = abs
		}

		// Reinitialize logger with config settings (verbose flag takes precedence)
		finalLogLevel := cfg.General.LogLevel
		if verbose {
			finalLogLevel = "debug"
		}
		if err := logger.Init(finalLogLevel, development); err != nil {
			return fmt.Errorf("failed to reinitialize logger: %w", err)
		}

		logger.Debug("Configuration loaded",
			zap.String("file", cfg.Path()),
			zap.String("root", cfg.Project.Root),
		)
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: ./relkit.yaml, built-in defaults if absent)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"enable verbose/debug output")
	rootCmd.PersistentFlags().StringVar(&projectRoot, "root", "",
		"firmware project root (overrides project.root)")

	rootCmd.SetVersionTemplate(`{{printf "relkit %s\n" .Version}}`)
}

// GetConfig returns the loaded configuration.
// Returns nil if config hasn't been loaded yet.
func GetConfig() *config.Config {
	return cfg
}

// SetConfig sets the configuration (useful for testing).
func SetConfig(c *config.Config) {
	cfg = c
}

// requireConfig returns the loaded configuration or an error for commands
// that cannot run without it.
func requireConfig() (*config.Config, error) {
	c := GetConfig()
	if c == nil {
		return nil, fmt.Errorf("configuration not loaded")
	}
	return c, nil
}

// newGit returns a git client rooted at the project directory.
func newGit(c *config.Config) *vcs.Git {
	return vcs.NewGit(execx.New(c.Project.Root), logger.Named("git"))
}

// openHistory opens the release ledger. It returns nil when history is
// disabled or cannot be opened; recording is never fatal for a command.
func openHistory(ctx context.Context, c *config.Config) storage.Storage {
	if !c.History.Enabled {
		return nil
	}

	store, err := storage.NewStorage(c.History, c.Project.Root)
	if err != nil {
		logger.Warn("History disabled", zap.Error(err))
		return nil
	}
	if err := store.Init(ctx); err != nil {
		logger.Warn("Failed to open history, continuing without it", zap.Error(err))
		_ = store.Close()
		return nil
	}
	return store
}

// closeHistory closes store when it was opened.
func closeHistory(store storage.Storage) {
	if store != nil {
		_ = store.Close()
	}
}
