package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/lan-dot-party/relkit/internal/config"
)

var configInitOutput string

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management",
	Long:  `Commands for managing relkit configuration.`,
}

// configValidateCmd validates the configuration
var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration file",
	Long: `Check the configuration file for errors.

Examples:
  relkit config validate
  relkit config validate --config /path/to/relkit.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := requireConfig()
		if err != nil {
			return err
		}

		source := cfg.Path()
		if source == "" {
			source = "built-in defaults"
		}

		fmt.Println("[OK] Configuration is valid!")
		fmt.Printf("   Source:    %s\n", source)
		fmt.Printf("   Project:   %s (store: %s)\n", cfg.Project.Root, cfg.Project.Store)
		fmt.Printf("   Sinks:     %d configured (strict: %t)\n", len(cfg.Sinks), cfg.Bump.Strict)
		fmt.Printf("   Nightly:   %s via %s (identifier: %s)\n", cfg.Nightly.Workflow, cfg.Nightly.CLI, cfg.Nightly.Identifier)
		fmt.Printf("   History:   %s (enabled: %t)\n", cfg.History.Type, cfg.History.Enabled)
		fmt.Printf("   Webserver: %s\n", cfg.Webserver.Listen)
		fmt.Printf("   Scheduler: %s (enabled: %t)\n", cfg.Scheduler.Schedule, cfg.Scheduler.Enabled)

		return nil
	},
}

// configShowCmd shows the current configuration
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the current configuration",
	Long: `Display the current configuration with all defaults applied.
Secrets are masked.

Examples:
  relkit config show`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := requireConfig()
		if err != nil {
			return err
		}

		masked := *cfg
		if masked.GitHub.Token != "" {
			masked.GitHub.Token = "********"
		}
		if masked.History.Postgres.Password != "" {
			masked.History.Postgres.Password = "********"
		}
		if masked.Webserver.Auth != nil {
			auth := *masked.Webserver.Auth
			auth.Password = "********"
			masked.Webserver.Auth = &auth
		}

		data, err := yaml.Marshal(&masked)
		if err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}

		fmt.Println("# Current relkit Configuration")
		fmt.Println("# (with defaults applied)")
		fmt.Println()
		fmt.Print(string(data))

		return nil
	},
}

// configInitCmd generates an example configuration
var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate an example configuration",
	Long: `Generate an example configuration from the built-in defaults.

Examples:
  # Print example config to stdout
  relkit config init

  # Save example config to a file
  relkit config init --output relkit.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if configInitOutput != "" {
			if err := config.WriteExample(configInitOutput); err != nil {
				return err
			}
			fmt.Printf("[OK] Example configuration written to %s\n", configInitOutput)
			return nil
		}

		data, err := yaml.Marshal(config.NewDefault())
		if err != nil {
			return fmt.Errorf("failed to generate config: %w", err)
		}

		fmt.Println("# relkit Configuration")
		fmt.Println("# Generated from defaults")
		fmt.Println()
		fmt.Print(string(data))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)

	configInitCmd.Flags().StringVarP(&configInitOutput, "output", "o", "",
		"write the example to this file instead of stdout")
}
