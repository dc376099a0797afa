package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// DefaultConfigPaths defines the search order for configuration files.
var DefaultConfigPaths = []string{
	"./relkit.yaml",
	"./relkit.yml",
	"./.relkit.yaml",
	"./.relkit.yml",
}

// ErrNoConfigFile is returned by resolveConfigPath when nothing was found.
var ErrNoConfigFile = errors.New("no config file found")

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load reads and parses a configuration file from the given path.
// If path is empty, RELKIT_CONFIG is consulted and then DefaultConfigPaths.
// When no file exists at all the built-in defaults are returned, which
// reproduce the firmware's release scripts.
func Load(path string) (*Config, error) {
	configPath, err := resolveConfigPath(path)
	if errors.Is(err, ErrNoConfigFile) {
		cfg := NewDefault()
		ApplyDefaults(cfg)
		if err := Validate(cfg); err != nil {
			return nil, fmt.Errorf("invalid default configuration: %w", err)
		}
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config file %s: %w", configPath, err)
	}
	cfg.path = configPath

	// A relative project root is relative to the config file, not the shell
	if !filepath.IsAbs(cfg.Project.Root) {
		cfg.Project.Root = filepath.Join(filepath.Dir(configPath), cfg.Project.Root)
	}

	return cfg, nil
}

// Parse decodes YAML configuration, applies defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Apply defaults for missing values
	ApplyDefaults(cfg)

	// Validate the configuration
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// resolveConfigPath determines which config file to use.
// Priority: explicit path > RELKIT_CONFIG env > default paths
func resolveConfigPath(path string) (string, error) {
	// 1. Explicit path provided
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return "", fmt.Errorf("config file not found: %s", path)
		}
		return path, nil
	}

	// 2. Environment variable
	if envPath := os.Getenv("RELKIT_CONFIG"); envPath != "" {
		if _, err := os.Stat(envPath); err != nil {
			return "", fmt.Errorf("config file from RELKIT_CONFIG not found: %s", envPath)
		}
		return envPath, nil
	}

	// 3. Search default paths
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("%w (searched: %v)", ErrNoConfigFile, DefaultConfigPaths)
}

// Validate checks the configuration for errors.
func Validate(cfg *Config) error {
	// Validate log level
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[cfg.General.LogLevel] {
		return fmt.Errorf("invalid log_level: %q (must be debug, info, warn, or error)", cfg.General.LogLevel)
	}

	// Struct tag rules (required fields, enums)
	if err := validate.Struct(cfg); err != nil {
		return describeValidationError(err)
	}

	// Sinks
	seen := make(map[string]bool)
	for i, s := range cfg.Sinks {
		if seen[s.Path] {
			return fmt.Errorf("sinks[%d]: duplicate sink path %q", i, s.Path)
		}
		seen[s.Path] = true

		if s.Type == SinkTypeRegex {
			if _, err := regexp.Compile(s.Pattern); err != nil {
				return fmt.Errorf("sinks[%d]: invalid pattern %q: %w", i, s.Pattern, err)
			}
			if !strings.Contains(s.Replacement, "{version}") {
				return fmt.Errorf("sinks[%d]: replacement %q must contain {version}", i, s.Replacement)
			}
		}
	}

	// Validate SQLite path if using SQLite
	if cfg.History.Type == "sqlite" && cfg.History.SQLite.Path == "" {
		return fmt.Errorf("sqlite path is required when history type is sqlite")
	}

	// Validate PostgreSQL config if using PostgreSQL
	if cfg.History.Enabled && cfg.History.Type == "postgres" {
		if cfg.History.Postgres.Host == "" {
			return fmt.Errorf("postgres host is required when history type is postgres")
		}
		if cfg.History.Postgres.Database == "" {
			return fmt.Errorf("postgres database is required when history type is postgres")
		}
	}

	if strings.Count(cfg.GitHub.Repo, "/") != 1 {
		return fmt.Errorf("invalid github repo %q (expected owner/name)", cfg.GitHub.Repo)
	}

	// Validate webserver listen address
	if _, _, err := net.SplitHostPort(cfg.Webserver.Listen); err != nil {
		return fmt.Errorf("invalid webserver listen address %q: %w", cfg.Webserver.Listen, err)
	}

	return nil
}

// describeValidationError turns validator output into a single readable error.
func describeValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.TrimPrefix(fe.Namespace(), "Config.")
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s: failed %s=%s (got %v)", field, fe.Tag(), fe.Param(), fe.Value()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s: failed %s", field, fe.Tag()))
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}

// WriteExample writes an example configuration to the given path.
func WriteExample(path string) error {
	data, err := yaml.Marshal(NewDefault())
	if err != nil {
		return fmt.Errorf("failed to marshal example config: %w", err)
	}

	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write example config: %w", err)
	}

	return nil
}
