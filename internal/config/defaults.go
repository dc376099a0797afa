package config

import (
	"os"
	"path/filepath"
	"time"
)

// Default values for configuration
const (
	DefaultLogLevel          = "warn"
	DefaultProjectRoot       = "."
	DefaultStore             = "version.json"
	DefaultStoreKey          = "version"
	DefaultVersionPattern    = `#define FIRMWARE_VERSION "([^"]+)"`
	DefaultVersionReplace    = `#define FIRMWARE_VERSION "{version}"`
	DefaultNightlyIdentifier = IdentifierDate
	DefaultNightlyCLI        = "gh"
	DefaultNightlyWorkflow   = "nightly-release.yml"
	DefaultNightlyInput      = "version_tag"
	DefaultScanDir           = "src/draw/sw/blend"
	DefaultHistoryType       = "sqlite"
	DefaultSQLitePath        = ".relkit/history.db"
	DefaultPostgresPort      = 5432
	DefaultPostgresSSL       = "disable"
	DefaultGitHubRepo        = "OpenSurface/SonosESP"
	DefaultGitHubAPIURL      = "https://api.github.com"
	DefaultGitHubTimeout     = 15 * time.Second
	DefaultGitHubCacheTTL    = 5 * time.Minute
	DefaultWebserverListen   = "127.0.0.1:8090"
	DefaultSchedule          = "0 2 * * *" // Every night at 02:00
)

// DefaultSinks mirrors the files the firmware keeps its version in.
func DefaultSinks() []SinkConfig {
	return []SinkConfig{
		{Path: "version.json", Type: SinkTypeJSON, Key: DefaultStoreKey},
		{Path: "web-installer/manifest.json", Type: SinkTypeJSON, Key: DefaultStoreKey},
		{Path: "include/ui_common.h", Type: SinkTypeRegex, Pattern: DefaultVersionPattern, Replacement: DefaultVersionReplace},
	}
}

// DefaultPruneCandidates lists where PlatformIO may have placed LVGL.
func DefaultPruneCandidates() []string {
	return []string{
		".pio/libdeps/esp32-p4/lvgl",
		"lib/lvgl",
		".pio/libdeps/*/lvgl",
	}
}

// DefaultPruneRemoveDirs are the ARM-only blend backends that break ESP32 builds.
func DefaultPruneRemoveDirs() []string {
	return []string{
		"src/draw/sw/blend/helium",
		"src/draw/sw/blend/neon",
	}
}

// DefaultPruneSuffixes are assembly source suffixes.
func DefaultPruneSuffixes() []string {
	return []string{".S", ".s"}
}

// NewDefault creates a new Config with all default values applied.
func NewDefault() *Config {
	return &Config{
		General: GeneralConfig{
			LogLevel: DefaultLogLevel,
		},
		Project: ProjectConfig{
			Root:     DefaultProjectRoot,
			Store:    DefaultStore,
			StoreKey: DefaultStoreKey,
		},
		Sinks: DefaultSinks(),
		Nightly: NightlyConfig{
			Identifier: DefaultNightlyIdentifier,
			CLI:        DefaultNightlyCLI,
			Workflow:   DefaultNightlyWorkflow,
			Input:      DefaultNightlyInput,
		},
		Prune: PruneConfig{
			Candidates: DefaultPruneCandidates(),
			RemoveDirs: DefaultPruneRemoveDirs(),
			ScanDir:    DefaultScanDir,
			Suffixes:   DefaultPruneSuffixes(),
		},
		History: HistoryConfig{
			Enabled: false,
			Type:    DefaultHistoryType,
			SQLite: SQLiteConfig{
				Path: DefaultSQLitePath,
			},
			Postgres: PostgresConfig{
				Port:    DefaultPostgresPort,
				SSLMode: DefaultPostgresSSL,
			},
		},
		GitHub: GitHubConfig{
			Repo:     DefaultGitHubRepo,
			APIURL:   DefaultGitHubAPIURL,
			Timeout:  DefaultGitHubTimeout,
			CacheTTL: DefaultGitHubCacheTTL,
		},
		Webserver: WebserverConfig{
			Listen: DefaultWebserverListen,
		},
		Scheduler: SchedulerConfig{
			Enabled:  false,
			Schedule: DefaultSchedule,
		},
	}
}

// ApplyDefaults fills in default values for any unset configuration options.
func ApplyDefaults(cfg *Config) {
	// General defaults
	if cfg.General.LogLevel == "" {
		cfg.General.LogLevel = DefaultLogLevel
	}

	// Project defaults
	if cfg.Project.Root == "" {
		cfg.Project.Root = DefaultProjectRoot
	}
	if cfg.Project.Store == "" {
		cfg.Project.Store = DefaultStore
	}
	if cfg.Project.StoreKey == "" {
		cfg.Project.StoreKey = DefaultStoreKey
	}

	// Sinks: an absent list means the firmware defaults, an explicit empty list is kept
	if cfg.Sinks == nil {
		cfg.Sinks = DefaultSinks()
	}
	for i := range cfg.Sinks {
		s := &cfg.Sinks[i]
		switch s.Type {
		case SinkTypeJSON:
			if s.Key == "" {
				s.Key = cfg.Project.StoreKey
			}
		case SinkTypeRegex:
			if s.Pattern == "" {
				s.Pattern = DefaultVersionPattern
			}
			if s.Replacement == "" {
				s.Replacement = DefaultVersionReplace
			}
		}
	}

	// Nightly defaults
	if cfg.Nightly.Identifier == "" {
		cfg.Nightly.Identifier = DefaultNightlyIdentifier
	}
	if cfg.Nightly.CLI == "" {
		cfg.Nightly.CLI = DefaultNightlyCLI
	}
	if cfg.Nightly.Workflow == "" {
		cfg.Nightly.Workflow = DefaultNightlyWorkflow
	}
	if cfg.Nightly.Input == "" {
		cfg.Nightly.Input = DefaultNightlyInput
	}

	// Prune defaults
	if len(cfg.Prune.Candidates) == 0 {
		cfg.Prune.Candidates = DefaultPruneCandidates()
	}
	if cfg.Prune.RemoveDirs == nil {
		cfg.Prune.RemoveDirs = DefaultPruneRemoveDirs()
	}
	if cfg.Prune.ScanDir == "" {
		cfg.Prune.ScanDir = DefaultScanDir
	}
	if len(cfg.Prune.Suffixes) == 0 {
		cfg.Prune.Suffixes = DefaultPruneSuffixes()
	}

	// History defaults
	if cfg.History.Type == "" {
		cfg.History.Type = DefaultHistoryType
	}
	if cfg.History.Type == "sqlite" && cfg.History.SQLite.Path == "" {
		cfg.History.SQLite.Path = DefaultSQLitePath
	}
	if cfg.History.Postgres.Port == 0 {
		cfg.History.Postgres.Port = DefaultPostgresPort
	}
	if cfg.History.Postgres.SSLMode == "" {
		cfg.History.Postgres.SSLMode = DefaultPostgresSSL
	}

	// GitHub defaults
	if cfg.GitHub.Repo == "" {
		cfg.GitHub.Repo = DefaultGitHubRepo
	}
	if cfg.GitHub.APIURL == "" {
		cfg.GitHub.APIURL = DefaultGitHubAPIURL
	}
	if cfg.GitHub.Timeout == 0 {
		cfg.GitHub.Timeout = DefaultGitHubTimeout
	}
	if cfg.GitHub.CacheTTL == 0 {
		cfg.GitHub.CacheTTL = DefaultGitHubCacheTTL
	}
	if cfg.GitHub.Token == "" {
		cfg.GitHub.Token = firstEnv("GH_TOKEN", "GITHUB_TOKEN")
	}

	// Webserver defaults
	if cfg.Webserver.Listen == "" {
		cfg.Webserver.Listen = DefaultWebserverListen
	}

	// Scheduler defaults
	if cfg.Scheduler.Schedule == "" {
		cfg.Scheduler.Schedule = DefaultSchedule
	}
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

// ResolvePath resolves p against the project root unless it is absolute.
func (c *Config) ResolvePath(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Project.Root, filepath.FromSlash(p))
}

// StorePath returns the resolved path of the canonical version store.
func (c *Config) StorePath() string {
	return c.ResolvePath(c.Project.Store)
}
