// Package config provides configuration structures and loading for relkit.
package config

import "time"

// Config is the main configuration structure for relkit.
type Config struct {
	General   GeneralConfig   `yaml:"general"`
	Project   ProjectConfig   `yaml:"project"`
	Sinks     []SinkConfig    `yaml:"sinks" validate:"dive"`
	Bump      BumpConfig      `yaml:"bump"`
	Nightly   NightlyConfig   `yaml:"nightly"`
	Prune     PruneConfig     `yaml:"prune"`
	History   HistoryConfig   `yaml:"history"`
	GitHub    GitHubConfig    `yaml:"github"`
	Webserver WebserverConfig `yaml:"webserver"`
	Scheduler SchedulerConfig `yaml:"scheduler"`

	// path is the file the configuration was loaded from ("" for built-in defaults)
	path string
}

// GeneralConfig contains general application settings.
type GeneralConfig struct {
	// LogLevel sets the logging verbosity: debug, info, warn, error
	LogLevel string `yaml:"log_level"`
}

// ProjectConfig locates the firmware project and its canonical version store.
type ProjectConfig struct {
	// Root is the project directory; relative sink and store paths resolve against it
	Root string `yaml:"root"`
	// Store is the structured record holding the canonical version
	Store string `yaml:"store" validate:"required"`
	// StoreKey is the field inside Store that holds the version
	StoreKey string `yaml:"store_key" validate:"required"`
}

// SinkConfig describes one location that mirrors the canonical version.
type SinkConfig struct {
	// Path is relative to the project root
	Path string `yaml:"path" validate:"required"`
	// Type is the update strategy: json or regex
	Type string `yaml:"type" validate:"required,oneof=json regex"`
	// Key is the JSON field to update (json sinks)
	Key string `yaml:"key,omitempty" validate:"required_if=Type json"`
	// Pattern is the regular expression to substitute (regex sinks)
	Pattern string `yaml:"pattern,omitempty" validate:"required_if=Type regex"`
	// Replacement is the substitution text; {version} is replaced with the new version
	Replacement string `yaml:"replacement,omitempty" validate:"required_if=Type regex"`
}

// BumpConfig controls how sinks are written.
type BumpConfig struct {
	// Strict stages every sink and writes nothing unless all of them render
	Strict bool `yaml:"strict"`
}

// NightlyConfig configures nightly tag generation and the remote workflow.
type NightlyConfig struct {
	// Identifier selects the build identifier: date or revision
	Identifier string `yaml:"identifier" validate:"oneof=date revision"`
	// CLI is the remote-automation command line tool
	CLI string `yaml:"cli" validate:"required"`
	// Workflow is the workflow file dispatched for nightly builds
	Workflow string `yaml:"workflow" validate:"required"`
	// Input is the workflow input receiving the tag
	Input string `yaml:"input" validate:"required"`
	// ExtraArgs are appended to the dispatch command (shell quoting allowed)
	ExtraArgs string `yaml:"extra_args,omitempty"`
}

// PruneConfig describes the vendored library cleanup run before builds.
type PruneConfig struct {
	// Candidates are library roots probed in order; glob patterns are expanded
	Candidates []string `yaml:"candidates" validate:"min=1"`
	// RemoveDirs are deleted recursively under each library root
	RemoveDirs []string `yaml:"remove_dirs"`
	// ScanDir is walked for files with one of Suffixes
	ScanDir string `yaml:"scan_dir"`
	// Suffixes are matched case-sensitively
	Suffixes []string `yaml:"suffixes"`
}

// HistoryConfig defines the release ledger backend.
type HistoryConfig struct {
	// Enabled records every bump and nightly trigger
	Enabled bool `yaml:"enabled"`
	// Type is the storage backend: sqlite or postgres
	Type     string         `yaml:"type" validate:"oneof=sqlite postgres"`
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// SQLiteConfig contains SQLite-specific settings.
type SQLiteConfig struct {
	// Path is the file path for the SQLite database (relative to the project root)
	Path string `yaml:"path"`
}

// PostgresConfig contains PostgreSQL-specific settings.
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
}

// GitHubConfig points at the repository publishing firmware releases.
type GitHubConfig struct {
	// Repo is owner/name
	Repo string `yaml:"repo" validate:"required"`
	// APIURL is the REST API base URL
	APIURL string `yaml:"api_url" validate:"required,url"`
	// Token is optional; GH_TOKEN or GITHUB_TOKEN are used when empty
	Token   string        `yaml:"token,omitempty"`
	Timeout time.Duration `yaml:"timeout"`
	// CacheTTL bounds how long release lookups are reused by the API server
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// WebserverConfig defines the read-only API server.
type WebserverConfig struct {
	// Listen is the address and port to bind to (e.g., "127.0.0.1:8090")
	Listen string `yaml:"listen"`
	// Auth contains optional authentication settings
	Auth *AuthConfig `yaml:"auth,omitempty"`
}

// AuthConfig contains optional Basic Auth settings for the API.
type AuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// SchedulerConfig defines the automatic nightly trigger.
type SchedulerConfig struct {
	// Enabled controls whether nightly releases are triggered on a schedule
	Enabled bool `yaml:"enabled"`
	// Schedule is a cron expression (e.g., "0 2 * * *" for 02:00 every day)
	Schedule string `yaml:"schedule"`
}

// Sink types.
const (
	SinkTypeJSON  = "json"
	SinkTypeRegex = "regex"
)

// Nightly identifier strategies.
const (
	IdentifierDate     = "date"
	IdentifierRevision = "revision"
)

// Path returns the file this configuration was loaded from, or "" when the
// built-in defaults are in use.
func (c *Config) Path() string {
	return c.path
}
