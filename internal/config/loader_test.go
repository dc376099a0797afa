package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte("general:\n  log_level: debug\n"))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.General.LogLevel)
	assert.Equal(t, DefaultStore, cfg.Project.Store)
	assert.Equal(t, DefaultSinks(), cfg.Sinks)
	assert.Equal(t, IdentifierDate, cfg.Nightly.Identifier)
	assert.Equal(t, "gh", cfg.Nightly.CLI)
	assert.Equal(t, DefaultPruneCandidates(), cfg.Prune.Candidates)
	assert.Equal(t, DefaultGitHubTimeout, cfg.GitHub.Timeout)
	assert.False(t, cfg.History.Enabled)
}

func TestParseSinkDefaults(t *testing.T) {
	data := []byte(`
sinks:
  - path: version.json
    type: json
  - path: src/main.cpp
    type: regex
`)
	cfg, err := Parse(data)
	require.NoError(t, err)
	require.Len(t, cfg.Sinks, 2)

	assert.Equal(t, "version", cfg.Sinks[0].Key)
	assert.Equal(t, DefaultVersionPattern, cfg.Sinks[1].Pattern)
	assert.Equal(t, DefaultVersionReplace, cfg.Sinks[1].Replacement)
}

func TestParseExplicitEmptySinks(t *testing.T) {
	cfg, err := Parse([]byte("sinks: []\n"))
	require.NoError(t, err)
	assert.Empty(t, cfg.Sinks)
}

func TestParseDurations(t *testing.T) {
	cfg, err := Parse([]byte("github:\n  timeout: 3s\n  cache_ttl: 1m\n"))
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, cfg.GitHub.Timeout)
	assert.Equal(t, time.Minute, cfg.GitHub.CacheTTL)
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{name: "bad log level", yaml: "general:\n  log_level: loud\n"},
		{name: "unknown sink type", yaml: "sinks:\n  - path: a.txt\n    type: toml\n"},
		{name: "sink without path", yaml: "sinks:\n  - type: json\n"},
		{name: "duplicate sink", yaml: "sinks:\n  - path: a.json\n    type: json\n  - path: a.json\n    type: json\n"},
		{name: "bad pattern", yaml: "sinks:\n  - path: a.h\n    type: regex\n    pattern: \"(\"\n"},
		{name: "replacement without placeholder", yaml: "sinks:\n  - path: a.h\n    type: regex\n    replacement: fixed\n"},
		{name: "bad identifier", yaml: "nightly:\n  identifier: weekly\n"},
		{name: "bad history type", yaml: "history:\n  type: mysql\n"},
		{name: "postgres without host", yaml: "history:\n  enabled: true\n  type: postgres\n"},
		{name: "bad repo", yaml: "github:\n  repo: sonos\n"},
		{name: "bad listen", yaml: "webserver:\n  listen: nowhere\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoadResolvesRootRelativeToFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "relkit.yaml")
	require.NoError(t, os.WriteFile(path, []byte("project:\n  root: firmware\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, path, cfg.Path())
	assert.Equal(t, filepath.Join(dir, "firmware"), cfg.Project.Root)
	assert.Equal(t, filepath.Join(dir, "firmware", "version.json"), cfg.StorePath())
}

func TestLoadExplicitMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadFallsBackToDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("RELKIT_CONFIG", "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Empty(t, cfg.Path())
	assert.Equal(t, DefaultProjectRoot, cfg.Project.Root)
	assert.Equal(t, "warn", cfg.General.LogLevel, "CLI output stays free of info logs")
}

func TestWriteExampleRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "relkit.yaml")
	require.NoError(t, WriteExample(path))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultSinks(), cfg.Sinks)
}
