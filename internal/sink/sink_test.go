package sink

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lan-dot-party/relkit/internal/config"
)

const header = `#pragma once

#define GITHUB_REPO "OpenSurface/SonosESP"
#define FIRMWARE_VERSION "1.0.9"
#define OTA_CHECK_INTERVAL_MS 3600000
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestJSONSinkPreservesOrderAndFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.json")
	writeFile(t, path, `{"name":"SonosESP","version":"1.0.9","new_install_prompt_erase":true,"builds":[{"chipFamily":"ESP32-P4","parts":[{"path":"firmware.bin","offset":0}]}],"extra":{}}`)

	st, err := NewJSONSink("manifest.json", path, "version").Stage("1.0.10")
	require.NoError(t, err)
	require.NoError(t, st.Commit())

	want := `{
  "name": "SonosESP",
  "version": "1.0.10",
  "new_install_prompt_erase": true,
  "builds": [
    {
      "chipFamily": "ESP32-P4",
      "parts": [
        {
          "path": "firmware.bin",
          "offset": 0
        }
      ]
    }
  ],
  "extra": {}
}
`
	assert.Equal(t, want, readFile(t, path))
}

func TestJSONSinkAppendsMissingKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "version.json")
	writeFile(t, path, "{\n  \"channel\": \"stable\"\n}\n")

	st, err := NewJSONSink("version.json", path, "version").Stage("2.0.0")
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"channel\": \"stable\",\n  \"version\": \"2.0.0\"\n}\n", string(st.Content()))
}

func TestJSONSinkLiteralKeyAndExpandedArrays(t *testing.T) {
	path := filepath.Join(t.TempDir(), "version.json")
	writeFile(t, path, `{"app.version":"1.0.0","app":{"version":"keep"},"tags":["a","b"]}`)

	st, err := NewJSONSink("version.json", path, "app.version").Stage("2.0.0")
	require.NoError(t, err)

	want := `{
  "app.version": "2.0.0",
  "app": {
    "version": "keep"
  },
  "tags": [
    "a",
    "b"
  ]
}
`
	assert.Equal(t, want, string(st.Content()))
	require.NoError(t, st.Commit())

	v, err := ReadVersion(path, "app.version")
	require.NoError(t, err)
	assert.Equal(t, "2.0.0", v)
}

func TestJSONSinkRejectsNonObject(t *testing.T) {
	path := filepath.Join(t.TempDir(), "version.json")
	writeFile(t, path, `["1.0.0"]`)

	_, err := NewJSONSink("version.json", path, "version").Stage("2.0.0")
	assert.Error(t, err)
}

func TestJSONSinkRejectsTrailingGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "version.json")
	writeFile(t, path, `{"version":"1.0.0"} {}`)

	_, err := NewJSONSink("version.json", path, "version").Stage("2.0.0")
	assert.Error(t, err)
}

func TestReadVersion(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "version.json")
	writeFile(t, path, `{"version": "1.1.6-nightly.abc1234", "notes": "x"}`)

	v, err := ReadVersion(path, "version")
	require.NoError(t, err)
	assert.Equal(t, "1.1.6-nightly.abc1234", v)

	_, err = ReadVersion(path, "missing")
	assert.Error(t, err)

	_, err = ReadVersion(filepath.Join(dir, "nope.json"), "version")
	assert.ErrorIs(t, err, ErrSinkMissing)

	writeFile(t, path, `{"version": 3}`)
	_, err = ReadVersion(path, "version")
	assert.Error(t, err)
}

func TestPatternSinkRewritesDeclarationOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ui_common.h")
	writeFile(t, path, header)

	s, err := NewPatternSink("ui_common.h", path, config.DefaultVersionPattern, config.DefaultVersionReplace)
	require.NoError(t, err)

	st, err := s.Stage("1.0.10")
	require.NoError(t, err)
	require.NoError(t, st.Commit())

	want := `#pragma once

#define GITHUB_REPO "OpenSurface/SonosESP"
#define FIRMWARE_VERSION "1.0.10"
#define OTA_CHECK_INTERVAL_MS 3600000
`
	assert.Equal(t, want, readFile(t, path))
}

func TestPatternSinkReplacesFirstMatchOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "main.cpp")
	writeFile(t, path, "#define FIRMWARE_VERSION \"1.0.0\"\n// #define FIRMWARE_VERSION \"0.9.0\"\n")

	s, err := NewPatternSink("main.cpp", path, config.DefaultVersionPattern, config.DefaultVersionReplace)
	require.NoError(t, err)

	st, err := s.Stage("1.0.1")
	require.NoError(t, err)
	assert.Equal(t, "#define FIRMWARE_VERSION \"1.0.1\"\n// #define FIRMWARE_VERSION \"0.9.0\"\n", string(st.Content()))
}

func TestPatternSinkLiteralReplacement(t *testing.T) {
	path := filepath.Join(t.TempDir(), "main.cpp")
	writeFile(t, path, "#define FIRMWARE_VERSION \"1.0.0\"\n")

	s, err := NewPatternSink("main.cpp", path, config.DefaultVersionPattern, config.DefaultVersionReplace)
	require.NoError(t, err)

	st, err := s.Stage("$1-weird")
	require.NoError(t, err)
	assert.Equal(t, "#define FIRMWARE_VERSION \"$1-weird\"\n", string(st.Content()))
}

func TestPatternSinkNoMatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "main.cpp")
	writeFile(t, path, "int main() { return 0; }\n")

	s, err := NewPatternSink("main.cpp", path, config.DefaultVersionPattern, config.DefaultVersionReplace)
	require.NoError(t, err)

	_, err = s.Stage("1.0.1")
	assert.ErrorIs(t, err, ErrPatternNotFound)
}

func TestNewPatternSinkInvalidPattern(t *testing.T) {
	_, err := NewPatternSink("x", "x", "(", "{version}")
	assert.Error(t, err)
}

func firmwareTree(t *testing.T) (string, []Sink) {
	t.Helper()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "version.json"), "{\n  \"version\": \"1.0.9\"\n}\n")
	writeFile(t, filepath.Join(root, "web-installer", "manifest.json"), "{\n  \"name\": \"SonosESP\",\n  \"version\": \"1.0.9\"\n}\n")
	writeFile(t, filepath.Join(root, "include", "ui_common.h"), header)

	sinks, err := FromConfig(root, config.DefaultSinks())
	require.NoError(t, err)
	return root, sinks
}

func TestApplyUpdatesEverySink(t *testing.T) {
	root, sinks := firmwareTree(t)

	reports := Apply(sinks, "1.0.10", false, nil)
	require.Len(t, reports, 3)
	for _, r := range reports {
		assert.Equal(t, StatusUpdated, r.Status, r.Sink)
		assert.NoError(t, r.Err)
	}

	v, err := ReadVersion(filepath.Join(root, "version.json"), "version")
	require.NoError(t, err)
	assert.Equal(t, "1.0.10", v)

	v, err = ReadVersion(filepath.Join(root, "web-installer", "manifest.json"), "version")
	require.NoError(t, err)
	assert.Equal(t, "1.0.10", v)

	assert.Contains(t, readFile(t, filepath.Join(root, "include", "ui_common.h")), `FIRMWARE_VERSION "1.0.10"`)
}

func TestApplySkipsMissingSink(t *testing.T) {
	root, sinks := firmwareTree(t)
	require.NoError(t, os.RemoveAll(filepath.Join(root, "web-installer")))

	reports := Apply(sinks, "1.0.10", false, nil)

	assert.Equal(t, StatusUpdated, reports[0].Status)
	assert.Equal(t, StatusSkipped, reports[1].Status)
	assert.ErrorIs(t, reports[1].Err, ErrSinkMissing)
	assert.Equal(t, StatusUpdated, reports[2].Status)
	assert.NoFileExists(t, filepath.Join(root, "web-installer", "manifest.json"))
}

func TestApplyContinuesPastBrokenSink(t *testing.T) {
	root, sinks := firmwareTree(t)
	writeFile(t, filepath.Join(root, "web-installer", "manifest.json"), "{not json")

	reports := Apply(sinks, "1.0.10", false, nil)

	assert.Equal(t, StatusUpdated, reports[0].Status)
	assert.Equal(t, StatusIncomplete, reports[1].Status)
	assert.Equal(t, StatusUpdated, reports[2].Status)
	assert.Equal(t, "{not json", readFile(t, filepath.Join(root, "web-installer", "manifest.json")))
}

func TestApplyStrictWritesNothingOnStageFailure(t *testing.T) {
	root, sinks := firmwareTree(t)
	writeFile(t, filepath.Join(root, "include", "ui_common.h"), "// no version here\n")

	reports := Apply(sinks, "1.0.10", true, nil)

	assert.Equal(t, StatusIncomplete, reports[0].Status)
	assert.ErrorIs(t, reports[0].Err, ErrStagingAborted)
	assert.Equal(t, StatusIncomplete, reports[1].Status)
	assert.Equal(t, StatusIncomplete, reports[2].Status)
	assert.ErrorIs(t, reports[2].Err, ErrPatternNotFound)

	v, err := ReadVersion(filepath.Join(root, "version.json"), "version")
	require.NoError(t, err)
	assert.Equal(t, "1.0.9", v)
}

func TestApplyStrictSkipsMissingAndCommits(t *testing.T) {
	root, sinks := firmwareTree(t)
	require.NoError(t, os.Remove(filepath.Join(root, "include", "ui_common.h")))

	reports := Apply(sinks, "1.1.0", true, nil)

	assert.Equal(t, StatusUpdated, reports[0].Status)
	assert.Equal(t, StatusUpdated, reports[1].Status)
	assert.Equal(t, StatusSkipped, reports[2].Status)
}

func TestCommitPreservesMode(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission bits are not meaningful on windows")
	}
	path := filepath.Join(t.TempDir(), "version.json")
	writeFile(t, path, `{"version":"1.0.0"}`)
	require.NoError(t, os.Chmod(path, 0600))

	st, err := NewJSONSink("version.json", path, "version").Stage("1.0.1")
	require.NoError(t, err)
	require.NoError(t, st.Commit())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestFromConfigUnknownType(t *testing.T) {
	_, err := FromConfig(t.TempDir(), []config.SinkConfig{{Path: "a", Type: "toml"}})
	assert.Error(t, err)
}
