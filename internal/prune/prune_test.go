package prune

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lan-dot-party/relkit/internal/config"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
}

// lvglTree creates a library root with both ARM backends and stray assembly.
func lvglTree(t *testing.T, root string) {
	t.Helper()
	blend := filepath.Join(root, "src", "draw", "sw", "blend")
	touch(t, filepath.Join(blend, "helium", "lv_blend_helium.S"))
	touch(t, filepath.Join(blend, "helium", "lv_blend_helium.h"))
	touch(t, filepath.Join(blend, "neon", "lv_blend_neon.S"))
	touch(t, filepath.Join(blend, "lv_draw_sw_blend.c"))
	touch(t, filepath.Join(blend, "arm2d", "lv_blend_arm2d.s"))
	touch(t, filepath.Join(blend, "arm2d", "lv_blend_arm2d.h"))
}

func newPruner(dir string) *Pruner {
	return New(dir, config.NewDefault().Prune, nil)
}

func TestRunRemovesArchitectureSources(t *testing.T) {
	project := t.TempDir()
	root := filepath.Join(project, ".pio", "libdeps", "esp32-p4", "lvgl")
	lvglTree(t, root)

	report, err := newPruner(project).Run()
	require.NoError(t, err)

	assert.Equal(t, []string{root}, report.Roots, "wildcard match is de-duplicated")
	assert.Len(t, report.RemovedDirs, 2)
	assert.Equal(t, []string{filepath.Join(root, "src", "draw", "sw", "blend", "arm2d", "lv_blend_arm2d.s")}, report.RemovedFiles)

	blend := filepath.Join(root, "src", "draw", "sw", "blend")
	assert.NoDirExists(t, filepath.Join(blend, "helium"))
	assert.NoDirExists(t, filepath.Join(blend, "neon"))
	assert.FileExists(t, filepath.Join(blend, "lv_draw_sw_blend.c"))
	assert.FileExists(t, filepath.Join(blend, "arm2d", "lv_blend_arm2d.h"))
}

func TestRunIsIdempotent(t *testing.T) {
	project := t.TempDir()
	lvglTree(t, filepath.Join(project, "lib", "lvgl"))

	_, err := newPruner(project).Run()
	require.NoError(t, err)

	report, err := newPruner(project).Run()
	require.NoError(t, err)
	assert.True(t, report.Found())
	assert.Empty(t, report.RemovedDirs)
	assert.Empty(t, report.RemovedFiles)
}

func TestRunExpandsWildcard(t *testing.T) {
	project := t.TempDir()
	a := filepath.Join(project, ".pio", "libdeps", "esp32-s3", "lvgl")
	b := filepath.Join(project, ".pio", "libdeps", "native", "lvgl")
	lvglTree(t, a)
	lvglTree(t, b)

	report, err := newPruner(project).Run()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{a, b}, report.Roots)
	assert.Len(t, report.RemovedDirs, 4)
}

func TestRunWarnsWhenNothingFound(t *testing.T) {
	project := t.TempDir()

	report, err := newPruner(project).Run()
	require.NoError(t, err)
	assert.False(t, report.Found())
	assert.Len(t, report.Missing, 3)
}

func TestRunIgnoresFileCandidate(t *testing.T) {
	project := t.TempDir()
	touch(t, filepath.Join(project, "lib", "lvgl"))

	report, err := newPruner(project).Run()
	require.NoError(t, err)
	assert.False(t, report.Found())
}

func TestMatchesIsCaseSensitive(t *testing.T) {
	p := &Pruner{Suffixes: []string{".S"}}
	assert.True(t, p.matches("a.S"))
	assert.False(t, p.matches("a.s"))
	assert.False(t, p.matches("a.Sx"))
}
