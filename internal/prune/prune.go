// Package prune deletes architecture-specific sources from a vendored
// graphics library before the firmware is compiled.
package prune

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/lan-dot-party/relkit/internal/config"
)

// Pruner removes incompatible files from every library root it can find.
type Pruner struct {
	// ProjectDir is the directory candidates are resolved against
	ProjectDir string
	// Candidates are probed in order; entries containing glob metacharacters are expanded
	Candidates []string
	// RemoveDirs are deleted recursively under each root
	RemoveDirs []string
	// ScanDir is walked under each root for files ending in one of Suffixes
	ScanDir  string
	Suffixes []string
	Logger   *zap.Logger
}

// Report summarises one Run.
type Report struct {
	Roots        []string `json:"roots"`
	RemovedDirs  []string `json:"removed_dirs"`
	RemovedFiles []string `json:"removed_files"`
	// Missing lists candidate paths that resolved to nothing, when no root was found
	Missing []string `json:"missing,omitempty"`
}

// Found reports whether any library root was located.
func (r *Report) Found() bool {
	return len(r.Roots) > 0
}

// New creates a Pruner from configuration.
func New(projectDir string, cfg config.PruneConfig, logger *zap.Logger) *Pruner {
	return &Pruner{
		ProjectDir: projectDir,
		Candidates: cfg.Candidates,
		RemoveDirs: cfg.RemoveDirs,
		ScanDir:    cfg.ScanDir,
		Suffixes:   cfg.Suffixes,
		Logger:     logger,
	}
}

// Run locates library roots and prunes each. Finding no root is not an
// error. Deletion failures are collected and returned together after every
// root has been processed. Running twice is a no-op the second time.
func (p *Pruner) Run() (*Report, error) {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	report := &Report{}
	roots, err := p.resolveRoots()
	if err != nil {
		return nil, err
	}
	report.Roots = roots

	if len(roots) == 0 {
		for _, c := range p.Candidates {
			report.Missing = append(report.Missing, p.join(c))
		}
		logger.Warn("Library path not found", zap.Strings("searched", report.Missing))
		return report, nil
	}

	var errs []error
	for _, root := range roots {
		logger.Info("Found library", zap.String("root", root))
		if err := p.pruneRoot(root, report, logger); err != nil {
			errs = append(errs, err)
		}
	}
	return report, errors.Join(errs...)
}

func (p *Pruner) join(candidate string) string {
	if filepath.IsAbs(candidate) {
		return candidate
	}
	return filepath.Join(p.ProjectDir, filepath.FromSlash(candidate))
}

// resolveRoots expands candidates in order and drops duplicates, so a root
// matched both literally and by a wildcard is processed once.
func (p *Pruner) resolveRoots() ([]string, error) {
	var roots []string
	for _, c := range p.Candidates {
		path := p.join(c)

		matches := []string{path}
		if strings.ContainsAny(c, "*?[") {
			var err error
			matches, err = filepath.Glob(path)
			if err != nil {
				return nil, fmt.Errorf("invalid candidate pattern %q: %w", c, err)
			}
		}

		for _, m := range matches {
			info, err := os.Stat(m)
			if err != nil || !info.IsDir() {
				continue
			}
			m = filepath.Clean(m)
			if !slices.Contains(roots, m) {
				roots = append(roots, m)
			}
		}
	}
	return roots, nil
}

func (p *Pruner) pruneRoot(root string, report *Report, logger *zap.Logger) error {
	var errs []error

	for _, d := range p.RemoveDirs {
		dir := filepath.Join(root, filepath.FromSlash(d))
		if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
			logger.Debug("Directory already removed", zap.String("path", dir))
			continue
		}
		if err := os.RemoveAll(dir); err != nil {
			errs = append(errs, fmt.Errorf("failed to remove %s: %w", dir, err))
			continue
		}
		logger.Info("Removed directory", zap.String("path", dir))
		report.RemovedDirs = append(report.RemovedDirs, dir)
	}

	if p.ScanDir == "" || len(p.Suffixes) == 0 {
		return errors.Join(errs...)
	}

	scan := filepath.Join(root, filepath.FromSlash(p.ScanDir))
	if _, err := os.Stat(scan); err != nil {
		return errors.Join(errs...)
	}

	walkErr := filepath.WalkDir(scan, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			errs = append(errs, err)
			return nil
		}
		if d.IsDir() || !p.matches(d.Name()) {
			return nil
		}
		if err := os.Remove(path); err != nil {
			errs = append(errs, fmt.Errorf("failed to remove %s: %w", path, err))
			return nil
		}
		logger.Info("Removed file", zap.String("path", path))
		report.RemovedFiles = append(report.RemovedFiles, path)
		return nil
	})
	if walkErr != nil {
		errs = append(errs, walkErr)
	}
	return errors.Join(errs...)
}

// matches is case-sensitive: ".S" and ".s" are distinct suffixes.
func (p *Pruner) matches(name string) bool {
	for _, s := range p.Suffixes {
		if strings.HasSuffix(name, s) {
			return true
		}
	}
	return false
}
