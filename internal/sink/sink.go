// Package sink writes a version string into every file that must mirror the
// canonical version.
package sink

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/lan-dot-party/relkit/internal/config"
)

// Sink errors.
var (
	// ErrSinkMissing means the sink's backing file does not exist; the sink is skipped.
	ErrSinkMissing = errors.New("sink missing")
	// ErrPatternNotFound means a pattern sink's file has no version declaration.
	ErrPatternNotFound = errors.New("version pattern not found")
	// ErrStagingAborted marks sinks left untouched because another sink failed to stage.
	ErrStagingAborted = errors.New("not written: another sink failed to stage")
)

// Status is the outcome of updating one sink.
type Status string

// Sink statuses.
const (
	StatusUpdated    Status = "updated"
	StatusSkipped    Status = "skipped"
	StatusIncomplete Status = "incomplete"
)

// Sink is a file location that mirrors the canonical version.
type Sink interface {
	// Name is the sink path as configured, used in reports
	Name() string
	// Path is the resolved file path
	Path() string
	// Stage reads the file and renders its content with version substituted.
	Stage(version string) (*Staged, error)
}

// Staged holds rendered file content that has not been written yet.
type Staged struct {
	path    string
	content []byte
	mode    fs.FileMode
}

// Content returns the rendered bytes.
func (s *Staged) Content() []byte {
	return s.content
}

// Commit writes the staged content. The file is replaced through a rename so
// a reader never observes a partially written sink.
func (s *Staged) Commit() error {
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(s.content); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write %s: %w", s.path, err)
	}
	if err := tmp.Chmod(s.mode); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to chmod %s: %w", s.path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", s.path, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", s.path, err)
	}
	return nil
}

// Report is the per-sink result of Apply.
type Report struct {
	Sink   string `json:"sink"`
	Path   string `json:"path"`
	Status Status `json:"status"`
	Err    error  `json:"-"`
}

// Error returns the failure text, or "" for updated sinks.
func (r Report) Error() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// FromConfig builds sinks from configuration, resolving paths against root.
func FromConfig(root string, cfgs []config.SinkConfig) ([]Sink, error) {
	sinks := make([]Sink, 0, len(cfgs))
	for i, c := range cfgs {
		path := c.Path
		if !filepath.IsAbs(path) {
			path = filepath.Join(root, filepath.FromSlash(path))
		}

		switch c.Type {
		case config.SinkTypeJSON:
			sinks = append(sinks, NewJSONSink(c.Path, path, c.Key))
		case config.SinkTypeRegex:
			s, err := NewPatternSink(c.Path, path, c.Pattern, c.Replacement)
			if err != nil {
				return nil, fmt.Errorf("sinks[%d]: %w", i, err)
			}
			sinks = append(sinks, s)
		default:
			return nil, fmt.Errorf("sinks[%d]: unknown sink type %q", i, c.Type)
		}
	}
	return sinks, nil
}

// Apply writes version to every sink and reports each outcome.
//
// Sinks are independent: a missing file is skipped, a failing sink is
// reported incomplete and the remaining sinks are still written. Nothing is
// rolled back. With strict set, every sink is staged first and nothing is
// written unless all existing sinks staged cleanly.
func Apply(sinks []Sink, version string, strict bool, logger *zap.Logger) []Report {
	if logger == nil {
		logger = zap.NewNop()
	}

	reports := make([]Report, len(sinks))
	staged := make([]*Staged, len(sinks))
	stageFailed := false

	for i, s := range sinks {
		reports[i] = Report{Sink: s.Name(), Path: s.Path()}

		if _, err := os.Stat(s.Path()); errors.Is(err, fs.ErrNotExist) {
			reports[i].Status = StatusSkipped
			reports[i].Err = fmt.Errorf("%w: %s", ErrSinkMissing, s.Path())
			logger.Warn("Sink not found, skipping", zap.String("sink", s.Name()), zap.String("path", s.Path()))
			continue
		}

		st, err := s.Stage(version)
		if err != nil {
			reports[i].Status = StatusIncomplete
			reports[i].Err = err
			stageFailed = true
			logger.Error("Failed to render sink", zap.String("sink", s.Name()), zap.Error(err))
			if !strict {
				continue
			}
		}
		staged[i] = st

		if !strict && st != nil {
			commit(&reports[i], st, logger)
		}
	}

	if !strict {
		return reports
	}

	for i := range sinks {
		if reports[i].Status != "" {
			continue
		}
		if stageFailed {
			reports[i].Status = StatusIncomplete
			reports[i].Err = ErrStagingAborted
			continue
		}
		commit(&reports[i], staged[i], logger)
	}
	return reports
}

func commit(r *Report, st *Staged, logger *zap.Logger) {
	if err := st.Commit(); err != nil {
		r.Status = StatusIncomplete
		r.Err = err
		logger.Error("Failed to write sink", zap.String("sink", r.Sink), zap.Error(err))
		return
	}
	r.Status = StatusUpdated
	logger.Debug("Sink updated", zap.String("sink", r.Sink), zap.String("path", r.Path))
}

// statMode returns the permission bits of path, defaulting to 0644.
func statMode(path string) fs.FileMode {
	info, err := os.Stat(path)
	if err != nil {
		return 0644
	}
	return info.Mode().Perm()
}
