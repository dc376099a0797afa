// Package bump computes the next firmware version and writes it to every
// registered sink.
package bump

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/lan-dot-party/relkit/internal/semver"
	"github.com/lan-dot-party/relkit/internal/sink"
)

// Bumper reads the canonical version, applies a directive and fans the
// result out to the sinks.
type Bumper struct {
	storePath string
	storeKey  string
	sinks     []sink.Sink
	revision  semver.RevisionFunc
	strict    bool
	logger    *zap.Logger
}

// Options configures a Bumper.
type Options struct {
	// StorePath is the JSON file holding the canonical version
	StorePath string
	// StoreKey is the field inside StorePath
	StoreKey string
	// Sinks receive the new version; the store itself is normally one of them
	Sinks []sink.Sink
	// Revision supplies the identifier for nightly bumps
	Revision semver.RevisionFunc
	// Strict stages every sink before writing any of them
	Strict bool
}

// Result describes a completed bump.
type Result struct {
	Previous  string           `json:"previous"`
	Next      string           `json:"next"`
	Directive semver.Directive `json:"-"`
	Reports   []sink.Report    `json:"sinks"`
}

// New creates a Bumper.
func New(opts Options, logger *zap.Logger) (*Bumper, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.StorePath == "" {
		return nil, fmt.Errorf("version store path is required")
	}
	if opts.StoreKey == "" {
		return nil, fmt.Errorf("version store key is required")
	}

	return &Bumper{
		storePath: opts.StorePath,
		storeKey:  opts.StoreKey,
		sinks:     opts.Sinks,
		revision:  opts.Revision,
		strict:    opts.Strict,
		logger:    logger,
	}, nil
}

// Current reads the canonical version. A missing store yields "".
func (b *Bumper) Current() (string, error) {
	v, err := sink.ReadVersion(b.storePath, b.storeKey)
	if errors.Is(err, sink.ErrSinkMissing) {
		b.logger.Warn("Version store not found", zap.String("path", b.storePath))
		return "", nil
	}
	return v, err
}

// Run applies d. Computation errors (malformed version, no revision) are
// returned before any file is touched; sink failures are reported in the
// result and do not abort the remaining sinks.
func (b *Bumper) Run(ctx context.Context, d semver.Directive) (*Result, error) {
	current, err := b.Current()
	if err != nil {
		return nil, err
	}

	next, err := semver.Compute(ctx, current, d, b.revision)
	if err != nil {
		return nil, err
	}

	b.logger.Info("Bumping version",
		zap.String("directive", d.String()),
		zap.String("from", current),
		zap.String("to", next),
		zap.Int("sinks", len(b.sinks)),
	)

	return &Result{
		Previous:  current,
		Next:      next,
		Directive: d,
		Reports:   sink.Apply(b.sinks, next, b.strict, b.logger),
	}, nil
}

// Incomplete returns the reports of sinks that do not hold the new version.
func (r *Result) Incomplete() []sink.Report {
	return r.filter(sink.StatusIncomplete)
}

// Skipped returns the reports of sinks whose file does not exist.
func (r *Result) Skipped() []sink.Report {
	return r.filter(sink.StatusSkipped)
}

// Updated returns the reports of sinks written successfully.
func (r *Result) Updated() []sink.Report {
	return r.filter(sink.StatusUpdated)
}

func (r *Result) filter(status sink.Status) []sink.Report {
	var out []sink.Report
	for _, rep := range r.Reports {
		if rep.Status == status {
			out = append(out, rep)
		}
	}
	return out
}

// Err summarises incomplete sinks, or returns nil when every existing sink
// was updated.
func (r *Result) Err() error {
	bad := r.Incomplete()
	if len(bad) == 0 {
		return nil
	}
	errs := make([]error, 0, len(bad))
	for _, rep := range bad {
		errs = append(errs, fmt.Errorf("%s: %w", rep.Sink, rep.Err))
	}
	return fmt.Errorf("bump to %s incomplete for %d sink(s): %w", r.Next, len(bad), errors.Join(errs...))
}
