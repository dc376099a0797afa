// Package vcs looks up source-control metadata through the git CLI.
package vcs

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/lan-dot-party/relkit/internal/execx"
)

// ErrRevisionUnavailable is returned outside a git work tree or before the
// first commit.
var ErrRevisionUnavailable = errors.New("revision unavailable")

// Commit is the metadata of one commit.
type Commit struct {
	Hash    string `json:"hash"`
	Author  string `json:"author"`
	Subject string `json:"subject"`
}

// Git queries a repository via the git command line.
type Git struct {
	runner execx.Runner
	logger *zap.Logger
}

// NewGit creates a Git backed by runner.
func NewGit(runner execx.Runner, logger *zap.Logger) *Git {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Git{runner: runner, logger: logger}
}

// ShortRevision returns the abbreviated hash of HEAD.
func (g *Git) ShortRevision(ctx context.Context) (string, error) {
	out, err := g.runner.Run(ctx, "git", "rev-parse", "--short", "HEAD")
	if err != nil {
		return "", unavailable(err)
	}
	rev := strings.TrimSpace(out.Stdout)
	if rev == "" {
		return "", fmt.Errorf("%w: git returned an empty revision", ErrRevisionUnavailable)
	}
	g.logger.Debug("Resolved revision", zap.String("revision", rev))
	return rev, nil
}

// HeadCommit returns hash, author and subject of HEAD.
func (g *Git) HeadCommit(ctx context.Context) (*Commit, error) {
	out, err := g.runner.Run(ctx, "git", "log", "-1", "--format=%H%x1f%an%x1f%s")
	if err != nil {
		return nil, unavailable(err)
	}
	fields := strings.Split(strings.TrimSpace(out.Stdout), "\x1f")
	if len(fields) != 3 || fields[0] == "" {
		return nil, fmt.Errorf("%w: unexpected git log output %q", ErrRevisionUnavailable, out.Stdout)
	}
	return &Commit{Hash: fields[0], Author: fields[1], Subject: fields[2]}, nil
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", ErrRevisionUnavailable, err)
}
