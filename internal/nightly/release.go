package nightly

import (
	"context"
	"fmt"

	"github.com/lan-dot-party/relkit/internal/sink"
)

// Releaser resolves the tag for the project's stored version and triggers
// the nightly workflow for it.
type Releaser struct {
	StorePath  string
	StoreKey   string
	Identifier Identifier
	Trigger    *Trigger
}

// ResolveTag reads the stored version and derives the tag. override, when
// not empty, replaces the stored version.
func (r *Releaser) ResolveTag(ctx context.Context, override string) (string, error) {
	stored := ""
	if override == "" {
		v, err := sink.ReadVersion(r.StorePath, r.StoreKey)
		if err != nil {
			return "", fmt.Errorf("failed to read current version: %w", err)
		}
		stored = v
	}
	return ResolveTag(ctx, stored, override, r.Identifier)
}

// Release resolves the tag and runs the trigger. The tag is returned even
// when the trigger fails so callers can report it.
func (r *Releaser) Release(ctx context.Context, override string) (string, error) {
	tag, err := r.ResolveTag(ctx, override)
	if err != nil {
		return "", err
	}
	return tag, r.Trigger.Run(ctx, tag)
}
