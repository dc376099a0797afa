// Package nightly derives nightly prerelease tags and asks the remote CI
// system to build and publish them.
package nightly

import (
	"context"
	"fmt"
	"time"

	"github.com/lan-dot-party/relkit/internal/config"
	"github.com/lan-dot-party/relkit/internal/semver"
)

// Identifier produces the build identifier appended after "-nightly.".
type Identifier func(ctx context.Context) (string, error)

// DateIdentifier stamps builds with now formatted as YYYYMMDD.
func DateIdentifier(now func() time.Time) Identifier {
	if now == nil {
		now = time.Now
	}
	return func(context.Context) (string, error) {
		return now().Format("20060102"), nil
	}
}

// RevisionIdentifier stamps builds with a short source-control revision.
func RevisionIdentifier(rev semver.RevisionFunc) Identifier {
	return Identifier(rev)
}

// NewIdentifier selects the identifier strategy named in configuration.
func NewIdentifier(strategy string, rev semver.RevisionFunc, now func() time.Time) (Identifier, error) {
	switch strategy {
	case config.IdentifierDate:
		return DateIdentifier(now), nil
	case config.IdentifierRevision:
		if rev == nil {
			return nil, fmt.Errorf("revision identifier requires a revision source")
		}
		return RevisionIdentifier(rev), nil
	default:
		return nil, fmt.Errorf("unknown nightly identifier %q", strategy)
	}
}

// Tag returns the nightly tag for version. A version that already carries a
// nightly suffix is returned unchanged, so re-triggering is idempotent. The
// base is not validated: "2.0.0-rc1" becomes "2.0.0-rc1-nightly.<id>".
func Tag(ctx context.Context, version string, id Identifier) (string, error) {
	if semver.IsPrerelease(version) {
		return version, nil
	}
	return freshTag(ctx, version, id)
}

// ResolveTag picks the tag for one trigger run. An explicit override always
// gets a fresh identifier on its base; otherwise the stored version is used
// through Tag.
func ResolveTag(ctx context.Context, stored, override string, id Identifier) (string, error) {
	if override != "" {
		return freshTag(ctx, semver.Base(override), id)
	}
	return Tag(ctx, stored, id)
}

func freshTag(ctx context.Context, version string, id Identifier) (string, error) {
	base := semver.Base(version)
	if base == "" {
		return "", fmt.Errorf("%w: empty base version", semver.ErrMalformedVersion)
	}
	ident, err := id(ctx)
	if err != nil {
		return "", err
	}
	return base + semver.NightlySeparator + "." + ident, nil
}
