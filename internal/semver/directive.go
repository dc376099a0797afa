package semver

import (
	"context"
	"fmt"
	"strings"
)

// Kind identifies a bump directive.
type Kind string

// Bump directive kinds.
const (
	KindMajor    Kind = "major"
	KindMinor    Kind = "minor"
	KindPatch    Kind = "patch"
	KindNightly  Kind = "nightly"
	KindExplicit Kind = "explicit"
)

// Directive is a parsed bump request. Literal is only set for KindExplicit.
type Directive struct {
	Kind    Kind
	Literal string
}

// String returns the directive as it would be typed on the command line.
func (d Directive) String() string {
	if d.Kind == KindExplicit {
		return d.Literal
	}
	return string(d.Kind)
}

// ParseDirective maps a command-line argument onto a directive. Keywords are
// case-insensitive; any other argument is an explicit version, kept verbatim.
func ParseDirective(arg string) Directive {
	switch k := Kind(strings.ToLower(strings.TrimSpace(arg))); k {
	case KindMajor, KindMinor, KindPatch, KindNightly:
		return Directive{Kind: k}
	default:
		return Directive{Kind: KindExplicit, Literal: arg}
	}
}

// RevisionFunc returns a short source-control revision for nightly versions.
type RevisionFunc func(ctx context.Context) (string, error)

// Compute returns the version that results from applying d to current.
//
// Explicit directives are returned verbatim without validation. Nightly keeps
// the numeric base and appends a fresh revision; an empty current version
// starts from 0.0.0.
func Compute(ctx context.Context, current string, d Directive, revision RevisionFunc) (string, error) {
	switch d.Kind {
	case KindExplicit:
		return d.Literal, nil

	case KindMajor, KindMinor, KindPatch:
		v, err := Parse(current)
		if err != nil {
			return "", err
		}
		next, err := v.Bump(d.Kind)
		if err != nil {
			return "", err
		}
		return next.String(), nil

	case KindNightly:
		var v Version
		if strings.TrimSpace(current) != "" {
			parsed, err := Parse(Base(current))
			if err != nil {
				return "", err
			}
			v = parsed
		}
		if revision == nil {
			return "", fmt.Errorf("nightly bump requires a revision source")
		}
		rev, err := revision(ctx)
		if err != nil {
			return "", err
		}
		return v.WithNightly(rev).String(), nil

	default:
		return "", fmt.Errorf("unknown bump directive %q", d.Kind)
	}
}
