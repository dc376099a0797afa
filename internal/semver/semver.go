// Package semver models firmware version strings and the bump arithmetic
// applied to them.
package semver

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// NightlySeparator marks the start of a nightly prerelease suffix.
const NightlySeparator = "-nightly"

// ErrMalformedVersion is returned when a base version is not exactly three
// non-negative integers separated by dots.
var ErrMalformedVersion = errors.New("malformed version")

// Version is a major.minor.patch triple with an optional nightly identifier.
type Version struct {
	Major int `json:"major"`
	Minor int `json:"minor"`
	Patch int `json:"patch"`
	// Prerelease is the identifier after "-nightly." (date stamp or short revision)
	Prerelease string `json:"prerelease,omitempty"`
}

// Parse parses a version string. Anything after the first nightly separator
// is kept as the prerelease identifier and never participates in arithmetic.
func Parse(s string) (Version, error) {
	s = strings.TrimSpace(s)
	base, suffix, hasSuffix := strings.Cut(s, NightlySeparator)

	parts := strings.Split(base, ".")
	if len(parts) != 3 {
		return Version{}, fmt.Errorf("%w: %q (expected MAJOR.MINOR.PATCH)", ErrMalformedVersion, s)
	}

	var nums [3]int
	for i, p := range parts {
		if !isDigits(p) {
			return Version{}, fmt.Errorf("%w: %q (component %q is not a non-negative integer)", ErrMalformedVersion, s, p)
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			return Version{}, fmt.Errorf("%w: %q: %v", ErrMalformedVersion, s, err)
		}
		nums[i] = n
	}

	v := Version{Major: nums[0], Minor: nums[1], Patch: nums[2]}
	if hasSuffix {
		v.Prerelease = strings.TrimPrefix(suffix, ".")
	}
	return v, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Base returns the part of s before the first nightly separator.
func Base(s string) string {
	base, _, _ := strings.Cut(strings.TrimSpace(s), NightlySeparator)
	return base
}

// IsPrerelease reports whether s carries a nightly suffix with a non-empty
// identifier ("-nightly.<id>"). Versions without one are stable releases.
func IsPrerelease(s string) bool {
	_, id, ok := strings.Cut(strings.TrimSpace(s), NightlySeparator+".")
	return ok && id != ""
}

// String renders the version, including the nightly suffix when present.
func (v Version) String() string {
	s := v.BaseString()
	if v.Prerelease != "" {
		s += NightlySeparator + "." + v.Prerelease
	}
	return s
}

// BaseString renders only the numeric triple.
func (v Version) BaseString() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Stable returns v without its prerelease identifier.
func (v Version) Stable() Version {
	v.Prerelease = ""
	return v
}

// Bump applies a numeric bump. The prerelease identifier is dropped first.
func (v Version) Bump(kind Kind) (Version, error) {
	v = v.Stable()
	switch kind {
	case KindMajor:
		return Version{Major: v.Major + 1}, nil
	case KindMinor:
		return Version{Major: v.Major, Minor: v.Minor + 1}, nil
	case KindPatch:
		return Version{Major: v.Major, Minor: v.Minor, Patch: v.Patch + 1}, nil
	default:
		return v, fmt.Errorf("bump kind %q is not numeric", kind)
	}
}

// WithNightly returns the same base with a "-nightly.<id>" suffix.
func (v Version) WithNightly(id string) Version {
	v.Prerelease = id
	return v
}

// Compare orders two versions. Numeric bases compare first; for equal bases
// a stable version sorts after any nightly, and nightly identifiers compare
// lexically (date stamps sort chronologically).
func Compare(a, b Version) int {
	for _, d := range [3]int{a.Major - b.Major, a.Minor - b.Minor, a.Patch - b.Patch} {
		if d < 0 {
			return -1
		}
		if d > 0 {
			return 1
		}
	}
	switch {
	case a.Prerelease == b.Prerelease:
		return 0
	case a.Prerelease == "":
		return 1
	case b.Prerelease == "":
		return -1
	default:
		return strings.Compare(a.Prerelease, b.Prerelease)
	}
}
