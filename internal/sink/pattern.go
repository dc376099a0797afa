package sink

import (
	"bytes"
	"fmt"
	"os"
	"regexp"
	"strings"
)

// PatternSink rewrites the first match of a regular expression, typically a
// `#define FIRMWARE_VERSION "x.y.z"` declaration. The rest of the file is
// left byte-for-byte untouched.
type PatternSink struct {
	name        string
	path        string
	pattern     *regexp.Regexp
	replacement string
}

// NewPatternSink compiles pattern. replacement is literal text in which
// {version} is substituted.
func NewPatternSink(name, path, pattern, replacement string) (*PatternSink, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}
	return &PatternSink{name: name, path: path, pattern: re, replacement: replacement}, nil
}

// Name returns the configured sink name.
func (s *PatternSink) Name() string { return s.name }

// Path returns the resolved file path.
func (s *PatternSink) Path() string { return s.path }

// Stage renders the file with the declaration rewritten to version.
func (s *PatternSink) Stage(version string) (*Staged, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", s.path, err)
	}

	loc := s.pattern.FindIndex(data)
	if loc == nil {
		return nil, fmt.Errorf("%w: %s does not match %q", ErrPatternNotFound, s.path, s.pattern.String())
	}

	var buf bytes.Buffer
	buf.Grow(len(data) + len(version))
	buf.Write(data[:loc[0]])
	buf.WriteString(strings.ReplaceAll(s.replacement, "{version}", version))
	buf.Write(data[loc[1]:])

	return &Staged{path: s.path, content: buf.Bytes(), mode: statMode(s.path)}, nil
}
