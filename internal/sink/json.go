package sink

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"
)

// JSONSink updates one string field of a JSON object file. Other fields keep
// their order and values; output uses two-space indentation and a trailing
// newline.
type JSONSink struct {
	name string
	path string
	key  string
}

// NewJSONSink creates a sink updating key in the JSON file at path.
func NewJSONSink(name, path, key string) *JSONSink {
	return &JSONSink{name: name, path: path, key: key}
}

// Name returns the configured sink name.
func (s *JSONSink) Name() string { return s.name }

// Path returns the resolved file path.
func (s *JSONSink) Path() string { return s.path }

// Stage renders the file with key set to version.
func (s *JSONSink) Stage(version string) (*Staged, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", s.path, err)
	}

	content, err := setField(data, s.key, version)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.path, err)
	}

	return &Staged{path: s.path, content: content, mode: statMode(s.path)}, nil
}

// layout matches what the firmware tooling writes: two-space indent, one
// array element per line.
var layout = &pretty.Options{Indent: "  "}

// setField replaces (or appends) key in a top-level JSON object.
func setField(data []byte, key, value string) ([]byte, error) {
	if err := checkObject(data); err != nil {
		return nil, err
	}

	out, err := sjson.SetBytes(data, fieldPath(key), value)
	if err != nil {
		return nil, fmt.Errorf("failed to set %q: %w", key, err)
	}

	out = pretty.PrettyOptions(out, layout)
	return append(bytes.TrimRight(out, "\n"), '\n'), nil
}

// checkObject rejects anything but a single top-level JSON object.
func checkObject(data []byte) error {
	if !gjson.ValidBytes(data) {
		return errors.New("invalid JSON")
	}
	if !gjson.ParseBytes(data).IsObject() {
		return errors.New("invalid JSON: top-level value is not an object")
	}
	return nil
}

// fieldPath escapes key so it addresses one top-level field rather than a
// nested path or pattern.
func fieldPath(key string) string {
	var b strings.Builder
	for _, r := range key {
		switch r {
		case '.', '*', '?', '|', '#', '@', '\\', '!', '=', '<', '>', '%', ':':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ReadVersion returns the string stored under key in the JSON file at path.
func ReadVersion(path, key string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrSinkMissing, path)
		}
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}

	if err := checkObject(data); err != nil {
		return "", fmt.Errorf("%s: %w", path, err)
	}

	field := gjson.GetBytes(data, fieldPath(key))
	switch {
	case !field.Exists():
		return "", fmt.Errorf("%s: field %q not found", path, key)
	case field.Type != gjson.String:
		return "", fmt.Errorf("%s: field %q is not a string", path, key)
	}
	return field.String(), nil
}
