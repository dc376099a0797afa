// Package execx runs external tools (git, gh) behind an interface so that
// callers can be exercised without spawning real processes.
package execx

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Output is the captured result of one external command.
type Output struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner is an interface for executing external commands. It allows tests to
// inject fake implementations without running real processes.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (Output, error)
}

// ExitError reports a command that started but did not succeed.
type ExitError struct {
	Command  string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ExitError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" {
		return fmt.Sprintf("%s: %v", e.Command, e.Err)
	}
	return fmt.Sprintf("%s: exit status %d: %s", e.Command, e.ExitCode, msg)
}

func (e *ExitError) Unwrap() error { return e.Err }

// Exec runs commands with os/exec. Calls block until the command exits or
// ctx is cancelled; there is no internal timeout.
type Exec struct {
	// Dir is the working directory ("" inherits the current one)
	Dir string
	// Env is appended to the current environment
	Env []string
}

// New returns a Runner backed by os/exec that runs commands in dir.
func New(dir string) *Exec {
	return &Exec{Dir: dir}
}

// Run executes name with args, capturing stdout and stderr.
func (e *Exec) Run(ctx context.Context, name string, args ...string) (Output, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = e.Dir
	if len(e.Env) > 0 {
		cmd.Env = append(os.Environ(), e.Env...)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	out := Output{Stdout: stdout.String(), Stderr: stderr.String()}
	if err == nil {
		return out, nil
	}

	out.ExitCode = -1
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		out.ExitCode = exitErr.ExitCode()
	}
	return out, &ExitError{
		Command:  CommandLine(name, args...),
		ExitCode: out.ExitCode,
		Stderr:   out.Stderr,
		Err:      err,
	}
}

// CommandLine renders name and args for logs and fake lookups.
func CommandLine(name string, args ...string) string {
	return strings.TrimSpace(name + " " + strings.Join(args, " "))
}
