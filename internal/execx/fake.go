package execx

import (
	"context"
	"fmt"
	"sync"
)

// Fake is a scripted Runner for tests. Responses are keyed by the full
// command line as rendered by CommandLine.
type Fake struct {
	mu        sync.Mutex
	responses map[string]fakeResponse
	calls     []string
}

type fakeResponse struct {
	out Output
	err error
}

// NewFake returns an empty Fake; unscripted commands fail as if not installed.
func NewFake() *Fake {
	return &Fake{responses: make(map[string]fakeResponse)}
}

// On scripts a successful command with the given stdout.
func (f *Fake) On(cmdline, stdout string) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[cmdline] = fakeResponse{out: Output{Stdout: stdout}}
	return f
}

// Fail scripts a command that exits with code and stderr.
func (f *Fake) Fail(cmdline string, code int, stderr string) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := Output{Stderr: stderr, ExitCode: code}
	f.responses[cmdline] = fakeResponse{
		out: out,
		err: &ExitError{Command: cmdline, ExitCode: code, Stderr: stderr, Err: fmt.Errorf("exit status %d", code)},
	}
	return f
}

// Run returns the scripted response for the command line.
func (f *Fake) Run(_ context.Context, name string, args ...string) (Output, error) {
	cmdline := CommandLine(name, args...)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, cmdline)

	resp, ok := f.responses[cmdline]
	if !ok {
		return Output{ExitCode: -1}, fmt.Errorf("exec: %q: executable file not found in $PATH", name)
	}
	return resp.out, resp.err
}

// Calls returns every command line run so far, in order.
func (f *Fake) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}
