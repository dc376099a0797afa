package nightly

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/lan-dot-party/relkit/internal/execx"
)

// Trigger errors.
var (
	// ErrDependencyMissing means the remote-automation CLI is not installed.
	ErrDependencyMissing = errors.New("dependency missing")
	// ErrCancelled means the operator declined the confirmation prompt.
	ErrCancelled = errors.New("cancelled")
)

// WorkflowTriggerError carries the remote CLI's error output verbatim.
type WorkflowTriggerError struct {
	Workflow string
	Stderr   string
	Err      error
}

func (e *WorkflowTriggerError) Error() string {
	return fmt.Sprintf("failed to trigger workflow %s: %s", e.Workflow, strings.TrimSpace(e.Stderr))
}

func (e *WorkflowTriggerError) Unwrap() error { return e.Err }

// Outcome labels how a trigger run ended (used for metrics and history).
type Outcome string

// Trigger outcomes.
const (
	OutcomeTriggered         Outcome = "triggered"
	OutcomeCancelled         Outcome = "cancelled"
	OutcomeDependencyMissing Outcome = "dependency_missing"
	OutcomeFailed            Outcome = "failed"
)

// OutcomeOf classifies the error returned by Trigger.Run.
func OutcomeOf(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeTriggered
	case errors.Is(err, ErrCancelled):
		return OutcomeCancelled
	case errors.Is(err, ErrDependencyMissing):
		return OutcomeDependencyMissing
	default:
		return OutcomeFailed
	}
}

// Options configures a Trigger.
type Options struct {
	// CLI is the remote-automation tool, e.g. "gh"
	CLI string
	// Workflow is the workflow file to dispatch
	Workflow string
	// Input is the workflow input that receives the tag
	Input string
	// ExtraArgs are appended to the dispatch command
	ExtraArgs []string
	// Repo is owner/name, used for manual fallback instructions
	Repo string
	// AssumeYes skips the confirmation prompt
	AssumeYes bool
}

// Trigger dispatches the nightly-release workflow for a tag. Every external
// call is attempted exactly once.
type Trigger struct {
	opts   Options
	runner execx.Runner
	in     *bufio.Reader
	out    io.Writer
	logger *zap.Logger
}

// NewTrigger creates a Trigger reading confirmations from in and printing
// operator guidance to out.
func NewTrigger(opts Options, runner execx.Runner, in io.Reader, out io.Writer, logger *zap.Logger) *Trigger {
	if logger == nil {
		logger = zap.NewNop()
	}
	if out == nil {
		out = io.Discard
	}
	if in == nil {
		in = strings.NewReader("")
	}
	return &Trigger{
		opts:   opts,
		runner: runner,
		in:     bufio.NewReader(in),
		out:    out,
		logger: logger,
	}
}

// Run checks the CLI, asks for confirmation and dispatches the workflow.
func (t *Trigger) Run(ctx context.Context, tag string) error {
	if err := t.CheckDependency(ctx, tag); err != nil {
		return err
	}
	if err := t.Confirm(tag); err != nil {
		return err
	}
	return t.Dispatch(ctx, tag)
}

// CheckDependency verifies the remote CLI is installed. When it is not,
// manual instructions for triggering the workflow are printed.
func (t *Trigger) CheckDependency(ctx context.Context, tag string) error {
	if _, err := t.runner.Run(ctx, t.opts.CLI, "--version"); err != nil {
		t.logger.Debug("Dependency check failed", zap.String("cli", t.opts.CLI), zap.Error(err))
		t.printManual(tag)
		return fmt.Errorf("%w: %s is not installed", ErrDependencyMissing, t.opts.CLI)
	}
	return nil
}

func (t *Trigger) printManual(tag string) {
	fmt.Fprintf(t.out, "\n[ERROR] %s not found!\n", t.opts.CLI)
	if t.opts.CLI == "gh" {
		fmt.Fprintf(t.out, "[INFO] Install it from: https://cli.github.com/\n")
	}
	fmt.Fprintf(t.out, "\n[MANUAL] To create the nightly release manually:\n")
	fmt.Fprintf(t.out, "  1. Go to: https://github.com/%s/actions/workflows/%s\n", t.opts.Repo, t.opts.Workflow)
	fmt.Fprintf(t.out, "  2. Click 'Run workflow'\n")
	fmt.Fprintf(t.out, "  3. Enter %s: %s\n", t.opts.Input, tag)
	fmt.Fprintf(t.out, "  4. Click 'Run workflow'\n")
}

// Confirm asks the operator to approve the release. Only "y" or "yes"
// (any case) proceed; everything else, including EOF, returns ErrCancelled.
func (t *Trigger) Confirm(tag string) error {
	if t.opts.AssumeYes {
		return nil
	}

	fmt.Fprintf(t.out, "\n[CONFIRM] This will create a nightly prerelease:\n")
	fmt.Fprintf(t.out, "  - Tag: v%s\n", tag)
	fmt.Fprintf(t.out, "  - Branch: (current)\n")
	fmt.Fprintf(t.out, "  - Marked as: Prerelease (unstable)\n")
	fmt.Fprintf(t.out, "\nContinue? [y/N]: ")

	line, _ := t.in.ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return nil
	default:
		return ErrCancelled
	}
}

// DispatchArgs returns the CLI arguments used to dispatch the workflow.
func (t *Trigger) DispatchArgs(tag string) []string {
	args := []string{"workflow", "run", t.opts.Workflow, "-f", t.opts.Input + "=" + tag}
	return append(args, t.opts.ExtraArgs...)
}

// Dispatch runs the workflow. A non-zero exit is returned as a
// *WorkflowTriggerError holding the CLI's stderr.
func (t *Trigger) Dispatch(ctx context.Context, tag string) error {
	t.logger.Info("Triggering nightly release workflow",
		zap.String("workflow", t.opts.Workflow),
		zap.String("tag", tag),
	)

	out, err := t.runner.Run(ctx, t.opts.CLI, t.DispatchArgs(tag)...)
	if err != nil {
		stderr := out.Stderr
		if strings.TrimSpace(stderr) == "" {
			stderr = err.Error()
		}
		return &WorkflowTriggerError{Workflow: t.opts.Workflow, Stderr: stderr, Err: err}
	}
	return nil
}
