// Package toolrun executes external bioinformatics binaries with timeouts,
// captured output and per-unit progress reporting. One failing unit never
// aborts its siblings, callers read failures off the Result.
package toolrun

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"time"
)

// Defining possible errors
var (
	ErrToolUnavailable = errors.New("external tool not found")
	ErrTimeout         = errors.New("external tool timed out")
)

// ExecError is a non-zero exit from a tool that was found and started.
type ExecError struct {
	Tool     string
	ExitCode int
	Output   string // tail of combined stdout+stderr
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("%s exited with code %d: %s", e.Tool, e.ExitCode, e.Output)
}

// Command describes one external process invocation.
type Command struct {
	Name    string        // binary name or path
	Args    []string
	Dir     string        // working directory, empty inherits
	Timeout time.Duration // zero means no deadline
}

// Unit is one schedulable piece of work, keyed so progress events can be
// mapped back to the assembly or pair that produced them.
type Unit struct {
	ID  string
	Cmd Command
}

// Result is the outcome of one unit. Err is nil on success, otherwise one
// of ErrToolUnavailable, ErrTimeout, *ExecError or a context error.
type Result struct {
	UnitID   string
	ExitCode int
	Output   []byte
	Elapsed  time.Duration
	Err      error
}

// Phase of a progress event.
type Phase string

const (
	PhaseStarted  Phase = "started"
	PhaseFinished Phase = "finished"
)

// Event is fired on start and on completion of every executed unit.
type Event struct {
	UnitID  string
	Phase   Phase
	Err     error
	Elapsed time.Duration
}

// Runner runs external commands. Progress, when set, must be safe for
// concurrent use since units of a pool report from their own goroutines.
type Runner struct {
	Progress func(Event)
}

func (r *Runner) emit(ev Event) {
	if r.Progress != nil {
		r.Progress(ev)
	}
}

// Run executes a single unit and waits for it to finish. The combined
// stdout+stderr is captured even on failure so callers can log it.
func (r *Runner) Run(ctx context.Context, u Unit) Result {

	r.emit(Event{UnitID: u.ID, Phase: PhaseStarted})
	start := time.Now()

	runCtx := ctx
	if u.Cmd.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, u.Cmd.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, u.Cmd.Name, u.Cmd.Args...)
	cmd.Dir = u.Cmd.Dir

	output, err := cmd.CombinedOutput()

	res := Result{UnitID: u.ID, Output: output, Elapsed: time.Since(start)}

	switch {
	case err == nil:
		// done
	case ctx.Err() != nil:
		res.Err = fmt.Errorf("%s canceled: %w", u.Cmd.Name, ctx.Err())
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		res.Err = fmt.Errorf("%w: %s after %s", ErrTimeout, u.Cmd.Name, u.Cmd.Timeout)
	case isNotFound(err):
		res.Err = fmt.Errorf("%w: %s", ErrToolUnavailable, u.Cmd.Name)
	default:
		var xerr *exec.ExitError
		if errors.As(err, &xerr) {
			res.ExitCode = xerr.ExitCode()
			res.Err = &ExecError{Tool: u.Cmd.Name, ExitCode: xerr.ExitCode(), Output: tail(output, 2000)}
		} else {
			res.Err = fmt.Errorf("run %s: %w", u.Cmd.Name, err)
		}
	}

	r.emit(Event{UnitID: u.ID, Phase: PhaseFinished, Err: res.Err, Elapsed: res.Elapsed})
	return res
}

// LookPath reports whether a binary can be resolved, wrapping the miss as
// ErrToolUnavailable so callers can disable the stage with one signal.
func LookPath(name string) error {
	if _, err := exec.LookPath(name); err != nil {
		return fmt.Errorf("%w: %s", ErrToolUnavailable, name)
	}
	return nil
}

func isNotFound(err error) bool {
	return errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist)
}

func tail(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[len(b)-n:])
}
