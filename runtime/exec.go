// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package runtime

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"github.com/z5labs/atk/internal/slogfield"
)

// Command is a single process invocation.
type Command struct {
	Args []string

	// Env is added to the environment of the current process.
	Env []string

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Executor runs Commands.
type Executor interface {
	Execute(ctx context.Context, cmd Command) error
}

// ExecutorFunc is a func type which implements the [Executor] interface.
type ExecutorFunc func(context.Context, Command) error

// Execute implements the [Executor] interface.
func (f ExecutorFunc) Execute(ctx context.Context, cmd Command) error {
	return f(ctx, cmd)
}

// CommandError occurs when a Command exits unsuccessfully.
type CommandError struct {
	Args     []string
	ExitCode int

	// Stderr holds the tail of what the command wrote to stderr.
	Stderr string

	Cause error
}

// Error implements the error interface.
func (e *CommandError) Error() string {
	msg := fmt.Sprintf("command failed with exit code %d: %s", e.ExitCode, strings.Join(e.Args, " "))
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

// Unwrap implements the implicit interface used by errors.Is and errors.As.
func (e *CommandError) Unwrap() error {
	return e.Cause
}

// maxStderrTail bounds how much stderr a CommandError carries.
const maxStderrTail = 4096

// OSExecutor runs Commands as child processes.
type OSExecutor struct {
	log *slog.Logger
}

// NewOSExecutor returns an [OSExecutor] which logs every command to log.
func NewOSExecutor(log *slog.Logger) *OSExecutor {
	return &OSExecutor{log: log}
}

// Execute implements the [Executor] interface.
func (e *OSExecutor) Execute(ctx context.Context, cmd Command) error {
	if len(cmd.Args) == 0 {
		return &CommandError{ExitCode: -1, Cause: errors.New("no command given")}
	}
	e.log.InfoContext(ctx, "running command", slogfield.Command(cmd.Args))

	var stderr tailBuffer
	c := exec.CommandContext(ctx, cmd.Args[0], cmd.Args[1:]...)
	c.Env = append(os.Environ(), cmd.Env...)
	c.Stdin = cmd.Stdin
	c.Stdout = cmd.Stdout
	c.Stderr = &stderr
	if cmd.Stderr != nil {
		c.Stderr = io.MultiWriter(cmd.Stderr, &stderr)
	}

	err := c.Run()
	if err == nil {
		return nil
	}

	cerr := &CommandError{
		Args:     cmd.Args,
		ExitCode: -1,
		Stderr:   strings.TrimSpace(stderr.String()),
		Cause:    err,
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		cerr.ExitCode = exitErr.ExitCode()
	}
	return cerr
}

// tailBuffer keeps the last maxStderrTail bytes written to it.
type tailBuffer struct {
	bytes.Buffer
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	n, err := b.Buffer.Write(p)
	if over := b.Len() - maxStderrTail; over > 0 {
		b.Next(over)
	}
	return n, err
}

// DryRunExecutor only logs the Commands it is given.
type DryRunExecutor struct {
	log *slog.Logger
}

// NewDryRunExecutor returns a [DryRunExecutor] which logs to log.
func NewDryRunExecutor(log *slog.Logger) *DryRunExecutor {
	return &DryRunExecutor{log: log}
}

// Execute implements the [Executor] interface.
func (e *DryRunExecutor) Execute(ctx context.Context, cmd Command) error {
	e.log.InfoContext(ctx, "dry run, not running command", slogfield.Command(cmd.Args))
	return nil
}
