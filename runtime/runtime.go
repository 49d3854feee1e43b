// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package runtime drives the container runtimes a generated compose
// document is handed to.
package runtime

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/z5labs/atk/compose"
	"github.com/z5labs/atk/document"
	"github.com/z5labs/atk/key"

	"golang.org/x/term"
)

// Names of the supported runtimes.
const (
	DockerName      = "docker"
	SingularityName = "singularity"
)

// Project is a generated compose document on disk.
type Project struct {
	// Name is the compose project name.
	Name string

	// File is the path of the generated document.
	File string

	Document     *document.Node
	ServicesPath key.Chain
}

// NewProject describes the document generated in res and written to file.
func NewProject(file string, res *compose.Result) Project {
	return Project{
		Name:         res.Config().Project,
		File:         file,
		Document:     res.Document(),
		ServicesPath: res.ServicesPath(),
	}
}

// WorkingDir returns the working_dir of service, or "/" if it has none.
func (p Project) WorkingDir(service string) string {
	path := p.ServicesPath.Append(key.Name(service), "working_dir")
	v, err := p.Document.Get(path)
	if err != nil {
		return "/"
	}
	s, ok := v.AsString()
	if !ok || s == "" {
		return "/"
	}
	return s
}

// Backend is a container runtime which consumes compose documents.
type Backend interface {
	Name() string

	// TranslationRules and Adapters tailor the generated document to the
	// runtime. See [compose.TranslationRules] and [compose.Adapters].
	TranslationRules() []compose.TranslationRule
	Adapters() []compose.Adapter

	Build(ctx context.Context, p Project, services []string, args ...string) error
	Up(ctx context.Context, p Project, services []string, args ...string) error
	Down(ctx context.Context, p Project, services []string, args ...string) error

	// Running returns which of services are already running.
	Running(ctx context.Context, p Project, services []string) ([]string, error)

	// Run starts service, runs args in it and removes it again.
	Run(ctx context.Context, p Project, service string, args ...string) error

	// Shell attaches an interactive shell to the running service. The
	// shell is read from the USERSHELLPATH variable of the service and
	// USERSHELLPROFILE, if set, is passed as its rcfile.
	Shell(ctx context.Context, p Project, service string, args ...string) error

	// RunCommand runs an arbitrary compose subcommand.
	RunCommand(ctx context.Context, p Project, args ...string) error
}

// UnknownBackendError occurs when no runtime is known by the requested name.
type UnknownBackendError struct {
	Name string
}

// Error implements the error interface.
func (e UnknownBackendError) Error() string {
	return fmt.Sprintf("unknown container runtime: %q", e.Name)
}

type options struct {
	exec       Executor
	log        *slog.Logger
	stdin      io.Reader
	stdout     io.Writer
	stderr     io.Writer
	isTerminal func() bool
}

// Option configures a [Backend].
type Option func(*options)

// WithExecutor sets how commands are run. The default runs them as
// child processes.
func WithExecutor(e Executor) Option {
	return func(o *options) {
		o.exec = e
	}
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(o *options) {
		o.log = log
	}
}

// WithStdio sets the standard streams of interactive commands.
func WithStdio(stdin io.Reader, stdout, stderr io.Writer) Option {
	return func(o *options) {
		o.stdin = stdin
		o.stdout = stdout
		o.stderr = stderr
	}
}

// WithTerminal overrides how a backend decides whether stdin is a
// terminal. Without a terminal, no pseudo-TTY is allocated for exec.
func WithTerminal(isTerminal func() bool) Option {
	return func(o *options) {
		o.isTerminal = isTerminal
	}
}

func newOptions(opts []Option) options {
	o := options{
		log:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		stdin:  os.Stdin,
		stdout: os.Stdout,
		stderr: os.Stderr,
		isTerminal: func() bool {
			return term.IsTerminal(int(os.Stdin.Fd()))
		},
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.exec == nil {
		o.exec = NewOSExecutor(o.log)
	}
	return o
}

// New returns the runtime called name. The empty name selects Docker.
func New(name string, opts ...Option) (Backend, error) {
	switch name {
	case "", DockerName:
		return NewDocker(opts...), nil
	case SingularityName:
		return NewSingularity(opts...), nil
	default:
		return nil, UnknownBackendError{Name: name}
	}
}
